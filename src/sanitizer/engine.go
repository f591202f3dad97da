package sanitizer

import (
	"context"
	"errors"
	"time"

	"github.com/Easy-Infra-Ltd/easy-html-gateway/src/policy"
)

// Engine sanitizes one response body against a policy.
type Engine interface {
	Scan(ctx context.Context, raw string, p *policy.Policy, enc Encodings) (ScanResult, error)
}

// HTMLEngine is the default Engine. It decodes the input, runs the policy's
// pipeline and encodes the result for the client.
type HTMLEngine struct{}

// Scan sanitizes raw. Any refusal or processing failure is a *ScanError.
func (HTMLEngine) Scan(ctx context.Context, raw string, p *policy.Policy, enc Encodings) (ScanResult, error) {
	start := time.Now()

	if p == nil {
		return ScanResult{}, &ScanError{Stage: "policy", Err: errors.New("no policy")}
	}
	enc = enc.WithDefaults()

	input, err := enc.decode(raw)
	if err != nil {
		return ScanResult{}, &ScanError{Stage: "decode", Err: err}
	}

	pr, err := BuildPipeline(p).Process(ctx, input)
	if err != nil {
		var serr *ScanError
		if errors.As(err, &serr) {
			return ScanResult{}, serr
		}
		return ScanResult{}, &ScanError{Stage: "pipeline", Err: err}
	}

	if pr.FinalVerdict == VerdictBlock {
		stage := "pipeline"
		if n := len(pr.StageResults); n > 0 {
			stage = pr.StageResults[n-1].ScannerName
		}
		return ScanResult{}, &ScanError{Stage: stage, Threats: pr.AllThreats}
	}

	out, err := enc.encode(pr.FinalContent)
	if err != nil {
		return ScanResult{}, &ScanError{Stage: "encode", Err: err}
	}

	return ScanResult{
		CleanHTML:      pr.FinalContent,
		Output:         out,
		NumberOfErrors: len(pr.AllThreats),
		ErrorMessages:  pr.AllThreats,
		ScanTime:       time.Since(start),
	}, nil
}
