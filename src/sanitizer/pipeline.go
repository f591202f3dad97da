package sanitizer

import (
	"context"

	"github.com/Easy-Infra-Ltd/easy-html-gateway/src/policy"
)

// Pipeline executes an ordered sequence of Scanners against content.
// On VerdictBlock it short-circuits. On VerdictModify it threads the
// modified content into subsequent scanners.
type Pipeline struct {
	scanners []Scanner
}

// NewPipeline creates a pipeline from the given scanners. Execution
// order matches the slice order.
func NewPipeline(scanners ...Scanner) *Pipeline {
	return &Pipeline{scanners: scanners}
}

// Process runs all scanners in order and returns an aggregated result.
func (p *Pipeline) Process(ctx context.Context, content string) (PipelineResult, error) {
	current := content
	result := PipelineResult{
		FinalVerdict: VerdictPass,
		StageResults: make([]StageResult, 0, len(p.scanners)),
	}

	for _, s := range p.scanners {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		sr, err := s.Scan(ctx, current)
		if err != nil {
			return result, &ScanError{Stage: s.Name(), Err: err}
		}

		result.StageResults = append(result.StageResults, sr)
		result.AllThreats = append(result.AllThreats, sr.Threats...)

		switch sr.Verdict {
		case VerdictBlock:
			result.FinalVerdict = VerdictBlock
			result.FinalContent = sr.Content
			return result, nil
		case VerdictModify:
			result.FinalVerdict = VerdictModify
			current = sr.Content
		}
	}

	result.FinalContent = current
	return result, nil
}

// BuildPipeline constructs the scanner pipeline a policy asks for.
// Scanner order: size -> unicode -> deny -> html. Deny patterns see the
// normalized text, so full-width or zero-width-split spellings still match.
func BuildPipeline(p *policy.Policy) *Pipeline {
	var scanners []Scanner

	if p.MaxInputSize() > 0 {
		scanners = append(scanners, NewSizeScanner(p.MaxInputSize()))
	}

	if p.StripInvisible() {
		scanners = append(scanners, &UnicodeScanner{})
	}

	if deny := p.DenyPatterns(); len(deny) > 0 {
		scanners = append(scanners, NewDenyScanner(deny))
	}

	scanners = append(scanners, NewHTMLScanner(p.HTML()))

	return NewPipeline(scanners...)
}
