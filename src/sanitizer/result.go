package sanitizer

import (
	"fmt"
	"strings"
	"time"
)

// Verdict represents the outcome of a scan stage.
type Verdict int

const (
	// VerdictPass means the stage left the content unchanged.
	VerdictPass Verdict = iota
	// VerdictModify means the stage rewrote the content and the rewrite
	// replaces the original.
	VerdictModify
	// VerdictBlock means the content must not be delivered at all.
	VerdictBlock
)

func (v Verdict) String() string {
	switch v {
	case VerdictPass:
		return "pass"
	case VerdictModify:
		return "modify"
	case VerdictBlock:
		return "block"
	default:
		return "unknown"
	}
}

// StageResult is the outcome of a single Scanner.
type StageResult struct {
	Verdict     Verdict
	Content     string   // original or modified content
	Threats     []string // human-readable findings
	ScannerName string
}

// PipelineResult aggregates results from all scanners in a pipeline.
type PipelineResult struct {
	FinalVerdict Verdict
	FinalContent string
	AllThreats   []string
	StageResults []StageResult
}

// ScanResult is what an Engine hands back for one response.
type ScanResult struct {
	// CleanHTML is the sanitized markup as UTF-8 text.
	CleanHTML string
	// Output is CleanHTML encoded in the requested output encoding. It is
	// what gets written to the client.
	Output []byte

	NumberOfErrors int
	ErrorMessages  []string
	ScanTime       time.Duration
}

// ScanError reports content the engine refused or failed to process.
type ScanError struct {
	Stage   string
	Threats []string
	Err     error
}

func (e *ScanError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("scan %s: %v", e.Stage, e.Err)
	case len(e.Threats) > 0:
		return fmt.Sprintf("scan %s: content rejected: %s", e.Stage, strings.Join(e.Threats, "; "))
	default:
		return fmt.Sprintf("scan %s: content rejected", e.Stage)
	}
}

func (e *ScanError) Unwrap() error { return e.Err }
