package sanitizer

import (
	"context"
	"fmt"
	"regexp"
)

// DenyScanner rejects markup matching any of the policy's deny patterns.
// Patterns are matched against the raw markup, before the allowlist runs.
type DenyScanner struct {
	patterns []*regexp.Regexp
}

// NewDenyScanner creates a scanner over already compiled patterns.
func NewDenyScanner(patterns []*regexp.Regexp) *DenyScanner {
	return &DenyScanner{patterns: patterns}
}

func (s *DenyScanner) Name() string { return "deny" }

func (s *DenyScanner) Scan(_ context.Context, content string) (StageResult, error) {
	for _, re := range s.patterns {
		if loc := re.FindStringIndex(content); loc != nil {
			return StageResult{
				Verdict:     VerdictBlock,
				Content:     content,
				Threats:     []string{fmt.Sprintf("denied content at offset %d: matched pattern %q", loc[0], re.String())},
				ScannerName: s.Name(),
			}, nil
		}
	}

	return StageResult{
		Verdict:     VerdictPass,
		Content:     content,
		ScannerName: s.Name(),
	}, nil
}
