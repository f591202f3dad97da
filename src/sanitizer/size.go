package sanitizer

import (
	"context"
	"fmt"
)

// SizeScanner rejects markup larger than a byte limit.
type SizeScanner struct {
	MaxBytes int
}

// NewSizeScanner creates a SizeScanner with the given byte limit.
func NewSizeScanner(maxBytes int) *SizeScanner {
	return &SizeScanner{MaxBytes: maxBytes}
}

func (s *SizeScanner) Name() string { return "size" }

func (s *SizeScanner) Scan(_ context.Context, content string) (StageResult, error) {
	if len(content) <= s.MaxBytes {
		return StageResult{
			Verdict:     VerdictPass,
			Content:     content,
			ScannerName: s.Name(),
		}, nil
	}

	return StageResult{
		Verdict:     VerdictBlock,
		Content:     content,
		Threats:     []string{fmt.Sprintf("input of %d bytes exceeds the policy limit of %d bytes", len(content), s.MaxBytes)},
		ScannerName: s.Name(),
	}, nil
}
