package sanitizer

import (
	"context"
	"strings"
	"testing"
)

func TestSizeScanner_UnderLimit(t *testing.T) {
	s := NewSizeScanner(100)
	res, err := s.Scan(context.Background(), "<p>short</p>")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != VerdictPass {
		t.Errorf("verdict = %v, want Pass", res.Verdict)
	}
}

func TestSizeScanner_ExactLimit(t *testing.T) {
	s := NewSizeScanner(5)
	res, err := s.Scan(context.Background(), "abcde")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != VerdictPass {
		t.Errorf("verdict = %v, want Pass", res.Verdict)
	}
}

func TestSizeScanner_OverLimitBlocks(t *testing.T) {
	s := NewSizeScanner(5)
	res, err := s.Scan(context.Background(), "abcdefgh")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != VerdictBlock {
		t.Errorf("verdict = %v, want Block", res.Verdict)
	}
	if len(res.Threats) != 1 || !strings.Contains(res.Threats[0], "8 bytes") {
		t.Errorf("threats = %v, want a finding naming the input size", res.Threats)
	}
}

func TestSizeScanner_CountsBytesNotRunes(t *testing.T) {
	s := NewSizeScanner(6)
	// 3 runes, 9 bytes
	res, err := s.Scan(context.Background(), "日本語")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != VerdictBlock {
		t.Errorf("verdict = %v, want Block", res.Verdict)
	}
}
