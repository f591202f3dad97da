package sanitizer

import (
	"context"
	"strings"
	"testing"
)

func TestUnicodeScanner_CleanMarkup(t *testing.T) {
	s := UnicodeScanner{}
	res, err := s.Scan(context.Background(), `<p class="x">hello world</p>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != VerdictPass {
		t.Errorf("verdict = %v, want Pass", res.Verdict)
	}
}

func TestUnicodeScanner_PreservesWhitespace(t *testing.T) {
	s := UnicodeScanner{}
	input := "<pre>line1\nline2\ttab\rcarriage</pre>"
	res, err := s.Scan(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Content != input {
		t.Errorf("content = %q, want %q", res.Content, input)
	}
}

func TestUnicodeScanner_RemovesZeroWidthChars(t *testing.T) {
	s := UnicodeScanner{}
	input := "<b>pay\u200B\u200C\u200Dpal</b>"
	res, err := s.Scan(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != VerdictModify {
		t.Errorf("verdict = %v, want Modify", res.Verdict)
	}
	if res.Content != "<b>paypal</b>" {
		t.Errorf("content = %q, want %q", res.Content, "<b>paypal</b>")
	}
	if len(res.Threats) != 1 || !strings.HasPrefix(res.Threats[0], "3 invisible") {
		t.Errorf("threats = %v, want one finding counting 3 characters", res.Threats)
	}
}

func TestUnicodeScanner_RemovesBOM(t *testing.T) {
	s := UnicodeScanner{}
	res, err := s.Scan(context.Background(), "\uFEFF<p>hello</p>")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(res.Content, "\uFEFF") {
		t.Error("BOM should be removed")
	}
}

func TestUnicodeScanner_RemovesDirectionalOverrides(t *testing.T) {
	s := UnicodeScanner{}
	input := "<a>invoice\u202Efdp.exe</a>"
	res, err := s.Scan(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Content != "<a>invoicefdp.exe</a>" {
		t.Errorf("content = %q, want %q", res.Content, "<a>invoicefdp.exe</a>")
	}
}

func TestUnicodeScanner_NormalizesNFKC(t *testing.T) {
	s := UnicodeScanner{}
	res, err := s.Scan(context.Background(), "de\uFB01ne")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != VerdictModify {
		t.Errorf("verdict = %v, want Modify", res.Verdict)
	}
	if res.Content != "define" {
		t.Errorf("content = %q, want %q", res.Content, "define")
	}
	if len(res.Threats) != 0 {
		t.Errorf("normalization alone should not report threats, got %v", res.Threats)
	}
}

func TestUnicodeScanner_EmptyString(t *testing.T) {
	s := UnicodeScanner{}
	res, err := s.Scan(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != VerdictPass {
		t.Errorf("verdict = %v, want Pass", res.Verdict)
	}
}
