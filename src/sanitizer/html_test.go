package sanitizer

import (
	"context"
	"testing"

	"github.com/microcosm-cc/bluemonday"
)

func TestHTMLScanner_AllowedMarkupPasses(t *testing.T) {
	s := NewHTMLScanner(bluemonday.UGCPolicy())

	res, err := s.Scan(context.Background(), "<p>hello <b>world</b></p>")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != VerdictPass {
		t.Errorf("verdict = %v, want Pass", res.Verdict)
	}
	if len(res.Threats) != 0 {
		t.Errorf("threats = %v, want none", res.Threats)
	}
}

func TestHTMLScanner_ReportsRemovals(t *testing.T) {
	s := NewHTMLScanner(bluemonday.UGCPolicy())

	res, err := s.Scan(context.Background(), `<p onclick="x()">hi<script>alert(1)</script></p>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != VerdictModify {
		t.Errorf("verdict = %v, want Modify", res.Verdict)
	}
	if res.Content != "<p>hi</p>" {
		t.Errorf("content = %q, want %q", res.Content, "<p>hi</p>")
	}

	want := []string{
		`the "onclick" attribute of <p> was removed (1 occurrence(s))`,
		`the <script> tag was removed (1 occurrence(s))`,
	}
	if len(res.Threats) != len(want) {
		t.Fatalf("threats = %v, want %v", res.Threats, want)
	}
	for i := range want {
		if res.Threats[i] != want[i] {
			t.Errorf("threat[%d] = %q, want %q", i, res.Threats[i], want[i])
		}
	}
}

func TestRemovals_IgnoresAddedAttributes(t *testing.T) {
	got := removals(`<a href="https://x">x</a>`, `<a href="https://x" rel="nofollow">x</a>`)
	if len(got) != 0 {
		t.Errorf("removals = %v, want none", got)
	}
}

func TestRemovals_CountsOccurrences(t *testing.T) {
	got := removals(`<i>a</i><i>b</i><i>c</i>`, `<i>a</i>`)
	if len(got) != 1 || got[0] != "the <i> tag was removed (2 occurrence(s))" {
		t.Errorf("removals = %v", got)
	}
}
