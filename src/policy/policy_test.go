package policy

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const basicPolicy = `
base: none
elements: [p, b, i, a]
attributes:
  - names: [href]
    elements: [a]
  - names: [class]
    global: true
    matching: '^[a-z-]+$'
url-schemes: [https]
require-nofollow: true
skip-content: [script, style]
max-input-size: 1024
strip-invisible: true
deny-patterns:
  - 'document\.cookie'
`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing temp policy: %v", err)
	}
	return path
}

func TestParse_Basic(t *testing.T) {
	p, err := Parse([]byte(basicPolicy), "inline")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.Source() != "inline" {
		t.Errorf("source = %q, want %q", p.Source(), "inline")
	}
	if p.MaxInputSize() != 1024 {
		t.Errorf("max input size = %d, want 1024", p.MaxInputSize())
	}
	if !p.StripInvisible() {
		t.Error("strip-invisible should be true")
	}
	if len(p.DenyPatterns()) != 1 {
		t.Fatalf("deny patterns = %d, want 1", len(p.DenyPatterns()))
	}
	if !p.DenyPatterns()[0].MatchString("x = DOCUMENT.cookie") {
		t.Error("deny patterns should be case-insensitive")
	}
}

func TestParse_HTMLAllowlistApplied(t *testing.T) {
	p, err := Parse([]byte(basicPolicy), "inline")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := p.HTML().Sanitize(`<p class="lead" onclick="x()">hi<script>alert(1)</script><u>u</u></p>`)
	want := `<p class="lead">hiu</p>`
	if strings.Contains(got, "script") || strings.Contains(got, "onclick") {
		t.Errorf("sanitized = %q, script and handlers must be removed", got)
	}
	if got != want {
		t.Errorf("sanitized = %q, want %q", got, want)
	}
}

func TestParse_Bases(t *testing.T) {
	strict, err := Parse([]byte("base: strict\n"), "strict")
	if err != nil {
		t.Fatalf("strict: %v", err)
	}
	if got := strict.HTML().Sanitize("<b>x</b>"); got != "x" {
		t.Errorf("strict sanitize = %q, want %q", got, "x")
	}

	ugc, err := Parse([]byte("base: UGC\n"), "ugc")
	if err != nil {
		t.Fatalf("ugc: %v", err)
	}
	if got := ugc.HTML().Sanitize("<b>x</b>"); got != "<b>x</b>" {
		t.Errorf("ugc sanitize = %q, want %q", got, "<b>x</b>")
	}
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]string{
		"empty":            "",
		"unknown field":    "base: none\nunknown: true\n",
		"bad base":         "base: lenient\n",
		"bad yaml":         "elements: [p\n",
		"negative size":    "max-input-size: -1\n",
		"attr no names":    "attributes:\n  - elements: [a]\n",
		"attr no target":   "attributes:\n  - names: [href]\n",
		"bad attr regex":   "attributes:\n  - names: [id]\n    global: true\n    matching: '('\n",
		"bad deny pattern": "deny-patterns: ['(']\n",
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(content), "test.yaml")
			if err == nil {
				t.Fatal("expected error")
			}
			var perr *Error
			if !errors.As(err, &perr) {
				t.Fatalf("error = %T, want *policy.Error", err)
			}
			if perr.Source != "test.yaml" {
				t.Errorf("source = %q, want %q", perr.Source, "test.yaml")
			}
		})
	}
}

func TestFileLoader_Load(t *testing.T) {
	path := writeTemp(t, basicPolicy)

	p, err := FileLoader{}.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Source() != path {
		t.Errorf("source = %q, want %q", p.Source(), path)
	}
}

func TestFileLoader_Missing(t *testing.T) {
	_, err := FileLoader{}.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("error = %v, want *policy.Error", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error should wrap os.ErrNotExist, got %v", err)
	}
}

type countingLoader struct {
	calls int
}

func (c *countingLoader) Load(path string) (*Policy, error) {
	c.calls++
	return FileLoader{}.Load(path)
}

func TestCachingLoader_ReusesUnchangedFile(t *testing.T) {
	path := writeTemp(t, basicPolicy)
	counter := &countingLoader{}
	l := NewCachingLoader(counter)

	first, err := l.Load(path)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	second, err := l.Load(path)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}

	if first != second {
		t.Error("expected cached policy to be returned")
	}
	if counter.calls != 1 {
		t.Errorf("underlying loads = %d, want 1", counter.calls)
	}
}

func TestCachingLoader_ReloadsChangedFile(t *testing.T) {
	path := writeTemp(t, basicPolicy)
	counter := &countingLoader{}
	l := NewCachingLoader(counter)

	if _, err := l.Load(path); err != nil {
		t.Fatalf("first load: %v", err)
	}

	if err := os.WriteFile(path, []byte("base: strict\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}

	p, err := l.Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if counter.calls != 2 {
		t.Errorf("underlying loads = %d, want 2", counter.calls)
	}
	if p.Definition().Base != BaseStrict {
		t.Errorf("base = %q, want %q", p.Definition().Base, BaseStrict)
	}
}

func TestCachingLoader_MissingFileIsNotServedFromCache(t *testing.T) {
	path := writeTemp(t, basicPolicy)
	l := NewCachingLoader(nil)

	if _, err := l.Load(path); err != nil {
		t.Fatalf("first load: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	_, err := l.Load(path)
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("error = %v, want *policy.Error after the file disappears", err)
	}
}

func TestCachingLoader_MalformedFile(t *testing.T) {
	path := writeTemp(t, "base: bogus\n")
	l := NewCachingLoader(nil)

	_, err := l.Load(path)
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("error = %v, want *policy.Error", err)
	}
}
