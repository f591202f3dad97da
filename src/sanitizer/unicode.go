package sanitizer

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// UnicodeScanner removes invisible and control characters from markup and
// normalizes it to NFKC form, so that hidden text cannot survive the
// allowlist inside otherwise permitted elements.
type UnicodeScanner struct{}

func (UnicodeScanner) Name() string { return "unicode" }

func (UnicodeScanner) Scan(_ context.Context, content string) (StageResult, error) {
	normalized := norm.NFKC.String(content)

	var b strings.Builder
	b.Grow(len(normalized))

	removed := 0
	for _, r := range normalized {
		if isInvisible(r) {
			removed++
			continue
		}
		b.WriteRune(r)
	}

	cleaned := b.String()
	if cleaned == content {
		return StageResult{
			Verdict:     VerdictPass,
			Content:     content,
			ScannerName: "unicode",
		}, nil
	}

	var threats []string
	if removed > 0 {
		threats = append(threats, fmt.Sprintf("%d invisible or control character(s) removed", removed))
	}

	return StageResult{
		Verdict:     VerdictModify,
		Content:     cleaned,
		Threats:     threats,
		ScannerName: "unicode",
	}, nil
}

// isInvisible reports Cf, Co and Cc runes, except ordinary whitespace.
func isInvisible(r rune) bool {
	if r == '\n' || r == '\t' || r == '\r' || r == ' ' || r == '\f' {
		return false
	}
	return unicode.In(r, unicode.Cf, unicode.Co, unicode.Cc)
}
