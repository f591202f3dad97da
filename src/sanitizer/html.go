package sanitizer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// HTMLScanner applies a bluemonday allowlist and reports every element and
// attribute the allowlist dropped.
type HTMLScanner struct {
	policy *bluemonday.Policy
}

// NewHTMLScanner wraps a compiled allowlist.
func NewHTMLScanner(p *bluemonday.Policy) *HTMLScanner {
	return &HTMLScanner{policy: p}
}

func (s *HTMLScanner) Name() string { return "html" }

func (s *HTMLScanner) Scan(_ context.Context, content string) (StageResult, error) {
	cleaned := s.policy.Sanitize(content)
	if cleaned == content {
		return StageResult{
			Verdict:     VerdictPass,
			Content:     content,
			ScannerName: s.Name(),
		}, nil
	}

	return StageResult{
		Verdict:     VerdictModify,
		Content:     cleaned,
		Threats:     removals(content, cleaned),
		ScannerName: s.Name(),
	}, nil
}

// markupKey identifies an element, or an attribute on an element when attr
// is set.
type markupKey struct {
	element string
	attr    string
}

// removals diffs the markup of before and after and describes what is
// missing from after. Additions (for example rel="nofollow") are ignored.
func removals(before, after string) []string {
	in := countMarkup(before)
	out := countMarkup(after)

	keys := make([]markupKey, 0, len(in))
	for k, n := range in {
		if n > out[k] {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].element != keys[j].element {
			return keys[i].element < keys[j].element
		}
		return keys[i].attr < keys[j].attr
	})

	messages := make([]string, 0, len(keys))
	for _, k := range keys {
		n := in[k] - out[k]
		if k.attr == "" {
			messages = append(messages, fmt.Sprintf("the <%s> tag was removed (%d occurrence(s))", k.element, n))
			continue
		}
		messages = append(messages, fmt.Sprintf("the %q attribute of <%s> was removed (%d occurrence(s))", k.attr, k.element, n))
	}
	return messages
}

func countMarkup(s string) map[markupKey]int {
	counts := make(map[markupKey]int)
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return counts
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			counts[markupKey{element: tok.Data}]++
			for _, a := range tok.Attr {
				counts[markupKey{element: tok.Data, attr: strings.ToLower(a.Key)}]++
			}
		}
	}
}
