// Package policy loads allowlist policies that drive HTML sanitization.
// A policy file is YAML; it is compiled into an immutable Policy wrapping a
// bluemonday policy plus the limits the sanitizer enforces around it.
package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"gopkg.in/yaml.v3"
)

const (
	BaseNone   = "none"
	BaseStrict = "strict"
	BaseUGC    = "ugc"
)

// Definition is the on-disk form of a policy.
type Definition struct {
	Base               string          `yaml:"base"`
	Elements           []string        `yaml:"elements"`
	Attributes         []AttributeRule `yaml:"attributes"`
	URLSchemes         []string        `yaml:"url-schemes"`
	AllowRelativeURLs  bool            `yaml:"allow-relative-urls"`
	RequireNoFollow    bool            `yaml:"require-nofollow"`
	RequireNoReferrer  bool            `yaml:"require-noreferrer"`
	TargetBlank        bool            `yaml:"target-blank"`
	AllowDataURIImages bool            `yaml:"allow-data-uri-images"`
	AllowComments      bool            `yaml:"allow-comments"`
	SkipContent        []string        `yaml:"skip-content"`
	MaxInputSize       int             `yaml:"max-input-size"`
	StripInvisible     bool            `yaml:"strip-invisible"`
	DenyPatterns       []string        `yaml:"deny-patterns"`
}

// AttributeRule allows a set of attributes, either on specific elements or
// globally, optionally constrained by a value pattern.
type AttributeRule struct {
	Names    []string `yaml:"names"`
	Elements []string `yaml:"elements"`
	Global   bool     `yaml:"global"`
	Matching string   `yaml:"matching"`
}

// Policy is a compiled, read-only policy. It is safe for concurrent use.
type Policy struct {
	source string
	def    Definition
	html   *bluemonday.Policy
	deny   []*regexp.Regexp
}

// Parse compiles a YAML policy. source names the policy in errors; it is
// usually the file path.
func Parse(data []byte, source string) (*Policy, error) {
	var def Definition

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &Error{Source: source, Err: errors.New("policy is empty")}
		}
		return nil, &Error{Source: source, Err: fmt.Errorf("parsing policy: %w", err)}
	}

	p, err := Compile(def, source)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Compile builds a Policy from an in-memory definition.
func Compile(def Definition, source string) (*Policy, error) {
	if def.MaxInputSize < 0 {
		return nil, &Error{Source: source, Err: fmt.Errorf("max-input-size must not be negative, got %d", def.MaxInputSize)}
	}

	html, err := buildHTMLPolicy(def)
	if err != nil {
		return nil, &Error{Source: source, Err: err}
	}

	deny := make([]*regexp.Regexp, 0, len(def.DenyPatterns))
	for i, pattern := range def.DenyPatterns {
		if !strings.HasPrefix(pattern, "(?i)") {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, &Error{Source: source, Err: fmt.Errorf("deny-patterns[%d]: invalid regex %q: %w", i, def.DenyPatterns[i], err)}
		}
		deny = append(deny, re)
	}

	return &Policy{source: source, def: def, html: html, deny: deny}, nil
}

func buildHTMLPolicy(def Definition) (*bluemonday.Policy, error) {
	var p *bluemonday.Policy
	switch strings.ToLower(strings.TrimSpace(def.Base)) {
	case "", BaseNone:
		p = bluemonday.NewPolicy()
	case BaseStrict:
		p = bluemonday.StrictPolicy()
	case BaseUGC:
		p = bluemonday.UGCPolicy()
	default:
		return nil, fmt.Errorf("base must be %q, %q or %q, got %q", BaseNone, BaseStrict, BaseUGC, def.Base)
	}

	if len(def.Elements) > 0 {
		p.AllowElements(def.Elements...)
	}

	for i, rule := range def.Attributes {
		if len(rule.Names) == 0 {
			return nil, fmt.Errorf("attributes[%d]: names is required", i)
		}
		if !rule.Global && len(rule.Elements) == 0 {
			return nil, fmt.Errorf("attributes[%d]: either elements or global must be set", i)
		}

		builder := p.AllowAttrs(rule.Names...)
		if rule.Matching != "" {
			re, err := regexp.Compile(rule.Matching)
			if err != nil {
				return nil, fmt.Errorf("attributes[%d]: invalid regex %q: %w", i, rule.Matching, err)
			}
			builder = builder.Matching(re)
		}
		if rule.Global {
			builder.Globally()
		} else {
			builder.OnElements(rule.Elements...)
		}
	}

	if len(def.URLSchemes) > 0 {
		p.AllowURLSchemes(def.URLSchemes...)
	}
	if def.AllowRelativeURLs {
		p.AllowRelativeURLs(true)
	}
	if def.RequireNoFollow {
		p.RequireNoFollowOnLinks(true)
	}
	if def.RequireNoReferrer {
		p.RequireNoReferrerOnLinks(true)
	}
	if def.TargetBlank {
		p.AddTargetBlankToFullyQualifiedLinks(true)
	}
	if def.AllowDataURIImages {
		p.AllowDataURIImages()
	}
	if def.AllowComments {
		p.AllowComments()
	}
	if len(def.SkipContent) > 0 {
		p.SkipElementsContent(def.SkipContent...)
	}

	return p, nil
}

// Source returns the identifier the policy was loaded from.
func (p *Policy) Source() string { return p.source }

// Definition returns a copy of the definition the policy was compiled from.
func (p *Policy) Definition() Definition { return p.def }

// HTML returns the compiled allowlist.
func (p *Policy) HTML() *bluemonday.Policy { return p.html }

// MaxInputSize is the largest input in bytes the policy accepts; 0 means no limit.
func (p *Policy) MaxInputSize() int { return p.def.MaxInputSize }

// StripInvisible reports whether invisible and control runes are removed.
func (p *Policy) StripInvisible() bool { return p.def.StripInvisible }

// DenyPatterns returns the compiled deny patterns.
func (p *Policy) DenyPatterns() []*regexp.Regexp { return p.deny }
