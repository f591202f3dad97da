// Package sanitizer turns captured response markup into policy-conformant
// markup. An Engine runs a pipeline of scanners built from a policy: size
// limit, deny patterns, invisible text removal and the HTML allowlist.
package sanitizer

import "context"

// Scanner inspects and optionally transforms markup.
// Implementations must not mutate the input; return transformed
// content in the StageResult.
type Scanner interface {
	// Name returns a short identifier used in logs and scan errors.
	Name() string

	// Scan inspects content and returns a StageResult.
	Scan(ctx context.Context, content string) (StageResult, error)
}
