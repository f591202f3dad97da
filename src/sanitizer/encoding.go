package sanitizer

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// DefaultEncoding is used for either side of Encodings when it is blank.
const DefaultEncoding = "UTF-8"

// Encodings names the character encoding of the captured markup (Input) and
// of the bytes delivered to the client (Output). Names are WHATWG labels.
type Encodings struct {
	Input  string
	Output string
}

// WithDefaults fills blank names with DefaultEncoding.
func (e Encodings) WithDefaults() Encodings {
	if strings.TrimSpace(e.Input) == "" {
		e.Input = DefaultEncoding
	}
	if strings.TrimSpace(e.Output) == "" {
		e.Output = DefaultEncoding
	}
	return e
}

// Validate checks that both names resolve to a known encoding.
func (e Encodings) Validate() error {
	e = e.WithDefaults()
	if _, err := lookupEncoding(e.Input); err != nil {
		return fmt.Errorf("input encoding: %w", err)
	}
	if _, err := lookupEncoding(e.Output); err != nil {
		return fmt.Errorf("output encoding: %w", err)
	}
	return nil
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	enc, err := htmlindex.Get(strings.TrimSpace(name))
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	return enc, nil
}

// decode converts raw markup from the input encoding to UTF-8.
func (e Encodings) decode(raw string) (string, error) {
	enc, err := lookupEncoding(e.Input)
	if err != nil {
		return "", err
	}
	return enc.NewDecoder().String(raw)
}

// encode converts UTF-8 markup to the output encoding. Characters the output
// encoding cannot represent become numeric character references.
func (e Encodings) encode(clean string) ([]byte, error) {
	enc, err := lookupEncoding(e.Output)
	if err != nil {
		return nil, err
	}
	return encoding.HTMLEscapeUnsupported(enc.NewEncoder()).Bytes([]byte(clean))
}
