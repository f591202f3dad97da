package filter

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

var errBodyTooLarge = errors.New("decoded body exceeds the size limit")

// passesThrough reports whether a response with the given Content-Type is
// delivered without scanning. A missing or unparseable Content-Type is
// scanned.
func (f *Filter) passesThrough(contentType string) bool {
	if strings.TrimSpace(contentType) == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return f.passthrough[mediaType]
}

// decodeBody undoes the Content-Encoding applied by the downstream handler.
// A positive limit caps the decoded size; going over it returns
// errBodyTooLarge without inflating the rest.
func decodeBody(contentEncoding string, body []byte, limit int) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "", "identity":
		return body, nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		var r io.Reader = zr
		if limit > 0 {
			r = io.LimitReader(zr, int64(limit)+1)
		}
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		if limit > 0 && len(out) > limit {
			return nil, errBodyTooLarge
		}
		return out, nil
	case "zstd":
		opts := []zstd.DOption{zstd.WithDecoderConcurrency(1)}
		if limit > 0 {
			opts = append(opts, zstd.WithDecoderMaxMemory(uint64(limit)))
		}
		zr, err := zstd.NewReader(nil, opts...)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer zr.Close()
		out, err := zr.DecodeAll(body, nil)
		// The decoder clamps its window to the memory limit, so an oversized
		// window is reported before any output is produced.
		if errors.Is(err, zstd.ErrDecoderSizeExceeded) || errors.Is(err, zstd.ErrWindowSizeExceeded) {
			return nil, errBodyTooLarge
		}
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		if limit > 0 && len(out) > limit {
			return nil, errBodyTooLarge
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", contentEncoding)
	}
}
