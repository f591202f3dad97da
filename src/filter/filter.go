// Package filter holds the HTTP middleware that captures a downstream
// handler's response body, sanitizes it and delivers only the clean result.
package filter

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/net/http/httpguts"

	"github.com/Easy-Infra-Ltd/easy-html-gateway/src/capture"
	"github.com/Easy-Infra-Ltd/easy-html-gateway/src/policy"
	"github.com/Easy-Infra-Ltd/easy-html-gateway/src/sanitizer"
)

// Config is resolved once at startup and read-only afterwards.
type Config struct {
	PolicyFile     string
	InputEncoding  string
	OutputEncoding string

	// PassthroughContentTypes are delivered verbatim. Every other response,
	// including one without a Content-Type, is scanned.
	PassthroughContentTypes []string
}

// markupTypes can carry script and are never passed through. multipart/*
// is refused as a family.
var markupTypes = []string{
	"text/html",
	"application/xhtml+xml",
	"image/svg+xml",
	"text/xml",
	"application/xml",
}

// ConfigError is a fatal startup error. A filter is never built from a config
// that produces one.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("filter config: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Filter sanitizes response bodies. It is safe for concurrent use; all
// per-request state lives in the capture built for that request.
type Filter struct {
	policyFile  string
	encodings   sanitizer.Encodings
	passthrough map[string]bool

	loader policy.Loader
	engine sanitizer.Engine
	logger *slog.Logger
}

// New validates cfg and builds a Filter. A nil loader reads the policy file on
// every request, a nil engine is sanitizer.HTMLEngine.
func New(cfg Config, loader policy.Loader, engine sanitizer.Engine, logger *slog.Logger) (*Filter, error) {
	if strings.TrimSpace(cfg.PolicyFile) == "" {
		return nil, &ConfigError{Field: "policyFile", Err: errors.New("a policy file is required")}
	}

	enc := sanitizer.Encodings{Input: cfg.InputEncoding, Output: cfg.OutputEncoding}.WithDefaults()
	if err := enc.Validate(); err != nil {
		return nil, &ConfigError{Field: "encoding", Err: err}
	}

	passthrough := make(map[string]bool, len(cfg.PassthroughContentTypes))
	for _, t := range cfg.PassthroughContentTypes {
		mediaType := strings.ToLower(strings.TrimSpace(t))
		if slices.Contains(markupTypes, mediaType) || strings.HasPrefix(mediaType, "multipart/") {
			return nil, &ConfigError{
				Field: "passthroughContentTypes",
				Err:   fmt.Errorf("%q can carry markup and is always scanned", t),
			}
		}
		passthrough[mediaType] = true
	}

	if loader == nil {
		loader = policy.FileLoader{}
	}
	if engine == nil {
		engine = sanitizer.HTMLEngine{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Filter{
		policyFile:  cfg.PolicyFile,
		encodings:   enc,
		passthrough: passthrough,
		loader:      loader,
		engine:      engine,
		logger:      logger.With("area", "filter"),
	}, nil
}

// Wrap returns next with its responses sanitized.
func (f *Filter) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.serve(w, r, next)
	})
}

func (f *Filter) serve(w http.ResponseWriter, r *http.Request, next http.Handler) {
	if bypass(r) {
		next.ServeHTTP(w, r)
		return
	}

	// Ranges of the unsanitized body would not line up with the delivered one.
	if r.Header.Get("Range") != "" || r.Header.Get("If-Range") != "" {
		r = r.Clone(r.Context())
		r.Header.Del("Range")
		r.Header.Del("If-Range")
	}

	proxy := capture.NewProxy(w, capture.New())
	// Panics from next are not recovered; nothing has reached the client yet.
	next.ServeHTTP(proxy, r)

	f.deliver(w, r, proxy)
}

// bypass reports requests whose response cannot be buffered: protocol
// upgrades and CONNECT tunnels take over the connection.
func bypass(r *http.Request) bool {
	if r.Method == http.MethodConnect {
		return true
	}
	return httpguts.HeaderValuesContainsToken(r.Header["Connection"], "upgrade") &&
		r.Header.Get("Upgrade") != ""
}

func (f *Filter) deliver(w http.ResponseWriter, r *http.Request, proxy *capture.ResponseProxy) {
	body := proxy.Capture()
	header := w.Header()
	status := proxy.Status()
	header.Del("Accept-Ranges")

	if body.Len() == 0 || !bodyAllowed(r.Method, status) {
		proxy.Commit()
		return
	}

	if f.passesThrough(header.Get("Content-Type")) {
		header.Set("Content-Length", strconv.Itoa(body.Len()))
		proxy.Commit()
		w.Write(body.Bytes())
		return
	}

	log := f.logger.With("scan_id", uuid.NewString(), "method", r.Method, "path", r.URL.Path)

	res, err := f.scan(r, header.Get("Content-Encoding"), body)
	header.Del("Content-Encoding")
	header.Del("Content-Range")
	if err != nil || !bytes.Equal(res.Output, body.Bytes()) {
		header.Del("ETag")
	}
	if err != nil {
		log.Error("A problem occurred while sanitizing the HTTP response",
			"kind", errorKind(err), "status", status, "err", err)
		header.Set("Content-Length", "0")
		proxy.Commit()
		return
	}

	log.Info("sanitized response", "errors", res.NumberOfErrors, "scan_time", res.ScanTime)
	for _, msg := range res.ErrorMessages {
		log.Debug("sanitizer finding", "finding", msg)
	}

	header.Set("Content-Length", strconv.Itoa(len(res.Output)))
	proxy.Commit()
	w.Write(res.Output)
}

// scan loads the policy and runs the engine. Every error it returns is a
// *policy.Error or a *sanitizer.ScanError.
func (f *Filter) scan(r *http.Request, contentEncoding string, body *capture.ResponseCapture) (sanitizer.ScanResult, error) {
	p, err := f.loader.Load(f.policyFile)
	if err != nil {
		var perr *policy.Error
		if !errors.As(err, &perr) {
			err = &policy.Error{Source: f.policyFile, Err: err}
		}
		return sanitizer.ScanResult{}, err
	}

	var limit int
	if p != nil {
		limit = p.MaxInputSize()
	}
	raw, err := decodeBody(contentEncoding, body.Bytes(), limit)
	if errors.Is(err, errBodyTooLarge) {
		return sanitizer.ScanResult{}, &sanitizer.ScanError{
			Stage:   "size",
			Threats: []string{fmt.Sprintf("decoded input exceeds the policy limit of %d bytes", limit)},
		}
	}
	if err != nil {
		return sanitizer.ScanResult{}, &sanitizer.ScanError{Stage: "content-encoding", Err: err}
	}

	res, err := f.engine.Scan(r.Context(), string(raw), p, f.encodings)
	if err != nil {
		var serr *sanitizer.ScanError
		if !errors.As(err, &serr) {
			err = &sanitizer.ScanError{Stage: "engine", Err: err}
		}
		return sanitizer.ScanResult{}, err
	}
	return res, nil
}

func errorKind(err error) string {
	var perr *policy.Error
	if errors.As(err, &perr) {
		return "policy"
	}
	return "scan"
}

// bodyAllowed reports whether a response to method with status carries a body.
func bodyAllowed(method string, status int) bool {
	if method == http.MethodHead {
		return false
	}
	switch {
	case status >= 100 && status <= 199:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}
