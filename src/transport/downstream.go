// Package transport builds the HTTP plumbing around the filter: the
// downstream application whose responses are sanitized and the upstream
// listener that clients connect to.
package transport

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"

	"github.com/elazarl/goproxy"

	"github.com/Easy-Infra-Ltd/easy-html-gateway/src/config"
)

// DownstreamFactory creates the downstream handler for a config.
// Exists to allow injection of test handlers.
type DownstreamFactory func(config.DownstreamConfig, *slog.Logger) (http.Handler, error)

// NewDownstream builds the handler for the configured mode.
func NewDownstream(cfg config.DownstreamConfig, logger *slog.Logger) (http.Handler, error) {
	logger = logger.With("area", "downstream", "mode", cfg.Mode)

	switch cfg.Mode {
	case config.ModeStatic:
		return newStatic(cfg.Dir)
	case config.ModeOrigin:
		return newOrigin(cfg.URL, logger)
	case config.ModeProxy:
		return newForwardProxy(logger), nil
	default:
		return nil, fmt.Errorf("unsupported downstream mode: %s", cfg.Mode)
	}
}

func newStatic(dir string) (http.Handler, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("static dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("static dir %s is not a directory", dir)
	}
	return http.FileServer(http.Dir(dir)), nil
}

func newOrigin(rawURL string, logger *slog.Logger) (http.Handler, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("origin url: %w", err)
	}

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			// Let the transport negotiate gzip and hand back a decoded body.
			pr.Out.Header.Del("Accept-Encoding")
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("origin request failed", "origin", target.Host, "path", r.URL.Path, "err", err)
			w.WriteHeader(http.StatusBadGateway)
		},
	}, nil
}

func newForwardProxy(logger *slog.Logger) *goproxy.ProxyHttpServer {
	proxy := goproxy.NewProxyHttpServer()
	proxy.Verbose = false
	proxy.Logger = printfLogger{logger}

	proxy.OnRequest().DoFunc(func(r *http.Request, ctx *goproxy.ProxyCtx) (*http.Request, *http.Response) {
		r.Header.Del("Accept-Encoding")
		return r, nil
	})
	proxy.OnResponse().DoFunc(func(resp *http.Response, ctx *goproxy.ProxyCtx) *http.Response {
		if resp == nil {
			logger.Warn("proxied request failed", "host", ctx.Req.Host, "err", ctx.Error)
			return nil
		}
		logger.Debug("proxied response", "host", ctx.Req.Host, "status", resp.StatusCode)
		return resp
	})

	return proxy
}

// printfLogger routes goproxy's printf-style output into slog.
type printfLogger struct {
	logger *slog.Logger
}

func (l printfLogger) Printf(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}
