package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Easy-Infra-Ltd/easy-html-gateway/src/config"
)

// Upstream is the listener clients connect to. It serves the sanitized site
// and, when enabled, an MCP endpoint. Tools are registered on Server before
// calling Run.
type Upstream struct {
	Server  *mcp.Server
	cfg     config.UpstreamConfig
	handler http.Handler
	logger  *slog.Logger
}

// NewUpstream creates an upstream serving handler, which is normally the
// filter-wrapped downstream.
func NewUpstream(cfg config.UpstreamConfig, handler http.Handler, logger *slog.Logger) *Upstream {
	srv := mcp.NewServer(
		&mcp.Implementation{
			Name:    "easy-html-gateway",
			Version: Version,
		},
		&mcp.ServerOptions{Logger: logger},
	)
	return &Upstream{
		Server:  srv,
		cfg:     cfg,
		handler: handler,
		logger:  logger.With("area", "upstream"),
	}
}

// Handler returns the root handler. Requests for the MCP path go to the MCP
// endpoint when it is enabled; everything else, including absolute-form and
// CONNECT requests to a forward proxy, goes to the site handler.
func (u *Upstream) Handler() http.Handler {
	if !u.cfg.MCP.Enabled {
		return u.handler
	}

	mcpHandler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return u.Server },
		&mcp.StreamableHTTPOptions{Logger: u.logger},
	)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodConnect && !r.URL.IsAbs() && r.URL.Path == u.cfg.MCP.Path {
			mcpHandler.ServeHTTP(w, r)
			return
		}
		u.handler.ServeHTTP(w, r)
	})
}

// Run listens on the configured address and serves until ctx is cancelled.
func (u *Upstream) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", u.cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", u.cfg.HTTP.Addr, err)
	}
	return u.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (u *Upstream) Serve(ctx context.Context, ln net.Listener) error {
	attrs := []any{"addr", ln.Addr()}
	if u.cfg.MCP.Enabled {
		attrs = append(attrs, "mcp_path", u.cfg.MCP.Path)
	}
	u.logger.Info("starting HTTP listener", attrs...)

	srv := &http.Server{
		Handler:           u.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		u.logger.Info("shutting down HTTP listener")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
