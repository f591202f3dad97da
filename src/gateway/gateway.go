package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/Easy-Infra-Ltd/easy-html-gateway/src/config"
	"github.com/Easy-Infra-Ltd/easy-html-gateway/src/filter"
	"github.com/Easy-Infra-Ltd/easy-html-gateway/src/policy"
	"github.com/Easy-Infra-Ltd/easy-html-gateway/src/sanitizer"
	"github.com/Easy-Infra-Ltd/easy-html-gateway/src/transport"
)

// Gateway is the top-level orchestrator. It wires config, the policy loader,
// the sanitizer engine, the filter and the transports together.
type Gateway struct {
	cfg    config.Config
	logger *slog.Logger

	// downstreamFactory is injected for testing; nil uses the default.
	downstreamFactory transport.DownstreamFactory
}

// New creates a Gateway from the given config and logger.
func New(cfg config.Config, logger *slog.Logger) *Gateway {
	return &Gateway{cfg: cfg, logger: logger}
}

// NewWithDownstreamFactory creates a Gateway with a custom downstream factory
// (primarily for testing).
func NewWithDownstreamFactory(cfg config.Config, logger *slog.Logger, factory transport.DownstreamFactory) *Gateway {
	return &Gateway{cfg: cfg, logger: logger, downstreamFactory: factory}
}

// Build assembles the upstream without starting it. A *filter.ConfigError in
// the returned chain means the configuration can never serve requests.
func (g *Gateway) Build() (*transport.Upstream, error) {
	fc := g.cfg.Filter

	var loader policy.Loader = policy.FileLoader{}
	if fc.CachePolicy == nil || *fc.CachePolicy {
		loader = policy.NewCachingLoader(nil)
	}
	engine := sanitizer.HTMLEngine{}

	f, err := filter.New(filter.Config{
		PolicyFile:              fc.PolicyFile,
		InputEncoding:           fc.InputEncoding,
		OutputEncoding:          fc.OutputEncoding,
		PassthroughContentTypes: fc.PassthroughContentTypes,
	}, loader, engine, g.logger)
	if err != nil {
		return nil, err
	}

	// Policy problems are per-request errors, so only warn here.
	if _, err := loader.Load(fc.PolicyFile); err != nil {
		g.logger.Warn("policy check failed, responses will be empty until it loads", "policy", fc.PolicyFile, "err", err)
	}

	factory := g.downstreamFactory
	if factory == nil {
		factory = transport.NewDownstream
	}
	downstream, err := factory(g.cfg.Downstream, g.logger)
	if err != nil {
		return nil, fmt.Errorf("downstream: %w", err)
	}

	upstream := transport.NewUpstream(g.cfg.Upstream, f.Wrap(downstream), g.logger)

	if g.cfg.Upstream.MCP.Enabled {
		reg := NewRegistry(upstream, loader, engine, fc.PolicyFile, g.logger)
		reg.Register()
	}

	return upstream, nil
}

// Run builds the gateway and serves until SIGINT/SIGTERM or ctx cancellation.
func (g *Gateway) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g.logger.Info("starting gateway", "version", transport.Version, "mode", g.cfg.Downstream.Mode)

	upstream, err := g.Build()
	if err != nil {
		return err
	}

	return upstream.Run(ctx)
}
