package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	logger "github.com/Easy-Infra-Ltd/easy-logger"
	"github.com/spf13/pflag"

	"github.com/Easy-Infra-Ltd/easy-html-gateway/src/config"
	"github.com/Easy-Infra-Ltd/easy-html-gateway/src/filter"
	"github.com/Easy-Infra-Ltd/easy-html-gateway/src/gateway"
	"github.com/Easy-Infra-Ltd/easy-html-gateway/src/transport"
)

// Exit codes.
const (
	exitOK      = 0
	exitRuntime = 1
	exitUsage   = 2
	exitConfig  = 3
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	log := logger.CreateLoggerFromEnv(nil, "blue").With("process", "easyhtmlgateway")

	flags := pflag.NewFlagSet("easy-html-gateway", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	cfgPath := flags.StringP("config", "c", "config.json", "path to the gateway config (JSON, comments allowed)")
	addr := flags.String("addr", "", "listen address, overrides upstream.http.addr")
	showVersion := flags.Bool("version", false, "print the version and exit")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "flags: %v\n", err)
		return exitUsage
	}

	if *showVersion {
		fmt.Fprintln(stdout, transport.Version)
		return exitOK
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return exitConfig
	}
	if *addr != "" {
		cfg.Upstream.HTTP.Addr = *addr
	}

	if err := gateway.New(cfg, log).Run(ctx); err != nil {
		var cerr *filter.ConfigError
		if errors.As(err, &cerr) {
			fmt.Fprintf(stderr, "config: %v\n", err)
			return exitConfig
		}
		fmt.Fprintf(stderr, "gateway: %v\n", err)
		return exitRuntime
	}
	return exitOK
}
