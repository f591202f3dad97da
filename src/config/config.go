package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/tidwall/jsonc"
)

// Config is the top-level gateway configuration loaded from JSON. Comments
// and trailing commas are accepted.
type Config struct {
	Upstream   UpstreamConfig   `json:"upstream"`
	Downstream DownstreamConfig `json:"downstream"`
	Filter     FilterConfig     `json:"filter"`
}

// UpstreamConfig controls how clients reach the gateway.
type UpstreamConfig struct {
	HTTP HTTPConfig `json:"http"`
	MCP  MCPConfig  `json:"mcp"`
}

// HTTPConfig holds HTTP listener settings.
type HTTPConfig struct {
	Addr string `json:"addr"` // e.g. ":8080"
}

// MCPConfig controls the optional MCP endpoint exposing the sanitizer as a tool.
type MCPConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"` // e.g. "/mcp"
}

// DownstreamConfig defines the application whose responses are sanitized.
type DownstreamConfig struct {
	Mode string `json:"mode"`          // "static", "origin" or "proxy"
	Dir  string `json:"dir,omitempty"` // static
	URL  string `json:"url,omitempty"` // origin
}

// FilterConfig controls the sanitizing filter. A blank policyFile is reported
// by the filter itself when it is built.
type FilterConfig struct {
	PolicyFile     string `json:"policyFile"`
	InputEncoding  string `json:"inputEncoding,omitempty"`
	OutputEncoding string `json:"outputEncoding,omitempty"`
	CachePolicy    *bool  `json:"cachePolicy,omitempty"`

	// PassthroughContentTypes are delivered without scanning. Everything
	// else is sanitized.
	PassthroughContentTypes []string `json:"passthroughContentTypes,omitempty"`
}

const (
	ModeStatic = "static"
	ModeOrigin = "origin"
	ModeProxy  = "proxy"

	DefaultHTTPAddr  = ":8080"
	DefaultMCPPath   = "/mcp"
	DefaultStaticDir = "./public"
	DefaultEncoding  = "UTF-8"
)

// Load reads and parses a config file, applies defaults, and validates.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes config data, applies defaults, and validates.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(cfg); err != nil {
		return Config{}, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Upstream.HTTP.Addr == "" {
		cfg.Upstream.HTTP.Addr = DefaultHTTPAddr
	}
	if cfg.Upstream.MCP.Path == "" {
		cfg.Upstream.MCP.Path = DefaultMCPPath
	}

	if cfg.Downstream.Mode == "" {
		cfg.Downstream.Mode = ModeStatic
	}
	if cfg.Downstream.Mode == ModeStatic && cfg.Downstream.Dir == "" {
		cfg.Downstream.Dir = DefaultStaticDir
	}

	if cfg.Filter.InputEncoding == "" {
		cfg.Filter.InputEncoding = DefaultEncoding
	}
	if cfg.Filter.OutputEncoding == "" {
		cfg.Filter.OutputEncoding = DefaultEncoding
	}
	if cfg.Filter.CachePolicy == nil {
		cfg.Filter.CachePolicy = boolPtr(true)
	}
}

func validate(cfg Config) error {
	if !strings.HasPrefix(cfg.Upstream.MCP.Path, "/") {
		return fmt.Errorf("upstream.mcp.path must start with \"/\", got %q", cfg.Upstream.MCP.Path)
	}

	ds := cfg.Downstream
	switch ds.Mode {
	case ModeStatic:
		if ds.URL != "" {
			return fmt.Errorf("downstream: url is not used in %s mode", ModeStatic)
		}
	case ModeOrigin:
		if ds.URL == "" {
			return fmt.Errorf("downstream: url is required for %s mode", ModeOrigin)
		}
		u, err := url.Parse(ds.URL)
		if err != nil {
			return fmt.Errorf("downstream: invalid url %q: %w", ds.URL, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("downstream: url %q must be an absolute http(s) URL", ds.URL)
		}
	case ModeProxy:
		if ds.URL != "" || ds.Dir != "" {
			return fmt.Errorf("downstream: %s mode takes neither url nor dir", ModeProxy)
		}
	default:
		return fmt.Errorf("downstream mode must be %q, %q or %q, got %q",
			ModeStatic, ModeOrigin, ModeProxy, ds.Mode)
	}

	for i, ct := range cfg.Filter.PassthroughContentTypes {
		if !strings.Contains(ct, "/") {
			return fmt.Errorf("filter.passthroughContentTypes[%d]: %q is not a media type", i, ct)
		}
	}

	return nil
}

func boolPtr(b bool) *bool { return &b }
