// Package config loads the configuration of the xmlrpcd daemon from command
// line flags, with XMLRPC_* environment variables as defaults.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/dwlnetnl/xmlrpc"
	"github.com/dwlnetnl/xmlrpc/coder"
)

// Config is the daemon configuration.
type Config struct {
	Addr string
	Path string

	Codec       coder.Options
	MaxBodySize int64

	// Rate is the number of calls per second, zero disables rate limiting.
	Rate  float64
	Burst int

	// Timeout bounds each call, zero disables it.
	Timeout time.Duration

	// Etcd lists the etcd endpoints the daemon registers with. Registration
	// is disabled when empty.
	Etcd      []string
	Name      string
	Advertise string
	LeaseTTL  int64

	LogLevel zapcore.Level
}

// Load parses args (without the program name). getenv supplies the
// environment, it may be nil.
func Load(args []string, getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = func(string) string { return "" }
	}
	env := func(key, def string) string {
		if v := getenv("XMLRPC_" + key); v != "" {
			return v
		}
		return def
	}

	fs := flag.NewFlagSet("xmlrpcd", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	// Codec defaults use the same settings contract as embedding applications.
	codec := coder.OptionsFromSettings(map[string]string{
		coder.SettingAllowNone:   env("ALLOW_NONE", ""),
		coder.SettingUseDatetime: env("USE_DATETIME", ""),
		coder.SettingCharset:     env("CHARSET", coder.DefaultEncoding),
	})

	var (
		cfg      Config
		etcd     string
		logLevel string
	)
	fs.StringVar(&cfg.Addr, "addr", env("ADDR", ":8080"), "listen address")
	fs.StringVar(&cfg.Path, "path", env("PATH", "/RPC2"), "endpoint path")
	fs.BoolVar(&cfg.Codec.AllowNone, "allow-none", codec.AllowNone, "allow the <nil/> extension")
	fs.BoolVar(&cfg.Codec.UseDatetime, "use-datetime", codec.UseDatetime, "decode dates as time values")
	fs.StringVar(&cfg.Codec.Encoding, "charset", codec.Encoding, "charset of responses")
	fs.Int64Var(&cfg.MaxBodySize, "max-body-size", envInt(env("MAX_BODY_SIZE", ""), xmlrpc.DefaultMaxBodySize), "largest accepted request body in bytes")
	fs.Float64Var(&cfg.Rate, "rate", envFloat(env("RATE", ""), 0), "calls per second, 0 is unlimited")
	fs.IntVar(&cfg.Burst, "burst", int(envInt(env("BURST", ""), 10)), "rate limit burst")
	fs.DurationVar(&cfg.Timeout, "timeout", envDuration(env("TIMEOUT", ""), 30*time.Second), "call timeout, 0 disables")
	fs.StringVar(&etcd, "etcd", env("ETCD", ""), "comma separated etcd endpoints")
	fs.StringVar(&cfg.Name, "name", env("NAME", "xmlrpcd"), "name the endpoint is registered under")
	fs.StringVar(&cfg.Advertise, "advertise", env("ADVERTISE", ""), "advertised address, defaults to -addr")
	fs.Int64Var(&cfg.LeaseTTL, "lease-ttl", envInt(env("LEASE_TTL", ""), 10), "etcd lease TTL in seconds")
	fs.StringVar(&logLevel, "log-level", env("LOG_LEVEL", "info"), "log level")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("config: unexpected arguments %q", fs.Args())
	}

	for _, ep := range strings.Split(etcd, ",") {
		if ep = strings.TrimSpace(ep); ep != "" {
			cfg.Etcd = append(cfg.Etcd, ep)
		}
	}
	if cfg.Advertise == "" {
		cfg.Advertise = cfg.Addr
	}

	lvl, err := zapcore.ParseLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.LogLevel = lvl

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("config: path %q must start with /", c.Path)
	}
	if c.MaxBodySize <= 0 {
		return errors.New("config: max body size must be positive")
	}
	if c.Rate < 0 {
		return errors.New("config: rate must not be negative")
	}
	if c.Rate > 0 && c.Burst < 1 {
		return errors.New("config: burst must be at least 1")
	}
	if c.Timeout < 0 {
		return errors.New("config: timeout must not be negative")
	}
	if len(c.Etcd) > 0 && c.LeaseTTL < 1 {
		return errors.New("config: lease TTL must be at least 1 second")
	}
	if err := c.Codec.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// envInt parses s, falling back to def when s is empty or malformed.
func envInt(s string, def int64) int64 {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return def
}

func envFloat(s string, def float64) float64 {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return def
}

func envDuration(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}
