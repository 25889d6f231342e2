// Package config provides functionality for managing configuration options
// for the application using command-line flags, environment variables and an
// optional JSON or YAML config file.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hengadev/errsx"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that decodes from strings such as "720h" in
// both JSON and YAML config files.
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText renders the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Options holds the configuration values for the application.
type Options struct {
	// Address defines the server's listening address (ip:port).
	Address string `json:"address" yaml:"address"`

	// DatabaseDSN holds the PostgreSQL connection string. Empty selects the
	// in-memory repositories.
	DatabaseDSN string `json:"database_dsn" yaml:"database_dsn"`

	// Config is the path to the config file.
	Config string `json:"-" yaml:"-"`

	LogLevel string `json:"log_level" yaml:"log_level"`

	// TLSCert and TLSKey enable HTTPS when both are set.
	TLSCert string `json:"tls_cert" yaml:"tls_cert"`
	TLSKey  string `json:"tls_key" yaml:"tls_key"`

	// TrustProxyHeaders takes the caller address from X-Forwarded-For.
	TrustProxyHeaders bool `json:"trust_proxy_headers" yaml:"trust_proxy_headers"`

	// RateLimit is the sustained requests per second allowed per caller address.
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit"`
	RateBurst int     `json:"rate_burst" yaml:"rate_burst"`

	// EventRetention is how long access events are kept.
	EventRetention Duration `json:"event_retention" yaml:"event_retention"`
	// CleanerInterval is how often expired access events are removed.
	CleanerInterval Duration `json:"cleaner_interval" yaml:"cleaner_interval"`
}

// Default values.
const (
	DefaultAddress         = "localhost:8080"
	DefaultConfigPath      = "config.json"
	DefaultLogLevel        = "info"
	DefaultRateLimit       = 5.0
	DefaultRateBurst       = 10
	DefaultEventRetention  = 30 * 24 * time.Hour
	DefaultCleanerInterval = time.Hour
)

// Load builds Options from args (without the program name), the config file
// and the environment. Explicit flags override the file and environment
// variables override both.
func Load(args []string, getenv func(string) string) (*Options, error) {
	opts := &Options{}
	fs := newFlagSet(opts)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if configPath := getenv("CONFIG"); configPath != "" {
		opts.Config = configPath
	}

	if opts.Config != "" {
		if _, err := os.Stat(opts.Config); err == nil {
			if err := readFile(opts.Config, opts); err != nil {
				return nil, err
			}
			// flags given explicitly win over the file
			if err := fs.Parse(args); err != nil {
				return nil, err
			}
		}
	}

	if serverAddress := getenv("SERVER_ADDRESS"); serverAddress != "" {
		opts.Address = serverAddress
	}
	if dsn := getenv("DATABASE_DSN"); dsn != "" {
		opts.DatabaseDSN = dsn
	}
	if level := getenv("LOG_LEVEL"); level != "" {
		opts.LogLevel = level
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// Parse loads Options from the process arguments and environment and exits
// on error.
func Parse() *Options {
	opts, err := Load(os.Args[1:], os.Getenv)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Fatalf("invalid configuration: %v", err)
	}
	return opts
}

// Validate reports every invalid field at once.
func (o *Options) Validate() error {
	var errs errsx.Map

	if strings.TrimSpace(o.Address) == "" {
		errs.Set("address", "cannot be empty")
	}
	if _, err := zap.ParseAtomicLevel(strings.ToLower(o.LogLevel)); err != nil {
		errs.Set("log_level", err)
	}
	if (o.TLSCert == "") != (o.TLSKey == "") {
		errs.Set("tls", "tls_cert and tls_key must be set together")
	}
	if o.RateLimit <= 0 {
		errs.Set("rate_limit", "must be positive")
	}
	if o.RateBurst < 1 {
		errs.Set("rate_burst", "must be at least 1")
	}
	if o.EventRetention <= 0 {
		errs.Set("event_retention", "must be positive")
	}
	if o.CleanerInterval <= 0 {
		errs.Set("cleaner_interval", "must be positive")
	}

	return errs.AsError()
}

// TLSEnabled reports whether the server should terminate TLS.
func (o *Options) TLSEnabled() bool {
	return o.TLSCert != "" && o.TLSKey != ""
}

func newFlagSet(opts *Options) *flag.FlagSet {
	fs := flag.NewFlagSet("easyvault", flag.ContinueOnError)
	fs.StringVar(&opts.Address, "a", DefaultAddress, "run on ip:port server")
	fs.StringVar(&opts.DatabaseDSN, "d", "", "db address; empty keeps vaults in memory")
	fs.StringVar(&opts.Config, "config", DefaultConfigPath, "path to config file")
	fs.StringVar(&opts.Config, "c", DefaultConfigPath, "path to config file (shorthand)")
	fs.StringVar(&opts.LogLevel, "l", DefaultLogLevel, "log level")
	fs.StringVar(&opts.TLSCert, "tls-cert", "", "path to TLS certificate")
	fs.StringVar(&opts.TLSKey, "tls-key", "", "path to TLS private key")
	fs.BoolVar(&opts.TrustProxyHeaders, "trust-proxy", false, "use X-Forwarded-For as caller address")
	fs.Float64Var(&opts.RateLimit, "rate-limit", DefaultRateLimit, "requests per second per caller address")
	fs.IntVar(&opts.RateBurst, "rate-burst", DefaultRateBurst, "burst size per caller address")
	fs.DurationVar((*time.Duration)(&opts.EventRetention), "event-retention", DefaultEventRetention, "access event retention")
	fs.DurationVar((*time.Duration)(&opts.CleanerInterval), "cleaner-interval", DefaultCleanerInterval, "access event cleaner interval")
	return fs
}

func readFile(path string, opts *Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error while reading config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, opts)
	default:
		err = json.Unmarshal(data, opts)
	}
	if err != nil {
		return fmt.Errorf("error while parsing config file: %w", err)
	}
	return nil
}
