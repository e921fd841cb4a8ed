// Package config provides functionality for managing configuration options
// for the application using command-line flags, a JSON config file and
// environment variables.
package config

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

// Options holds the configuration values for the application.
type Options struct {
	// SupabaseURL is the project URL of the hosted backend.
	SupabaseURL string `json:"supabase_url" env:"SUPABASE_URL, overwrite" validate:"omitempty,url"`

	// AnonKey is the public API key sent with every backend request.
	AnonKey string `json:"anon_key" env:"SUPABASE_ANON_KEY, overwrite"`

	// DatabaseDSN is the direct Postgres connection string used by the admin tool.
	DatabaseDSN string `json:"database_dsn" env:"DATABASE_DSN, overwrite"`

	// CallbackAddr is the loopback address receiving deep links.
	CallbackAddr string `json:"callback_addr" env:"CALLBACK_ADDR, overwrite" validate:"omitempty,hostname_port"`

	// StateDir holds the persisted session and navigation history.
	StateDir string `json:"state_dir" env:"STATE_DIR, overwrite" validate:"required"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level" env:"LOG_LEVEL, overwrite" validate:"oneof=debug info warn error"`

	// ProfileRetries bounds the profile polling after sign-up.
	ProfileRetries int `json:"profile_retries" env:"PROFILE_RETRIES, overwrite" validate:"min=0,max=10"`

	// ProfileRetryDelayMS is the fixed pause between profile polls.
	ProfileRetryDelayMS int `json:"profile_retry_delay_ms" env:"PROFILE_RETRY_DELAY_MS, overwrite" validate:"min=0"`

	// ToastTTLMS is how long a toast stays up before auto-dismissal.
	ToastTTLMS int `json:"toast_ttl_ms" env:"TOAST_TTL_MS, overwrite" validate:"min=0"`

	// SignOutExemptViews are the views that a sign-out does not redirect away from.
	SignOutExemptViews []string `json:"sign_out_exempt_views" env:"SIGN_OUT_EXEMPT_VIEWS, overwrite"`

	// Realtime enables the profile change feed.
	Realtime bool `json:"realtime" env:"REALTIME, overwrite"`

	// Config is the path to the Config file.
	Config string `json:"-"`
}

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "GIG_"

// ProfileRetryDelay returns the profile poll pause as a duration.
func (o *Options) ProfileRetryDelay() time.Duration {
	return time.Duration(o.ProfileRetryDelayMS) * time.Millisecond
}

// ToastTTL returns the toast lifetime as a duration.
func (o *Options) ToastTTL() time.Duration {
	return time.Duration(o.ToastTTLMS) * time.Millisecond
}

// Defaults returns Options populated with the built-in defaults.
func Defaults() *Options {
	return &Options{
		CallbackAddr:        "127.0.0.1:8765",
		StateDir:            ".gigmarket",
		LogLevel:            "info",
		ProfileRetries:      3,
		ProfileRetryDelayMS: 500,
		ToastTTLMS:          3000,
		SignOutExemptViews:  []string{"reset-password", "change-password"},
		Config:              "config.json",
	}
}

// register binds command-line flags onto o.
func register(fs *flag.FlagSet, o *Options) {
	fs.StringVar(&o.SupabaseURL, "url", o.SupabaseURL, "backend project URL")
	fs.StringVar(&o.AnonKey, "key", o.AnonKey, "backend anon API key")
	fs.StringVar(&o.DatabaseDSN, "d", o.DatabaseDSN, "db address")
	fs.StringVar(&o.CallbackAddr, "a", o.CallbackAddr, "deep link listener ip:port")
	fs.StringVar(&o.StateDir, "state", o.StateDir, "directory for session and history files")
	fs.StringVar(&o.LogLevel, "log", o.LogLevel, "log level")
	fs.BoolVar(&o.Realtime, "realtime", o.Realtime, "subscribe to profile changes")
	fs.StringVar(&o.Config, "config", o.Config, "path to config file")
	fs.StringVar(&o.Config, "c", o.Config, "path to config file (shorthand)")
}

// Load builds Options from defaults, flags in args, the JSON config file and
// finally environment variables looked up through lookuper. Environment
// values win over the file, the file wins over flags.
func Load(ctx context.Context, fs *flag.FlagSet, args []string, lookuper envconfig.Lookuper) (*Options, error) {
	o := Defaults()
	register(fs, o)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if v, ok := lookuper.Lookup(EnvPrefix + "CONFIG"); ok && v != "" {
		o.Config = v
	}

	if o.Config != "" {
		if _, err := os.Stat(o.Config); err == nil {
			data, err := os.ReadFile(o.Config)
			if err != nil {
				return nil, fmt.Errorf("error while reading config file: %w", err)
			}
			if err := json.Unmarshal(data, o); err != nil {
				return nil, fmt.Errorf("error while parsing config file: %w", err)
			}
		}
	}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   o,
		Lookuper: envconfig.PrefixLookuper(EnvPrefix, lookuper),
	}); err != nil {
		return nil, fmt.Errorf("error while reading environment: %w", err)
	}

	o.LogLevel = strings.ToLower(o.LogLevel)
	if err := validator.New().Struct(o); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return o, nil
}

// Parse parses the command-line flags and environment variables to set
// configuration values. It exits the process on invalid configuration.
func Parse() *Options {
	o, err := Load(context.Background(), flag.CommandLine, os.Args[1:], envconfig.OsLookuper())
	if err != nil {
		log.Fatal(err)
	}
	return o
}
