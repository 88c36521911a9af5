package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/EmanuelAngelo/mamutes-fa/cmd/mamutesctl/internal/client"
	"github.com/EmanuelAngelo/mamutes-fa/pkg/sdk/navigation"
	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "mamutesctl-config"

// DefaultServerURL is used when neither flag, environment nor config file name a server.
const DefaultServerURL = "http://localhost:8000"

// GlobalConfig holds shared configuration for all mamutesctl commands.
// This is injected into the cobra command context by the root command's
// PersistentPreRunE hook and consumed by all subcommands.
type GlobalConfig struct {
	ServerURL      string
	NonInteractive bool
	ClientProvider *client.Provider
}

// InjectConfig adds config to the cobra command context.
func InjectConfig(ctx context.Context, cfg *GlobalConfig) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from the cobra command context.
// Returns (nil, false) if config is not present.
func FromContext(ctx context.Context) (*GlobalConfig, bool) {
	cfg, ok := ctx.Value(configKey).(*GlobalConfig)
	return cfg, ok
}

// MustFromContext retrieves config from context or panics.
// Only use it in RunE functions, after the root command injected the config.
func MustFromContext(ctx context.Context) *GlobalConfig {
	cfg, ok := FromContext(ctx)
	if !ok {
		panic("mamutesctl: config not found in context - this is a bug in mamutesctl")
	}
	return cfg
}

// File is the optional YAML config file (~/.mamutes/config.yaml).
type File struct {
	ServerURL       string             `yaml:"server_url"`
	TimeoutStr      string             `yaml:"timeout"`
	CredentialStore string             `yaml:"credential_store"`
	Routes          []navigation.Route `yaml:"routes"`

	// Timeout is parsed from TimeoutStr.
	Timeout time.Duration `yaml:"-"`
}

// Load reads the config file at path. ${VAR_NAME} references are replaced with the
// environment's values before parsing. A missing file yields an empty config when
// optional is set.
func Load(path string, optional bool) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return &File{}, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &f); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if f.TimeoutStr != "" {
		f.Timeout, err = time.ParseDuration(f.TimeoutStr)
		if err != nil {
			return nil, fmt.Errorf("parsing timeout %q: %w", f.TimeoutStr, err)
		}
		if f.Timeout <= 0 {
			return nil, fmt.Errorf("timeout must be positive, got %s", f.Timeout)
		}
	}
	return &f, nil
}

// RouteTable returns the configured routes, or the default table when none are set.
func (f *File) RouteTable() (*navigation.Routes, error) {
	if len(f.Routes) == 0 {
		return navigation.DefaultRoutes(), nil
	}
	routes, err := navigation.NewRoutes(f.Routes)
	if err != nil {
		return nil, fmt.Errorf("validating routes: %w", err)
	}
	return routes, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} with the variable's value, or "" when unset.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}
