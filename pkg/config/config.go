// Package config builds the single configuration struct used by every
// OmniCognitor component. Values are layered: built-in defaults, then an
// optional YAML or TOML file, then environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix is stripped from environment variables before mapping them to
	// configuration keys. A double underscore separates nested keys, e.g.
	// OMNICOGNITOR_API__BASE_URL -> api.base_url.
	EnvPrefix = "OMNICOGNITOR_"

	// DefaultAPIBaseURL is the stats/platforms/workspaces backend.
	DefaultAPIBaseURL = "https://vrfyjirddfdnwuffzqhb.supabase.co/functions/v1/api"

	// DefaultAnalyzerBaseURL hosts the /m23m/analyze endpoint.
	DefaultAnalyzerBaseURL = "https://telstp-ai-agent-globe.vercel.app"

	// DefaultRefreshInterval is how often the dashboard re-fetches its data.
	DefaultRefreshInterval = 30 * time.Second
)

// legacyEnv maps the variable names used by the web front-end build to
// configuration keys so existing deployments keep working.
var legacyEnv = map[string][]string{
	// The front-end used one variable for both the data API and the analyzer.
	"VITE_API_URL":           {"api.base_url", "analyzer.base_url"},
	"VITE_SUPABASE_URL":      {"identity.url"},
	"VITE_SUPABASE_ANON_KEY": {"identity.anon_key"},
}

// Config represents the complete runtime configuration
type Config struct {
	API       APIConfig       `koanf:"api"`
	Analyzer  AnalyzerConfig  `koanf:"analyzer"`
	Identity  IdentityConfig  `koanf:"identity"`
	Dashboard DashboardConfig `koanf:"dashboard"`
	Session   SessionConfig   `koanf:"session"`
	Web       WebConfig       `koanf:"web"`
}

// APIConfig configures the backend data API client.
type APIConfig struct {
	BaseURL string `koanf:"base_url" validate:"required,url"`
	// Token is sent as a bearer credential when set. When empty, the signed-in
	// session's access token (if any) is used instead.
	Token string `koanf:"token"`
	// UseAnonKey sends the identity provider's anon key as the bearer
	// credential when no explicit token is configured.
	UseAnonKey bool `koanf:"use_anon_key"`
}

// AnalyzerConfig configures the research analysis endpoint.
type AnalyzerConfig struct {
	BaseURL string `koanf:"base_url" validate:"required,url"`
}

// IdentityConfig points at the identity provider project.
type IdentityConfig struct {
	URL     string `koanf:"url" validate:"omitempty,url"`
	AnonKey string `koanf:"anon_key"`
}

// DashboardConfig tunes the polling dashboard.
type DashboardConfig struct {
	RefreshInterval time.Duration `koanf:"refresh_interval" validate:"gt=0"`
}

// SessionConfig controls where the signed-in session is stored.
type SessionConfig struct {
	// Path overrides the session file location. Empty uses the user config dir.
	Path string `koanf:"path"`
}

// WebConfig configures the optional local web view.
type WebConfig struct {
	Addr string `koanf:"addr" validate:"required"`
}

// Defaults returns the built-in configuration values as a flat key map.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"api.base_url":               DefaultAPIBaseURL,
		"api.token":                  "",
		"api.use_anon_key":           false,
		"analyzer.base_url":          DefaultAnalyzerBaseURL,
		"identity.url":               "",
		"identity.anon_key":          "",
		"dashboard.refresh_interval": DefaultRefreshInterval.String(),
		"session.path":               "",
		"web.addr":                   ":8080",
	}
}

// Load builds the configuration. If path is empty the default search paths
// are tried and a missing file is not an error; an explicit path must exist.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	resolved, err := ResolvePath(path)
	if err != nil {
		return nil, err
	}
	if resolved != "" {
		if err := loadFile(k, resolved); err != nil {
			return nil, err
		}
	}

	if err := loadEnv(k); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks field constraints declared on the struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: field %s failed '%s' check", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ResolvePath finds the config file following priority:
// explicit path > ./omnicognitor.{yaml,yml,toml} > <user config dir>/omnicognitor/config.{yaml,yml,toml}
func ResolvePath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %w", err)
		}
		return explicit, nil
	}

	for _, candidate := range searchPaths() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", nil
}

func searchPaths() []string {
	paths := []string{"omnicognitor.yaml", "omnicognitor.yml", "omnicognitor.toml"}
	if dir := Dir(); dir != "" {
		paths = append(paths,
			filepath.Join(dir, "config.yaml"),
			filepath.Join(dir, "config.yml"),
			filepath.Join(dir, "config.toml"),
		)
	}
	return paths
}

// Dir returns the per-user configuration directory for omnicognitor.
func Dir() string {
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "omnicognitor")
}

func loadFile(k *koanf.Koanf, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		var raw map[string]interface{}
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
		if err := k.Load(confmap.Provider(raw, "."), nil); err != nil {
			return fmt.Errorf("failed to merge config file: %w", err)
		}
	case ".yaml", ".yml":
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file extension: %s", filepath.Ext(path))
	}
	return nil
}

func loadEnv(k *koanf.Koanf) error {
	for name, keys := range legacyEnv {
		v, ok := os.LookupEnv(name)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		for _, key := range keys {
			if err := k.Set(key, strings.TrimSpace(v)); err != nil {
				return fmt.Errorf("failed to apply %s: %w", name, err)
			}
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.Join(strings.Split(s, "__"), ".")
	}), nil)
	if err != nil {
		return fmt.Errorf("failed to load environment: %w", err)
	}
	return nil
}
