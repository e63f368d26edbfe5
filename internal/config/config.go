package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix              = "SLIDEDECK"
	defaultHTTPAddress     = "0.0.0.0:4000"
	defaultDatabasePath    = "slidedeck.db"
	defaultLogLevel        = "info"
	defaultCodeStyle       = "github"
	defaultEnvironment     = EnvironmentProduction
	defaultAPIBaseURL      = "http://localhost:4000"
	defaultHealthTimeout    = 3 * time.Second
	defaultDebounce        = 500 * time.Millisecond
	defaultSeedSlides      = true
	defaultFallbackToMocks = false

	// EnvironmentDevelopment exposes detailed storage errors in API responses.
	EnvironmentDevelopment = "development"
	// EnvironmentProduction hides storage error details behind a generic message.
	EnvironmentProduction = "production"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress        string
	DatabasePath       string
	SeedDefaultSlides  bool
	LogLevel           string
	Environment        string
	CORSAllowedOrigins []string
	CodeStyle          string
}

// IsDevelopment reports whether detailed error messages may be returned to callers.
func (c AppConfig) IsDevelopment() bool {
	return c.Environment == EnvironmentDevelopment
}

// ClientConfig captures runtime configuration for the editor client.
type ClientConfig struct {
	APIBaseURL       string
	HealthTimeout     time.Duration
	FallbackToMemory bool
	DebounceInterval time.Duration
	LogLevel         string
	LogFile          string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("database.seed_defaults", defaultSeedSlides)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("app.environment", defaultEnvironment)
	configViper.SetDefault("cors.allowed_origins", []string{"*"})
	configViper.SetDefault("render.code_style", defaultCodeStyle)

	configViper.SetDefault("api.base_url", defaultAPIBaseURL)
	configViper.SetDefault("api.health_timeout", defaultHealthTimeout)
	configViper.SetDefault("api.fallback_to_memory", defaultFallbackToMocks)
	configViper.SetDefault("editor.debounce", defaultDebounce)
	configViper.SetDefault("log.file", "")
}

// Load parses server configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:        configViper.GetString("http.address"),
		DatabasePath:       configViper.GetString("database.path"),
		SeedDefaultSlides:  configViper.GetBool("database.seed_defaults"),
		LogLevel:           configViper.GetString("log.level"),
		Environment:        strings.ToLower(strings.TrimSpace(configViper.GetString("app.environment"))),
		CORSAllowedOrigins: configViper.GetStringSlice("cors.allowed_origins"),
		CodeStyle:          strings.TrimSpace(configViper.GetString("render.code_style")),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	switch c.Environment {
	case EnvironmentDevelopment, EnvironmentProduction:
	default:
		return fmt.Errorf("app.environment must be %q or %q, got %q", EnvironmentDevelopment, EnvironmentProduction, c.Environment)
	}
	if len(c.CORSAllowedOrigins) == 0 {
		return fmt.Errorf("cors.allowed_origins must list at least one origin")
	}
	return nil
}

// LoadClient parses editor client configuration from viper.
func LoadClient(configViper *viper.Viper) (ClientConfig, error) {
	cfg := ClientConfig{
		APIBaseURL:       strings.TrimRight(strings.TrimSpace(configViper.GetString("api.base_url")), "/"),
		HealthTimeout:     configViper.GetDuration("api.health_timeout"),
		FallbackToMemory: configViper.GetBool("api.fallback_to_memory"),
		DebounceInterval: configViper.GetDuration("editor.debounce"),
		LogLevel:         configViper.GetString("log.level"),
		LogFile:          strings.TrimSpace(configViper.GetString("log.file")),
	}

	if err := cfg.validate(); err != nil {
		return ClientConfig{}, err
	}

	return cfg, nil
}

func (c ClientConfig) validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	parsed, err := url.Parse(c.APIBaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute URL, got %q", c.APIBaseURL)
	}
	if c.HealthTimeout <= 0 {
		return fmt.Errorf("api.health_timeout must be positive")
	}
	if c.DebounceInterval <= 0 {
		return fmt.Errorf("editor.debounce must be positive")
	}
	return nil
}

// ReadInConfig loads path when given, otherwise whatever config file viper finds. Only an
// explicitly requested file has to exist.
func ReadInConfig(configViper *viper.Viper, path string) error {
	if path != "" {
		configViper.SetConfigFile(path)
	}

	if err := configViper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &configNotFound) {
			return err
		}
	}
	return nil
}

// BindFlags binds each config key to the named flag.
func BindFlags(configViper *viper.Viper, flags *pflag.FlagSet, bindings map[string]string) error {
	for key, flagName := range bindings {
		flag := flags.Lookup(flagName)
		if flag == nil {
			return fmt.Errorf("flag %q for %s is not defined", flagName, key)
		}
		if err := configViper.BindPFlag(key, flag); err != nil {
			return err
		}
	}
	return nil
}
