package main

import (
	"context"
	"os"

	"github.com/MarcoPoloResearchLab/slidedeck/internal/apiclient"
	"github.com/MarcoPoloResearchLab/slidedeck/internal/config"
	"github.com/MarcoPoloResearchLab/slidedeck/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "slidedeck",
		Short:        "Edit and manage Markdown slide decks",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.ReadInConfig(viper.GetViper(), cfgFile)
		},
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(
		newEditCommand(),
		newListCommand(),
		newAddCommand(),
		newRemoveCommand(),
		newMoveCommand(),
		newImportCommand(),
		newExportCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// clientFlags maps config keys to the command-line flags that override them.
var clientFlags = map[string]string{
	"api.base_url":           "api-url",
	"api.health_timeout":      "health-timeout",
	"api.fallback_to_memory": "fallback-memory",
	"editor.debounce":        "debounce",
	"log.level":              "log-level",
	"log.file":               "log-file",
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to configuration file")
	flags.String("api-url", defaults.GetString("api.base_url"), "Slides API base URL")
	flags.Duration("health-timeout", defaults.GetDuration("api.health_timeout"), "Health check timeout before falling back")
	flags.Bool("fallback-memory", defaults.GetBool("api.fallback_to_memory"), "Use in-memory sample slides when the API is unreachable")
	flags.Duration("debounce", defaults.GetDuration("editor.debounce"), "Autosave delay after the last edit")
	flags.String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	flags.String("log-file", defaults.GetString("log.file"), "Write logs to this file")

	if err := config.BindFlags(viper.GetViper(), flags, clientFlags); err != nil {
		panic(err)
	}
}

// session is the resolved backend plus the settings commands need.
type session struct {
	config  config.ClientConfig
	logger  *zap.Logger
	backend apiclient.Backend
	mode    apiclient.Mode
}

// openSession loads client configuration and picks the backend once for this run.
// Logs go to the configured file; without one, the editor discards them and the
// one-shot commands write warnings to stderr.
func openSession(ctx context.Context, interactive bool) (*session, error) {
	clientConfig, err := config.LoadClient(viper.GetViper())
	if err != nil {
		return nil, err
	}

	var logger *zap.Logger
	if interactive || clientConfig.LogFile != "" {
		logger, err = logging.NewFileLogger(clientConfig.LogLevel, clientConfig.LogFile)
	} else {
		logger, err = logging.NewLogger("warn")
	}
	if err != nil {
		return nil, err
	}

	backend, mode, err := apiclient.Resolve(ctx, apiclient.ResolveConfig{
		BaseURL:          clientConfig.APIBaseURL,
		HealthTimeout:     clientConfig.HealthTimeout,
		FallbackToMemory: clientConfig.FallbackToMemory,
		Logger:           logger,
	})
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	return &session{config: clientConfig, logger: logger, backend: backend, mode: mode}, nil
}

func (s *session) close() {
	_ = s.logger.Sync()
}
