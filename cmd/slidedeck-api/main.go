package main

import (
	"fmt"
	"os"

	"github.com/MarcoPoloResearchLab/slidedeck/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// serverFlags maps config keys to the command-line flags that override them.
var serverFlags = map[string]string{
	"http.address":           "http-address",
	"database.path":          "database-path",
	"database.seed_defaults": "seed-defaults",
	"log.level":              "log-level",
	"app.environment":        "environment",
	"cors.allowed_origins":   "cors-origins",
	"render.code_style":      "code-style",
}

func main() {
	rootCmd, err := newRootCommand(viper.GetViper())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(configViper *viper.Viper) (*cobra.Command, error) {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "slidedeck-api",
		Short:        "Slide deck storage and preview service",
		SilenceUsage: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return config.ReadInConfig(configViper, configPath)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.Load(configViper)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), appConfig)
		},
	}

	config.ApplyDefaults(configViper)
	defaults := config.NewViper()

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to configuration file")
	flags.String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	flags.String("database-path", defaults.GetString("database.path"), "SQLite database path")
	flags.Bool("seed-defaults", defaults.GetBool("database.seed_defaults"), "Insert sample slides into an empty database")
	flags.String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	flags.String("environment", defaults.GetString("app.environment"), "Runtime environment (development, production)")
	flags.StringSlice("cors-origins", defaults.GetStringSlice("cors.allowed_origins"), "Allowed CORS origins")
	flags.String("code-style", defaults.GetString("render.code_style"), "Chroma style for highlighted code")

	if err := config.BindFlags(configViper, flags, serverFlags); err != nil {
		return nil, err
	}
	return rootCmd, nil
}
