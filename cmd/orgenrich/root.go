package main

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/orgenrich/internal/config"
	"github.com/JonMunkholm/orgenrich/internal/logging"
)

// commandContext carries persistent flags and the loaded configuration.
type commandContext struct {
	envFile   string
	refDir    string
	logLevel  string
	logFormat string

	cfg *config.Config
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "orgenrich",
		Short:         "Match organization names to EINs and enrich them",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.ensureConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&ctx.envFile, "env-file", ".env", "Environment file to load if present")
	flags.StringVar(&ctx.refDir, "reference-dir", "", "Reference data directory (overrides REFERENCE_DIR)")
	flags.StringVar(&ctx.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	flags.StringVar(&ctx.logFormat, "log-format", "", "Log format: text or json (overrides LOG_FORMAT)")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newDetectCommand(ctx))
	rootCmd.AddCommand(newReferenceCommand(ctx))

	return rootCmd
}

// ensureConfig loads the env file, the configuration and flag overrides, and
// points logging at stderr.
func (c *commandContext) ensureConfig(cmd *cobra.Command) error {
	if c.cfg != nil {
		return nil
	}

	// Existing environment variables win over the file.
	if c.envFile != "" {
		if err := godotenv.Load(c.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if c.refDir != "" {
		cfg.Reference.Dir = c.refDir
		cfg.Reference.DatabaseURL = ""
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	if c.logFormat != "" {
		cfg.Logging.Format = c.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	c.cfg = cfg
	return nil
}
