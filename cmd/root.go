// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/naka-gawa/commit-board/internal/config"
	"github.com/naka-gawa/commit-board/internal/observability"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "commit-board",
	Short: "A team activity dashboard backed by GitHub commit counts.",
	Long: `commit-board aggregates the commit count of every repository in a GitHub
organization, caches the result, and serves it to a dashboard together with
a rotating informational text file.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Add a persistent flag for verbose output, available to all commands.
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./commit-board.yaml)")
}

// loadConfig reads .env, the optional config file and the environment into a
// validated Config. flagKeys maps config keys to flags of cmd overriding them.
func loadConfig(cmd *cobra.Command, flagKeys map[string]string) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	config.SetDefaults(v)
	for key, name := range flagKeys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("commit-board")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return config.Load(v)
}

// newLogger builds the zap logger for cfg honoring the --verbose flag.
func newLogger(cmd *cobra.Command, cfg *config.Config) (*zap.Logger, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	return observability.NewLogger(cfg.Logging.Level, cfg.Logging.Format, verbose)
}
