package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"easyapply-engine/internal/config"
	"easyapply-engine/internal/logging"
	"easyapply-engine/internal/secrets"
)

var (
	// global flags
	configPath  string
	defaultPath string
	dataDir     string
	envFile     string
	verbose     bool

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "easyapply",
	Short: "Automated LinkedIn Easy Apply",
	Long: `easyapply searches LinkedIn for Easy Apply listings and completes the
application dialog for each one, answering questions from your resume and,
when the resume has no answer, from Gemini.

Applied jobs are recorded in a ledger file so no listing is applied to twice.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}

		path := configPath
		if path == "" {
			p, err := config.EnsureUserConfig(dataDir, defaultPath)
			if err != nil {
				return fmt.Errorf("bootstrap config: %w", err)
			}
			path = p
		}
		c, err := config.Load(path)
		if err != nil {
			return err
		}
		if c.DataDir == "" {
			c.DataDir = dataDir
		}
		c.Resolve()
		cfg = c

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(level, cfg.Logging.Dev)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger.Debug("config loaded", zap.String("path", path))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// validated fills credentials from the keychain and checks the config for a
// live run.
func validated() (config.Config, error) {
	c, res := config.NormalizeAndValidate(secrets.Fill(cfg))
	for _, w := range res.Warnings {
		logger.Warn("config", zap.String("warning", w))
	}
	if !res.OK() {
		return c, errors.New("config validation failed:\n- " + strings.Join(res.Errors, "\n- "))
	}
	return c, nil
}

func defaultDataDir() string {
	if d := os.Getenv("EASYAPPLY_DATA_DIR"); d != "" {
		return d
	}
	return "."
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "config file (default <data-dir>/config.yml)")
	pf.StringVar(&defaultPath, "default-config", "config.example.yml", "template copied to <data-dir>/config.yml on first run")
	pf.StringVar(&dataDir, "data-dir", defaultDataDir(), "directory for config, ledger, history and debug artifacts")
	pf.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config is read")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(runCmd, inspectCmd, ledgerCmd, historyCmd, secretsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
