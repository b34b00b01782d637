package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pal/internal/app"
	"github.com/ternarybob/pal/internal/common"
)

var (
	// Command-line flags
	configFiles []string
	serverPort  int
	serverHost  string
	envFile     string
	verbose     bool

	// Global state
	config *common.Config
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:   "pal",
	Short: "Pal desktop companion backend",
	Long: `Pal answers questions from what it has learned: documents you give it and
your past conversations. Run without a subcommand to start the GUI backend.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	// Assigned here rather than in the literal to avoid an initialization cycle (isServe refers to rootCmd)
	rootCmd.PersistentPreRunE = loadConfig

	rootCmd.PersistentFlags().StringSliceVarP(&configFiles, "config", "c", nil, "Configuration file path (repeatable, later files override earlier ones)")
	rootCmd.PersistentFlags().IntVarP(&serverPort, "port", "p", 0, "Server port (overrides config)")
	rootCmd.PersistentFlags().StringVar(&serverHost, "host", "", "Server host (overrides config)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "Dotenv file with API keys (missing file is ignored)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log to the console for one-shot commands")

	rootCmd.AddCommand(serveCmd, askCmd, learnCmd, learnHistoryCmd, statsCmd, exportCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig runs the startup sequence shared by every command:
// 1. .env (API keys) 2. config files -> env 3. CLI overrides 4. logger
func loadConfig(cmd *cobra.Command, args []string) error {
	if cmd.Name() == versionCmd.Name() {
		return nil
	}

	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load %s: %v\n", envFile, err)
	}

	if len(configFiles) == 0 {
		if _, err := os.Stat("pal.toml"); err == nil {
			configFiles = append(configFiles, "pal.toml")
		} else if _, err := os.Stat("deployments/local/pal.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/pal.toml")
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		return fmt.Errorf("failed to load configuration %v: %w", configFiles, err)
	}

	common.ApplyFlagOverrides(config, serverPort, serverHost)

	// One-shot commands print results to stdout, so logs go to file unless asked
	if !isServe(cmd) && !verbose {
		config.Logging.Output = []string{"file"}
	}

	logger = common.InitLogger(config)
	common.InstallCrashHandler("")

	logger.Debug().
		Strs("config_files", configFiles).
		Str("command", cmd.Name()).
		Str("log_level", config.Logging.Level).
		Strs("log_output", config.Logging.Output).
		Msg("Configuration loaded")

	return nil
}

func isServe(cmd *cobra.Command) bool {
	return cmd == rootCmd || cmd == serveCmd
}

// openApp initializes the application for one-shot commands
func openApp() (*app.App, error) {
	application, err := app.New(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	return application, nil
}
