package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

var (
	logLevel string // Log verbosity level
	envFile  string // Optional dotenv file with FLOWSIM_* defaults
)

// Environment variables consulted when the corresponding flag is not set.
const (
	envLogLevel = "FLOWSIM_LOG_LEVEL"
	envSeed     = "FLOWSIM_SEED"
	envTraceDB  = "FLOWSIM_TRACE_DB"
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:               "flowsim",
	Short:             "Discrete-event simulator for material flow networks",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// setup loads the dotenv file and configures logging before any subcommand.
func setup(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(envFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) || cmd.Flags().Changed("env-file") {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}
	}
	if !cmd.Flags().Changed("log") {
		if v := os.Getenv(envLogLevel); v != "" {
			logLevel = v
		}
	}
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q", logLevel)
	}
	logrus.SetLevel(level)
	return nil
}

// Execute runs the CLI root command
func Execute() {
	// logrus.Fatal and command errors both run atexit handlers, so buffered
	// traces are flushed on every exit path.
	logrus.StandardLogger().ExitFunc = atexit.Exit
	if err := rootCmd.Execute(); err != nil {
		atexit.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file providing FLOWSIM_* defaults")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}
