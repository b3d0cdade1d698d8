package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:           "tbrag",
	Short:         "Question answering, personalization and translation over the Physical AI textbook",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", os.Getenv("NO_COLOR") != "", "disable colored output")
	rootCmd.PersistentFlags().String("server", "", "tbrag server URL (default $TBRAG_SERVER_URL or http://127.0.0.1:8000)")
	rootCmd.PersistentFlags().String("token", "", "session token (default $TBRAG_SESSION_TOKEN)")

	rootCmd.AddCommand(serveCmd, ingestCmd, mcpCmd)
	rootCmd.AddCommand(askCmd, profileCmd, personalizeCmd, translateCmd, statusCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}

// setupLogging installs a text slog handler on stderr at level.
func setupLogging(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}

func versionString() string {
	return fmt.Sprintf("tbrag version %s", version)
}
