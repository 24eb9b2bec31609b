package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"codemap/internal/slogutil"
)

func main() {
	// A missing .env is fine; CODEMAP_* may come from the real environment.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		logger := slogutil.NewLogger(os.Stderr, slog.LevelInfo)
		logger.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}
