package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/xiaot623/gochat/internal/client"
)

const defaultServer = "http://localhost:8000"

var (
	serverURL string
	verbose   bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("CHAT_SERVER", defaultServer), "Chat API base URL (env CHAT_SERVER)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log client diagnostics to stderr")
}

var rootCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to local models through the chat API",
	Long: `chat is a terminal client for a chatd server.

Examples:
  chat models                          # list available models
  chat sessions new llama3             # start a session
  chat send -s <id> "hello there"      # one turn, streamed
  chat repl -m llama3                  # interactive conversation`,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newClient() *client.Client {
	var w io.Writer = io.Discard
	if verbose {
		w = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return client.New(serverURL, nil, logger)
}
