package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/example/snipsync/internal/client"
	"github.com/example/snipsync/internal/config"
	"github.com/example/snipsync/internal/tui"
	"github.com/example/snipsync/internal/types"
)

func main() {
	os.Exit(run())
}

func run() int {
	apiURL := flag.String("api", "", "snippet store base URL (overrides SNIPSYNC_API_URL)")
	wsURL := flag.String("ws", "", "broadcast channel URL (overrides SNIPSYNC_WS_URL)")
	downloadDir := flag.String("download-dir", "", "directory for downloaded snippet files")
	logPath := flag.String("log", "", "write debug logs to this file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := config.LoadClient()
	if *apiURL != "" {
		cfg.APIBaseURL = *apiURL
	}
	if *wsURL != "" {
		cfg.ChannelURL = *wsURL
	}
	if *downloadDir != "" {
		cfg.DownloadDir = *downloadDir
	}

	// The terminal owns stdout, so logs go to a file or nowhere.
	logger := zerolog.Nop()
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "snip: open log file: %v\n", err)
			return 1
		}
		defer f.Close()
		logger = zerolog.New(f).With().Timestamp().Logger()
	}

	clientID := types.ClientID(uuid.NewString())

	api, err := client.NewAPI(cfg.APIBaseURL, clientID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "snip: %v\n", err)
		return 1
	}
	channel := client.NewChannel(cfg.ChannelURL, clientID, logger)
	defer channel.Close()

	model := tui.New(tui.Options{
		Context:     ctx,
		Store:       api,
		Channel:     channel,
		DownloadDir: cfg.DownloadDir,
		Logger:      logger,
	})

	program := tea.NewProgram(model, tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "snip: %v\n", err)
		return 1
	}
	return 0
}
