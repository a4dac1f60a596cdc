package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/glabrego/feedhaven/internal/config"
	"github.com/glabrego/feedhaven/internal/feedapi"
	"github.com/glabrego/feedhaven/internal/snapshot"
	"github.com/glabrego/feedhaven/internal/tui"
	"github.com/glabrego/feedhaven/internal/workspace"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return
		}
		log.Fatalf("config error: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if cfg.Debug {
		logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("open log file: %v", err)
		}
		defer logFile.Close()
		logger = slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	store, err := snapshot.NewStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("snapshot store init error: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		log.Fatalf("snapshot schema error: %v", err)
	}

	client := feedapi.NewClient(cfg.APIBaseURL, cfg.Email, cfg.Password, nil)
	ws := workspace.New(client, store, logger)
	ws.SetPageSize(cfg.PageSize)

	// Paint from the local snapshot immediately; the model refreshes
	// in the background once the program starts.
	feeds, folders, err := store.LoadLibrary(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not load local snapshot (%v), starting empty\n", err)
	} else {
		ws.HandleSnapshot(workspace.SnapshotResult{Feeds: feeds, Folders: folders})
	}
	ws.RestoreScope(ctx)

	program := tea.NewProgram(tui.NewModel(ws), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		log.Fatalf("tui error: %v", err)
	}
}
