package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"gymchat/internal"
	"gymchat/internal/storage"
)

// RunClient wires the whole client together: logging, metrics, local store,
// persisted session, REST client and the TUI program.
func RunClient(ctx context.Context, cfg Config) error {
	logger, err := internal.InitLogger(cfg.LogDir, cfg.Debug)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.MetricsPath), 0o755); err != nil {
		return fmt.Errorf("init metrics dir: %w", err)
	}
	metricsFile, err := os.OpenFile(cfg.MetricsPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open metrics file: %w", err)
	}
	defer metricsFile.Close()
	meter, shutdownMetrics, err := internal.InitMetrics(ctx, metricsFile)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	defer shutdownMetrics()
	metrics, err := internal.NewMetrics(meter)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("init data dir: %w", err)
	}
	store, err := storage.NewStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open local store: %w", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate local store: %w", err)
	}

	apiBase := cfg.APIURL
	if apiBase == "" {
		if apiBase, err = internal.HTTPBaseFromWS(cfg.ServerURL); err != nil {
			return fmt.Errorf("derive api url: %w", err)
		}
	}

	var account internal.Account
	if session, err := store.GetSession(ctx); err == nil {
		account = internal.Account{
			UserID:     session.UserID,
			Username:   session.Username,
			UserType:   session.UserType,
			Token:      session.Token,
			PTChatroom: session.PTChatroom,
		}
		logger.Info("restored session", "username", session.Username)
	} else if !errors.Is(err, storage.ErrNoSession) {
		return fmt.Errorf("read session: %w", err)
	}

	api := internal.NewAPIClient(apiBase, account.Token)
	model := internal.NewTUIModel(api, store, cfg.ServerURL, account, logger, metrics)

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	logger.Info("client starting", "server", cfg.ServerURL, "api", apiBase, "version", internal.Version)
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

// Logout clears the persisted login without starting the UI.
func Logout(ctx context.Context, cfg Config) error {
	store, err := storage.NewStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open local store: %w", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate local store: %w", err)
	}
	return store.ClearSession(ctx)
}
