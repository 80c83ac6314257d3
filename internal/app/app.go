// Package app wires the storage, transport and domain services into one
// running bot process.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tandembot/tandem/internal/bot"
	"github.com/tandembot/tandem/internal/capture"
	"github.com/tandembot/tandem/internal/checklist"
	"github.com/tandembot/tandem/internal/directory"
	"github.com/tandembot/tandem/internal/games/alias"
	"github.com/tandembot/tandem/internal/pairing"
	"github.com/tandembot/tandem/internal/reminder"
	"github.com/tandembot/tandem/internal/render"
	"github.com/tandembot/tandem/internal/storage/sqlite"
	"github.com/tandembot/tandem/internal/task"
	"github.com/tandembot/tandem/internal/transport/telegram"
)

// Config carries everything Run needs.
type Config struct {
	BotToken     string
	DBPath       string
	InviteTTL    time.Duration
	ReminderTick time.Duration
}

// Run opens the store, connects the transport and serves events until the
// context is canceled.
func Run(ctx context.Context, cfg Config) error {
	if dir := filepath.Dir(cfg.DBPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close store: %v", err)
		}
	}()

	client, err := telegram.New(cfg.BotToken)
	if err != nil {
		return err
	}

	renderer := render.New()
	aliasGame, err := alias.NewService(store, nil)
	if err != nil {
		return fmt.Errorf("load game decks: %w", err)
	}

	dispatcher := bot.New(bot.Config{
		Sender:      client,
		Menu:        client,
		BotUsername: client.Username(),
		Renderer:    renderer,
		Directory:   directory.NewService(store, nil),
		Captures:    capture.NewService(store, nil),
		Pairing:     pairing.NewService(store, cfg.InviteTTL, nil),
		Checklists:  checklist.NewService(store, nil),
		Tasks:       task.NewService(store, nil),
		Alias:       aliasGame,
	})
	scheduler := reminder.NewScheduler(store, client, renderer, cfg.ReminderTick, nil)

	log.Printf("bot @%s listening", client.Username())

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return client.Listen(ctx, dispatcher.Handle)
	})
	group.Go(func() error {
		return scheduler.Run(ctx)
	})
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
