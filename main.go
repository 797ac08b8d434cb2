package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"convo/config"
	"convo/provider"
	"convo/session"
	"convo/storage"
	"convo/tools"
	"convo/ui"
)

const Version = "v0.1.0"

// seedPrices backs the built-in price_lookup tool. Real deployments would
// wire a live QuoteSource instead.
var seedPrices = map[string]float64{
	"ACME": 104.25,
	"GLBX": 42.10,
	"INIT": 9.87,
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Debug {
		config.InitDebugLog(cfg.DataDir)
	}

	var enc *storage.Encryptor
	if cfg.Encryption.Enabled {
		pass := cfg.Passphrase()
		if pass == "" {
			return fmt.Errorf("encryption is enabled but no passphrase is set (export %s)", cfg.Encryption.PassphraseEnv)
		}
		enc, err = storage.NewEncryptor(pass)
		if err != nil {
			return fmt.Errorf("failed to initialize encryption: %w", err)
		}
	}

	store, err := storage.NewThreadStorage(cfg.DataDir, enc)
	if err != nil {
		return fmt.Errorf("failed to initialize thread storage: %w", err)
	}

	index, err := storage.NewSearchIndex(cfg.DataDir)
	if err != nil {
		// Search is an extra; chat works without the index.
		if config.DebugLog != nil {
			config.DebugLog.Printf("[main] search index unavailable: %v", err)
		}
		index = nil
	} else {
		defer index.Close()
	}

	providerCfg, err := cfg.Provider("")
	if err != nil {
		return err
	}

	source := tools.NewStaticQuoteSource(seedPrices)
	transport, err := provider.NewTransport(provider.Config{
		Type:    provider.Type(providerCfg.ID),
		BaseURL: providerCfg.BaseURL,
		Model:   providerCfg.Model,
		APIKey:  config.APIKeyFor(providerCfg),
	}, tools.NewPriceExecutor(source))
	if err != nil {
		return fmt.Errorf("failed to initialize provider %q: %w", providerCfg.ID, err)
	}

	ctrl, err := session.New(session.Config{
		Transport: transport,
		Tools:     tools.Catalog(),
		OnError: func(err error) {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[session] turn failed: %v", err)
			}
		},
	})
	if err != nil {
		return err
	}

	// Restore the thread that was active when the app last exited.
	if id := store.LoadCurrentThreadID(); id != "" {
		if thread, err := store.Load(id); err == nil {
			ctrl.SwitchThread(thread.ID, storage.ToSessionMessages(thread.Messages))
		} else if config.DebugLog != nil {
			config.DebugLog.Printf("[main] could not restore thread %s: %v", id, err)
		}
	}

	// Background sweeper that settles provisional price results.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	interval := time.Duration(cfg.RefreshIntervalSeconds) * time.Second
	go tools.NewRefresher(ctrl, source, interval).Run(ctx)

	p := tea.NewProgram(
		ui.New(ctrl, store, index),
		tea.WithAltScreen(),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("ui error: %w", err)
	}

	saveActiveThread(ctrl, store, index)
	return nil
}

// saveActiveThread persists the active thread one last time on exit.
func saveActiveThread(ctrl *session.Controller, store *storage.ThreadStorage, index *storage.SearchIndex) {
	snap := ctrl.Snapshot()
	if snap.ThreadID == "" || len(snap.Messages) == 0 {
		return
	}
	thread := &storage.Thread{
		ID:       snap.ThreadID,
		Messages: storage.FromSessionMessages(snap.Messages),
	}
	if prev, err := store.Load(snap.ThreadID); err == nil {
		thread.Name = prev.Name
		thread.CreatedAt = prev.CreatedAt
		thread.Provider = prev.Provider
		thread.Model = prev.Model
	}
	if thread.Name == "" {
		short := snap.ThreadID
		if len(short) > 8 {
			short = short[:8]
		}
		thread.Name = "Thread " + short
	}
	if err := store.Save(thread); err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[main] save on exit failed: %v", err)
		}
		return
	}
	_ = store.SaveCurrentThreadID(thread.ID)
	if index != nil {
		_ = index.IndexThread(thread)
	}
}
