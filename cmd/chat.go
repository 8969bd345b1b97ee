package cmd

import (
	"io"
	"os"

	"github.com/AbhishekKantharia/AIConversationalDataScienceTutor/internal/config"
	"github.com/AbhishekKantharia/AIConversationalDataScienceTutor/internal/provider"
	"github.com/AbhishekKantharia/AIConversationalDataScienceTutor/internal/tui"
	"github.com/AbhishekKantharia/AIConversationalDataScienceTutor/internal/tutor"
)

// runChat starts the interactive chat (REPL) mode.
func runChat() error {
	cfg, err := initConfig()
	if err != nil {
		return err
	}

	// Log lines would corrupt the alt-screen; the TUI shows failures itself.
	var logOut io.Writer = os.Stderr
	if useTUI {
		logOut = io.Discard
	}
	logger := setupLogger(logOut)

	p, err := buildProvider(cfg)
	if err != nil {
		return err
	}
	if cfg.Model == "" {
		cfg.Model = p.DefaultModel()
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	t, err := tutor.New(p, store, cfg)
	if err != nil {
		return err
	}
	t.SetLogger(logger)
	// Provider factory for /provider hot-swap.
	t.SetProviderFactory(func(c *config.Config) (provider.Provider, error) {
		return buildProvider(c)
	})

	ctx, cancel := signalContext()
	defer cancel()

	if useTUI {
		tuiCfg := tui.TUIConfig{
			Version:     appVersion,
			Provider:    p.Name(),
			Model:       cfg.Model,
			Chat:        store.ActiveName(),
			Theme:       cfg.Theme,
			ShowWelcome: true,
		}
		return tui.RunTUI(tuiCfg, func(ui tui.IO) error {
			return t.Run(ctx, ui)
		})
	}

	// Plain IO mode
	return t.Run(ctx, tui.NewPlainIO())
}
