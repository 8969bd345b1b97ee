package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/AbhishekKantharia/AIConversationalDataScienceTutor/internal/config"
	"github.com/AbhishekKantharia/AIConversationalDataScienceTutor/internal/provider"
	"github.com/AbhishekKantharia/AIConversationalDataScienceTutor/internal/session"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	cfgFile      string
	modelFlag    string
	providerFlag string
	userFlag     string
	storeFlag    string
	useTUI       bool
	verbose      bool

	// Set by Execute(); shown on the TUI welcome page.
	appVersion string
)

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	appVersion = version

	rootCmd := &cobra.Command{
		Use:   "dstutor",
		Short: "AI data science tutor",
		Long:  "dstutor answers data science questions and keeps your tutoring chats.",
		// Running dstutor with no subcommand starts chat mode.
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(os.Stderr, "warning: .env: %v\n", err)
			}
			// Default TUI on when stdout is a terminal and --tui was not explicitly set.
			if !cmd.Root().PersistentFlags().Changed("tui") && term.IsTerminal(int(os.Stdout.Fd())) {
				useTUI = true
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default ~/.config/dstutor/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "override model")
	rootCmd.PersistentFlags().StringVarP(&providerFlag, "provider", "p", "", "override provider")
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "user name; keeps a separate chat store per user")
	rootCmd.PersistentFlags().StringVar(&storeFlag, "store", "", "chat store backend: json or sqlite")
	rootCmd.PersistentFlags().BoolVar(&useTUI, "tui", false, "use bubbletea TUI mode (default: auto-detect terminal)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")

	// Subcommands
	rootCmd.AddCommand(newAskCmd())
	rootCmd.AddCommand(newChatsCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd(version, commit, date))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig loads configuration, applying CLI flag overrides.
func initConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	// CLI flags override config values
	if providerFlag != "" {
		cfg.Provider = providerFlag
	}
	if modelFlag != "" {
		cfg.Model = modelFlag
	}
	if userFlag != "" {
		cfg.User = userFlag
	}
	if storeFlag != "" {
		cfg.Store.Backend = storeFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogger installs the default slog logger. Warnings go to w; --verbose
// lowers the level to debug.
func setupLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// buildProvider creates a Provider instance based on configuration.
func buildProvider(cfg *config.Config) (provider.Provider, error) {
	name := cfg.Provider
	pc := cfg.GetProviderConfig(name)

	apiKey := pc.APIKey
	if apiKey == "" && name == "ollama" {
		apiKey = "ollama"
	}
	if apiKey == "" {
		return nil, fmt.Errorf(
			"API key not configured for provider %q.\n"+
				"Set it via:\n"+
				"  - config file: providers.%s.api_key\n"+
				"  - environment: LLM_API_KEY (or a .env file)",
			name, name,
		)
	}

	model := cfg.ResolveModel()

	switch name {
	case "anthropic":
		return provider.NewAnthropicProvider(apiKey, pc.BaseURL, model), nil
	default:
		// All other providers use OpenAI-compatible API
		baseURL := pc.BaseURL
		if baseURL == "" {
			u, ok := config.KnownProviderBaseURLs[name]
			if !ok {
				return nil, fmt.Errorf("unknown provider %q; set providers.%s.base_url in config", name, name)
			}
			baseURL = u
		}
		return provider.NewOpenAIProvider(apiKey, baseURL, model), nil
	}
}

// openStore opens the configured sink and loads it. Unreadable or corrupt
// storage is logged and leaves an empty store.
func openStore(cfg *config.Config, logger *slog.Logger) (*session.Store, error) {
	sink, err := session.OpenSink(cfg.Store.Backend, cfg.Store.Path, cfg.User)
	if err != nil {
		if sink == nil || !session.IsStorageError(err) {
			return nil, err
		}
		logger.Warn("chat store unreadable, starting empty", "err", err)
	}
	store := session.NewStore(sink)
	if err := store.Load(); err != nil {
		if !session.IsStorageError(err) {
			store.Close()
			return nil, err
		}
		logger.Warn("chat store unreadable, starting empty", "err", err)
	}
	return store, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
