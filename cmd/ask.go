package cmd

import (
	"errors"
	"fmt"

	"github.com/AbhishekKantharia/AIConversationalDataScienceTutor/internal/tutor"
	"github.com/spf13/cobra"
)

func newAskCmd() *cobra.Command {
	var (
		prompt   string
		chatName string
	)

	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Ask a single question non-interactively",
		Example: `  dstutor ask -P "what is overfitting?"
  dstutor ask --chat "Regression" --prompt "how do I read a residual plot?"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if prompt == "" {
				return fmt.Errorf("--prompt / -P is required")
			}
			return runAsk(cmd, prompt, chatName)
		},
	}

	cmd.Flags().StringVarP(&prompt, "prompt", "P", "", "the question to ask")
	cmd.Flags().StringVar(&chatName, "chat", "", "chat to record the question in (default: the active chat)")
	_ = cmd.MarkFlagRequired("prompt")

	return cmd
}

// runAsk runs one question, prints the answer and persists the exchange.
func runAsk(cmd *cobra.Command, prompt, chatName string) error {
	cfg, err := initConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cmd.ErrOrStderr())

	p, err := buildProvider(cfg)
	if err != nil {
		return err
	}
	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if chatName != "" {
		if err := store.Select(chatName); err != nil {
			return err
		}
	}

	t, err := tutor.New(p, store, cfg)
	if err != nil {
		return err
	}
	t.SetLogger(logger)

	ctx, cancel := signalContext()
	defer cancel()

	res, err := t.Ask(ctx, prompt)
	if err != nil {
		return err
	}
	if res.Blocked {
		return errors.New(res.Reply)
	}

	fmt.Fprintln(cmd.OutOrStdout(), res.Reply)
	if res.RemoteErr != nil {
		return res.RemoteErr
	}
	return res.PersistErr
}
