package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/AbhishekKantharia/AIConversationalDataScienceTutor/internal/session"
	"github.com/spf13/cobra"
)

func newChatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chats",
		Short: "Manage saved chats",
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List chats",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(store *session.Store) error {
				return listChats(cmd.OutOrStdout(), store)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "new [BASE]",
		Short: "Create a chat named \"BASE N\" and make it active",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(store *session.Store) error {
				base := ""
				if len(args) == 1 {
					base = args[0]
				}
				name := store.Create(base)
				if err := store.Persist(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), name)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "select NAME",
		Short: "Make a chat active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(store *session.Store) error {
				if err := store.Select(args[0]); err != nil {
					return err
				}
				return store.Persist()
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rename OLD NEW",
		Short: "Rename a chat",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(store *session.Store) error {
				if err := store.Rename(args[0], args[1]); err != nil {
					return err
				}
				return store.Persist()
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "delete NAME",
		Aliases: []string{"rm"},
		Short:   "Delete a chat",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(store *session.Store) error {
				if err := store.Delete(args[0]); err != nil {
					return err
				}
				return store.Persist()
			})
		},
	})

	return cmd
}

// withStore opens the configured chat store for fn and closes it afterwards.
func withStore(cmd *cobra.Command, fn func(store *session.Store) error) error {
	cfg, err := initConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg, setupLogger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func listChats(w io.Writer, store *session.Store) error {
	if store.Len() == 0 {
		fmt.Fprintln(w, "No chats yet.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tNAME\tMESSAGES\tCREATED")
	for _, name := range store.Names() {
		c, err := store.Get(name)
		if err != nil {
			return err
		}
		mark := ""
		if name == store.ActiveName() {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", mark, name, c.Log.Len(), c.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}
