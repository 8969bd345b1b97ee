package cmd

import (
	"fmt"
	"os"

	"github.com/AbhishekKantharia/AIConversationalDataScienceTutor/internal/export"
	"github.com/AbhishekKantharia/AIConversationalDataScienceTutor/internal/session"
	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export NAME",
		Short: "Export a chat as text, markdown, html or a Jupyter notebook",
		Example: `  dstutor export "Chat 1" --format markdown
  dstutor export "Regression" -f notebook -o regression.ipynb`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			return withStore(cmd, func(store *session.Store) error {
				c, err := store.Get(args[0])
				if err != nil {
					return err
				}
				data, err := c.Export(f)
				if err != nil {
					return err
				}
				if output == "" || output == "-" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				if err := os.WriteFile(output, data, 0o644); err != nil {
					return fmt.Errorf("write export: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %s to %s\n", c.Name, output)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "text, markdown, html or notebook")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")

	return cmd
}
