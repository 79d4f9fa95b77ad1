package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/gatekeeper/internal/tui"
)

func init() {
	rootCmd.AddCommand(reviewCmd)
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Approve or deny pending requests interactively",
	Long: `Open the interactive review screen over the approval ledger.

Key bindings:
  up/down (k/j)  Move between pending requests
  a              Approve the selected request
  d              Deny the selected request
  r              Reload the ledger from disk
  q              Quit

Without a terminal, use 'gatekeeper pending' with 'approve' or 'deny'.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := tui.Run(cmd.Context(), a.ledger); err != nil {
			if errors.Is(err, tui.ErrNotInteractive) {
				return fmt.Errorf("%w; use 'gatekeeper pending' and 'gatekeeper approve <key>'", err)
			}
			return err
		}
		return nil
	},
}
