package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/gatekeeper/internal/ledger"
	"github.com/Dicklesworthstone/gatekeeper/internal/output"
)

var (
	flagLedgerStatus  string
	flagLedgerCommand string
)

func init() {
	ledgerCmd.Flags().StringVar(&flagLedgerStatus, "status", "", "only records with this status (pending, approved, denied, consumed)")
	ledgerCmd.Flags().StringVar(&flagLedgerCommand, "command", "", "only records for this command id")

	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(denyCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(ledgerCmd)
}

var approveCmd = &cobra.Command{
	Use:   "approve <key>",
	Short: "Approve a pending request",
	Long: `Approve the pending approval record with the given key.

The next submission with this key runs once; the approval is then retired as
consumed and a later submission asks again. Decisions are final: an approved or
denied record cannot be changed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDecision(cmd, args[0], ledger.StatusApproved)
	},
}

var denyCmd = &cobra.Command{
	Use:   "deny <key>",
	Short: "Deny a pending request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDecision(cmd, args[0], ledger.StatusDenied)
	},
}

func runDecision(cmd *cobra.Command, key string, to ledger.Status) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	decide := a.ledger.Approve
	if to == ledger.StatusDenied {
		decide = a.ledger.Deny
	}
	ok, err := decide(cmd.Context(), key)
	if err != nil {
		return err
	}
	if !ok {
		current := a.ledger.Status(key)
		if current == ledger.StatusNotFound {
			return fmt.Errorf("no approval record for key %q", key)
		}
		return fmt.Errorf("approval %q is already %s", key, current)
	}

	rec, _ := a.ledger.Get(key)
	if a.out.Format() == output.FormatText {
		a.out.Success(fmt.Sprintf("%s %s", to, key))
		return nil
	}
	return a.out.WriteRecord(key, &rec)
}

var statusCmd = &cobra.Command{
	Use:   "status <key>",
	Short: "Show the approval record for a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		rec, ok := a.ledger.Get(args[0])
		if !ok {
			return a.out.WriteRecord(args[0], nil)
		}
		return a.out.WriteRecord(args[0], &rec)
	},
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List requests waiting for human approval",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		return a.out.WriteRecords(a.ledger.List(ledger.Filter{Status: ledger.StatusPending}))
	},
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "List approval records",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := ledger.Filter{CommandID: flagLedgerCommand}
		if flagLedgerStatus != "" {
			s, err := ledger.ParseStatus(flagLedgerStatus)
			if err != nil {
				return fmt.Errorf("--status: %w", err)
			}
			filter.Status = s
		}

		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.out.WriteRecords(a.ledger.List(filter)); err != nil {
			return err
		}
		a.out.WriteLedgerSummary(a.ledger.Counts())
		return nil
	},
}
