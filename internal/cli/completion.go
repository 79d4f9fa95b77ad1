package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/gatekeeper/internal/ledger"
)

var completionCmd = &cobra.Command{
	Use:       "completion [bash|zsh|fish|powershell]",
	Short:     "Generate shell completion scripts",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletionV2(out, true)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(out)
		default:
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)

	// First positional argument is an allow-listed command id.
	submitCmd.ValidArgsFunction = completeCommandIDs
	policyRiskCmd.ValidArgsFunction = completeCommandIDs
	policyCheckCmd.ValidArgsFunction = completeCommandIDs

	approveCmd.ValidArgsFunction = completeApprovalKeys(ledger.StatusPending)
	denyCmd.ValidArgsFunction = completeApprovalKeys(ledger.StatusPending)
	statusCmd.ValidArgsFunction = completeApprovalKeys("")
}

func completeCommandIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	a, err := loadApp(cmd)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	defer a.Close()

	var out []string
	for _, id := range a.registry.IDs() {
		if !strings.HasPrefix(id, toComplete) {
			continue
		}
		tmpl, _ := a.registry.Lookup(id)
		out = append(out, id+"\t"+a.risk.RiskLevel(id)+" "+tmpl.Description)
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func completeApprovalKeys(status ledger.Status) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		a, err := loadApp(cmd)
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		defer a.Close()

		var out []string
		for _, r := range a.ledger.List(ledger.Filter{Status: status}) {
			if strings.HasPrefix(r.Key, toComplete) {
				out = append(out, r.Key+"\t"+r.Description)
			}
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	}
}
