package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/gatekeeper/internal/core"
	"github.com/Dicklesworthstone/gatekeeper/internal/output"
)

func init() {
	policyCmd.AddCommand(policyShowCmd)
	policyCmd.AddCommand(policyRiskCmd)
	policyCmd.AddCommand(policyCheckCmd)

	rootCmd.AddCommand(policyCmd)
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect the allow-list and risk policy",
	RunE:  policyShowCmd.RunE,
}

var policyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show every allow-listed command with its risk level",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		return a.out.WritePolicy(core.ExportPolicy(a.registry, a.risk))
	},
}

// riskReport is the answer to "policy risk <id>".
type riskReport struct {
	CommandID             string `json:"command_id" yaml:"command_id"`
	AllowListed           bool   `json:"allow_listed" yaml:"allow_listed"`
	RiskLevel             string `json:"risk_level" yaml:"risk_level"`
	HumanApprovalRequired bool   `json:"human_approval_required" yaml:"human_approval_required"`
	BypassChecks          bool   `json:"bypass_checks" yaml:"bypass_checks"`
}

var policyRiskCmd = &cobra.Command{
	Use:   "risk <command-id>",
	Short: "Show the risk level and approval policy for a command id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		id := args[0]
		_, listed := a.registry.Lookup(id)
		report := riskReport{
			CommandID:             id,
			AllowListed:           listed,
			RiskLevel:             a.risk.RiskLevel(id),
			HumanApprovalRequired: a.risk.RequiresHumanApproval(id),
			BypassChecks:          a.risk.CanBypassStricterChecks(id),
		}
		if a.out.Format() != output.FormatText {
			return a.out.Write(report)
		}

		out, st := a.out.Human(), a.out.Styles()
		fmt.Fprintf(out, "%s\n", st.Bold.Render(id))
		if !listed {
			fmt.Fprintf(out, "  %s\n", st.Fail.Render("not allow-listed: submissions are rejected"))
		}
		fmt.Fprintf(out, "  risk:     %s\n", st.RiskStyle(report.RiskLevel))
		fmt.Fprintf(out, "  approval: %s\n", yesNo(report.HumanApprovalRequired))
		fmt.Fprintf(out, "  bypass:   %s\n", yesNo(report.BypassChecks))
		return nil
	},
}

var policyCheckCmd = &cobra.Command{
	Use:   "check <command-id> [params...]",
	Short: "Validate a request and print the command it would run",
	Long: `Validate a request against the allow-list without running it or touching
the approval ledger.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		id := args[0]
		resp := &core.Response{CommandID: &id}
		concrete, err := core.NewValidator(a.registry).Validate(id, args[1:])
		if err != nil {
			resp.Status = core.StatusFailure
			resp.Error = &core.ResponseError{Code: core.CodeParameterValidationFailed, Message: err.Error()}
			var verr *core.ValidationError
			if errors.As(err, &verr) {
				resp.Error = &core.ResponseError{Code: verr.Code, Message: verr.Message}
			}
		} else {
			resp.Status = core.StatusSuccess
			resp.RiskLevel = a.risk.RiskLevel(id)
			resp.ConstructedCommand = concrete
			if a.risk.RequiresHumanApproval(id) {
				resp.Message = "Requires human approval before it runs."
			}
		}
		if err := a.out.WriteResponse(resp); err != nil {
			return err
		}
		if resp.Status != core.StatusSuccess {
			return NewExitCodeError(ExitFailure)
		}
		return nil
	},
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
