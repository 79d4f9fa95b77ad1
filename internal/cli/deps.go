package cli

import (
	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/gatekeeper/internal/core"
)

var flagDepsVersion string

func init() {
	depsInstallCmd.Flags().StringVar(&flagDepsVersion, "version", "", "exact version to install (name@version)")

	depsCmd.AddCommand(depsListCmd)
	depsCmd.AddCommand(depsInstallCmd)
	depsCmd.AddCommand(depsProcureCmd)

	rootCmd.AddCommand(depsCmd)
}

var depsCmd = &cobra.Command{
	Use:   "deps",
	Short: "Manage project dependencies through the gatekeeper",
	Long: `Dependency operations are ordinary allow-listed commands (deps:list,
deps:install, deps:procure) and go through the same validation and approval
gate as any other submission.`,
}

var depsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed dependencies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDeps(cmd, func(m *core.DependencyManager) *core.Response {
			return m.ListDependencies(cmd.Context())
		})
	},
}

var depsInstallCmd = &cobra.Command{
	Use:   "install <package>",
	Short: "Install a vetted package",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDeps(cmd, func(m *core.DependencyManager) *core.Response {
			return m.InstallPackage(cmd.Context(), args[0], flagDepsVersion)
		})
	},
}

var depsProcureCmd = &cobra.Command{
	Use:   "procure <package>",
	Short: "Request a new, unverified dependency (requires human approval)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDeps(cmd, func(m *core.DependencyManager) *core.Response {
			return m.ProcureDependency(cmd.Context(), args[0])
		})
	},
}

func runDeps(cmd *cobra.Command, op func(*core.DependencyManager) *core.Response) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	resp := op(core.NewDependencyManager(a.gk))
	if err := a.out.WriteResponse(resp); err != nil {
		return err
	}
	return exitForResponse(resp)
}
