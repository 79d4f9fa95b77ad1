// Package cli implements the Cobra command-line interface for gatekeeper.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/gatekeeper/internal/config"
	"github.com/Dicklesworthstone/gatekeeper/internal/output"
)

// Version information set by goreleaser
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flag values
var (
	flagConfig  string
	flagOutput  string
	flagJSON    bool
	flagVerbose bool
	flagProject string
	flagLedger  string
)

var rootCmd = &cobra.Command{
	Use:   "gatekeeper",
	Short: "Allow-list gatekeeper for agent-issued commands",
	Long: `gatekeeper runs only the commands named in an allow-list, with every
parameter checked against its declared pattern.

Each command carries a risk level. Commands whose level requires human
approval are parked in the approval ledger until a reviewer decides:

  gatekeeper submit deps:procure left-pad   # -> human_approval_pending
  gatekeeper pending                        # what is waiting
  gatekeeper approve deps:procure           # or: gatekeeper review
  gatekeeper submit deps:procure left-pad   # -> runs

Arguments are passed to the executable directly, never through a shell.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		showQuickReference(cmd.OutOrStdout())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		project, _ := projectPath()
		userPath, projectCfg := config.ConfigPaths(project, flagConfig)

		payload := map[string]any{
			"version":             version,
			"commit":              commit,
			"build_date":          date,
			"go_version":          runtime.Version(),
			"user_config_path":    userPath,
			"project_config_path": projectCfg,
			"project_path":        project,
		}

		format, err := resolveFormat("")
		if err != nil {
			return err
		}
		if format != output.FormatText {
			return newWriter(cmd, format, false).Write(payload)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "gatekeeper %s\n", version)
		fmt.Fprintf(out, "  commit:  %s\n", commit)
		fmt.Fprintf(out, "  built:   %s\n", date)
		fmt.Fprintf(out, "  go:      %s\n", runtime.Version())
		fmt.Fprintf(out, "  config:  %s\n", projectCfg)
		fmt.Fprintf(out, "  project: %s\n", project)
		return nil
	},
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command context,
// which also stops a running child process.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// resolveFormat picks the output format.
// Precedence: --json > --output > GATEKEEPER_OUTPUT / output.format config > text.
func resolveFormat(configured string) (output.Format, error) {
	if flagJSON {
		return output.FormatJSON, nil
	}
	if flagOutput != "" {
		return output.ParseFormat(flagOutput)
	}
	if env := os.Getenv("GATEKEEPER_OUTPUT"); env != "" {
		return output.ParseFormat(env)
	}
	if configured != "" {
		return output.ParseFormat(configured)
	}
	return output.FormatText, nil
}

// newWriter builds an output writer over the command's streams.
func newWriter(cmd *cobra.Command, format output.Format, color bool) *output.Writer {
	return output.New(format,
		output.WithOutput(cmd.OutOrStdout()),
		output.WithErrorOutput(cmd.ErrOrStderr()),
		output.WithColor(color && output.IsTerminal(cmd.ErrOrStderr())),
	)
}

// projectPath returns the project directory: --project when set, else the CWD.
func projectPath() (string, error) {
	if flagProject != "" {
		return flagProject, nil
	}
	return os.Getwd()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "project config file path (default .gatekeeper/config.toml)")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "", "output format: text, json, yaml (env: GATEKEEPER_OUTPUT)")
	rootCmd.PersistentFlags().BoolVarP(&flagJSON, "json", "j", false, "shorthand for --output=json")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVarP(&flagProject, "project", "C", "", "project directory")
	rootCmd.PersistentFlags().StringVar(&flagLedger, "ledger", "", "approval ledger path (overrides ledger.path)")

	rootCmd.AddCommand(versionCmd)
}
