package cli

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/gatekeeper/internal/config"
	"github.com/Dicklesworthstone/gatekeeper/internal/output"
)

var (
	flagConfigGlobal bool
)

func init() {
	configCmd.PersistentFlags().BoolVar(&flagConfigGlobal, "global", false, "operate on user config (~/.gatekeeper/config.toml)")

	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configKeysCmd)
	configCmd.AddCommand(configEditCmd)

	rootCmd.AddCommand(configCmd)
}

// configWriter returns a writer honoring the configured output format.
func configWriter(cmd *cobra.Command, cfg config.Config) (*output.Writer, error) {
	format, err := resolveFormat(cfg.Output.Format)
	if err != nil {
		return nil, err
	}
	return newWriter(cmd, format, cfg.Output.Color), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or modify gatekeeper configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		out, err := configWriter(cmd, cfg)
		if err != nil {
			return err
		}
		if out.Format() != output.FormatText {
			return out.Write(cfg)
		}
		for _, key := range config.Keys() {
			val, _ := config.GetValue(cfg, key)
			fmt.Fprintf(out.Human(), "%s = %v\n", key, val)
		}
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		val, ok := config.GetValue(cfg, args[0])
		if !ok {
			return fmt.Errorf("unknown key %q", args[0])
		}
		out, err := configWriter(cmd, cfg)
		if err != nil {
			return err
		}
		if out.Format() == output.FormatText {
			fmt.Fprintf(cmd.OutOrStdout(), "%v\n", val)
			return nil
		}
		return out.Write(map[string]any{
			"key":   args[0],
			"value": val,
		})
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value in the project (or --global) config file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := projectPath()
		if err != nil {
			return err
		}
		userPath, projectPath := config.ConfigPaths(project, flagConfig)
		target := projectPath
		if flagConfigGlobal {
			target = userPath
		}

		value, err := config.ParseValue(args[0], args[1])
		if err != nil {
			return err
		}
		if err := config.WriteValue(target, args[0], value); err != nil {
			return err
		}
		// Reject values that leave the effective config invalid.
		if _, _, err := loadConfig(); err != nil {
			return fmt.Errorf("wrote %s but config is now invalid: %w", target, err)
		}

		format, err := resolveFormat("")
		if err != nil {
			return err
		}
		out := newWriter(cmd, format, false)
		if format == output.FormatText {
			out.Success(fmt.Sprintf("%s = %v (%s)", args[0], value, target))
			return nil
		}
		return out.Write(map[string]any{
			"path":  target,
			"key":   args[0],
			"value": value,
		})
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List settable configuration keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, k := range config.Keys() {
			fmt.Fprintln(cmd.OutOrStdout(), k)
		}
		return nil
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open the config file in $EDITOR (default: vi)",
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := projectPath()
		if err != nil {
			return err
		}
		userPath, projectPath := config.ConfigPaths(project, flagConfig)
		target := projectPath
		if flagConfigGlobal {
			target = userPath
		}

		// Ensure the file exists with at least defaults for convenience.
		if _, err := os.Stat(target); errors.Is(err, os.ErrNotExist) {
			if err := config.WriteValue(target, "ledger.backend", config.DefaultConfig().Ledger.Backend); err != nil {
				return err
			}
		} else if err != nil {
			return fmt.Errorf("stat %s: %w", target, err)
		}

		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "vi"
		}
		editCmd := exec.CommandContext(cmd.Context(), editor, target)
		editCmd.Stdin = os.Stdin
		editCmd.Stdout = os.Stdout
		editCmd.Stderr = os.Stderr
		return editCmd.Run()
	},
}
