package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagSubmitRequest string
	flagSubmitStream  bool
)

func init() {
	submitCmd.Flags().StringVar(&flagSubmitRequest, "request", "", `JSON request envelope {"command_id": ..., "parameters": [...]}, or - to read stdin`)
	submitCmd.Flags().BoolVar(&flagSubmitStream, "stream", false, "stream command output to stderr while it runs")

	rootCmd.AddCommand(submitCmd)
}

var submitCmd = &cobra.Command{
	Use:   "submit <command-id> [params...]",
	Short: "Validate, gate and run an allow-listed command",
	Long: `Submit a command by allow-list id with its positional parameters.

Parameters are matched in full against the patterns declared for the command.
Use -- before parameters that start with a dash.

Exit status is 0 on success, 1 on failure and 2 when the command is waiting
for human approval.`,
	Example: `  gatekeeper submit deps:list
  gatekeeper submit deps:install lodash@4.17.21
  echo '{"command_id":"deps:list","parameters":[]}' | gatekeeper submit --request -`,
	Args: func(cmd *cobra.Command, args []string) error {
		if flagSubmitRequest != "" {
			if len(args) > 0 {
				return errors.New("positional arguments cannot be combined with --request")
			}
			return nil
		}
		if len(args) == 0 {
			return errors.New("requires a command id (or --request)")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if flagSubmitStream {
			a.runner.Stream = cmd.ErrOrStderr()
		}

		ctx := cmd.Context()
		if flagSubmitRequest == "" {
			resp := a.gk.Submit(ctx, args[0], args[1:])
			if err := a.out.WriteResponse(resp); err != nil {
				return err
			}
			return exitForResponse(resp)
		}

		raw, err := readRequest(cmd.InOrStdin(), flagSubmitRequest)
		if err != nil {
			return err
		}
		resp := a.gk.SubmitJSON(ctx, raw)
		if err := a.out.WriteResponse(resp); err != nil {
			return err
		}
		return exitForResponse(resp)
	},
}

// readRequest returns the request envelope: the flag value itself, stdin for "-",
// or the contents of a file when prefixed with "@".
func readRequest(stdin io.Reader, value string) ([]byte, error) {
	switch {
	case value == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading request from stdin: %w", err)
		}
		return data, nil
	case len(value) > 1 && value[0] == '@':
		data, err := os.ReadFile(value[1:])
		if err != nil {
			return nil, fmt.Errorf("reading request file: %w", err)
		}
		return data, nil
	default:
		return []byte(value), nil
	}
}
