package core

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes reported in failure responses.
const (
	CodeInvalidJSON               = "INVALID_JSON"
	CodeInvalidCommandID          = "INVALID_COMMAND_ID"
	CodeParameterValidationFailed = "PARAMETER_VALIDATION_FAILED"
	CodeLedgerWriteFailed         = "LEDGER_WRITE_FAILED"
	CodeApprovalDenied            = "APPROVAL_DENIED"
	CodeExecutionFailed           = "EXECUTION_FAILED"
	CodeExecutionTimeout          = "EXECUTION_TIMEOUT"
)

// Validation errors.
var (
	ErrUnknownCommand   = errors.New("command id is not in the allow-list")
	ErrParameterCount   = errors.New("incorrect number of parameters")
	ErrParameterPattern = errors.New("parameter failed validation")
)

// ValidationError is a rejected request. Message is safe to show to the caller:
// it never contains a submitted parameter value.
type ValidationError struct {
	Code    string
	Message string
	// Param is the name of the failing parameter, if any.
	Param string
	// ValueLen is the length of the rejected value, for logging.
	ValueLen int

	err error
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Unwrap exposes the sentinel for errors.Is.
func (e *ValidationError) Unwrap() error {
	return e.err
}

// ConcreteCommand is a fully substituted invocation: an executable plus discrete argv entries.
type ConcreteCommand struct {
	Executable string   `json:"executable" yaml:"executable"`
	Args       []string `json:"args" yaml:"args"`
}

// Argv returns the executable followed by its arguments.
func (c ConcreteCommand) Argv() []string {
	out := make([]string, 0, len(c.Args)+1)
	out = append(out, c.Executable)
	return append(out, c.Args...)
}

// String renders the command for display only. It is never passed to a shell.
func (c ConcreteCommand) String() string {
	return strings.Join(c.Argv(), " ")
}

// Validator checks requests against the allow-list.
type Validator struct {
	registry *Registry
}

// NewValidator creates a validator over registry.
func NewValidator(registry *Registry) *Validator {
	return &Validator{registry: registry}
}

// Validate checks commandID and params and builds the concrete command.
// Checks run in order and stop at the first failure: membership, arity, per-parameter pattern.
func (v *Validator) Validate(commandID string, params []string) (*ConcreteCommand, error) {
	tmpl, ok := v.registry.Lookup(commandID)
	if commandID == "" || !ok {
		return nil, &ValidationError{
			Code:    CodeInvalidCommandID,
			Message: "Command ID is not in the allow-list.",
			err:     ErrUnknownCommand,
		}
	}

	if len(params) != len(tmpl.Params) {
		return nil, &ValidationError{
			Code:    CodeParameterValidationFailed,
			Message: fmt.Sprintf("Incorrect number of parameters. Expected %d, got %d.", len(tmpl.Params), len(params)),
			err:     ErrParameterCount,
		}
	}

	for i, p := range tmpl.Params {
		if !p.Match(params[i]) {
			return nil, &ValidationError{
				Code:     CodeParameterValidationFailed,
				Message:  fmt.Sprintf("Parameter '%s' failed validation.", p.Name),
				Param:    p.Name,
				ValueLen: len(params[i]),
				err:      ErrParameterPattern,
			}
		}
	}

	return &ConcreteCommand{
		Executable: tmpl.Base,
		Args:       substitute(tmpl.Args, params),
	}, nil
}

// substitute expands every argument slot. Each slot yields exactly one argv entry.
func substitute(args []ArgTemplate, params []string) []string {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		var b strings.Builder
		for _, seg := range arg {
			if seg.IsParam {
				b.WriteString(params[seg.Param])
			} else {
				b.WriteString(seg.Literal)
			}
		}
		out = append(out, b.String())
	}
	return out
}
