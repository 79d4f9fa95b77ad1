package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/Dicklesworthstone/gatekeeper/internal/ledger"
)

// Response statuses.
const (
	StatusSuccess              = "success"
	StatusFailure              = "failure"
	StatusHumanApprovalPending = "human_approval_pending"
)

// ResponseError carries a failure code and a caller-safe message.
type ResponseError struct {
	Code    string `json:"code" yaml:"code"`
	Message string `json:"message" yaml:"message"`
}

// Response is the result of one submission.
type Response struct {
	Status string `json:"status" yaml:"status"`
	// CommandID is nil only when the request could not be decoded.
	CommandID          *string          `json:"command_id" yaml:"command_id"`
	RiskLevel          string           `json:"risk_level,omitempty" yaml:"risk_level,omitempty"`
	ConstructedCommand *ConcreteCommand `json:"constructed_command,omitempty" yaml:"constructed_command,omitempty"`
	Output             string           `json:"output,omitempty" yaml:"output,omitempty"`
	ExitCode           *int             `json:"exit_code,omitempty" yaml:"exit_code,omitempty"`
	Message            string           `json:"message,omitempty" yaml:"message,omitempty"`
	ApprovalKey        string           `json:"approval_key,omitempty" yaml:"approval_key,omitempty"`
	Error              *ResponseError   `json:"error,omitempty" yaml:"error,omitempty"`
}

// Request is the JSON envelope accepted by SubmitJSON.
type Request struct {
	CommandID  string   `json:"command_id"`
	Parameters []string `json:"parameters"`
}

// Config holds the collaborators of a Gatekeeper.
type Config struct {
	Validator *Validator
	RiskTable *RiskTable
	Ledger    *ledger.Ledger
	Runner    Runner
	KeyScope  ledger.KeyScope
	Logger    *log.Logger
}

// Gatekeeper validates, gates and executes allow-listed commands.
// It holds no state of its own beyond its collaborators.
type Gatekeeper struct {
	validator *Validator
	risk      *RiskTable
	ledger    *ledger.Ledger
	runner    Runner
	keyScope  ledger.KeyScope
	logger    *log.Logger
}

// New creates a Gatekeeper. Validator, RiskTable, Ledger and Runner are required.
func New(cfg Config) (*Gatekeeper, error) {
	switch {
	case cfg.Validator == nil:
		return nil, errors.New("validator is required")
	case cfg.RiskTable == nil:
		return nil, errors.New("risk table is required")
	case cfg.Ledger == nil:
		return nil, errors.New("ledger is required")
	case cfg.Runner == nil:
		return nil, errors.New("runner is required")
	}
	if cfg.KeyScope == "" {
		cfg.KeyScope = ledger.ScopeInvocation
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Gatekeeper{
		validator: cfg.Validator,
		risk:      cfg.RiskTable,
		ledger:    cfg.Ledger,
		runner:    cfg.Runner,
		keyScope:  cfg.KeyScope,
		logger:    cfg.Logger,
	}, nil
}

// Ledger returns the approval ledger used for gating.
func (g *Gatekeeper) Ledger() *ledger.Ledger {
	return g.ledger
}

// RiskTable returns the risk table used for gating.
func (g *Gatekeeper) RiskTable() *RiskTable {
	return g.risk
}

// SubmitJSON decodes a request envelope and submits it.
func (g *Gatekeeper) SubmitJSON(ctx context.Context, raw []byte) *Response {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		g.logger.Warn("rejected request", "code", CodeInvalidJSON)
		return &Response{
			Status: StatusFailure,
			Error:  &ResponseError{Code: CodeInvalidJSON, Message: "Request is not valid JSON."},
		}
	}
	return g.Submit(ctx, req.CommandID, req.Parameters)
}

// Submit validates commandID and params, applies the approval gate and runs
// the command. It always returns a non-nil Response.
func (g *Gatekeeper) Submit(ctx context.Context, commandID string, params []string) *Response {
	id := commandID
	resp := &Response{CommandID: &id}

	cmd, err := g.validator.Validate(commandID, params)
	if err != nil {
		var verr *ValidationError
		if !errors.As(err, &verr) {
			return g.fail(resp, CodeParameterValidationFailed, err.Error())
		}
		switch {
		case verr.Code == CodeInvalidCommandID:
			// The id is caller-controlled text; only its size is logged.
			g.logger.Warn("rejected request", "code", verr.Code, "command_id_len", len(commandID))
		case verr.Param != "":
			g.logger.Warn("rejected request", "command_id", commandID, "code", verr.Code,
				"param", verr.Param, "value_len", verr.ValueLen)
		default:
			g.logger.Warn("rejected request", "command_id", commandID, "code", verr.Code)
		}
		return g.fail(resp, verr.Code, verr.Message)
	}

	resp.RiskLevel = g.risk.RiskLevel(commandID)
	resp.ConstructedCommand = cmd

	if g.risk.RequiresHumanApproval(commandID) {
		key := g.keyScope.Key(commandID, params)
		desc := fmt.Sprintf("Run %s (%s risk): %s", commandID, resp.RiskLevel, cmd.String())

		status, err := g.ledger.RequestApproval(ctx, key, commandID, desc)
		if err != nil {
			g.logger.Error("ledger write failed", "command_id", commandID, "key", key, "err", err)
			return g.fail(resp, CodeLedgerWriteFailed, "Could not record the approval request.")
		}
		resp.ApprovalKey = key

		switch status {
		case ledger.StatusPending:
			return g.pending(resp, key)
		case ledger.StatusDenied:
			g.logger.Info("approval denied", "command_id", commandID, "key", key)
			return g.fail(resp, CodeApprovalDenied, fmt.Sprintf("Command '%s' was denied by a human reviewer.", commandID))
		case ledger.StatusApproved:
			// An approval authorises one run. It is retired before the runner starts.
			consumed, err := g.ledger.Consume(ctx, key)
			if err != nil {
				g.logger.Error("ledger write failed", "command_id", commandID, "key", key, "err", err)
				return g.fail(resp, CodeLedgerWriteFailed, "Could not record use of the approval.")
			}
			if !consumed {
				// A concurrent submission used the approval first.
				if _, err := g.ledger.RequestApproval(ctx, key, commandID, desc); err != nil {
					g.logger.Error("ledger write failed", "command_id", commandID, "key", key, "err", err)
					return g.fail(resp, CodeLedgerWriteFailed, "Could not record the approval request.")
				}
				return g.pending(resp, key)
			}
			g.logger.Info("approval used", "command_id", commandID, "key", key)
		default:
			return g.fail(resp, CodeLedgerWriteFailed, fmt.Sprintf("Unexpected approval status %q.", status))
		}
	}

	return g.execute(ctx, resp, cmd)
}

func (g *Gatekeeper) execute(ctx context.Context, resp *Response, cmd *ConcreteCommand) *Response {
	commandID := *resp.CommandID
	result, err := g.runner.Run(ctx, cmd.Executable, cmd.Args)
	if result != nil {
		resp.Output = result.Output()
		code := result.ExitCode
		resp.ExitCode = &code
	}

	switch {
	case err != nil && (errors.Is(err, ErrExecutionTimeout) || errors.Is(err, context.DeadlineExceeded)):
		g.logger.Warn("execution timed out", "command_id", commandID, "risk_level", resp.RiskLevel)
		return g.fail(resp, CodeExecutionTimeout, fmt.Sprintf("Command '%s' timed out.", commandID))
	case err != nil:
		g.logger.Error("execution failed", "command_id", commandID, "err", err)
		return g.fail(resp, CodeExecutionFailed, fmt.Sprintf("Command '%s' could not be run.", commandID))
	case result.ExitCode != 0:
		g.logger.Warn("command exited non-zero", "command_id", commandID, "exit_code", result.ExitCode)
		return g.fail(resp, CodeExecutionFailed, fmt.Sprintf("Command '%s' exited with status %d.", commandID, result.ExitCode))
	}

	resp.Status = StatusSuccess
	g.logger.Info("command executed", "command_id", commandID, "risk_level", resp.RiskLevel, "status", resp.Status)
	return resp
}

func (g *Gatekeeper) pending(resp *Response, key string) *Response {
	commandID := *resp.CommandID
	resp.Status = StatusHumanApprovalPending
	resp.Message = fmt.Sprintf("Command '%s' is high-risk and requires human approval.", commandID)
	g.logger.Info("approval pending", "command_id", commandID, "risk_level", resp.RiskLevel, "key", key)
	return resp
}

func (g *Gatekeeper) fail(resp *Response, code, msg string) *Response {
	resp.Status = StatusFailure
	resp.Error = &ResponseError{Code: code, Message: msg}
	return resp
}
