package cli

import (
	"fmt"

	"github.com/Dicklesworthstone/gatekeeper/internal/core"
)

// Process exit codes for commands that submit to the gatekeeper.
const (
	ExitFailure = 1
	ExitPending = 2
)

// ExitCodeError asks main to exit with Code without printing anything further.
// The command has already reported the outcome.
type ExitCodeError struct {
	Code int
}

// NewExitCodeError returns an ExitCodeError for code.
func NewExitCodeError(code int) *ExitCodeError {
	return &ExitCodeError{Code: code}
}

func (e *ExitCodeError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// exitForResponse maps a response status to the command's error result.
func exitForResponse(resp *core.Response) error {
	switch resp.Status {
	case core.StatusSuccess:
		return nil
	case core.StatusHumanApprovalPending:
		return NewExitCodeError(ExitPending)
	default:
		return NewExitCodeError(ExitFailure)
	}
}
