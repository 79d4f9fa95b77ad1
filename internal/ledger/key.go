package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// KeyScope selects how approval keys are derived from a request.
type KeyScope string

const (
	// ScopeInvocation keys approvals by command id plus a hash of the parameters, so an
	// approval covers exactly the argument list a human reviewed. This is the default.
	ScopeInvocation KeyScope = "invocation"
	// ScopeCommand keys approvals by command id alone: the next run of the command is
	// authorised whatever its parameters.
	ScopeCommand KeyScope = "command"
)

// ParseKeyScope parses a configured scope name. Empty means ScopeInvocation.
func ParseKeyScope(s string) (KeyScope, error) {
	switch KeyScope(s) {
	case "", ScopeInvocation:
		return ScopeInvocation, nil
	case ScopeCommand:
		return ScopeCommand, nil
	default:
		return "", fmt.Errorf("invalid key scope %q (must be command or invocation)", s)
	}
}

// Key returns the approval key for a request.
func (s KeyScope) Key(commandID string, params []string) string {
	if s != ScopeInvocation {
		return commandID
	}
	return commandID + ":" + ParamsHash(params)
}

// RetiredKey is the key a consumed approval is kept under.
func RetiredKey(key, requestID string) string {
	return key + "@" + requestID
}

// ParamsHash returns a short stable hash of an ordered parameter list.
func ParamsHash(params []string) string {
	if params == nil {
		params = []string{}
	}
	// JSON keeps element boundaries, so ["a b"] and ["a","b"] differ.
	data, _ := json.Marshal(params)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}
