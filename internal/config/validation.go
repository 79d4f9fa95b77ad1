package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for semantic errors.
func Validate(cfg Config) error {
	var errs []string

	if !oneOf(cfg.Ledger.Backend, "file", "sqlite") {
		errs = append(errs, "ledger.backend must be one of file|sqlite")
	}
	if !oneOf(cfg.Ledger.KeyScope, "command", "invocation") {
		errs = append(errs, "ledger.key_scope must be one of command|invocation")
	}

	if cfg.Execution.TimeoutSecs <= 0 {
		errs = append(errs, "execution.timeout_seconds must be > 0")
	}

	if !oneOf(strings.ToLower(cfg.Logging.Level), "debug", "info", "warn", "warning", "error") {
		errs = append(errs, "logging.level must be one of debug|info|warn|error")
	}

	if !oneOf(cfg.Output.Format, "text", "json", "yaml") {
		errs = append(errs, "output.format must be one of text|json|yaml")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func oneOf(val string, options ...string) bool {
	for _, opt := range options {
		if val == opt {
			return true
		}
	}
	return false
}
