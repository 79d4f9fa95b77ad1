package config

// Built-in defaults for gatekeeper configuration.

const (
	// DefaultLedgerFile is the ledger path used by the file backend, relative to the project.
	DefaultLedgerFile = ".gatekeeper/approvals.json"
	// DefaultLedgerDB is the ledger path used by the sqlite backend, relative to the project.
	DefaultLedgerDB = ".gatekeeper/state.db"
)

// DefaultConfig returns the built-in default configuration.
func DefaultConfig() Config {
	return Config{
		Policy: PolicyConfig{
			AllowListPath:    "",
			RiskProfilesPath: "",
		},
		Ledger: LedgerConfig{
			Backend:  "file",
			Path:     "",
			KeyScope: "invocation",
		},
		Execution: ExecutionConfig{
			TimeoutSecs: 300,
			WorkDir:     "",
			LogDir:      "",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
		Output: OutputConfig{
			Format: "text",
			Color:  true,
		},
	}
}

// LedgerPath returns the configured ledger path, or the backend default.
func (c LedgerConfig) LedgerPath() string {
	if c.Path != "" {
		return c.Path
	}
	if c.Backend == "sqlite" {
		return DefaultLedgerDB
	}
	return DefaultLedgerFile
}
