// Package config implements hierarchical configuration for gatekeeper.
// Precedence: defaults < user (~/.gatekeeper/config.toml) < project (.gatekeeper/config.toml) < env (GATEKEEPER_*) < flags.
package config

// Config is the top-level configuration structure.
type Config struct {
	Policy    PolicyConfig    `toml:"policy" mapstructure:"policy" json:"policy" yaml:"policy"`
	Ledger    LedgerConfig    `toml:"ledger" mapstructure:"ledger" json:"ledger" yaml:"ledger"`
	Execution ExecutionConfig `toml:"execution" mapstructure:"execution" json:"execution" yaml:"execution"`
	Logging   LoggingConfig   `toml:"logging" mapstructure:"logging" json:"logging" yaml:"logging"`
	Output    OutputConfig    `toml:"output" mapstructure:"output" json:"output" yaml:"output"`
}

// PolicyConfig locates the allow-list and risk-profile documents.
// Empty paths select the built-in policy.
type PolicyConfig struct {
	AllowListPath    string `toml:"allowlist_path" mapstructure:"allowlist_path" json:"allowlist_path" yaml:"allowlist_path"`
	RiskProfilesPath string `toml:"risk_profiles_path" mapstructure:"risk_profiles_path" json:"risk_profiles_path" yaml:"risk_profiles_path"`
}

// LedgerConfig selects the approval ledger backend.
type LedgerConfig struct {
	Backend  string `toml:"backend" mapstructure:"backend" json:"backend" yaml:"backend"` // file | sqlite
	Path     string `toml:"path" mapstructure:"path" json:"path" yaml:"path"`
	KeyScope string `toml:"key_scope" mapstructure:"key_scope" json:"key_scope" yaml:"key_scope"` // invocation | command
}

// ExecutionConfig controls how approved commands are run.
type ExecutionConfig struct {
	TimeoutSecs int    `toml:"timeout_seconds" mapstructure:"timeout_seconds" json:"timeout_seconds" yaml:"timeout_seconds"`
	WorkDir     string `toml:"work_dir" mapstructure:"work_dir" json:"work_dir" yaml:"work_dir"`
	LogDir      string `toml:"log_dir" mapstructure:"log_dir" json:"log_dir" yaml:"log_dir"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level string `toml:"level" mapstructure:"level" json:"level" yaml:"level"` // debug | info | warn | error
	File  string `toml:"file" mapstructure:"file" json:"file" yaml:"file"`
}

// OutputConfig holds CLI presentation defaults.
type OutputConfig struct {
	Format string `toml:"format" mapstructure:"format" json:"format" yaml:"format"` // text | json | yaml
	Color  bool   `toml:"color" mapstructure:"color" json:"color" yaml:"color"`
}
