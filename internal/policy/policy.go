// Package policy defines the allow-list and risk-profile documents consumed by the gatekeeper core.
//
// Documents are plain data: they are decoded from JSON, YAML or TOML files (or taken from the
// built-in defaults) and then compiled by internal/core into immutable runtime structures.
package policy

import (
	"fmt"
	"sort"

	shellwords "github.com/mattn/go-shellwords"
)

// ParamSpec declares one positional parameter of an allow-listed command.
type ParamSpec struct {
	Name  string `json:"name" yaml:"name" toml:"name"`
	Regex string `json:"regex" yaml:"regex" toml:"regex"`
}

// CommandDefinition is the declared shape of one allow-listed command.
//
// Either Command+Args or CommandLine may be set. CommandLine is split with shell word rules
// into the base command and its argument templates.
type CommandDefinition struct {
	Command     string      `json:"command,omitempty" yaml:"command,omitempty" toml:"command,omitempty"`
	Args        []string    `json:"args,omitempty" yaml:"args,omitempty" toml:"args,omitempty"`
	CommandLine string      `json:"command_line,omitempty" yaml:"command_line,omitempty" toml:"command_line,omitempty"`
	ParamSchema []ParamSpec `json:"param_schema" yaml:"param_schema" toml:"param_schema"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
}

// AllowListDocument maps command ids to their definitions.
type AllowListDocument struct {
	Commands map[string]CommandDefinition `json:"commands" yaml:"commands" toml:"commands"`
}

// RiskProfile is the policy attached to one risk level label.
type RiskProfile struct {
	Level                 string `json:"level" yaml:"level" toml:"level"`
	HumanApprovalRequired bool   `json:"humanApprovalRequired" yaml:"humanApprovalRequired" toml:"humanApprovalRequired"`
	BypassChecks          bool   `json:"bypassChecks" yaml:"bypassChecks" toml:"bypassChecks"`
}

// RiskProfileDocument maps command ids to risk levels and defines each level.
type RiskProfileDocument struct {
	CommandRiskMapping map[string]string `json:"commandRiskMapping" yaml:"commandRiskMapping" toml:"commandRiskMapping"`
	DefaultRiskLevel   string            `json:"defaultRiskLevel" yaml:"defaultRiskLevel" toml:"defaultRiskLevel"`
	RiskProfiles       []RiskProfile     `json:"riskProfiles" yaml:"riskProfiles" toml:"riskProfiles"`
}

// Normalize resolves CommandLine into Command and Args.
func (d CommandDefinition) Normalize() (CommandDefinition, error) {
	if d.CommandLine == "" {
		return d, nil
	}
	if d.Command != "" || len(d.Args) > 0 {
		return d, fmt.Errorf("command_line cannot be combined with command/args")
	}
	argv, err := ParseCommandLine(d.CommandLine)
	if err != nil {
		return d, fmt.Errorf("parsing command_line: %w", err)
	}
	if len(argv) == 0 {
		return d, fmt.Errorf("command_line is empty")
	}
	d.Command = argv[0]
	d.Args = argv[1:]
	d.CommandLine = ""
	return d, nil
}

// ParseCommandLine splits a command line into argv using shell word rules.
// Environment expansion and backticks are disabled.
func ParseCommandLine(line string) ([]string, error) {
	parser := shellwords.NewParser()
	parser.ParseEnv = false
	parser.ParseBacktick = false
	return parser.Parse(line)
}

// IDs returns the command ids in sorted order.
func (d AllowListDocument) IDs() []string {
	ids := make([]string, 0, len(d.Commands))
	for id := range d.Commands {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
