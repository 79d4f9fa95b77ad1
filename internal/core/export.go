package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// PolicyExport is a read-only view of the effective allow-list and risk policy.
type PolicyExport struct {
	Version     string          `json:"version" yaml:"version"`
	GeneratedAt time.Time       `json:"generated_at" yaml:"generated_at"`
	SHA256      string          `json:"sha256" yaml:"sha256"`
	Default     string          `json:"default_risk_level" yaml:"default_risk_level"`
	Levels      []LevelExport   `json:"risk_profiles" yaml:"risk_profiles"`
	Commands    []CommandExport `json:"commands" yaml:"commands"`
}

// LevelExport describes one risk profile.
type LevelExport struct {
	Level                 string `json:"level" yaml:"level"`
	HumanApprovalRequired bool   `json:"human_approval_required" yaml:"human_approval_required"`
	BypassChecks          bool   `json:"bypass_checks" yaml:"bypass_checks"`
}

// CommandExport describes one allow-listed command and how it is gated.
type CommandExport struct {
	ID                    string        `json:"id" yaml:"id"`
	Executable            string        `json:"executable" yaml:"executable"`
	Args                  []string      `json:"args" yaml:"args"`
	Params                []ParamExport `json:"params" yaml:"params"`
	Description           string        `json:"description,omitempty" yaml:"description,omitempty"`
	RiskLevel             string        `json:"risk_level" yaml:"risk_level"`
	HumanApprovalRequired bool          `json:"human_approval_required" yaml:"human_approval_required"`
	BypassChecks          bool          `json:"bypass_checks" yaml:"bypass_checks"`
}

// ParamExport describes one positional parameter.
type ParamExport struct {
	Name    string `json:"name" yaml:"name"`
	Pattern string `json:"regex" yaml:"regex"`
}

// ExportPolicy builds a deterministic export of reg and risk.
func ExportPolicy(reg *Registry, risk *RiskTable) *PolicyExport {
	export := &PolicyExport{
		Version:     "1",
		GeneratedAt: time.Now().UTC(),
		Default:     risk.DefaultLevel(),
	}

	for _, p := range risk.Levels() {
		export.Levels = append(export.Levels, LevelExport{
			Level:                 p.Level,
			HumanApprovalRequired: p.HumanApprovalRequired,
			BypassChecks:          p.BypassChecks,
		})
	}

	for _, id := range reg.IDs() {
		tmpl, _ := reg.Lookup(id)
		cmd := CommandExport{
			ID:                    id,
			Executable:            tmpl.Base,
			Args:                  make([]string, 0, len(tmpl.Args)),
			Params:                make([]ParamExport, 0, len(tmpl.Params)),
			Description:           tmpl.Description,
			RiskLevel:             risk.RiskLevel(id),
			HumanApprovalRequired: risk.RequiresHumanApproval(id),
			BypassChecks:          risk.CanBypassStricterChecks(id),
		}
		for _, a := range tmpl.Args {
			cmd.Args = append(cmd.Args, a.String())
		}
		for _, p := range tmpl.Params {
			cmd.Params = append(cmd.Params, ParamExport{Name: p.Name, Pattern: p.Pattern})
		}
		export.Commands = append(export.Commands, cmd)
	}

	export.SHA256 = export.computeHash()
	return export
}

// computeHash hashes everything except GeneratedAt, so two exports of the same
// policy always agree.
func (e *PolicyExport) computeHash() string {
	h := sha256.New()
	fmt.Fprintf(h, "default:%s\x00", e.Default)
	for _, l := range e.Levels {
		fmt.Fprintf(h, "level:%s:%t:%t\x00", l.Level, l.HumanApprovalRequired, l.BypassChecks)
	}
	for _, c := range e.Commands {
		fmt.Fprintf(h, "cmd:%s:%s:%s\x00", c.ID, c.Executable, c.RiskLevel)
		for _, a := range c.Args {
			fmt.Fprintf(h, "arg:%q\x00", a)
		}
		for _, p := range c.Params {
			fmt.Fprintf(h, "param:%s:%q\x00", p.Name, p.Pattern)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
