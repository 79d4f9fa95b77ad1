package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Dicklesworthstone/gatekeeper/internal/policy"
)

// RiskTable maps command ids to risk levels and each level to its policy.
// It is immutable after construction.
type RiskTable struct {
	mapping      map[string]string
	profiles     map[string]policy.RiskProfile
	defaultLevel string
}

// NewRiskTable builds a table from a risk-profile document.
func NewRiskTable(doc policy.RiskProfileDocument) (*RiskTable, error) {
	t := &RiskTable{
		mapping:      make(map[string]string, len(doc.CommandRiskMapping)),
		profiles:     make(map[string]policy.RiskProfile, len(doc.RiskProfiles)),
		defaultLevel: doc.DefaultRiskLevel,
	}

	for _, p := range doc.RiskProfiles {
		if strings.TrimSpace(p.Level) == "" {
			return nil, fmt.Errorf("risk profile with empty level")
		}
		if _, dup := t.profiles[p.Level]; dup {
			return nil, fmt.Errorf("risk level %q defined more than once", p.Level)
		}
		t.profiles[p.Level] = p
	}

	if t.defaultLevel == "" {
		t.defaultLevel = policy.LevelMedium
	}
	if _, ok := t.profiles[t.defaultLevel]; !ok {
		return nil, fmt.Errorf("default risk level %q has no profile", t.defaultLevel)
	}

	for id, level := range doc.CommandRiskMapping {
		t.mapping[id] = level
	}
	return t, nil
}

// RiskLevel returns the mapped label for commandID, or the default label.
func (t *RiskTable) RiskLevel(commandID string) string {
	if level, ok := t.mapping[commandID]; ok {
		return level
	}
	return t.defaultLevel
}

// Profile returns the profile of the level commandID resolves to.
func (t *RiskTable) Profile(commandID string) (policy.RiskProfile, bool) {
	p, ok := t.profiles[t.RiskLevel(commandID)]
	return p, ok
}

// RequiresHumanApproval reports whether commandID must be approved before it runs.
// A level without a profile does not require approval.
func (t *RiskTable) RequiresHumanApproval(commandID string) bool {
	p, ok := t.Profile(commandID)
	return ok && p.HumanApprovalRequired
}

// CanBypassStricterChecks reports whether commandID may skip stricter checks.
func (t *RiskTable) CanBypassStricterChecks(commandID string) bool {
	p, ok := t.Profile(commandID)
	return ok && p.BypassChecks
}

// DefaultLevel returns the label used for unmapped command ids.
func (t *RiskTable) DefaultLevel() string {
	return t.defaultLevel
}

// Levels returns the defined profiles sorted by level label.
func (t *RiskTable) Levels() []policy.RiskProfile {
	out := make([]policy.RiskProfile, 0, len(t.profiles))
	for _, p := range t.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out
}
