package policy

// Built-in policy used when no allow-list or risk-profile file is configured.

// Risk level labels used by the built-in profiles.
const (
	LevelLow    = "low"
	LevelMedium = "medium"
	LevelHigh   = "high"
)

// DefaultAllowList returns the built-in allow-list.
func DefaultAllowList() AllowListDocument {
	return AllowListDocument{
		Commands: map[string]CommandDefinition{
			"RUN_ALL_TESTS": {
				Command:     "npm",
				Args:        []string{"test"},
				ParamSchema: []ParamSpec{},
				Description: "Run the full test suite",
			},
			"RUN_SPECIFIC_TEST": {
				Command: "npm",
				Args:    []string{"test", "--", "{0}"},
				ParamSchema: []ParamSpec{
					{Name: "filePath", Regex: `^[a-zA-Z0-9_\-\/\.]+\.test\.js$`},
				},
				Description: "Run a single test file",
			},
			"LINT_DIRECTORY": {
				Command: "npx",
				Args:    []string{"eslint", "{0}"},
				ParamSchema: []ParamSpec{
					{Name: "directoryPath", Regex: `^[a-zA-Z0-9_\-\/\*]+$`},
				},
				Description: "Lint a directory",
			},
			"deps:list": {
				Command:     "npm",
				Args:        []string{"ls", "--depth=0"},
				ParamSchema: []ParamSpec{},
				Description: "List installed dependencies",
			},
			"deps:install": {
				Command: "npm",
				Args:    []string{"install", "--save-exact", "{0}"},
				ParamSchema: []ParamSpec{
					{Name: "package", Regex: `^(@[a-z0-9][a-z0-9._-]*\/)?[a-z0-9][a-z0-9._-]*(@[0-9A-Za-z][0-9A-Za-z.+-]*)?$`},
				},
				Description: "Install a vetted package",
			},
			"deps:procure": {
				Command: "npm",
				Args:    []string{"install", "{0}"},
				ParamSchema: []ParamSpec{
					{Name: "package", Regex: `^(@[a-z0-9][a-z0-9._-]*\/)?[a-z0-9][a-z0-9._-]*$`},
				},
				Description: "Procure a new, unverified dependency",
			},
		},
	}
}

// DefaultRiskProfiles returns the built-in risk profiles.
func DefaultRiskProfiles() RiskProfileDocument {
	return RiskProfileDocument{
		CommandRiskMapping: map[string]string{
			"deps:list":    LevelLow,
			"deps:install": LevelMedium,
			"deps:procure": LevelHigh,
		},
		DefaultRiskLevel: LevelMedium,
		RiskProfiles: []RiskProfile{
			{Level: LevelLow, HumanApprovalRequired: false, BypassChecks: true},
			{Level: LevelMedium, HumanApprovalRequired: false, BypassChecks: false},
			{Level: LevelHigh, HumanApprovalRequired: true, BypassChecks: false},
		},
	}
}
