package policy

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadAllowList_JSONWrapped(t *testing.T) {
	path := writeFile(t, "allow.json", `{
  "commands": {
    "LINT_DIRECTORY": {
      "command": "npx",
      "args": ["eslint", "{0}"],
      "param_schema": [{"name": "directoryPath", "regex": "^[a-zA-Z0-9_\\-\\/\\*]+$"}]
    }
  }
}`)
	doc, err := LoadAllowList(path)
	if err != nil {
		t.Fatalf("LoadAllowList: %v", err)
	}
	def, ok := doc.Commands["LINT_DIRECTORY"]
	if !ok {
		t.Fatalf("LINT_DIRECTORY missing: %#v", doc.Commands)
	}
	if def.Command != "npx" || !reflect.DeepEqual(def.Args, []string{"eslint", "{0}"}) {
		t.Fatalf("unexpected definition: %#v", def)
	}
	if len(def.ParamSchema) != 1 || def.ParamSchema[0].Name != "directoryPath" {
		t.Fatalf("unexpected schema: %#v", def.ParamSchema)
	}
}

func TestLoadAllowList_JSONBareMap(t *testing.T) {
	path := writeFile(t, "allow.json", `{
  "RUN_ALL_TESTS": {"command": "npm", "args": ["test"], "param_schema": []}
}`)
	doc, err := LoadAllowList(path)
	if err != nil {
		t.Fatalf("LoadAllowList: %v", err)
	}
	if doc.Commands["RUN_ALL_TESTS"].Command != "npm" {
		t.Fatalf("bare map not decoded: %#v", doc.Commands)
	}
}

func TestLoadAllowList_YAML(t *testing.T) {
	path := writeFile(t, "allow.yaml", `commands:
  deps:list:
    command: npm
    args: [ls]
    param_schema: []
`)
	doc, err := LoadAllowList(path)
	if err != nil {
		t.Fatalf("LoadAllowList: %v", err)
	}
	if got := doc.IDs(); !reflect.DeepEqual(got, []string{"deps:list"}) {
		t.Fatalf("IDs()=%v", got)
	}
}

func TestLoadAllowList_TOMLCommandLine(t *testing.T) {
	path := writeFile(t, "allow.toml", `[commands."RUN_SPECIFIC_TEST"]
command_line = "npm test -- '{0}'"

[[commands."RUN_SPECIFIC_TEST".param_schema]]
name = "filePath"
regex = '^[a-z/]+\.test\.js$'
`)
	doc, err := LoadAllowList(path)
	if err != nil {
		t.Fatalf("LoadAllowList: %v", err)
	}
	def, err := doc.Commands["RUN_SPECIFIC_TEST"].Normalize()
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if def.Command != "npm" || !reflect.DeepEqual(def.Args, []string{"test", "--", "{0}"}) {
		t.Fatalf("unexpected normalized definition: %#v", def)
	}
}

func TestLoadAllowList_Errors(t *testing.T) {
	if _, err := LoadAllowList(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if _, err := LoadAllowList(writeFile(t, "bad.json", `{"commands": [`)); err == nil {
		t.Fatalf("expected error for invalid json")
	}
	if _, err := LoadAllowList(writeFile(t, "empty.json", `{}`)); err == nil {
		t.Fatalf("expected error for empty allow-list")
	}
}

func TestNormalize(t *testing.T) {
	def := CommandDefinition{Command: "npm", CommandLine: "npm test"}
	if _, err := def.Normalize(); err == nil {
		t.Fatalf("expected error when command_line is combined with command")
	}

	def = CommandDefinition{CommandLine: "   "}
	if _, err := def.Normalize(); err == nil {
		t.Fatalf("expected error for blank command_line")
	}

	def = CommandDefinition{CommandLine: `npx eslint "src dir"`}
	got, err := def.Normalize()
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got.Command != "npx" || !reflect.DeepEqual(got.Args, []string{"eslint", "src dir"}) {
		t.Fatalf("unexpected: %#v", got)
	}
}

func TestLoadRiskProfiles(t *testing.T) {
	path := writeFile(t, "risk.json", `{
  "commandRiskMapping": {"deps:procure": "high"},
  "defaultRiskLevel": "medium",
  "riskProfiles": [
    {"level": "medium", "humanApprovalRequired": false, "bypassChecks": false},
    {"level": "high", "humanApprovalRequired": true, "bypassChecks": false}
  ]
}`)
	doc, err := LoadRiskProfiles(path)
	if err != nil {
		t.Fatalf("LoadRiskProfiles: %v", err)
	}
	if doc.DefaultRiskLevel != "medium" || doc.CommandRiskMapping["deps:procure"] != "high" {
		t.Fatalf("unexpected doc: %#v", doc)
	}
	if len(doc.RiskProfiles) != 2 || !doc.RiskProfiles[1].HumanApprovalRequired {
		t.Fatalf("unexpected profiles: %#v", doc.RiskProfiles)
	}
}

func TestLoadOrDefault(t *testing.T) {
	allow, risk, err := LoadOrDefault("", "")
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if !reflect.DeepEqual(allow, DefaultAllowList()) || !reflect.DeepEqual(risk, DefaultRiskProfiles()) {
		t.Fatalf("expected defaults")
	}

	if _, _, err := LoadOrDefault("", filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing risk profile file")
	}
}
