package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/Dicklesworthstone/gatekeeper/internal/core"
	"github.com/Dicklesworthstone/gatekeeper/internal/testutil"
)

func TestPolicyShow_JSON(t *testing.T) {
	h := newTestProject(t, "")

	stdout, _, err := runCLI(h, "policy", "show", "-j")
	testutil.RequireNoError(t, err, "policy show")

	var export core.PolicyExport
	if err := json.Unmarshal([]byte(stdout), &export); err != nil {
		t.Fatalf("decode policy export: %v", err)
	}
	testutil.RequireLen(t, export.Commands, 6, "commands")
	testutil.RequireEqual(t, "low", export.Default, "default level")
	if export.SHA256 == "" {
		t.Error("expected policy hash")
	}

	var guarded *core.CommandExport
	for i := range export.Commands {
		if export.Commands[i].ID == "echo:guarded" {
			guarded = &export.Commands[i]
		}
	}
	if guarded == nil || !guarded.HumanApprovalRequired || guarded.RiskLevel != "high" {
		t.Fatalf("echo:guarded export = %+v", guarded)
	}
}

func TestPolicy_DefaultsToShow(t *testing.T) {
	h := newTestProject(t, "")

	_, stderr, err := runCLI(h, "policy")
	testutil.RequireNoError(t, err, "policy")
	for _, want := range []string{"Allow-list", "echo:greet", "echo hello {0}", "who"} {
		if !strings.Contains(stderr, want) {
			t.Errorf("policy text output missing %q: %q", want, stderr)
		}
	}
}

func TestPolicyShow_BuiltInPolicy(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GATEKEEPER_OUTPUT", "")
	h := testutil.NewHarness(t)

	stdout, _, err := runCLI(h, "policy", "show", "-j")
	testutil.RequireNoError(t, err, "policy show")
	for _, id := range []string{"RUN_ALL_TESTS", "RUN_SPECIFIC_TEST", "LINT_DIRECTORY", "deps:list", "deps:install", "deps:procure"} {
		if !strings.Contains(stdout, `"id": "`+id+`"`) {
			t.Errorf("built-in policy missing %q", id)
		}
	}
}

func TestPolicyRisk(t *testing.T) {
	h := newTestProject(t, "")

	tests := []struct {
		id           string
		listed       bool
		level        string
		approval     bool
		bypassChecks bool
	}{
		{"echo:guarded", true, "high", true, false},
		{"echo:greet", true, "low", false, true},
		// Unknown ids report the default level; submissions are still rejected.
		{"rm:everything", false, "low", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			stdout, _, err := runCLI(h, "policy", "risk", tt.id, "-j")
			testutil.RequireNoError(t, err, "policy risk")
			var got riskReport
			if err := json.Unmarshal([]byte(stdout), &got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			want := riskReport{
				CommandID:             tt.id,
				AllowListed:           tt.listed,
				RiskLevel:             tt.level,
				HumanApprovalRequired: tt.approval,
				BypassChecks:          tt.bypassChecks,
			}
			testutil.RequireEqual(t, want, got, "risk report")
		})
	}
}

func TestPolicyRisk_Text(t *testing.T) {
	h := newTestProject(t, "")

	_, stderr, err := runCLI(h, "policy", "risk", "nope")
	testutil.RequireNoError(t, err, "policy risk")
	if !strings.Contains(stderr, "not allow-listed") {
		t.Errorf("expected not allow-listed notice, got %q", stderr)
	}
}

func TestPolicyCheck(t *testing.T) {
	h := newTestProject(t, "")

	stdout, _, err := runCLI(h, "policy", "check", "echo:greet", "zed", "-j")
	testutil.RequireNoError(t, err, "policy check")
	resp := decodeJSON(t, stdout)
	cmd, ok := resp["constructed_command"].(map[string]any)
	if !ok {
		t.Fatalf("missing constructed_command: %v", resp)
	}
	testutil.RequireEqual(t, "echo", cmd["executable"], "executable")

	stdout, _, err = runCLI(h, "policy", "check", "echo:guarded", "-j")
	testutil.RequireNoError(t, err, "policy check guarded")
	if msg, _ := decodeJSON(t, stdout)["message"].(string); !strings.Contains(msg, "human approval") {
		t.Errorf("expected approval note, got %q", msg)
	}

	// Checking never touches the ledger.
	stdout, _, err = runCLI(h, "ledger", "-j")
	testutil.RequireNoError(t, err, "ledger")
	testutil.RequireEqual(t, "[]", strings.TrimSpace(stdout), "ledger after check")

	stdout, _, err = runCLI(h, "policy", "check", "echo:greet", "Bad Value", "-j")
	testutil.RequireEqual(t, ExitFailure, exitCodeOf(err), "exit code")
	testutil.RequireEqual(t, core.CodeParameterValidationFailed, errorCode(t, decodeJSON(t, stdout)), "error code")
}

func TestPolicy_InvalidAllowList(t *testing.T) {
	h := newTestProject(t, "")
	h.WriteFile("allow.json", []byte(`{"commands": {"bad": {"command": "echo", "args": ["{3}"], "param_schema": []}}}`), 0600)

	if _, _, err := runCLI(h, "policy", "show"); err == nil || !strings.Contains(err.Error(), "allow-list") {
		t.Fatalf("expected allow-list error, got %v", err)
	}
}
