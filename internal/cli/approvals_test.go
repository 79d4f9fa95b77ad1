package cli

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"golang.org/x/term"

	"github.com/Dicklesworthstone/gatekeeper/internal/ledger"
	"github.com/Dicklesworthstone/gatekeeper/internal/testutil"
	"github.com/Dicklesworthstone/gatekeeper/internal/tui"
)

func listRecords(t *testing.T, h *testutil.Harness, args ...string) []ledger.Record {
	t.Helper()
	stdout, _, err := runCLI(h, append(args, "-j")...)
	testutil.RequireNoError(t, err, strings.Join(args, " "))
	var records []ledger.Record
	if err := json.Unmarshal([]byte(stdout), &records); err != nil {
		t.Fatalf("decode records %q: %v", stdout, err)
	}
	return records
}

func TestDecision_UnknownKey(t *testing.T) {
	h := newTestProject(t, "")

	for _, verb := range []string{"approve", "deny"} {
		_, _, err := runCLI(h, verb, "never-requested")
		if err == nil || !strings.Contains(err.Error(), `no approval record for key "never-requested"`) {
			t.Errorf("%s unknown key: got %v", verb, err)
		}
	}
}

func TestDecision_RequiresKey(t *testing.T) {
	h := newTestProject(t, "")
	if _, _, err := runCLI(h, "approve"); err == nil {
		t.Fatal("expected error without a key")
	}
}

func TestStatus(t *testing.T) {
	h := newTestProject(t, "")

	stdout, _, err := runCLI(h, "status", guardedKey, "-j")
	testutil.RequireNoError(t, err, "status before request")
	testutil.RequireEqual(t, "not_found", decodeJSON(t, stdout)["status"], "status before request")

	_, _, _ = runCLI(h, "submit", "echo:guarded")

	stdout, _, err = runCLI(h, "status", guardedKey, "-j")
	testutil.RequireNoError(t, err, "status")
	rec := decodeJSON(t, stdout)
	testutil.RequireEqual(t, "pending", rec["status"], "status")
	testutil.RequireEqual(t, "echo:guarded", rec["command_id"], "command_id")
	if id, _ := rec["request_id"].(string); id == "" {
		t.Error("expected a request id")
	}
	if _, decided := rec["decided_at"]; decided {
		t.Error("pending record must not have decided_at")
	}

	_, stderr, err := runCLI(h, "status", guardedKey)
	testutil.RequireNoError(t, err, "status text")
	if !strings.Contains(stderr, "[PENDING]") || !strings.Contains(stderr, "Run echo:guarded (high risk): echo guarded") {
		t.Errorf("status text = %q", stderr)
	}
}

func TestLedger_ListAndFilter(t *testing.T) {
	h := newTestProject(t, "")

	_, _, _ = runCLI(h, "submit", "echo:guarded")
	_, _, _ = runCLI(h, "deps", "procure", "left-pad")
	if _, _, err := runCLI(h, "deny", procureKey("left-pad")); err != nil {
		t.Fatalf("deny: %v", err)
	}

	all := listRecords(t, h, "ledger")
	testutil.RequireLen(t, all, 2, "all records")

	denied := listRecords(t, h, "ledger", "--status", "denied")
	testutil.RequireLen(t, denied, 1, "denied records")
	testutil.RequireEqual(t, procureKey("left-pad"), denied[0].Key, "denied key")
	if denied[0].DecidedAt == nil {
		t.Error("denied record should have decided_at")
	}

	byCommand := listRecords(t, h, "ledger", "--command", "echo:guarded")
	testutil.RequireLen(t, byCommand, 1, "records for echo:guarded")

	pending := listRecords(t, h, "pending")
	testutil.RequireLen(t, pending, 1, "pending records")
	testutil.RequireEqual(t, guardedKey, pending[0].Key, "pending key")

	_, stderr, err := runCLI(h, "ledger")
	testutil.RequireNoError(t, err, "ledger text")
	if !strings.Contains(stderr, "1 pending, 0 approved, 1 denied, 0 consumed") {
		t.Errorf("ledger summary missing: %q", stderr)
	}

	if _, _, err := runCLI(h, "ledger", "--status", "maybe"); err == nil {
		t.Fatal("expected error for invalid --status")
	}
}

func TestLedger_TextTable(t *testing.T) {
	h := newTestProject(t, "")

	_, stderr, err := runCLI(h, "pending")
	testutil.RequireNoError(t, err, "pending")
	if !strings.Contains(stderr, "no approval records") {
		t.Errorf("empty pending text = %q", stderr)
	}

	_, _, _ = runCLI(h, "submit", "echo:guarded")
	_, stderr, err = runCLI(h, "pending")
	testutil.RequireNoError(t, err, "pending")
	for _, want := range []string{"KEY", "STATUS", "echo:guarded", "[PENDING]"} {
		if !strings.Contains(stderr, want) {
			t.Errorf("pending table missing %q: %q", want, stderr)
		}
	}
}

func TestLedger_CorruptFileIsAnError(t *testing.T) {
	h := newTestProject(t, "")
	h.WriteFile(".gatekeeper/approvals.json", []byte("{not json"), 0600)

	if _, _, err := runCLI(h, "pending"); err == nil {
		t.Fatal("expected corrupt ledger to fail loudly")
	}
	// The corrupt file is left for the operator to inspect.
	if _, _, err := runCLI(h, "submit", "echo:greet", "x"); err == nil {
		t.Fatal("expected submit to fail with a corrupt ledger")
	}
}

func TestReview_RequiresTerminal(t *testing.T) {
	if term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd())) {
		t.Skip("attached to a terminal")
	}
	h := newTestProject(t, "")

	_, _, err := runCLI(h, "review")
	if !errors.Is(err, tui.ErrNotInteractive) {
		t.Fatalf("expected ErrNotInteractive, got %v", err)
	}
	if !strings.Contains(err.Error(), "gatekeeper pending") {
		t.Errorf("expected non-interactive hint, got %v", err)
	}
}
