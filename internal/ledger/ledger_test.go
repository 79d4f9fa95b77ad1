package ledger

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

type memStore struct {
	mu      sync.Mutex
	saved   map[string]Record
	saves   int
	failErr error
}

func (m *memStore) Load(ctx context.Context) (map[string]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Record, len(m.saved))
	for k, v := range m.saved {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) Save(ctx context.Context, records map[string]Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.saves++
	m.saved = records
	return nil
}

func fixedClock() func() time.Time {
	t := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func openTestLedger(t *testing.T, store Store) *Ledger {
	t.Helper()
	l, err := Open(context.Background(), store,
		WithClock(fixedClock()),
		WithLogger(log.New(io.Discard)),
	)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return l
}

func TestRequestApproval_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	l := openTestLedger(t, store)

	status, err := l.RequestApproval(ctx, "deps:procure", "deps:procure", "first")
	if err != nil || status != StatusPending {
		t.Fatalf("RequestApproval() = %v, %v", status, err)
	}
	first, _ := l.Get("deps:procure")

	status, err = l.RequestApproval(ctx, "deps:procure", "deps:procure", "second")
	if err != nil || status != StatusPending {
		t.Fatalf("second RequestApproval() = %v, %v", status, err)
	}

	if l.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", l.Len())
	}
	again, _ := l.Get("deps:procure")
	if again.Description != "first" || !again.CreatedAt.Equal(first.CreatedAt) || again.RequestID != first.RequestID {
		t.Fatalf("existing record was modified: %#v", again)
	}
	if store.saves != 1 {
		t.Fatalf("saves = %d, want 1", store.saves)
	}
}

func TestRequestApproval_DoesNotResetDecided(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t, &memStore{})

	if _, err := l.RequestApproval(ctx, "k", "cmd", "d"); err != nil {
		t.Fatalf("RequestApproval() error = %v", err)
	}
	if ok, err := l.Deny(ctx, "k"); !ok || err != nil {
		t.Fatalf("Deny() = %v, %v", ok, err)
	}
	status, err := l.RequestApproval(ctx, "k", "cmd", "d")
	if err != nil || status != StatusDenied {
		t.Fatalf("RequestApproval() after deny = %v, %v", status, err)
	}
}

func TestDecisions_Terminal(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t, &memStore{})

	if ok, _ := l.Approve(ctx, "missing"); ok {
		t.Fatalf("Approve(missing) should fail")
	}
	if got := l.Status("missing"); got != StatusNotFound {
		t.Fatalf("Status(missing) = %q", got)
	}

	if _, err := l.RequestApproval(ctx, "k", "cmd", "d"); err != nil {
		t.Fatalf("RequestApproval() error = %v", err)
	}
	if ok, err := l.Approve(ctx, "k"); !ok || err != nil {
		t.Fatalf("Approve() = %v, %v", ok, err)
	}

	tests := []struct {
		name string
		fn   func(context.Context, string) (bool, error)
	}{
		{"approve again", l.Approve},
		{"deny after approve", l.Deny},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := tc.fn(ctx, "k")
			if ok || err != nil {
				t.Fatalf("got %v, %v; want false, nil", ok, err)
			}
			if l.Status("k") != StatusApproved {
				t.Fatalf("status changed to %q", l.Status("k"))
			}
		})
	}

	rec, _ := l.Get("k")
	if rec.DecidedAt == nil || !rec.DecidedAt.After(rec.CreatedAt) {
		t.Fatalf("DecidedAt not set after CreatedAt: %#v", rec)
	}
}

func TestPersistFailure_RollsBack(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	l := openTestLedger(t, store)

	if _, err := l.RequestApproval(ctx, "a", "cmd", "d"); err != nil {
		t.Fatalf("RequestApproval() error = %v", err)
	}

	store.failErr = errors.New("disk full")

	status, err := l.RequestApproval(ctx, "b", "cmd", "d")
	if !errors.Is(err, ErrPersist) || status != "" {
		t.Fatalf("RequestApproval() = %q, %v; want ErrPersist", status, err)
	}
	if l.Status("b") != StatusNotFound {
		t.Fatalf("failed request left a record behind")
	}

	ok, err := l.Approve(ctx, "a")
	if ok || !errors.Is(err, ErrPersist) {
		t.Fatalf("Approve() = %v, %v; want false, ErrPersist", ok, err)
	}
	if l.Status("a") != StatusPending {
		t.Fatalf("failed approve changed status to %q", l.Status("a"))
	}
	if rec, _ := l.Get("a"); rec.DecidedAt != nil {
		t.Fatalf("failed approve left DecidedAt set")
	}
}

func TestList_FilterAndOrder(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t, &memStore{})

	for _, key := range []string{"c", "a", "b"} {
		if _, err := l.RequestApproval(ctx, key, "cmd-"+key, ""); err != nil {
			t.Fatalf("RequestApproval(%s) error = %v", key, err)
		}
	}
	if _, err := l.Deny(ctx, "a"); err != nil {
		t.Fatalf("Deny() error = %v", err)
	}

	all := l.List(Filter{})
	if len(all) != 3 || all[0].Key != "c" || all[1].Key != "a" || all[2].Key != "b" {
		t.Fatalf("List() order = %v", keys(all))
	}

	pending := l.List(Filter{Status: StatusPending})
	if len(pending) != 2 || pending[0].Key != "c" || pending[1].Key != "b" {
		t.Fatalf("List(pending) = %v", keys(pending))
	}

	byCmd := l.List(Filter{CommandID: "cmd-b"})
	if len(byCmd) != 1 || byCmd[0].Key != "b" {
		t.Fatalf("List(cmd-b) = %v", keys(byCmd))
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "approvals.json")

	l := openTestLedger(t, NewFileStore(path))
	if _, err := l.RequestApproval(ctx, "deps:procure", "deps:procure", "Procure 'x'"); err != nil {
		t.Fatalf("RequestApproval() error = %v", err)
	}
	if _, err := l.RequestApproval(ctx, "system:format", "system:format", "Format disk"); err != nil {
		t.Fatalf("RequestApproval() error = %v", err)
	}
	if _, err := l.Approve(ctx, "deps:procure"); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if _, err := l.Deny(ctx, "system:format"); err != nil {
		t.Fatalf("Deny() error = %v", err)
	}

	reopened := openTestLedger(t, NewFileStore(path))
	for _, want := range l.List(Filter{}) {
		got, ok := reopened.Get(want.Key)
		if !ok {
			t.Fatalf("record %q lost", want.Key)
		}
		if got.Status != want.Status || got.CommandID != want.CommandID || got.RequestID != want.RequestID ||
			got.Description != want.Description || !got.CreatedAt.Equal(want.CreatedAt) ||
			got.DecidedAt == nil || !got.DecidedAt.Equal(*want.DecidedAt) {
			t.Fatalf("record %q did not round-trip:\n got %#v\nwant %#v", want.Key, got, want)
		}
	}

	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), ".ledger-*"))
	if len(matches) != 0 {
		t.Fatalf("temp files left behind: %v", matches)
	}
}

func TestFileStore_LegacyFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "approvals.json")
	legacy := `{
  "deps:procure_new_lib": {
    "status": "approved",
    "timestamp": 1700000000.5,
    "description": "Procure new unverified library"
  }
}`
	if err := os.WriteFile(path, []byte(legacy), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	records, err := NewFileStore(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	rec := records["deps:procure_new_lib"]
	if rec.Status != StatusApproved || rec.CommandID != "deps:procure_new_lib" {
		t.Fatalf("unexpected record: %#v", rec)
	}
	if rec.CreatedAt.Unix() != 1700000000 || rec.CreatedAt.Nanosecond() != 500000000 {
		t.Fatalf("CreatedAt = %v", rec.CreatedAt)
	}
}

func TestFileStore_MissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()

	records, err := NewFileStore(filepath.Join(dir, "none.json")).Load(context.Background())
	if err != nil || len(records) != 0 {
		t.Fatalf("Load(missing) = %v, %v", records, err)
	}

	empty := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(empty, []byte("\n"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if records, err := NewFileStore(empty).Load(context.Background()); err != nil || len(records) != 0 {
		t.Fatalf("Load(empty) = %v, %v", records, err)
	}

	corrupt := filepath.Join(dir, "corrupt.json")
	if err := os.WriteFile(corrupt, []byte(`{"k": {"status": `), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Open(context.Background(), NewFileStore(corrupt)); err == nil {
		t.Fatalf("Open(corrupt) should fail")
	}

	badStatus := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(badStatus, []byte(`{"k": {"status": "maybe", "timestamp": 1}}`), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err = NewFileStore(badStatus).Load(context.Background())
	if err == nil || !strings.Contains(err.Error(), "invalid status") {
		t.Fatalf("Load(bad status) error = %v", err)
	}
}

func TestReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "approvals.json")

	writer := openTestLedger(t, NewFileStore(path))
	reader := openTestLedger(t, NewFileStore(path))

	if _, err := writer.RequestApproval(ctx, "k", "cmd", ""); err != nil {
		t.Fatalf("RequestApproval() error = %v", err)
	}
	if reader.Status("k") != StatusNotFound {
		t.Fatalf("reader saw record before reload")
	}
	if err := reader.Reload(ctx); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if reader.Status("k") != StatusPending {
		t.Fatalf("Status after reload = %q", reader.Status("k"))
	}
}

func TestConcurrentRequests(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	l := openTestLedger(t, store)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.RequestApproval(ctx, "same", "cmd", ""); err != nil {
				t.Errorf("RequestApproval() error = %v", err)
			}
			_ = l.Status("same")
		}()
	}
	wg.Wait()

	if l.Len() != 1 || store.saves != 1 {
		t.Fatalf("Len() = %d, saves = %d; want 1, 1", l.Len(), store.saves)
	}
}

func TestKeyScope(t *testing.T) {
	if s, err := ParseKeyScope(""); err != nil || s != ScopeInvocation {
		t.Fatalf("ParseKeyScope(\"\") = %q, %v", s, err)
	}
	if _, err := ParseKeyScope("global"); err == nil {
		t.Fatalf("ParseKeyScope(global) should fail")
	}

	if got := ScopeCommand.Key("deps:procure", []string{"x"}); got != "deps:procure" {
		t.Fatalf("command scope key = %q", got)
	}

	a := ScopeInvocation.Key("deps:procure", []string{"a b"})
	b := ScopeInvocation.Key("deps:procure", []string{"a", "b"})
	if a == b {
		t.Fatalf("invocation keys collide for different argv")
	}
	if !strings.HasPrefix(a, "deps:procure:") || len(a) != len("deps:procure:")+16 {
		t.Fatalf("invocation key = %q", a)
	}
	if ScopeInvocation.Key("x", nil) != ScopeInvocation.Key("x", []string{}) {
		t.Fatalf("nil and empty params should hash the same")
	}
}

func TestConsume_RetiresApproval(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	l := openTestLedger(t, store)

	if ok, _ := l.Consume(ctx, "k"); ok {
		t.Fatalf("Consume(missing) should fail")
	}
	if _, err := l.RequestApproval(ctx, "k", "cmd", "d"); err != nil {
		t.Fatalf("RequestApproval() error = %v", err)
	}
	if ok, _ := l.Consume(ctx, "k"); ok {
		t.Fatalf("Consume(pending) should fail")
	}
	if ok, err := l.Approve(ctx, "k"); !ok || err != nil {
		t.Fatalf("Approve() = %v, %v", ok, err)
	}
	approved, _ := l.Get("k")

	if ok, err := l.Consume(ctx, "k"); !ok || err != nil {
		t.Fatalf("Consume() = %v, %v", ok, err)
	}
	if ok, _ := l.Consume(ctx, "k"); ok {
		t.Fatalf("second Consume() should fail")
	}
	if got := l.Status("k"); got != StatusNotFound {
		t.Fatalf("Status(k) after consume = %q, want not_found", got)
	}

	retiredKey := RetiredKey("k", approved.RequestID)
	retired, ok := l.Get(retiredKey)
	if !ok || retired.Status != StatusConsumed || retired.ConsumedAt == nil || retired.DecidedAt == nil {
		t.Fatalf("retired record = %#v, %v", retired, ok)
	}
	if ok, _ := l.Approve(ctx, retiredKey); ok {
		t.Fatalf("a consumed record must not be decided again")
	}

	// The key is free for a new request, which starts pending.
	status, err := l.RequestApproval(ctx, "k", "cmd", "again")
	if err != nil || status != StatusPending {
		t.Fatalf("RequestApproval() after consume = %v, %v", status, err)
	}

	reopened := openTestLedger(t, store)
	if got := reopened.Status(retiredKey); got != StatusConsumed {
		t.Fatalf("Status(retired) after reload = %q", got)
	}
	counts := reopened.Counts()
	if counts[StatusConsumed] != 1 || counts[StatusPending] != 1 {
		t.Fatalf("Counts() = %v", counts)
	}
}

func TestConsume_RollsBackOnPersistFailure(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	l := openTestLedger(t, store)

	_, _ = l.RequestApproval(ctx, "k", "cmd", "d")
	_, _ = l.Approve(ctx, "k")

	store.failErr = errors.New("disk full")
	ok, err := l.Consume(ctx, "k")
	if ok || !errors.Is(err, ErrPersist) {
		t.Fatalf("Consume() = %v, %v; want false, ErrPersist", ok, err)
	}
	if got := l.Status("k"); got != StatusApproved {
		t.Fatalf("Status(k) = %q, want approved", got)
	}
	if l.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", l.Len())
	}
}

func TestFileStore_ConsumedRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "approvals.json")
	l := openTestLedger(t, NewFileStore(path))

	_, _ = l.RequestApproval(ctx, "k", "cmd", "d")
	_, _ = l.Approve(ctx, "k")
	rec, _ := l.Get("k")
	if ok, err := l.Consume(ctx, "k"); !ok || err != nil {
		t.Fatalf("Consume() = %v, %v", ok, err)
	}

	reopened := openTestLedger(t, NewFileStore(path))
	got, ok := reopened.Get(RetiredKey("k", rec.RequestID))
	if !ok || got.Status != StatusConsumed || got.ConsumedAt == nil {
		t.Fatalf("retired record after reload = %#v, %v", got, ok)
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"pending", "approved", "denied", "consumed"} {
		if got, err := ParseStatus(s); err != nil || string(got) != s {
			t.Errorf("ParseStatus(%q) = %q, %v", s, got, err)
		}
	}
	for _, s := range []string{"", "not_found", "maybe"} {
		if _, err := ParseStatus(s); err == nil {
			t.Errorf("ParseStatus(%q) should fail", s)
		}
	}
}

func keys(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Key
	}
	return out
}
