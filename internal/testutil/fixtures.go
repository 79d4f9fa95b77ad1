package testutil

import (
	"context"
	"maps"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Dicklesworthstone/gatekeeper/internal/core"
	"github.com/Dicklesworthstone/gatekeeper/internal/ledger"
	"github.com/Dicklesworthstone/gatekeeper/internal/policy"
)

// MemStore is an in-memory ledger.Store. Set FailErr to make Save fail.
type MemStore struct {
	mu      sync.Mutex
	records map[string]ledger.Record
	saves   int

	FailErr error
}

var _ ledger.Store = (*MemStore)(nil)

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{records: map[string]ledger.Record{}}
}

// Load returns a copy of the stored records.
func (s *MemStore) Load(context.Context) (map[string]ledger.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.records), nil
}

// Save replaces the stored records unless FailErr is set.
func (s *MemStore) Save(_ context.Context, records map[string]ledger.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailErr != nil {
		return s.FailErr
	}
	s.records = maps.Clone(records)
	s.saves++
	return nil
}

// Saves returns the number of successful saves.
func (s *MemStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// NewTestLedger opens a ledger over store with a test logger.
// A nil store uses a fresh MemStore.
func NewTestLedger(t *testing.T, store ledger.Store) *ledger.Ledger {
	t.Helper()
	if store == nil {
		store = NewMemStore()
	}
	l, err := ledger.Open(context.Background(), store, ledger.WithLogger(TestLogger(t)))
	RequireNoError(t, err, "open ledger")
	return l
}

// RecordOption customizes a test approval request.
type RecordOption func(*recordSpec)

type recordSpec struct {
	commandID   string
	description string
	decide      ledger.Status
}

// WithCommandID sets the command id; the default is the key.
func WithCommandID(id string) RecordOption {
	return func(r *recordSpec) { r.commandID = id }
}

// WithDescription sets the record description.
func WithDescription(desc string) RecordOption {
	return func(r *recordSpec) { r.description = desc }
}

// Decided approves or denies the record after creating it.
func Decided(status ledger.Status) RecordOption {
	return func(r *recordSpec) { r.decide = status }
}

// MakeRecord requests approval for key in l and applies opts.
func MakeRecord(t *testing.T, l *ledger.Ledger, key string, opts ...RecordOption) ledger.Record {
	t.Helper()

	spec := &recordSpec{commandID: key, description: "test " + key}
	for _, opt := range opts {
		opt(spec)
	}

	ctx := context.Background()
	_, err := l.RequestApproval(ctx, key, spec.commandID, spec.description)
	RequireNoError(t, err, "request approval")

	switch spec.decide {
	case ledger.StatusApproved:
		ok, err := l.Approve(ctx, key)
		RequireNoError(t, err, "approve")
		RequireEqual(t, true, ok, "approve "+key)
	case ledger.StatusDenied:
		ok, err := l.Deny(ctx, key)
		RequireNoError(t, err, "deny")
		RequireEqual(t, true, ok, "deny "+key)
	}

	rec, ok := l.Get(key)
	RequireEqual(t, true, ok, "record exists")
	return rec
}

// GatekeeperOption customizes NewTestGatekeeper.
type GatekeeperOption func(*gatekeeperSpec)

type gatekeeperSpec struct {
	allowList policy.AllowListDocument
	risk      policy.RiskProfileDocument
	store     ledger.Store
	runner    core.Runner
	scope     ledger.KeyScope
	clock     func() time.Time
	logger    *log.Logger
}

// WithAllowList replaces the built-in allow-list.
func WithAllowList(doc policy.AllowListDocument) GatekeeperOption {
	return func(s *gatekeeperSpec) { s.allowList = doc }
}

// WithRiskProfiles replaces the built-in risk profiles.
func WithRiskProfiles(doc policy.RiskProfileDocument) GatekeeperOption {
	return func(s *gatekeeperSpec) { s.risk = doc }
}

// WithStore sets the ledger store.
func WithStore(store ledger.Store) GatekeeperOption {
	return func(s *gatekeeperSpec) { s.store = store }
}

// WithRunner sets the runner. The default is a MockRunner returning exit 0.
func WithRunner(r core.Runner) GatekeeperOption {
	return func(s *gatekeeperSpec) { s.runner = r }
}

// WithKeyScope sets the approval key scope.
func WithKeyScope(scope ledger.KeyScope) GatekeeperOption {
	return func(s *gatekeeperSpec) { s.scope = scope }
}

// WithClock sets the ledger clock.
func WithClock(now func() time.Time) GatekeeperOption {
	return func(s *gatekeeperSpec) { s.clock = now }
}

// WithLogger sets the logger shared by the gatekeeper and its ledger.
func WithLogger(logger *log.Logger) GatekeeperOption {
	return func(s *gatekeeperSpec) { s.logger = logger }
}

// NewTestGatekeeper builds a gatekeeper over the built-in policy, an in-memory
// ledger and a mock runner unless overridden.
func NewTestGatekeeper(t *testing.T, opts ...GatekeeperOption) *core.Gatekeeper {
	t.Helper()

	spec := &gatekeeperSpec{
		allowList: policy.DefaultAllowList(),
		risk:      policy.DefaultRiskProfiles(),
	}
	for _, opt := range opts {
		opt(spec)
	}
	if spec.store == nil {
		spec.store = NewMemStore()
	}
	if spec.runner == nil {
		spec.runner = NewMockRunner("", 0)
	}

	logger := spec.logger
	if logger == nil {
		logger = TestLogger(t)
	}

	reg, err := core.NewRegistry(spec.allowList)
	RequireNoError(t, err, "build registry")
	risk, err := core.NewRiskTable(spec.risk)
	RequireNoError(t, err, "build risk table")

	ledgerOpts := []ledger.Option{ledger.WithLogger(logger)}
	if spec.clock != nil {
		ledgerOpts = append(ledgerOpts, ledger.WithClock(spec.clock))
	}
	l, err := ledger.Open(context.Background(), spec.store, ledgerOpts...)
	RequireNoError(t, err, "open ledger")

	gk, err := core.New(core.Config{
		Validator: core.NewValidator(reg),
		RiskTable: risk,
		Ledger:    l,
		Runner:    spec.runner,
		KeyScope:  spec.scope,
		Logger:    logger,
	})
	RequireNoError(t, err, "new gatekeeper")
	return gk
}
