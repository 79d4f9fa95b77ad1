// Package ledger records human approval decisions.
//
// Each approval key moves through a single state machine:
//
//	(none) -> pending -> approved | denied
//
// approved and denied are terminal: no further decision is accepted. An approved record
// authorises one run. Consume retires it under "<key>@<request_id>" with status consumed,
// which frees the key for a fresh request. Every mutation is written through a Store before it is
// acknowledged; if the write fails the in-memory change is rolled back and the error returned.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Status is the state of an approval record.
type Status string

// Approval states.
const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
	// StatusConsumed marks an approval that has been used. It is only found on retired keys.
	StatusConsumed Status = "consumed"
	// StatusNotFound is reported for keys with no record. It is never stored.
	StatusNotFound Status = "not_found"
)

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusDenied || s == StatusConsumed
}

// ParseStatus parses a stored status name. StatusNotFound is not accepted.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusApproved, StatusDenied, StatusConsumed:
		return st, nil
	default:
		return "", fmt.Errorf("invalid status %q (must be pending, approved, denied or consumed)", s)
	}
}

// ErrPersist wraps every failure to write the ledger to its store.
var ErrPersist = errors.New("persisting approval ledger")

// Record is one approval entry.
type Record struct {
	Key         string     `json:"key" yaml:"key"`
	CommandID   string     `json:"command_id" yaml:"command_id"`
	RequestID   string     `json:"request_id" yaml:"request_id"`
	Status      Status     `json:"status" yaml:"status"`
	CreatedAt   time.Time  `json:"created_at" yaml:"created_at"`
	DecidedAt   *time.Time `json:"decided_at,omitempty" yaml:"decided_at,omitempty"`
	ConsumedAt  *time.Time `json:"consumed_at,omitempty" yaml:"consumed_at,omitempty"`
	Description string     `json:"description" yaml:"description"`
}

// Store is the durable backing of a ledger. Save replaces the full persisted state and must
// not retain the map after returning.
type Store interface {
	Load(ctx context.Context) (map[string]Record, error)
	Save(ctx context.Context, records map[string]Record) error
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Status    Status
	CommandID string
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source used for CreatedAt and DecidedAt.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Ledger is the in-memory view of the approval records, written through to a Store.
// It is safe for concurrent use within one process.
type Ledger struct {
	mu      sync.RWMutex
	records map[string]Record
	store   Store
	now     func() time.Time
	logger  *log.Logger
}

// Open loads the ledger from store.
func Open(ctx context.Context, store Store, opts ...Option) (*Ledger, error) {
	if store == nil {
		return nil, fmt.Errorf("ledger store is required")
	}
	l := &Ledger{
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if err := l.Reload(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

// Reload replaces the in-memory state with what the store holds.
func (l *Ledger) Reload(ctx context.Context) error {
	records, err := l.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading approval ledger: %w", err)
	}
	if records == nil {
		records = make(map[string]Record)
	}
	for key, r := range records {
		r.Key = key
		records[key] = r
	}

	l.mu.Lock()
	l.records = records
	l.mu.Unlock()
	return nil
}

// RequestApproval creates a pending record for key if none exists and returns the
// record's current status. An existing record is never reset or overwritten.
func (l *Ledger) RequestApproval(ctx context.Context, key, commandID, description string) (Status, error) {
	if key == "" {
		return "", fmt.Errorf("approval key is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.records[key]; ok {
		l.logger.Debug("approval already recorded", "key", key, "status", existing.Status)
		return existing.Status, nil
	}

	rec := Record{
		Key:         key,
		CommandID:   commandID,
		RequestID:   uuid.New().String(),
		Status:      StatusPending,
		CreatedAt:   l.now(),
		Description: description,
	}
	l.records[key] = rec

	if err := l.persistLocked(ctx); err != nil {
		delete(l.records, key)
		return "", err
	}

	l.logger.Info("approval requested", "key", key, "command_id", commandID, "request_id", rec.RequestID)
	return StatusPending, nil
}

// Status returns the status for key, or StatusNotFound.
func (l *Ledger) Status(key string) Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if r, ok := l.records[key]; ok {
		return r.Status
	}
	return StatusNotFound
}

// Get returns a copy of the record for key.
func (l *Ledger) Get(key string) (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.records[key]
	return r, ok
}

// List returns records matching filter, oldest first.
func (l *Ledger) List(filter Filter) []Record {
	l.mu.RLock()
	out := make([]Record, 0, len(l.records))
	for _, r := range l.records {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.CommandID != "" && r.CommandID != filter.CommandID {
			continue
		}
		out = append(out, r)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Approve moves a pending record to approved. It returns false without changing anything
// when the key is unknown or already decided.
func (l *Ledger) Approve(ctx context.Context, key string) (bool, error) {
	return l.decide(ctx, key, StatusApproved)
}

// Deny moves a pending record to denied. It returns false without changing anything
// when the key is unknown or already decided.
func (l *Ledger) Deny(ctx context.Context, key string) (bool, error) {
	return l.decide(ctx, key, StatusDenied)
}

func (l *Ledger) decide(ctx context.Context, key string, to Status) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev, ok := l.records[key]
	if !ok || prev.Status != StatusPending {
		status := StatusNotFound
		if ok {
			status = prev.Status
		}
		l.logger.Warn("approval decision rejected", "key", key, "status", status, "wanted", to)
		return false, nil
	}

	next := prev
	next.Status = to
	decidedAt := l.now()
	next.DecidedAt = &decidedAt
	l.records[key] = next

	if err := l.persistLocked(ctx); err != nil {
		l.records[key] = prev
		return false, err
	}

	l.logger.Info("approval decided", "key", key, "command_id", next.CommandID, "status", to)
	return true, nil
}

// Consume retires an approved record so it cannot authorise a second run. It returns false
// without changing anything when key is not approved.
func (l *Ledger) Consume(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev, ok := l.records[key]
	if !ok || prev.Status != StatusApproved {
		return false, nil
	}

	retired := prev
	retired.Key = RetiredKey(key, prev.RequestID)
	retired.Status = StatusConsumed
	consumedAt := l.now()
	retired.ConsumedAt = &consumedAt

	delete(l.records, key)
	l.records[retired.Key] = retired

	if err := l.persistLocked(ctx); err != nil {
		delete(l.records, retired.Key)
		l.records[key] = prev
		return false, err
	}

	l.logger.Info("approval consumed", "key", key, "command_id", prev.CommandID, "request_id", prev.RequestID)
	return true, nil
}

// Counts returns the number of records per status.
func (l *Ledger) Counts() map[Status]int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[Status]int)
	for _, r := range l.records {
		out[r.Status]++
	}
	return out
}

// Len returns the number of records.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// persistLocked writes the full ledger. Caller must hold the write lock.
func (l *Ledger) persistLocked(ctx context.Context) error {
	if err := l.store.Save(ctx, maps.Clone(l.records)); err != nil {
		l.logger.Error("ledger write failed", "error", err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}
