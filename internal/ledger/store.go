package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

// FileStore keeps the ledger in a single JSON document keyed by approval key.
//
// The document stays readable by older tooling: each entry carries status, timestamp
// (unix seconds) and description, plus the additive command_id, request_id, created_at,
// decided_at and consumed_at fields.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by the JSON file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

type fileRecord struct {
	Status      Status  `json:"status"`
	Timestamp   float64 `json:"timestamp"`
	Description string  `json:"description"`
	CommandID   string  `json:"command_id,omitempty"`
	RequestID   string  `json:"request_id,omitempty"`
	CreatedAt   string  `json:"created_at,omitempty"`
	DecidedAt   string  `json:"decided_at,omitempty"`
	ConsumedAt  string  `json:"consumed_at,omitempty"`
}

// Load reads the document. A missing or empty file is an empty ledger; a file that does
// not decode is an error.
func (s *FileStore) Load(ctx context.Context) (map[string]Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]Record{}, nil
		}
		return nil, fmt.Errorf("reading ledger %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]Record{}, nil
	}

	var raw map[string]fileRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding ledger %s: %w", s.path, err)
	}

	out := make(map[string]Record, len(raw))
	for key, fr := range raw {
		rec, err := fr.toRecord(key)
		if err != nil {
			return nil, fmt.Errorf("decoding ledger %s: entry %q: %w", s.path, key, err)
		}
		out[key] = rec
	}
	return out, nil
}

// Save writes the document atomically: temp file in the same directory, fsync, rename.
func (s *FileStore) Save(ctx context.Context, records map[string]Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	doc := make(map[string]fileRecord, len(records))
	for key, r := range records {
		doc[key] = fromRecord(r)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".ledger-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func fromRecord(r Record) fileRecord {
	fr := fileRecord{
		Status:      r.Status,
		Timestamp:   float64(r.CreatedAt.UnixNano()) / 1e9,
		Description: r.Description,
		CommandID:   r.CommandID,
		RequestID:   r.RequestID,
		CreatedAt:   r.CreatedAt.Format(time.RFC3339Nano),
	}
	if r.DecidedAt != nil {
		fr.DecidedAt = r.DecidedAt.Format(time.RFC3339Nano)
	}
	if r.ConsumedAt != nil {
		fr.ConsumedAt = r.ConsumedAt.Format(time.RFC3339Nano)
	}
	return fr
}

func (fr fileRecord) toRecord(key string) (Record, error) {
	if _, err := ParseStatus(string(fr.Status)); err != nil {
		return Record{}, err
	}

	rec := Record{
		Key:         key,
		CommandID:   fr.CommandID,
		RequestID:   fr.RequestID,
		Status:      fr.Status,
		Description: fr.Description,
	}
	// Entries written without command_id were keyed by command id.
	if rec.CommandID == "" {
		rec.CommandID = key
	}

	if fr.CreatedAt != "" {
		t, err := time.Parse(time.RFC3339Nano, fr.CreatedAt)
		if err != nil {
			return Record{}, fmt.Errorf("parsing created_at: %w", err)
		}
		rec.CreatedAt = t
	} else {
		sec, frac := math.Modf(fr.Timestamp)
		rec.CreatedAt = time.Unix(int64(sec), int64(frac*1e9)).UTC()
	}

	if fr.DecidedAt != "" {
		t, err := time.Parse(time.RFC3339Nano, fr.DecidedAt)
		if err != nil {
			return Record{}, fmt.Errorf("parsing decided_at: %w", err)
		}
		rec.DecidedAt = &t
	}
	if fr.ConsumedAt != "" {
		t, err := time.Parse(time.RFC3339Nano, fr.ConsumedAt)
		if err != nil {
			return Record{}, fmt.Errorf("parsing consumed_at: %w", err)
		}
		rec.ConsumedAt = &t
	}
	return rec, nil
}
