package store

import (
	"context"
	"encoding/json"
	errs "errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/DaanHessen/rewire/internal/engine"
)

// DefaultKey is the fixed identifier of the save-state blob.
const DefaultKey = "rewireQuestState"

var (
	ErrNoChange = errs.New("no change")
	ErrNotFound = errs.New("save state not found")
)

// BlobStore holds opaque blobs by key. Implementations must make Save atomic.
type BlobStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, blob []byte) error
	Close() error
}

// Open picks a backend from the DSN: postgres URLs use gorm, "memory" keeps
// everything in process, anything else is a sqlite file path.
func Open(ctx context.Context, dsn string) (BlobStore, error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case dsn == "":
		return nil, errors.New("missing DSN")
	case IsPostgres(dsn):
		return OpenPostgres(ctx, dsn)
	case dsn == "memory" || dsn == ":memory:":
		return NewMemoryStore(), nil
	default:
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.Wrap(err, "create data dir")
			}
		}
		return OpenSQLite(ctx, dsn)
	}
}

// IsPostgres reports whether dsn names a postgres server.
func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Encode serialises a state into the persisted blob format.
func Encode(s engine.ProgressState) ([]byte, error) {
	if s.Logs == nil {
		s.Logs = []engine.LogEntry{}
	}
	b, err := json.Marshal(s)
	return b, wrap(err, "encode state")
}

// Decode parses a blob and checks the state invariants.
func Decode(blob []byte) (engine.ProgressState, error) {
	var s engine.ProgressState
	if err := json.Unmarshal(blob, &s); err != nil {
		return engine.ProgressState{}, errors.Wrap(err, "decode state")
	}
	if s.Logs == nil {
		s.Logs = []engine.LogEntry{}
	}
	if err := s.Validate(); err != nil {
		return engine.ProgressState{}, errors.Wrap(err, "decode state")
	}
	return s, nil
}

// StateRepo loads and saves the ProgressState under a single key.
type StateRepo struct {
	blobs BlobStore
	key   string
}

func NewStateRepo(blobs BlobStore, key string) *StateRepo {
	if key == "" {
		key = DefaultKey
	}
	return &StateRepo{blobs: blobs, key: key}
}

// Load returns the saved state. ok is false when nothing has been saved yet.
func (r *StateRepo) Load(ctx context.Context) (state engine.ProgressState, ok bool, err error) {
	blob, err := r.blobs.Load(ctx, r.key)
	if errs.Is(err, ErrNotFound) {
		return engine.ProgressState{}, false, nil
	}
	if err != nil {
		return engine.ProgressState{}, false, errors.Wrap(err, "load state")
	}
	s, err := Decode(blob)
	if err != nil {
		return engine.ProgressState{}, false, err
	}
	return s, true, nil
}

// Save writes the full state.
func (r *StateRepo) Save(ctx context.Context, s engine.ProgressState) error {
	blob, err := Encode(s)
	if err != nil {
		return err
	}
	return wrap(r.blobs.Save(ctx, r.key, blob), "save state")
}

// Raw returns the stored blob unparsed.
func (r *StateRepo) Raw(ctx context.Context) ([]byte, error) {
	return r.blobs.Load(ctx, r.key)
}

// MemoryStore is an in-process BlobStore for tests and throwaway sessions.
type MemoryStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
	saves int
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{blobs: map[string][]byte{}} }

func (m *MemoryStore) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (m *MemoryStore) Save(_ context.Context, key string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), blob...)
	m.saves++
	return nil
}

// Saves counts successful writes.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *MemoryStore) Close() error { return nil }

// Helper error wrap
func wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}
