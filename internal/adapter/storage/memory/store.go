// Package memory is the embedded ledger store: state lives in process memory
// and, when a path is configured, is persisted as a JSON snapshot after
// every commit. It is the default backend for the CLI.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"core-ledger/internal/core/domain"
	"core-ledger/internal/core/guard"
	"core-ledger/pkg/apperror"

	"github.com/gofrs/flock"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const (
	snapshotVersion = 1
	lockRetryDelay  = 10 * time.Millisecond
)

// statSnapshot is swapped in tests.
var statSnapshot = os.Stat

// Store holds committed ledger state. At most one unit of work is open per
// Store at a time; reads never block on it and only ever see committed state.
// A file-backed Store also holds an OS lock on <path>.lock for the life of
// each unit of work, so processes sharing the snapshot take turns.
type Store struct {
	path     string
	writer   chan struct{}
	fileLock *flock.Flock
	log      zerolog.Logger

	mu      sync.RWMutex
	state   *state
	version uint64
	stamp   fileStamp
}

// fileStamp identifies a version of the snapshot file on disk.
type fileStamp struct {
	modTime time.Time
	size    int64
}

func stampOf(info os.FileInfo) fileStamp {
	return fileStamp{modTime: info.ModTime(), size: info.Size()}
}

func (f fileStamp) equal(o fileStamp) bool {
	return f.size == o.size && f.modTime.Equal(o.modTime)
}

type state struct {
	accounts      map[int64]domain.Account
	transactions  []domain.Transaction
	nextAccountID int64
	nextTxID      int64
}

type snapshot struct {
	Version           int                  `json:"version"`
	SavedAt           time.Time            `json:"saved_at"`
	NextAccountID     int64                `json:"next_account_id"`
	NextTransactionID int64                `json:"next_transaction_id"`
	Accounts          []domain.Account     `json:"accounts"`
	Transactions      []domain.Transaction `json:"transactions"`
}

// Open loads the snapshot at path, validating it, or starts empty when the
// file does not exist yet. An empty path gives a volatile store.
func Open(path string, log zerolog.Logger) (*Store, error) {
	s := &Store{
		path:   path,
		writer: make(chan struct{}, 1),
		log:    log,
		state:  emptyState(),
	}
	if path == "" {
		return s, nil
	}
	s.fileLock = flock.New(path + ".lock")
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewVolatile returns a store that never touches disk.
func NewVolatile() *Store {
	s, _ := Open("", zerolog.Nop())
	return s
}

// Path returns the snapshot file, or "" for a volatile store.
func (s *Store) Path() string {
	return s.path
}

// Begin opens a unit of work, waiting for any other writer on this Store,
// or on the same snapshot file in another process, to finish first.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	select {
	case s.writer <- struct{}{}:
	case <-ctx.Done():
		return nil, apperror.ErrLockTimeout(ctx.Err())
	}

	if err := s.lockFile(ctx); err != nil {
		<-s.writer
		return nil, err
	}
	// Under the file lock the snapshot cannot move until Commit or Rollback.
	if err := s.refresh(); err != nil {
		s.release()
		return nil, apperror.ErrStorage(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTx(s, s.state, s.version), nil
}

func (s *Store) lockFile(ctx context.Context) error {
	if s.fileLock == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return apperror.ErrStorage(fmt.Errorf("create snapshot dir: %w", err))
	}
	locked, err := s.fileLock.TryLockContext(ctx, lockRetryDelay)
	switch {
	case locked:
		return nil
	case ctx.Err() != nil:
		return apperror.ErrLockTimeout(ctx.Err())
	case err != nil:
		return apperror.ErrStorage(fmt.Errorf("lock snapshot: %w", err))
	default:
		return apperror.ErrLockTimeout(errors.New("snapshot lock not acquired"))
	}
}

// release ends the current unit of work: the file lock first, then the
// in-process writer slot.
func (s *Store) release() {
	if s.fileLock != nil {
		if err := s.fileLock.Unlock(); err != nil {
			s.log.Warn().Err(err).Str("path", s.fileLock.Path()).Msg("failed to release snapshot lock")
		}
	}
	<-s.writer
}

// committed returns the current state after picking up any change made to
// the snapshot file by another process.
func (s *Store) committed() (*state, error) {
	if err := s.refresh(); err != nil {
		return nil, apperror.ErrStorage(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, nil
}

// refresh reloads the snapshot if its modification time or size moved.
func (s *Store) refresh() error {
	if s.path == "" {
		return nil
	}
	info, err := os.Stat(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat snapshot: %w", err)
	}
	s.mu.RLock()
	unchanged := stampOf(info).equal(s.stamp)
	s.mu.RUnlock()
	if unchanged {
		return nil
	}
	return s.reload()
}

func (s *Store) reload() error {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat snapshot: %w", err)
	}

	var snap snapshot
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return fmt.Errorf("decode snapshot %s: %w", s.path, err)
	}
	st, err := fromSnapshot(snap)
	if err != nil {
		return fmt.Errorf("snapshot %s rejected: %w", s.path, err)
	}

	s.mu.Lock()
	s.state = st
	s.version++
	s.stamp = stampOf(info)
	s.mu.Unlock()

	s.log.Debug().
		Str("path", s.path).
		Int("accounts", len(st.accounts)).
		Int("transactions", len(st.transactions)).
		Msg("snapshot loaded")
	return nil
}

// fromSnapshot validates a decoded file as a whole. Anything the engine could
// never have committed is refused, so edits made behind the engine's back do
// not load.
func fromSnapshot(snap snapshot) (*state, error) {
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	if err := guard.CheckLedger(snap.Accounts, snap.Transactions); err != nil {
		return nil, err
	}

	st := emptyState()
	names := make(map[string]bool, len(snap.Accounts))
	var maxAccountID int64
	for _, a := range snap.Accounts {
		if _, dup := st.accounts[a.ID]; dup {
			return nil, fmt.Errorf("duplicate account id %d", a.ID)
		}
		if names[a.Name] {
			return nil, fmt.Errorf("duplicate account name %q", a.Name)
		}
		names[a.Name] = true
		st.accounts[a.ID] = a
		if a.ID > maxAccountID {
			maxAccountID = a.ID
		}
	}
	st.transactions = snap.Transactions

	var maxTxID int64
	if n := len(snap.Transactions); n > 0 {
		maxTxID = snap.Transactions[n-1].ID
	}
	if snap.NextAccountID <= maxAccountID || snap.NextTransactionID <= maxTxID {
		return nil, errors.New("id counters behind stored rows")
	}
	st.nextAccountID = snap.NextAccountID
	st.nextTxID = snap.NextTransactionID
	return st, nil
}

// save writes the snapshot to a temp file in the same directory and renames
// it over the old one.
func (s *Store) save(st *state) (fileStamp, error) {
	snap := snapshot{
		Version:           snapshotVersion,
		SavedAt:           time.Now().UTC(),
		NextAccountID:     st.nextAccountID,
		NextTransactionID: st.nextTxID,
		Accounts:          st.accountList(),
		Transactions:      st.transactions,
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fileStamp{}, fmt.Errorf("create snapshot dir: %w", err)
	}
	f, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fileStamp{}, fmt.Errorf("create temp snapshot: %w", err)
	}
	tmp := f.Name()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		f.Close()
		os.Remove(tmp)
		return fileStamp{}, fmt.Errorf("encode snapshot: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fileStamp{}, fmt.Errorf("sync snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fileStamp{}, fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fileStamp{}, fmt.Errorf("replace snapshot: %w", err)
	}

	// The snapshot is durable from here on. A zero stamp makes the next
	// refresh reload it.
	info, err := statSnapshot(s.path)
	if err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("stat after snapshot write failed")
		return fileStamp{}, nil
	}
	return stampOf(info), nil
}

func emptyState() *state {
	return &state{
		accounts:      make(map[int64]domain.Account),
		nextAccountID: 1,
		nextTxID:      1,
	}
}

// accountList returns accounts in creation order. Ids are assigned
// monotonically, so that is id order.
func (st *state) accountList() []domain.Account {
	list := make([]domain.Account, 0, len(st.accounts))
	for _, a := range st.accounts {
		list = append(list, a)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}
