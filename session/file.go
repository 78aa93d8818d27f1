package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/careroute/careroute/logging"
)

const phoneIndexFile = "phone_index.json"

// FileStore persists each session as one JSON document under a directory,
// with a phone_index.json mapping phone numbers to the most recent session
// id. A single process owns the directory; the store serializes its own
// writers with a mutex but performs no cross-process locking.
type FileStore struct {
	mu     sync.Mutex
	dir    string
	ttl    time.Duration
	logger logging.Logger
	now    func() time.Time
}

// FileStoreOptions configures a FileStore.
type FileStoreOptions struct {
	TTL    time.Duration
	Logger logging.Logger
}

// NewFileStore creates the directory if needed and returns a store over it.
func NewFileStore(dir string, optFns ...func(o *FileStoreOptions)) (*FileStore, error) {
	opts := FileStoreOptions{TTL: DefaultTTL, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &FileStore{dir: dir, ttl: opts.TTL, logger: opts.Logger, now: time.Now}, nil
}

// Save implements Store.
func (f *FileStore) Save(s *Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	stamp(s, f.now(), f.ttl)
	if err := f.writeSession(s); err != nil {
		return err
	}
	if s.Phone != "" {
		if err := f.updateIndex(func(idx map[string]string) {
			idx[s.Phone] = s.ID
		}); err != nil {
			return err
		}
	}
	f.logger.Debug("session.file.saved", "session_id", s.ID, "state", string(s.State))
	return nil
}

// Load implements Store.
func (f *FileStore) Load(id string) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadLocked(id)
}

// LoadByPhone implements Store.
func (f *FileStore) LoadByPhone(phone string) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx, err := f.readIndex()
	if err != nil {
		return nil, err
	}
	id, ok := idx[phone]
	if !ok {
		return nil, ErrNotFound
	}
	return f.loadLocked(id)
}

// UpdateState implements Store.
func (f *FileStore) UpdateState(id string, state State) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, err := f.loadLocked(id)
	if err != nil {
		return err
	}
	s.State = state
	s.UpdatedAt = f.now()
	return f.writeSession(s)
}

// Delete implements Store.
func (f *FileStore) Delete(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleteLocked(id)
}

func (f *FileStore) loadLocked(id string) (*Session, error) {
	raw, err := os.ReadFile(f.sessionPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read session %s: %w", id, err)
	}

	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}

	if s.Expired(f.now()) {
		f.logger.Info("session.file.expired", "session_id", id)
		if err := f.deleteLocked(id); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return &s, nil
}

func (f *FileStore) deleteLocked(id string) error {
	// Read the record first so the index entry can be cleaned up, but only
	// when it still points at this session.
	var phone string
	if raw, err := os.ReadFile(f.sessionPath(id)); err == nil {
		var s Session
		if json.Unmarshal(raw, &s) == nil {
			phone = s.Phone
		}
	}

	if err := os.Remove(f.sessionPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete session %s: %w", id, err)
	}

	if phone == "" {
		return nil
	}
	return f.updateIndex(func(idx map[string]string) {
		if idx[phone] == id {
			delete(idx, phone)
		}
	})
}

func (f *FileStore) writeSession(s *Session) error {
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	if err := os.WriteFile(f.sessionPath(s.ID), raw, 0o644); err != nil {
		return fmt.Errorf("write session %s: %w", s.ID, err)
	}
	return nil
}

func (f *FileStore) readIndex() (map[string]string, error) {
	raw, err := os.ReadFile(filepath.Join(f.dir, phoneIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read phone index: %w", err)
	}
	idx := map[string]string{}
	if err := json.Unmarshal(raw, &idx); err != nil {
		return nil, fmt.Errorf("decode phone index: %w", err)
	}
	return idx, nil
}

func (f *FileStore) updateIndex(mutate func(idx map[string]string)) error {
	idx, err := f.readIndex()
	if err != nil {
		return err
	}
	mutate(idx)
	raw, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("encode phone index: %w", err)
	}
	if err := os.WriteFile(filepath.Join(f.dir, phoneIndexFile), raw, 0o644); err != nil {
		return fmt.Errorf("write phone index: %w", err)
	}
	return nil
}

func (f *FileStore) sessionPath(id string) string {
	return filepath.Join(f.dir, id+".json")
}
