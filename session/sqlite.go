package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists sessions in a SQLite database. SQLite serializes
// writes, so all public methods are safe for concurrent use within one
// process; timestamps are stored as RFC 3339 text.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// SQLiteStoreOptions configures a SQLiteStore.
type SQLiteStoreOptions struct {
	TTL time.Duration
}

// NewSQLiteStore opens (or creates) the database at path and migrates the
// schema on first use.
func NewSQLiteStore(path string, optFns ...func(o *SQLiteStoreOptions)) (*SQLiteStore, error) {
	opts := SQLiteStoreOptions{TTL: DefaultTTL}
	for _, fn := range optFns {
		fn(&opts)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &SQLiteStore{db: db, ttl: opts.TTL, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		phone      TEXT NOT NULL DEFAULT '',
		payload    TEXT NOT NULL,
		state      TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		expires_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS phone_index (
		phone      TEXT PRIMARY KEY,
		session_id TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save implements Store.
func (s *SQLiteStore) Save(sess *Session) error {
	stamp(sess, s.now(), s.ttl)

	payload, err := json.Marshal(sess.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO sessions (id, phone, payload, state, created_at, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			phone = excluded.phone,
			payload = excluded.payload,
			state = excluded.state,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at`,
		sess.ID, sess.Phone, string(payload), string(sess.State),
		encodeTime(sess.CreatedAt), encodeTime(sess.UpdatedAt), encodeTime(sess.ExpiresAt))
	if err != nil {
		return fmt.Errorf("upsert session %s: %w", sess.ID, err)
	}

	if sess.Phone != "" {
		_, err = tx.Exec(`
			INSERT INTO phone_index (phone, session_id) VALUES (?, ?)
			ON CONFLICT(phone) DO UPDATE SET session_id = excluded.session_id`,
			sess.Phone, sess.ID)
		if err != nil {
			return fmt.Errorf("update phone index: %w", err)
		}
	}
	return tx.Commit()
}

// Load implements Store.
func (s *SQLiteStore) Load(id string) (*Session, error) {
	sess, err := s.scanSession(id)
	if err != nil {
		return nil, err
	}
	if sess.Expired(s.now()) {
		if err := s.Delete(id); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return sess, nil
}

// LoadByPhone implements Store.
func (s *SQLiteStore) LoadByPhone(phone string) (*Session, error) {
	var id string
	err := s.db.QueryRow(`SELECT session_id FROM phone_index WHERE phone = ?`, phone).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve phone index: %w", err)
	}
	return s.Load(id)
}

// UpdateState implements Store.
func (s *SQLiteStore) UpdateState(id string, state State) error {
	if _, err := s.Load(id); err != nil {
		return err
	}
	_, err := s.db.Exec(`UPDATE sessions SET state = ?, updated_at = ? WHERE id = ?`,
		string(state), encodeTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("update session %s: %w", id, err)
	}
	return nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	// Only drop the index entry when it still points at this session.
	if _, err := tx.Exec(`DELETE FROM phone_index WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("clean phone index: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) scanSession(id string) (*Session, error) {
	var (
		sess                            Session
		payload                         string
		state                           string
		createdAt, updatedAt, expiresAt string
	)
	err := s.db.QueryRow(`
		SELECT id, phone, payload, state, created_at, updated_at, expires_at
		FROM sessions WHERE id = ?`, id).
		Scan(&sess.ID, &sess.Phone, &payload, &state, &createdAt, &updatedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	if err := json.Unmarshal([]byte(payload), &sess.Payload); err != nil {
		return nil, fmt.Errorf("decode payload for %s: %w", id, err)
	}
	sess.State = State(state)
	if sess.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, err
	}
	if sess.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return nil, err
	}
	if sess.ExpiresAt, err = decodeTime(expiresAt); err != nil {
		return nil, err
	}
	return &sess, nil
}

func encodeTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func decodeTime(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode timestamp %q: %w", v, err)
	}
	return t, nil
}
