package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFixture builds a store whose clock the test controls.
type storeFixture struct {
	store   Store
	setNow  func(time.Time)
	removed func(id string) bool // direct storage check, bypassing Load
}

func fixtures(t *testing.T) map[string]storeFixture {
	t.Helper()

	mem := NewMemoryStore()
	memNow := time.Now()
	mem.now = func() time.Time { return memNow }

	dir := t.TempDir()
	file, err := NewFileStore(dir)
	require.NoError(t, err)
	fileNow := time.Now()
	file.now = func() time.Time { return fileNow }

	dbPath := filepath.Join(t.TempDir(), "sessions.db")
	sqlite, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })
	sqliteNow := time.Now()
	sqlite.now = func() time.Time { return sqliteNow }

	return map[string]storeFixture{
		"memory": {
			store:  mem,
			setNow: func(now time.Time) { memNow = now },
			removed: func(id string) bool {
				mem.mu.Lock()
				defer mem.mu.Unlock()
				_, ok := mem.sessions[id]
				return !ok
			},
		},
		"file": {
			store:  file,
			setNow: func(now time.Time) { fileNow = now },
			removed: func(id string) bool {
				_, err := os.Stat(filepath.Join(dir, id+".json"))
				return os.IsNotExist(err)
			},
		},
		"sqlite": {
			store:  sqlite,
			setNow: func(now time.Time) { sqliteNow = now },
			removed: func(id string) bool {
				var n int
				err := sqlite.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE id = ?`, id).Scan(&n)
				return err == nil && n == 0
			},
		},
	}
}

func TestStoreSaveLoadRoundtrip(t *testing.T) {
	for name, fx := range fixtures(t) {
		t.Run(name, func(t *testing.T) {
			s := New("conv_rt", "+15550001111")
			s.MergePayload(map[string]any{"specialty": "cardiology"})
			require.NoError(t, fx.store.Save(s))

			got, err := fx.store.Load("conv_rt")
			require.NoError(t, err)
			assert.Equal(t, s.ID, got.ID)
			assert.Equal(t, s.Phone, got.Phone)
			assert.Equal(t, StateAwaitingResponse, got.State)
			assert.Equal(t, "cardiology", got.Payload["specialty"])
			assert.False(t, got.CreatedAt.IsZero())
			assert.False(t, got.ExpiresAt.IsZero())
		})
	}
}

func TestStorePhoneIndexPointsAtNewest(t *testing.T) {
	const phone = "+15550002222"
	for name, fx := range fixtures(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, fx.store.Save(New("first", phone)))
			require.NoError(t, fx.store.Save(New("second", phone)))

			got, err := fx.store.LoadByPhone(phone)
			require.NoError(t, err)
			assert.Equal(t, "second", got.ID)

			// The displaced session stays reachable by direct id only.
			first, err := fx.store.Load("first")
			require.NoError(t, err)
			assert.Equal(t, "first", first.ID)
		})
	}
}

func TestStoreLazyExpiryRemovesRecord(t *testing.T) {
	for name, fx := range fixtures(t) {
		t.Run(name, func(t *testing.T) {
			start := time.Now()
			fx.setNow(start)
			require.NoError(t, fx.store.Save(New("conv_exp", "+15550003333")))

			fx.setNow(start.Add(25 * time.Hour))

			_, err := fx.store.Load("conv_exp")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.True(t, fx.removed("conv_exp"), "record should be deleted on expired read")

			_, err = fx.store.LoadByPhone("+15550003333")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreUpdateState(t *testing.T) {
	for name, fx := range fixtures(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, fx.store.Save(New("conv_st", "")))
			require.NoError(t, fx.store.UpdateState("conv_st", StateSlotConfirmed))

			got, err := fx.store.Load("conv_st")
			require.NoError(t, err)
			assert.Equal(t, StateSlotConfirmed, got.State)

			err = fx.store.UpdateState("missing", StateSlotConfirmed)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreDeleteKeepsNewerIndexEntry(t *testing.T) {
	const phone = "+15550004444"
	for name, fx := range fixtures(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, fx.store.Save(New("old", phone)))
			require.NoError(t, fx.store.Save(New("new", phone)))

			// Deleting the superseded session must not disturb the index
			// entry now owned by the newer one.
			require.NoError(t, fx.store.Delete("old"))

			got, err := fx.store.LoadByPhone(phone)
			require.NoError(t, err)
			assert.Equal(t, "new", got.ID)

			require.NoError(t, fx.store.Delete("new"))
			_, err = fx.store.LoadByPhone(phone)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreDeleteMissingIsNoop(t *testing.T) {
	for name, fx := range fixtures(t) {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, fx.store.Delete("never_saved"))
		})
	}
}

func TestSessionClone(t *testing.T) {
	s := New("conv_cl", "+15550005555")
	s.MergePayload(map[string]any{"k": "v"})

	clone := s.Clone()
	clone.Payload["k"] = "changed"
	clone.State = StateSlotsDeclined

	assert.Equal(t, "v", s.Payload["k"])
	assert.Equal(t, StateAwaitingResponse, s.State)
}
