package datastore

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safecity/safecity-go/internal/conf"
	"github.com/safecity/safecity-go/internal/errors"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "safecity.db")

	store := &SQLiteStore{Settings: settings}
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testUser(username string) *User {
	return &User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "$2a$10$notarealhash",
	}
}

func TestNewSelectsStoreFromSettings(t *testing.T) {
	t.Parallel()

	sqliteSettings := &conf.Settings{}
	sqliteSettings.Output.SQLite.Enabled = true
	store, err := New(sqliteSettings)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, store)

	mysqlSettings := &conf.Settings{}
	mysqlSettings.Output.MySQL.Enabled = true
	store, err = New(mysqlSettings)
	require.NoError(t, err)
	assert.IsType(t, &MySQLStore{}, store)

	_, err = New(&conf.Settings{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestCreateAndFetchUser(t *testing.T) {
	store := openTestStore(t)

	user := testUser("alice")
	require.NoError(t, store.CreateUser(user))

	byName, err := store.GetUserByUsername("alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)
	assert.Equal(t, "operator", byName.Role)

	byID, err := store.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)
}

func TestDuplicateUsernameConflicts(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.CreateUser(testUser("bob")))

	err := store.CreateUser(testUser("bob"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConflict))
}

func TestUnknownUserReturnsSentinel(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetUserByUsername("nobody")
	require.ErrorIs(t, err, ErrUserNotFound)

	_, err = store.GetUserByID(uuid.NewString())
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestRecordsNewestFirstWithLimit(t *testing.T) {
	store := openTestStore(t)

	user := testUser("carol")
	require.NoError(t, store.CreateUser(user))

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.SaveRecord(&Record{
			ID:             uuid.NewString(),
			UserID:         user.ID,
			Timestamp:      base.Add(time.Duration(i) * time.Minute),
			Type:           "VIDEO",
			ThreatLevel:    "SAFE",
			ContentSnippet: fmt.Sprintf("frame %d", i),
		}))
	}

	records, err := store.GetRecords(user.ID, 0)
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, "frame 4", records[0].ContentSnippet)
	assert.Equal(t, "frame 0", records[4].ContentSnippet)

	limited, err := store.GetRecords(user.ID, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "frame 4", limited[0].ContentSnippet)
}

func TestRecordsScopedToUser(t *testing.T) {
	store := openTestStore(t)

	a := testUser("dave")
	b := testUser("erin")
	require.NoError(t, store.CreateUser(a))
	require.NoError(t, store.CreateUser(b))

	require.NoError(t, store.SaveRecord(&Record{
		ID: uuid.NewString(), UserID: a.ID, Timestamp: time.Now(), Type: "TEXT", ThreatLevel: "VIOLENCE",
	}))

	records, err := store.GetRecords(b.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}
