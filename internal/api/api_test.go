package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safecity/safecity-go/internal/conf"
	"github.com/safecity/safecity-go/internal/datastore"
	"github.com/safecity/safecity-go/internal/errors"
)

// fakeStore is an in-memory datastore.Interface for handler tests.
type fakeStore struct {
	mu      sync.Mutex
	users   map[string]*datastore.User // by ID
	records []datastore.Record

	saveErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]*datastore.User)}
}

func (f *fakeStore) Open() error  { return nil }
func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) CreateUser(user *datastore.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == user.Username {
			return errors.Newf("username %q already exists", user.Username).
				Category(errors.CategoryConflict).Build()
		}
	}
	f.users[user.ID] = user
	return nil
}

func (f *fakeStore) GetUserByID(id string) (*datastore.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, datastore.ErrUserNotFound
}

func (f *fakeStore) GetUserByUsername(username string) (*datastore.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, datastore.ErrUserNotFound
}

func (f *fakeStore) SaveRecord(record *datastore.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.records = append(f.records, *record)
	return nil
}

func (f *fakeStore) GetRecords(userID string, limit int) ([]datastore.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []datastore.Record
	for _, r := range f.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func testController(t *testing.T) (*Controller, *fakeStore) {
	t.Helper()
	settings := &conf.Settings{}
	settings.Main.Name = "test-node"
	settings.Security.SessionSecret = "test-secret"
	settings.Security.SessionMaxAge = 3600
	settings.Analysis.ViolenceThreshold = 120
	settings.Analysis.WeaponThreshold = 180

	store := newFakeStore()
	return New(settings, store, nil), store
}

func doJSON(t *testing.T, c *Controller, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echoHeaderContentType, "application/json")
	} else {
		req = httptest.NewRequest(method, path, http.NoBody)
	}
	rec := httptest.NewRecorder()
	c.Echo.ServeHTTP(rec, req)
	return rec
}

const echoHeaderContentType = "Content-Type"

func registerUser(t *testing.T, c *Controller, username string) string {
	t.Helper()
	rec := doJSON(t, c, http.MethodPost, "/api/register",
		`{"username":"`+username+`","email":"`+username+`@example.com","password":"longenough"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.NotNil(t, resp.User)
	return resp.User.ID
}

func TestRegisterAndLogin(t *testing.T) {
	c, _ := testController(t)
	registerUser(t, c, "alice")

	rec := doJSON(t, c, http.MethodPost, "/api/login",
		`{"username":"alice","password":"longenough"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "alice", resp.User.Username)
	assert.NotEmpty(t, rec.Header().Get("Set-Cookie"))
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	c, _ := testController(t)
	registerUser(t, c, "bob")

	rec := doJSON(t, c, http.MethodPost, "/api/register",
		`{"username":"bob","email":"b@example.com","password":"longenough"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "taken")
}

func TestRegisterValidatesInput(t *testing.T) {
	c, _ := testController(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing_username", `{"password":"longenough"}`},
		{"missing_password", `{"username":"carol"}`},
		{"short_password", `{"username":"carol","password":"short"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, c, http.MethodPost, "/api/register", tt.body)
			require.Equal(t, http.StatusOK, rec.Code)

			var resp AuthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	c, _ := testController(t)
	registerUser(t, c, "dave")

	wrongPassword := doJSON(t, c, http.MethodPost, "/api/login",
		`{"username":"dave","password":"wrongwrong"}`)
	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)

	unknownUser := doJSON(t, c, http.MethodPost, "/api/login",
		`{"username":"nobody","password":"wrongwrong"}`)
	assert.Equal(t, http.StatusUnauthorized, unknownUser.Code)

	// Same message either way, no username probing.
	assert.JSONEq(t, wrongPassword.Body.String(), unknownUser.Body.String())
}

func TestLogoutClearsSession(t *testing.T) {
	c, _ := testController(t)

	rec := doJSON(t, c, http.MethodPost, "/api/logout", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "Max-Age=0")
}

func TestAnalyzeAudioThresholds(t *testing.T) {
	tests := []struct {
		name   string
		volume float64
		want   string
	}{
		{"quiet", 30, "SAFE"},
		{"below_violence", 119.9, "SAFE"},
		{"violence", 120, "VIOLENCE"},
		{"loud", 150, "VIOLENCE"},
		{"weapon", 180, "WEAPON"},
		{"saturated", 255, "WEAPON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, store := testController(t)
			userID := registerUser(t, c, "erin")

			body, _ := json.Marshal(map[string]any{"userId": userID, "average_volume": tt.volume})
			rec := doJSON(t, c, http.MethodPost, "/api/analyze/audio", string(body))
			require.Equal(t, http.StatusOK, rec.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.want, resp["level"])

			records, err := store.GetRecords(userID, 0)
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.Equal(t, tt.want, records[0].ThreatLevel)
			assert.Equal(t, "AUDIO", records[0].Type)
			assert.Equal(t, "test-node", records[0].SourceNode)
		})
	}
}

func TestAnalyzeVideoPersistsRecord(t *testing.T) {
	c, store := testController(t)
	userID := registerUser(t, c, "frank")

	rec := doJSON(t, c, http.MethodPost, "/api/analyze/video",
		`{"userId":"`+userID+`","level":"WEAPON","reason":"gun visible"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	records, err := store.GetRecords(userID, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "VIDEO", records[0].Type)
	assert.Equal(t, "WEAPON", records[0].ThreatLevel)
	assert.Equal(t, "gun visible", records[0].ContentSnippet)
}

func TestAnalyzeTextUsesTextAsSnippet(t *testing.T) {
	c, store := testController(t)
	userID := registerUser(t, c, "grace")

	rec := doJSON(t, c, http.MethodPost, "/api/analyze/text",
		`{"userId":"`+userID+`","text":"suspicious message","level":"VIOLENCE","reason":"threatening language"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	records, err := store.GetRecords(userID, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "TEXT", records[0].Type)
	assert.Equal(t, "suspicious message", records[0].ContentSnippet)
	assert.Equal(t, "threatening language", records[0].Details)
}

func TestAnalyzeRejectsBadInput(t *testing.T) {
	c, _ := testController(t)

	missingUser := doJSON(t, c, http.MethodPost, "/api/analyze/audio", `{"average_volume":10}`)
	assert.Equal(t, http.StatusBadRequest, missingUser.Code)

	badLevel := doJSON(t, c, http.MethodPost, "/api/analyze/video",
		`{"userId":"u1","level":"LOUD","reason":"x"}`)
	assert.Equal(t, http.StatusBadRequest, badLevel.Code)
}

func TestRecordsEndpointNewestFirstAndCached(t *testing.T) {
	c, store := testController(t)
	userID := registerUser(t, c, "heidi")

	base := time.Now().Add(-time.Hour)
	for i, level := range []string{"SAFE", "VIOLENCE", "WEAPON"} {
		store.records = append(store.records, datastore.Record{
			ID: level, UserID: userID, Timestamp: base.Add(time.Duration(i) * time.Minute),
			Type: "VIDEO", ThreatLevel: level,
		})
	}

	rec := doJSON(t, c, http.MethodGet, "/api/records/"+userID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var dtos []RecordDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dtos))
	require.Len(t, dtos, 3)
	assert.Equal(t, "WEAPON", dtos[0].ThreatLevel)
	assert.Equal(t, "SAFE", dtos[2].ThreatLevel)

	// Second read comes from cache even when the raw slice mutates.
	store.records = nil
	cached := doJSON(t, c, http.MethodGet, "/api/records/"+userID, "")
	var cachedDTOs []RecordDTO
	require.NoError(t, json.Unmarshal(cached.Body.Bytes(), &cachedDTOs))
	assert.Len(t, cachedDTOs, 3)
}

func TestRecordWriteInvalidatesCache(t *testing.T) {
	c, _ := testController(t)
	userID := registerUser(t, c, "ivan")

	// Prime the cache with an empty history.
	first := doJSON(t, c, http.MethodGet, "/api/records/"+userID, "")
	require.Equal(t, http.StatusOK, first.Code)

	rec := doJSON(t, c, http.MethodPost, "/api/analyze/video",
		`{"userId":"`+userID+`","level":"SAFE","reason":"street clear"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	after := doJSON(t, c, http.MethodGet, "/api/records/"+userID, "")
	var dtos []RecordDTO
	require.NoError(t, json.Unmarshal(after.Body.Bytes(), &dtos))
	assert.Len(t, dtos, 1)
}

func TestHealthEndpoint(t *testing.T) {
	c, _ := testController(t)

	rec := doJSON(t, c, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
