package records

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safecity/safecity-go/internal/backend"
	"github.com/safecity/safecity-go/internal/conf"
	"github.com/safecity/safecity-go/internal/httpclient"
)

const backendTestURL = "http://backend.test"

func newTestClient(t *testing.T) *backend.Client {
	t.Helper()
	inner := &http.Client{}
	httpmock.ActivateNonDefault(inner)
	t.Cleanup(httpmock.DeactivateAndReset)

	settings := &conf.Settings{}
	settings.Backend.URL = backendTestURL
	settings.Backend.Timeout = 5 * time.Second

	return backend.NewClient(settings, httpclient.NewFromHTTPClient(inner, nil))
}

func TestFetchAndPrintHistory(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, backendTestURL+"/api/login",
		httpmock.NewStringResponder(http.StatusOK,
			`{"success":true,"user":{"id":"u1","username":"alice","role":"user"}}`))
	httpmock.RegisterResponder(http.MethodGet, backendTestURL+"/api/records/u1",
		httpmock.NewStringResponder(http.StatusOK,
			`[{"id":"r2","userId":"u1","timestamp":"2026-08-30T11:00:00Z","type":"VIDEO","threatLevel":"WEAPON","contentSnippet":"Frame analysis"},
			  {"id":"r1","userId":"u1","timestamp":"2026-08-30T10:00:00Z","type":"AUDIO","threatLevel":"SAFE","contentSnippet":"Audio sample"}]`))

	var out bytes.Buffer
	err := fetchAndPrint(context.Background(), client, &out,
		&options{username: "alice", password: "s3cret"})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "WEAPON")
	assert.Contains(t, out.String(), "2026-08-30T10:00:00Z")
	assert.Contains(t, out.String(), "Audio sample")
}

func TestFetchAndPrintEmptyHistory(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, backendTestURL+"/api/login",
		httpmock.NewStringResponder(http.StatusOK,
			`{"success":true,"user":{"id":"u1","username":"alice","role":"user"}}`))
	httpmock.RegisterResponder(http.MethodGet, backendTestURL+"/api/records/u1",
		httpmock.NewStringResponder(http.StatusOK, `[]`))

	var out bytes.Buffer
	err := fetchAndPrint(context.Background(), client, &out,
		&options{username: "alice", password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, "No records.\n", out.String())
}

func TestFetchAndPrintRejectedLogin(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, backendTestURL+"/api/login",
		httpmock.NewStringResponder(http.StatusUnauthorized,
			`{"success":false,"message":"Invalid credentials."}`))

	var out bytes.Buffer
	err := fetchAndPrint(context.Background(), client, &out,
		&options{username: "alice", password: "wrong"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid credentials.")
	assert.Empty(t, out.String())
}
