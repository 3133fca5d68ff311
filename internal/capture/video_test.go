package capture

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safecity/safecity-go/internal/httpclient"
	"github.com/safecity/safecity-go/internal/threat"
)

const cameraURL = "http://camera.test/snapshot.jpg"

var jpegFrame = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 0x4a, 0x46}

func newMockedHTTPClient(t *testing.T) *httpclient.Client {
	t.Helper()
	inner := &http.Client{}
	httpmock.ActivateNonDefault(inner)
	t.Cleanup(httpmock.DeactivateAndReset)
	return httpclient.NewFromHTTPClient(inner, nil)
}

func TestAcquireVideoAndSnapshot(t *testing.T) {
	client := newMockedHTTPClient(t)
	httpmock.RegisterResponder(http.MethodGet, cameraURL,
		httpmock.NewBytesResponder(http.StatusOK, jpegFrame))

	cap, err := AcquireVideo(context.Background(), cameraURL, client)
	require.NoError(t, err)
	assert.Equal(t, threat.InputVideo, cap.Kind())

	feature, err := cap.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, jpegFrame, feature.Frame)

	cap.Release()
}

func TestAcquireVideoPermissionDenied(t *testing.T) {
	client := newMockedHTTPClient(t)
	httpmock.RegisterResponder(http.MethodGet, cameraURL,
		httpmock.NewStringResponder(http.StatusForbidden, "forbidden"))

	_, err := AcquireVideo(context.Background(), cameraURL, client)
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestAcquireVideoDeviceUnavailable(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
	}{
		{"connection_refused", httpmock.NewErrorResponder(assert.AnError)},
		{"not_found", httpmock.NewStringResponder(http.StatusNotFound, "nope")},
		{"empty_frame", httpmock.NewBytesResponder(http.StatusOK, nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newMockedHTTPClient(t)
			httpmock.RegisterResponder(http.MethodGet, cameraURL, tt.responder)

			_, err := AcquireVideo(context.Background(), cameraURL, client)
			require.ErrorIs(t, err, ErrDeviceUnavailable)
		})
	}
}

func TestAcquireVideoEmptySource(t *testing.T) {
	client := newMockedHTTPClient(t)

	_, err := AcquireVideo(context.Background(), "", client)
	require.ErrorIs(t, err, ErrDeviceUnavailable)
}

func TestSnapshotAfterReleaseFails(t *testing.T) {
	client := newMockedHTTPClient(t)
	httpmock.RegisterResponder(http.MethodGet, cameraURL,
		httpmock.NewBytesResponder(http.StatusOK, jpegFrame))

	cap, err := AcquireVideo(context.Background(), cameraURL, client)
	require.NoError(t, err)

	cap.Release()
	cap.Release() // idempotent

	_, err = cap.Snapshot()
	require.Error(t, err)
}
