package capture

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/safecity/safecity-go/internal/errors"
	"github.com/safecity/safecity-go/internal/httpclient"
	"github.com/safecity/safecity-go/internal/logging"
	"github.com/safecity/safecity-go/internal/threat"
)

const (
	// maxFrameBytes caps snapshot downloads; anything larger than this is
	// not a still frame from a sane camera.
	maxFrameBytes = 8 << 20

	snapshotTimeout = 10 * time.Second
)

// frameCapture pulls JPEG stills from an IP camera's snapshot endpoint.
type frameCapture struct {
	client      *httpclient.Client
	url         string
	releaseOnce sync.Once
	releasedMu  sync.Mutex // guards releasedSet
	releasedSet bool
}

// AcquireVideo probes the camera's snapshot URL and returns a Capture on
// success. 401/403 responses map to ErrPermissionDenied, anything else that
// prevents a frame fetch maps to ErrDeviceUnavailable.
func AcquireVideo(ctx context.Context, url string, client *httpclient.Client) (Capture, error) {
	if url == "" {
		return nil, errors.New(fmt.Errorf("%w: no camera source configured", ErrDeviceUnavailable)).
			Component("capture").
			Category(errors.CategoryCapture).
			Build()
	}

	fc := &frameCapture{client: client, url: url}
	if _, err := fc.fetchFrame(ctx); err != nil {
		return nil, err
	}

	logging.Info("video capture started", "source", url)
	return fc, nil
}

func (fc *frameCapture) Kind() threat.InputKind {
	return threat.InputVideo
}

// Snapshot fetches the camera's current frame.
func (fc *frameCapture) Snapshot() (Feature, error) {
	fc.releasedMu.Lock()
	gone := fc.releasedSet
	fc.releasedMu.Unlock()
	if gone {
		return Feature{}, errors.Newf("snapshot on released capture").
			Component("capture").
			Category(errors.CategoryState).
			Build()
	}

	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	frame, err := fc.fetchFrame(ctx)
	if err != nil {
		return Feature{}, err
	}
	return Feature{Kind: threat.InputVideo, Frame: frame}, nil
}

func (fc *frameCapture) fetchFrame(ctx context.Context) ([]byte, error) {
	resp, err := fc.client.Get(ctx, fc.url)
	if err != nil {
		return nil, errors.New(fmt.Errorf("%w: fetching frame: %w", ErrDeviceUnavailable, err)).
			Component("capture").
			Category(errors.CategoryCapture).
			Build()
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, errors.New(fmt.Errorf("%w: camera returned status %d", ErrPermissionDenied, resp.StatusCode)).
			Component("capture").
			Category(errors.CategoryCapture).
			Build()
	case resp.StatusCode != http.StatusOK:
		return nil, errors.New(fmt.Errorf("%w: camera returned status %d", ErrDeviceUnavailable, resp.StatusCode)).
			Component("capture").
			Category(errors.CategoryCapture).
			Build()
	}

	frame, err := io.ReadAll(io.LimitReader(resp.Body, maxFrameBytes+1))
	if err != nil {
		return nil, errors.New(fmt.Errorf("%w: reading frame: %w", ErrDeviceUnavailable, err)).
			Component("capture").
			Category(errors.CategoryCapture).
			Build()
	}
	if len(frame) == 0 {
		return nil, errors.New(fmt.Errorf("%w: camera returned an empty frame", ErrDeviceUnavailable)).
			Component("capture").
			Category(errors.CategoryCapture).
			Build()
	}
	if len(frame) > maxFrameBytes {
		return nil, errors.Newf("frame exceeds %d bytes", maxFrameBytes).
			Component("capture").
			Category(errors.CategoryCapture).
			Build()
	}
	return frame, nil
}

// Release marks the capture released. Idempotent; the underlying HTTP
// client is shared and stays open.
func (fc *frameCapture) Release() {
	fc.releaseOnce.Do(func() {
		fc.releasedMu.Lock()
		fc.releasedSet = true
		fc.releasedMu.Unlock()
		logging.Info("video capture released", "source", fc.url)
	})
}
