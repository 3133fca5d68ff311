// Package capture acquires sensor streams and exposes point-in-time feature
// snapshots from them: an average amplitude for microphones and an encoded
// JPEG still for cameras.
package capture

import (
	"github.com/safecity/safecity-go/internal/errors"
	"github.com/safecity/safecity-go/internal/threat"
)

// Sentinel acquisition errors. These block entry into a monitoring session;
// they are the only capture errors surfaced to the operator.
var (
	ErrPermissionDenied  = errors.NewStd("capture: permission denied")
	ErrDeviceUnavailable = errors.NewStd("capture: device unavailable")
)

// Feature is one synchronous snapshot of a capture's current state.
type Feature struct {
	Kind threat.InputKind
	// Volume is the rolling average amplitude (0..255) for audio captures.
	Volume float64
	// Frame holds the encoded JPEG still for video captures.
	Frame []byte
}

// Capture is a handle to an acquired media source.
//
// Snapshot reads the current buffered sensor state; it must not block on
// device I/O for audio sources. Release stops the underlying device and is
// idempotent.
type Capture interface {
	Kind() threat.InputKind
	Snapshot() (Feature, error)
	Release()
}

// LevelData carries the cosmetic VU feedback published by audio captures.
// Delivery is best-effort: consumers that fall behind lose samples, and a
// missing consumer never affects classification.
type LevelData struct {
	Level    int  // 0..100
	Clipping bool // true when the source saturated during the last block
}
