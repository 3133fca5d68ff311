package threat

import (
	"time"

	"github.com/google/uuid"
)

// InputKind identifies the sensor or surface that produced an observation.
type InputKind string

const (
	InputText  InputKind = "TEXT"
	InputAudio InputKind = "AUDIO"
	InputVideo InputKind = "VIDEO"
)

// Observation is one snapshot→classification round trip produced during an
// active monitoring session. Observations are not held locally beyond the
// session's current level, they are forwarded to the record store as a
// detached side effect.
type Observation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
	Kind      InputKind `json:"type"`
	Level     Level     `json:"threatLevel"`
	Reason    string    `json:"reason,omitempty"`
	// Summary is a short description of the classified input, either the
	// average amplitude for audio or a content snippet for text/video.
	Summary string `json:"contentSnippet,omitempty"`
	// Volume carries the raw audio feature when Kind is InputAudio.
	Volume float64 `json:"averageVolume,omitempty"`
}

// NewObservation stamps a fresh observation with an ID and the current time.
func NewObservation(userID string, kind InputKind, level Level, reason string) Observation {
	return Observation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Timestamp: time.Now(),
		Kind:      kind,
		Level:     level,
		Reason:    reason,
	}
}
