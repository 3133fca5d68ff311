package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestSettings() *Settings {
	s := &Settings{}
	s.Classifier.Provider = "gemini"
	s.Classifier.FailMode = FailModeSafe
	s.Monitor.Audio.Enabled = true
	s.Monitor.Audio.Interval = 2 * time.Second
	s.Analysis.ViolenceThreshold = 120
	s.Analysis.WeaponThreshold = 180
	s.Output.SQLite.Enabled = true
	return s
}

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	require.NoError(t, validateSettings(validTestSettings()))
}

func TestValidateSettingsRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantMsg string
	}{
		{
			name:    "unknown_provider",
			mutate:  func(s *Settings) { s.Classifier.Provider = "oracle" },
			wantMsg: "unsupported classifier provider",
		},
		{
			name:    "bad_failmode",
			mutate:  func(s *Settings) { s.Classifier.FailMode = "panic" },
			wantMsg: "failmode",
		},
		{
			name:    "zero_audio_interval",
			mutate:  func(s *Settings) { s.Monitor.Audio.Interval = 0 },
			wantMsg: "monitor.audio.interval",
		},
		{
			name: "video_without_source",
			mutate: func(s *Settings) {
				s.Monitor.Video.Enabled = true
				s.Monitor.Video.Interval = 5 * time.Second
			},
			wantMsg: "monitor.video.source",
		},
		{
			name:    "inverted_thresholds",
			mutate:  func(s *Settings) { s.Analysis.WeaponThreshold = 50 },
			wantMsg: "weaponthreshold",
		},
		{
			name:    "two_stores",
			mutate:  func(s *Settings) { s.Output.MySQL.Enabled = true },
			wantMsg: "only one of",
		},
		{
			name:    "push_without_urls",
			mutate:  func(s *Settings) { s.Alert.Push.Enabled = true },
			wantMsg: "alert.push.urls",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := validTestSettings()
			tt.mutate(s)
			err := validateSettings(s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestGenerateRandomSecret(t *testing.T) {
	t.Parallel()

	a := GenerateRandomSecret()
	b := GenerateRandomSecret()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
