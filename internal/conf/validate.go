package conf

import (
	"fmt"
)

// Failure modes for the classifier. Fail-open (safe) degrades every failed
// classification to SAFE; fail-closed (escalate) treats failures as WEAPON.
// Fail-open trades false negatives for availability and is the wrong choice
// for a safety-critical deployment, which is why the mode is configurable.
const (
	FailModeSafe     = "safe"
	FailModeEscalate = "escalate"
)

// validateSettings checks cross-field constraints that viper cannot express.
func validateSettings(settings *Settings) error {
	if settings.Classifier.Provider != "gemini" {
		return fmt.Errorf("unsupported classifier provider: %s", settings.Classifier.Provider)
	}

	switch settings.Classifier.FailMode {
	case FailModeSafe, FailModeEscalate:
	default:
		return fmt.Errorf("classifier failmode must be %q or %q, got %q",
			FailModeSafe, FailModeEscalate, settings.Classifier.FailMode)
	}

	if settings.Monitor.Audio.Enabled && settings.Monitor.Audio.Interval <= 0 {
		return fmt.Errorf("monitor.audio.interval must be positive")
	}
	if settings.Monitor.Video.Enabled {
		if settings.Monitor.Video.Interval <= 0 {
			return fmt.Errorf("monitor.video.interval must be positive")
		}
		if settings.Monitor.Video.Source == "" {
			return fmt.Errorf("monitor.video.source is required when video monitoring is enabled")
		}
	}

	if settings.Analysis.WeaponThreshold < settings.Analysis.ViolenceThreshold {
		return fmt.Errorf("analysis.weaponthreshold (%.1f) must not be below analysis.violencethreshold (%.1f)",
			settings.Analysis.WeaponThreshold, settings.Analysis.ViolenceThreshold)
	}

	if settings.Output.SQLite.Enabled && settings.Output.MySQL.Enabled {
		return fmt.Errorf("only one of output.sqlite and output.mysql may be enabled")
	}

	if settings.Alert.Push.Enabled && len(settings.Alert.Push.URLs) == 0 {
		return fmt.Errorf("alert.push.urls is required when push alerts are enabled")
	}

	return nil
}
