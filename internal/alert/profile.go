// Package alert maps threat levels to presentation profiles and fires
// audible/push cues on level transitions.
package alert

import "github.com/safecity/safecity-go/internal/threat"

// Cue identifies the sound played for a level transition.
type Cue string

const (
	CueNone  Cue = "none"
	CueBeep  Cue = "beep"  // short cue for VIOLENCE
	CueSiren Cue = "siren" // longer, urgent cue for WEAPON
)

// Profile is the visual and audible treatment of a threat level. It is a
// pure function of the level, derived on demand and never stored.
type Profile struct {
	Title       string
	Description string
	Color       string
	Cue         Cue
}

// ProfileFor returns the presentation profile for a level. Unknown levels
// get the SAFE profile.
func ProfileFor(level threat.Level) Profile {
	switch level {
	case threat.LevelViolence:
		return Profile{
			Title:       "VIOLENCE DETECTED",
			Description: "Potential aggression or physical conflict identified.",
			Color:       "amber",
			Cue:         CueBeep,
		}
	case threat.LevelWeapon:
		return Profile{
			Title:       "WEAPON DETECTED",
			Description: "Lethal weapon signature identified. Immediate action required.",
			Color:       "red",
			Cue:         CueSiren,
		}
	default:
		return Profile{
			Title:       "SAFE",
			Description: "No threats detected. Situation normal.",
			Color:       "emerald",
			Cue:         CueNone,
		}
	}
}

// StatusLine returns the operator-facing one-line summary for a level.
func StatusLine(level threat.Level) string {
	switch level {
	case threat.LevelViolence:
		return "Safe City Alert: Aggressive behavior or physical conflict detected."
	case threat.LevelWeapon:
		return "CRITICAL CITY ALERT: Weapon signature identified."
	case threat.LevelSafe:
		return "Safe City Status: Normal. No threats detected."
	default:
		return "Unknown status."
	}
}
