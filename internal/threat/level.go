// Package threat defines the threat classification domain model shared by
// the monitor, the classifier clients and the backend API.
package threat

import (
	"fmt"
	"strings"
)

// Level is the outcome of one classification call.
type Level string

const (
	LevelSafe     Level = "SAFE"
	LevelViolence Level = "VIOLENCE"
	LevelWeapon   Level = "WEAPON"
)

// Severity returns the relative severity of the level, SAFE < VIOLENCE < WEAPON.
// No arithmetic is performed on levels anywhere, the ordering exists for
// display and threshold comparisons only.
func (l Level) Severity() int {
	switch l {
	case LevelSafe:
		return 0
	case LevelViolence:
		return 1
	case LevelWeapon:
		return 2
	default:
		return -1
	}
}

// Valid reports whether the level is one of the three known values.
func (l Level) Valid() bool {
	return l.Severity() >= 0
}

func (l Level) String() string {
	return string(l)
}

// ParseLevel converts a string into a Level, accepting any casing.
// Unknown values return LevelSafe together with an error so that callers
// enforcing the fail-open policy can use the returned level as-is.
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToUpper(strings.TrimSpace(s))) {
	case LevelSafe:
		return LevelSafe, nil
	case LevelViolence:
		return LevelViolence, nil
	case LevelWeapon:
		return LevelWeapon, nil
	default:
		return LevelSafe, fmt.Errorf("unknown threat level %q", s)
	}
}
