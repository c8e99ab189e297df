package ndcalc

import (
	"fmt"
	"strings"
)

// Mode selects how derivatives are computed.
type Mode int

const (
	// ModeAuto uses forward-mode automatic differentiation and falls back
	// to finite differences when it fails.
	ModeAuto Mode = iota

	// ModeForward uses forward-mode automatic differentiation only.
	ModeForward

	// ModeFiniteDiff uses central finite differences only.
	ModeFiniteDiff
)

// String returns the mode name as accepted by ParseMode.
func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeForward:
		return "forward"
	case ModeFiniteDiff:
		return "finitediff"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

func (m Mode) valid() bool {
	return m >= ModeAuto && m <= ModeFiniteDiff
}

// ParseMode parses a mode name. Matching is case-insensitive, and "fd"
// and "ad" are accepted as short forms.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto", "":
		return ModeAuto, nil
	case "forward", "ad":
		return ModeForward, nil
	case "finitediff", "finite-diff", "fd":
		return ModeFiniteDiff, nil
	default:
		return ModeAuto, fmt.Errorf("unknown mode %q (want auto, forward or finitediff)", s)
	}
}
