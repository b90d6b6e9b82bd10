// Package command validates and dispatches writes to the HVAC mode property.
package command

import "hvac-node/errcode"

// Mode is the closed set of HVAC instructions understood by the node.
type Mode uint8

const (
	ModeUnknown Mode = iota
	ModeOff
	ModeDry
	ModeHeatAuto22
)

// modes maps the exact, case-sensitive wire values.
var modes = map[string]Mode{
	"off":    ModeOff,
	"dry":    ModeDry,
	"Heat22": ModeHeatAuto22,
}

func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeDry:
		return "dry"
	case ModeHeatAuto22:
		return "heat_auto_22"
	default:
		return "unknown"
	}
}

// Description is the human-readable action logged for the mode.
func (m Mode) Description() string {
	switch m {
	case ModeOff:
		return "Send Power Off to HVAC"
	case ModeDry:
		return "Send dry mode to HVAC"
	case ModeHeatAuto22:
		return "Send Heating / Auto / 22°c to HVAC"
	default:
		return "Unknown mode!"
	}
}

// ParseMode resolves a configuration key (the Mode String form) to a Mode.
func ParseMode(s string) (Mode, bool) {
	for _, m := range []Mode{ModeOff, ModeDry, ModeHeatAuto22} {
		if m.String() == s {
			return m, true
		}
	}
	return ModeUnknown, false
}

// Classify maps a non-empty raw value to a Mode. It never fails.
func Classify(raw string) Mode {
	if m, ok := modes[raw]; ok {
		return m
	}
	return ModeUnknown
}

// Validate rejects the empty string, the only malformed input.
func Validate(raw string) error {
	if raw == "" {
		return errcode.EmptyCommand
	}
	return nil
}

// Decide is the pure dispatch decision: whether the write is accepted and
// what it classifies as. Unrecognised non-empty values are accepted.
func Decide(raw string) (accepted bool, m Mode) {
	if Validate(raw) != nil {
		return false, ModeUnknown
	}
	return true, Classify(raw)
}
