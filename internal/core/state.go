package core

import (
	"fmt"
	"time"
)

// PlayerState is derived from the audio engine on demand.
type PlayerState struct {
	Duration  time.Duration `json:"duration"`
	Position  time.Duration `json:"position"`
	IsPlaying bool          `json:"is_playing"`
}

// ProgressPercent returns playback progress as a percentage (0-100).
func (s *PlayerState) ProgressPercent() float64 {
	if s == nil || s.Duration == 0 {
		return 0
	}
	return float64(s.Position) / float64(s.Duration) * 100
}

// RepeatMode controls what plays after the last item.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatOne
	RepeatAll
)

func (m RepeatMode) String() string {
	switch m {
	case RepeatOne:
		return "one"
	case RepeatAll:
		return "all"
	default:
		return "off"
	}
}

// Cycle returns the mode after m in the order off, all, one.
func (m RepeatMode) Cycle() RepeatMode {
	switch m {
	case RepeatOff:
		return RepeatAll
	case RepeatAll:
		return RepeatOne
	default:
		return RepeatOff
	}
}

// ParseRepeatMode parses "off", "one" or "all".
func ParseRepeatMode(s string) (RepeatMode, error) {
	switch s {
	case "", "off":
		return RepeatOff, nil
	case "one", "track":
		return RepeatOne, nil
	case "all", "context":
		return RepeatAll, nil
	}
	return RepeatOff, fmt.Errorf("invalid repeat mode: %s (must be off, one, or all)", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m RepeatMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *RepeatMode) UnmarshalText(b []byte) error {
	parsed, err := ParseRepeatMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
