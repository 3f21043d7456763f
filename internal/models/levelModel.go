package models

import (
	"math"
	"time"
)

// SignalLevel remembers the last emitted setup for an instrument.
type SignalLevel struct {
	Symbol    string    `json:"symbol"`
	Direction Direction `json:"direction"`
	Entry     float64   `json:"entry"`
	Stop      float64   `json:"stop"`
	SentAt    time.Time `json:"sent_at"`
}

// SameSetup reports whether entry and stop are both within tolerance
// (a fraction, 0.001 = 0.1%) of the remembered levels.
func (l SignalLevel) SameSetup(direction Direction, entry, stop, tolerance float64) bool {
	if l.Direction != direction || l.Entry <= 0 || l.Stop <= 0 {
		return false
	}
	return math.Abs(entry-l.Entry)/l.Entry <= tolerance &&
		math.Abs(stop-l.Stop)/l.Stop <= tolerance
}
