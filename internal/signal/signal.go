package signal

import (
	"fmt"
	"strings"
	"time"
)

// Unit is the measurement unit a pipeline commits to for its lifetime.
type Unit string

const (
	UnitPercent Unit = "percent"
	UnitDBm     Unit = "dbm"
)

// NoSignal is the percent level reported for networks that were announced
// without any readable signal line.
const NoSignal = 0.0

// HiddenIdentifier replaces empty network names.
const HiddenIdentifier = "(hidden)"

// ParseUnit accepts the unit names used in config files and flags.
func ParseUnit(value string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "percent", "pct", "%":
		return UnitPercent, nil
	case "dbm":
		return UnitDBm, nil
	default:
		return "", fmt.Errorf("unknown unit: %q", value)
	}
}

// FromPercent converts a percent reading into u.
func (u Unit) FromPercent(percent float64) float64 {
	if u == UnitDBm {
		return PercentToDBm(percent)
	}
	return percent
}

// ToPercent converts a level expressed in u back to percent.
func (u Unit) ToPercent(level float64) float64 {
	if u == UnitDBm {
		return DBmToPercent(level)
	}
	return level
}

// Range returns the display bounds of u.
func (u Unit) Range() (min, max float64) {
	if u == UnitDBm {
		return -100, 0
	}
	return 0, 100
}

// Suffix is the short label printed after a level.
func (u Unit) Suffix() string {
	if u == UnitDBm {
		return "dBm"
	}
	return "%"
}

// PercentToDBm maps the scanner's 0..100 quality scale onto -100..-50 dBm.
func PercentToDBm(percent float64) float64 {
	return percent/2 - 100
}

// DBmToPercent is the inverse of PercentToDBm, clamped to 0..100.
func DBmToPercent(dbm float64) float64 {
	p := (dbm + 100) * 2
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// Sample is a single timestamped reading.
type Sample struct {
	Time  time.Time `json:"time"`
	Level float64   `json:"level"`
}

// Observation is the reduced reading for one network in one scan.
type Observation struct {
	Level    float64 `json:"level"`
	Channel  int     `json:"channel,omitempty"`
	Measured bool    `json:"measured"`
}

// ScanResult holds every network seen in one scan, keyed by identifier.
type ScanResult struct {
	Networks  map[string]Observation
	Malformed int
}

// NewScanResult returns an empty result.
func NewScanResult() ScanResult {
	return ScanResult{Networks: make(map[string]Observation)}
}

// Empty reports whether no network was recognized.
func (r ScanResult) Empty() bool {
	return len(r.Networks) == 0
}

// Levels returns identifier -> level, mostly useful in tests and logs.
func (r ScanResult) Levels() map[string]float64 {
	out := make(map[string]float64, len(r.Networks))
	for id, obs := range r.Networks {
		out[id] = obs.Level
	}
	return out
}

// ConnectionState describes the associated network, if any.
type ConnectionState struct {
	Identifier string   `json:"identifier,omitempty"`
	Level      *float64 `json:"level,omitempty"`
}

// Connected reports whether an identifier was resolved.
func (c ConnectionState) Connected() bool {
	return c.Identifier != ""
}

// InUnit returns a copy of c with its level converted from percent to u.
func (c ConnectionState) InUnit(u Unit) ConnectionState {
	if c.Level == nil {
		return c
	}
	level := u.FromPercent(*c.Level)
	return ConnectionState{Identifier: c.Identifier, Level: &level}
}
