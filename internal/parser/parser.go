// Package parser turns scanner text into structured signal observations.
package parser

import (
	"strconv"
	"strings"

	"github.com/doridoridoriand/wifiwatch/internal/signal"
)

// Parser applies a Rules table to raw scanner output. It holds no state
// between calls and is safe for concurrent use.
type Parser struct {
	rules Rules
}

// New returns a parser using rules.
func New(rules Rules) *Parser {
	return &Parser{rules: rules}
}

// Default returns a parser with DefaultRules.
func Default() *Parser {
	return New(DefaultRules())
}

type reading struct {
	level   float64
	channel int
}

type accumulator struct {
	readings       []reading
	pendingChannel int
}

// Parse reads a network list and reduces every identifier to its strongest
// reading. Identifiers without any reading are reported as unmeasured with
// signal.NoSignal. Malformed numeric fields are skipped and counted.
func (p *Parser) Parse(raw string) signal.ScanResult {
	result := signal.NewScanResult()
	acc := make(map[string]*accumulator)
	current := ""

	for _, line := range splitLines(raw) {
		if value, ok := firstMatch(p.rules.Identifier, line); ok {
			current = identifier(value)
			if _, exists := acc[current]; !exists {
				acc[current] = &accumulator{}
			}
			continue
		}
		if current == "" {
			continue
		}
		entry := acc[current]

		if value, ok := firstMatch(p.rules.Signal, line); ok {
			level, err := parsePercent(value)
			if err != nil {
				result.Malformed++
				continue
			}
			entry.readings = append(entry.readings, reading{level: level, channel: entry.pendingChannel})
			entry.pendingChannel = 0
			continue
		}

		if value, ok := firstMatch(p.rules.Channel, line); ok {
			ch, err := strconv.Atoi(value)
			if err != nil || ch <= 0 {
				result.Malformed++
				continue
			}
			if n := len(entry.readings); n > 0 && entry.readings[n-1].channel == 0 {
				entry.readings[n-1].channel = ch
			} else {
				entry.pendingChannel = ch
			}
		}
	}

	for id, entry := range acc {
		result.Networks[id] = reduce(entry)
	}
	return result
}

// ResolveConnection reads interface status output. The last identifier line
// and the last signal line in the text win.
func (p *Parser) ResolveConnection(raw string) signal.ConnectionState {
	var state signal.ConnectionState
	for _, line := range splitLines(raw) {
		if anyMatch(p.rules.Exclude, line) {
			continue
		}
		if value, ok := firstMatch(p.rules.Connected, line); ok {
			state.Identifier = identifier(value)
			continue
		}
		if value, ok := firstMatch(p.rules.Signal, line); ok {
			level, err := parsePercent(value)
			if err != nil {
				continue
			}
			state.Level = &level
		}
	}
	if state.Identifier == "" {
		return signal.ConnectionState{}
	}
	return state
}

func reduce(entry *accumulator) signal.Observation {
	if len(entry.readings) == 0 {
		return signal.Observation{Level: signal.NoSignal, Channel: entry.pendingChannel}
	}
	best := entry.readings[0]
	for _, r := range entry.readings[1:] {
		if r.level > best.level {
			best = r
		}
	}
	return signal.Observation{Level: best.level, Channel: best.channel, Measured: true}
}

func identifier(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return signal.HiddenIdentifier
	}
	return value
}

type rangeError struct{ value float64 }

func (e rangeError) Error() string {
	return "signal level out of range: " + strconv.FormatFloat(e.value, 'f', -1, 64)
}

func parsePercent(value string) (float64, error) {
	level, err := strconv.ParseFloat(strings.Replace(value, ",", ".", 1), 64)
	if err != nil {
		return 0, err
	}
	if level < 0 || level > 100 {
		return 0, rangeError{value: level}
	}
	return level, nil
}

func splitLines(raw string) []string {
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return lines
}
