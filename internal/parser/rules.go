package parser

import (
	"fmt"
	"regexp"
	"strings"
)

const numberPattern = `([0-9]+(?:[.,][0-9]+)?)`

// Rules is the ordered table of label patterns the parser tries per line.
// The first capture group of every pattern holds the field value.
type Rules struct {
	// Identifier announces a network in list output.
	Identifier []*regexp.Regexp
	// Connected announces the associated network in interface output.
	Connected []*regexp.Regexp
	// Exclude rejects lines that look like an identifier but carry a
	// hardware address.
	Exclude []*regexp.Regexp
	Signal  []*regexp.Regexp
	Channel []*regexp.Regexp
}

// DefaultRules covers the English and French netsh vocabularies.
func DefaultRules() Rules {
	return Rules{
		Identifier: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^SSID\s*\d+\s*:\s*(.*)$`),
			regexp.MustCompile(`(?i)^SSID\s*:\s*(.*)$`),
			regexp.MustCompile(`(?i)^Profile\s*:\s*(.*)$`),
			regexp.MustCompile(`(?i)^Nom du r[ée]seau\s*:\s*(.*)$`),
			regexp.MustCompile(`(?i)^Network name\s*:\s*(.*)$`),
		},
		Connected: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^SSID\s*:\s*(.*)$`),
			regexp.MustCompile(`(?i)^Nom du r[ée]seau\s*:\s*(.*)$`),
		},
		Exclude: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bBSSID\b`),
			regexp.MustCompile(`(?i)\bAP\s+BSSID\b`),
		},
		Signal: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bSignal\s*:\s*` + numberPattern + `\s*%`),
			regexp.MustCompile(`(?i)\bSignal\s*Quality\s*:\s*` + numberPattern),
			regexp.MustCompile(`(?i)\bStrength\s*:\s*` + numberPattern),
			regexp.MustCompile(`(?i)\bQualit[ée] du signal\s*:\s*` + numberPattern),
		},
		Channel: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^Channel\s*:\s*(\S+)`),
			regexp.MustCompile(`(?i)^Canal\s*:\s*(\S+)`),
		},
	}
}

// Labels holds extra label spellings supplied by configuration.
type Labels struct {
	Identifier []string
	Signal     []string
	Channel    []string
}

// With returns a copy of r with patterns for the extra labels appended after
// the built-in ones.
func (r Rules) With(extra Labels) (Rules, error) {
	out := Rules{
		Identifier: append([]*regexp.Regexp(nil), r.Identifier...),
		Connected:  append([]*regexp.Regexp(nil), r.Connected...),
		Exclude:    append([]*regexp.Regexp(nil), r.Exclude...),
		Signal:     append([]*regexp.Regexp(nil), r.Signal...),
		Channel:    append([]*regexp.Regexp(nil), r.Channel...),
	}
	for _, label := range extra.Identifier {
		re, err := labelPattern(label, `^%s\s*(?:\d+\s*)?:\s*(.*)$`)
		if err != nil {
			return Rules{}, err
		}
		out.Identifier = append(out.Identifier, re)
		out.Connected = append(out.Connected, re)
	}
	for _, label := range extra.Signal {
		re, err := labelPattern(label, `\b%s\s*:\s*`+numberPattern)
		if err != nil {
			return Rules{}, err
		}
		out.Signal = append(out.Signal, re)
	}
	for _, label := range extra.Channel {
		re, err := labelPattern(label, `^%s\s*:\s*(\S+)`)
		if err != nil {
			return Rules{}, err
		}
		out.Channel = append(out.Channel, re)
	}
	return out, nil
}

func labelPattern(label, layout string) (*regexp.Regexp, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, fmt.Errorf("empty label")
	}
	re, err := regexp.Compile("(?i)" + fmt.Sprintf(layout, regexp.QuoteMeta(label)))
	if err != nil {
		return nil, fmt.Errorf("compile label %q: %w", label, err)
	}
	return re, nil
}

func firstMatch(patterns []*regexp.Regexp, line string) (string, bool) {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(line); m != nil {
			return m[1], true
		}
	}
	return "", false
}

func anyMatch(patterns []*regexp.Regexp, line string) bool {
	for _, re := range patterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}
