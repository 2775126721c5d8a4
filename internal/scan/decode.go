package scan

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// Decoder turns raw command output into normalized text. With no explicit
// encoding, valid UTF-8 is kept and anything else is read as Windows-1252,
// the usual console code page for netsh on western locales.
type Decoder struct {
	enc  encoding.Encoding
	name string
}

// NewDecoder resolves an encoding label such as "utf-8", "windows-1252" or
// "ibm850". An empty label or "auto" selects detection.
func NewDecoder(label string) (*Decoder, error) {
	label = strings.TrimSpace(label)
	if label == "" || strings.EqualFold(label, "auto") {
		return &Decoder{name: "auto"}, nil
	}
	enc, name := charset.Lookup(label)
	if enc == nil {
		if strings.EqualFold(label, "ibm850") || strings.EqualFold(label, "cp850") {
			return &Decoder{enc: charmap.CodePage850, name: "ibm850"}, nil
		}
		return nil, fmt.Errorf("unknown encoding: %q", label)
	}
	return &Decoder{enc: enc, name: name}, nil
}

// Name returns the canonical encoding name.
func (d *Decoder) Name() string {
	return d.name
}

// Decode converts raw into a string, dropping carriage returns and byte
// order marks and turning non-breaking spaces into plain spaces.
func (d *Decoder) Decode(raw []byte) (string, error) {
	enc := d.enc
	if enc == nil {
		if utf8.Valid(raw) {
			enc = encoding.Nop
		} else {
			enc = charmap.Windows1252
		}
	}
	t := transform.Chain(enc.NewDecoder(), normalizer())
	out, _, err := transform.Bytes(t, raw)
	if err != nil {
		return "", fmt.Errorf("decode %s output: %w", d.name, err)
	}
	return string(out), nil
}

func normalizer() transform.Transformer {
	return transform.Chain(
		runes.Remove(runes.Predicate(func(r rune) bool {
			return r == '\r' || r == '\uFEFF'
		})),
		runes.Map(func(r rune) rune {
			switch r {
			case '\u00A0', '\u202F':
				return ' '
			}
			return r
		}),
	)
}
