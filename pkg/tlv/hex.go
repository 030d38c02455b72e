package tlv

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Hex constructs a byte slice from a series of hex strings. It panics on bad
// input and is meant for literals in tests and examples.
func Hex(parts ...string) []byte {
	data, err := ParseHex(strings.Join(parts, ""))
	if err != nil {
		panic(err.Error())
	}
	return data
}

// ParseHex decodes a hex string, tolerating the spaces, tabs and newlines
// found in pasted trace dumps ("00 A4 04 00").
func ParseHex(s string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)

	data, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex input %q: %w", s, err)
	}
	return data, nil
}
