package emv

import (
	"encoding/hex"
	"strings"

	"github.com/tapnkit/tapscan/pkg/tlv"
)

// CARDHOLDER DATA EXTRACTION.
//
// The records read after GPO carry the identifying fields this tool is
// after. Three tags matter:
//
//   - 57   Track 2 Equivalent Data: PAN and expiration packed as BCD
//          digits around a separator nibble 'D'.
//   - 5A   Application PAN: the PAN alone, BCD with optional 'F' filler.
//   - 5F24 Application Expiration Date: three BCD bytes.
//
// Fields follow a first-discovery-wins policy: once populated by one
// record they are never overwritten by a later one, in read order.

// CardData aggregates the cardholder fields discovered across record reads.
// PAN holds the digit string as read with trailing filler stripped, not
// masked; callers present it through MaskPAN.
type CardData struct {
	PAN         string
	ExpiryMonth string
	ExpiryYear  string
}

// Absorb walks a decoded record depth-first and fills any still-empty
// fields it finds values for.
func (c *CardData) Absorb(nodes []tlv.Node) {
	for i := range nodes {
		c.absorbNode(&nodes[i])
		c.Absorb(nodes[i].Children)
	}
}

// HasPAN reports whether a PAN has been discovered yet.
func (c *CardData) HasPAN() bool {
	return c.PAN != ""
}

// Expiry returns the expiration in display form ("04/26"), or the empty
// string when no expiration was found.
func (c *CardData) Expiry() string {
	if c.ExpiryMonth == "" {
		return ""
	}
	return c.ExpiryMonth + "/" + c.ExpiryYear
}

func (c *CardData) absorbNode(n *tlv.Node) {
	switch n.Tag {
	case 0x57:
		c.absorbTrack2(n.Value)
	case 0x5A:
		if c.PAN == "" {
			c.PAN = strings.TrimRight(hexDigits(n.Value), "F")
		}
	case 0x5F24:
		if c.ExpiryMonth == "" {
			c.absorbExpirationDate(n.Value)
		}
	}
}

// absorbTrack2 splits Track 2 Equivalent Data at its separator: PAN digits
// before, then four expiration digits in YYMM order. Values without a
// separator are ignored entirely. Service code and discretionary data are
// discarded.
func (c *CardData) absorbTrack2(value []byte) {
	digits := hexDigits(value)

	sep := strings.IndexAny(digits, "D=")
	if sep < 0 {
		return
	}

	if c.PAN == "" {
		c.PAN = strings.TrimRight(digits[:sep], "F")
	}

	rest := digits[sep+1:]
	if len(rest) >= 4 && c.ExpiryMonth == "" {
		c.ExpiryYear = rest[:2]
		c.ExpiryMonth = rest[2:4]
	}
}

// absorbExpirationDate reads tag 5F24, which encodes YYMMDD. The first
// digit pair is presented as the month to match the labeling the activation
// screens have always used, even though the field is year-first.
func (c *CardData) absorbExpirationDate(value []byte) {
	digits := hexDigits(value)
	if len(digits) < 4 {
		return
	}
	c.ExpiryMonth = digits[:2]
	c.ExpiryYear = digits[2:4]
}

// MaskPAN produces the display form of a PAN digit string. Trailing 'F'
// filler is stripped first. Strings with fewer than eight digits come back
// as they are; otherwise everything between the first and last four digits
// is replaced with one bullet per hidden digit.
func MaskPAN(pan string) string {
	trimmed := strings.TrimRight(pan, "F")
	if len(trimmed) < 8 {
		return trimmed
	}

	hidden := strings.Repeat("•", len(trimmed)-8)
	return trimmed[:4] + " " + hidden + " " + trimmed[len(trimmed)-4:]
}

func hexDigits(value []byte) string {
	return strings.ToUpper(hex.EncodeToString(value))
}
