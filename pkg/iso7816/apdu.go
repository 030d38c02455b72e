package iso7816

import (
	"bytes"
	"fmt"
)

// APDU (Application Protocol Data Unit) structures and encodings according to ISO/IEC 7816-3 and 7816-4.
//
// COMMAND APDU (C-APDU):
// A command consists of a mandatory 4-byte header (CLA, INS, P1, P2) and an
// optional body (Lc + Data, then Le).
//
// ENCODING CASES (ISO 7816-3):
// - Case 1: No Data, No Response (Header only).
// - Case 2: No Data, Response Expected (Header + Le).
// - Case 3: Data Present, No Response (Header + Lc + Data).
// - Case 4: Data Present, Response Expected (Header + Lc + Data + Le).
//
// LENGTH MODES:
//   - Short Length: Lc/Le encoded on 1 byte (Max 255/256). In Short mode an
//     Le byte of 0x00 encodes 256.
//   - Extended Length: Lc/Le encoded on multiple bytes (Max 65535/65536).
//     Extended mode is triggered if Lc > 255 or Le > 256.
//
// RESPONSE APDU (R-APDU):
// The card replies with an optional data field followed by a mandatory
// 2-byte trailer (SW1, SW2), e.g. 0x9000 for success.

// APDU Limits and Constants according to ISO 7816-3.
const (
	// MaxShortLc is the maximum data length (Nc) encodable in Short Length mode (1 byte).
	MaxShortLc = 255

	// MaxShortLe is the maximum expected response length (Ne) encodable in Short Length mode.
	// In Short mode, 0x00 encodes 256.
	MaxShortLe = 256

	// MaxExtendedLc is the theoretical limit for Lc in Extended mode (16-bit unsigned).
	MaxExtendedLc = 65535

	// MaxExtendedLe is the maximum Ne encodable in Extended Length mode.
	// In Extended mode, 0x0000 encodes 65536.
	MaxExtendedLe = 65536
)

// Command represents a command APDU. CLA and INS are carried as raw bytes:
// EMV mixes interindustry commands (CLA 0x00) with proprietary ones
// (CLA 0x80) and nothing here needs the decoded class structure.
type Command struct {
	CLA, INS, P1, P2 byte
	Data             []byte
	Ne               int // Expected response length (0 means none)
}

// NewCommand creates a basic command.
func NewCommand(cla, ins, p1, p2 byte, data []byte, ne int) *Command {
	return &Command{
		CLA:  cla,
		INS:  ins,
		P1:   p1,
		P2:   p2,
		Data: data,
		Ne:   ne,
	}
}

// Bytes encodes the Command into its byte representation (C-APDU).
// It automatically selects between Short and Extended encoding based on the
// length of Data (Nc) and the expected response length (Ne).
func (c *Command) Bytes() ([]byte, error) {
	nc := len(c.Data)
	ne := c.Ne

	if nc > MaxExtendedLc {
		return nil, fmt.Errorf("data length %d exceeds extended Lc limit %d", nc, MaxExtendedLc)
	}
	if ne > MaxExtendedLe {
		return nil, fmt.Errorf("expected length %d exceeds extended Le limit %d", ne, MaxExtendedLe)
	}

	buf := new(bytes.Buffer)
	buf.WriteByte(c.CLA)
	buf.WriteByte(c.INS)
	buf.WriteByte(c.P1)
	buf.WriteByte(c.P2)

	isExtended := nc > MaxShortLc || ne > MaxShortLe

	if nc > 0 {
		if !isExtended {
			// Case 3/4 Short: Lc (1 byte) + Data
			buf.WriteByte(byte(nc))
		} else {
			// Case 3/4 Extended: 00 + Lc (2 bytes) + Data
			buf.WriteByte(0x00)
			buf.WriteByte(byte(nc >> 8))
			buf.WriteByte(byte(nc))
		}
		buf.Write(c.Data)
	}

	if ne > 0 {
		if !isExtended {
			// Case 2/4 Short: Le (1 byte)
			if ne == MaxShortLe {
				buf.WriteByte(0x00) // 0x00 represents 256
			} else {
				buf.WriteByte(byte(ne))
			}
		} else {
			// Case 2/4 Extended
			// If Lc was absent (Case 2 Extended), a leading 00 distinguishes Le from Lc.
			if nc == 0 {
				buf.WriteByte(0x00)
			}

			if ne == MaxExtendedLe {
				// 0x0000 represents 65536
				buf.WriteByte(0x00)
				buf.WriteByte(0x00)
			} else {
				// Le (2 bytes Big Endian)
				buf.WriteByte(byte(ne >> 8))
				buf.WriteByte(byte(ne))
			}
		}
	}

	return buf.Bytes(), nil
}

// String returns a readable representation of the command meta-data.
func (c *Command) String() string {
	return fmt.Sprintf("%s | CLA: %02X, P1: %02X, P2: %02X | Lc: %d | Le: %d",
		InstructionName(c.INS), c.CLA, c.P1, c.P2, len(c.Data), c.Ne)
}

// Response represents the reply from the card (R-APDU).
type Response struct {
	Data []byte
	SW   StatusWord
}

// ParseResponse parses raw bytes received from the card into a Response.
// The input must contain at least 2 bytes (SW1, SW2).
func ParseResponse(raw []byte) (*Response, error) {
	if len(raw) < 2 {
		return nil, fmt.Errorf("response too short: length %d", len(raw))
	}

	indexSW1 := len(raw) - 2
	data := raw[:indexSW1]
	sw1 := raw[indexSW1]
	sw2 := raw[indexSW1+1]

	return &Response{
		Data: data,
		SW:   NewStatusWord(sw1, sw2),
	}, nil
}

// String returns a readable representation of the response.
func (r *Response) String() string {
	return fmt.Sprintf("Data (%d bytes) | Status: %s", len(r.Data), r.SW.Verbose())
}
