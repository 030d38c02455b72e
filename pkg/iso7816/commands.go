package iso7816

import "fmt"

// Instruction (INS) codes used by this package, as defined in ISO/IEC 7816-4.
const (
	INS_SELECT       byte = 0xA4
	INS_READ_RECORD  byte = 0xB2
	INS_GET_RESPONSE byte = 0xC0
)

// InstructionName returns the ISO 7816-4 command name for an INS byte.
func InstructionName(ins byte) string {
	switch ins {
	case INS_SELECT:
		return "SELECT"
	case INS_READ_RECORD:
		return "READ RECORD"
	case INS_GET_RESPONSE:
		return "GET RESPONSE"
	case 0xA8:
		return "GET PROCESSING OPTIONS"
	case 0xB0:
		return "READ BINARY"
	case 0xCA:
		return "GET DATA"
	case 0x20:
		return "VERIFY"
	case 0x82:
		return "EXTERNAL AUTHENTICATE"
	case 0x88:
		return "INTERNAL AUTHENTICATE"
	default:
		return fmt.Sprintf("INS %02X", ins)
	}
}

// SelectByAID builds a SELECT command (INS 'A4') targeting an application by
// its DF name (AID) and requesting the FCI template in return.
//
// P1 0x04 selects by DF name; P2 0x00 asks for the first or only occurrence
// with the FCI returned. Le is present so the card can answer with data in a
// single exchange on contactless transports.
func SelectByAID(aid []byte) *Command {
	return NewCommand(0x00, INS_SELECT, 0x04, 0x00, aid, MaxShortLe)
}

// ReadRecord builds a READ RECORD command (INS 'B2') for record number rec
// of the file addressed by its Short File Identifier.
//
// P2 carries the SFI in its five high bits; the low three bits 0b100 mark P1
// as a record number rather than a record identifier.
func ReadRecord(sfi, rec byte) *Command {
	return NewCommand(0x00, INS_READ_RECORD, rec, sfi<<3|0x04, nil, MaxShortLe)
}

// GetResponse builds the GET RESPONSE command (INS 'C0') retrieving ne bytes
// the card announced with a 61XX status. ISO 7816-4 requires the same class
// byte as the command that produced the 61XX.
func GetResponse(cla byte, ne int) *Command {
	return NewCommand(cla, INS_GET_RESPONSE, 0x00, 0x00, nil, ne)
}
