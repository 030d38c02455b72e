package emv

import (
	"github.com/tapnkit/tapscan/pkg/iso7816"
	"github.com/tapnkit/tapscan/pkg/tlv"
)

// GET PROCESSING OPTIONS (GPO) Logic according to EMV Book 3.
//
// GPO initiates the transaction. Its command data is the terminal's answer
// to the card's PDOL (Processing Options Data Object List, tag 9F38): one
// concrete value per template entry, concatenated in template order and
// wrapped in a Command Template (tag 83). The card replies with, among
// other things, the Application File Locator naming the records to read.

// INS_GET_PROCESSING_OPTIONS is the EMV proprietary instruction initiating a transaction.
const INS_GET_PROCESSING_OPTIONS byte = 0xA8

// Values reported to the card when its PDOL asks for terminal properties.
var (
	// 0x34: terminal type for an attended, online-capable consumer device.
	terminalType = []byte{0x34}

	// Form Factor Indicator announcing a contactless-capable mobile reader.
	formFactorIndicator = []byte{0x10, 0x40, 0x00, 0x83}
)

// FindPDOL extracts the PDOL template from a decoded SELECT response,
// searching the whole tree for tag 9F38. Cards without a PDOL yield an
// empty template, which is valid: the card then expects an empty Command
// Template.
func FindPDOL(nodes []tlv.Node) []tlv.DOLEntry {
	n, ok := tlv.Find(nodes, 0x9F38)
	if !ok {
		return nil
	}
	return tlv.DecodeDOL(n.Value)
}

// BuildGPOData constructs the GPO command data for a PDOL template: the
// canned value for every entry the terminal knows, zero filler of the
// requested length for every entry it does not, wrapped as tag 83 with a
// one-byte length.
func BuildGPOData(entries []tlv.DOLEntry) []byte {
	var values []byte
	for _, e := range entries {
		switch e.Tag {
		case 0x9F35:
			values = append(values, terminalType...)
		case 0x9F6E:
			values = append(values, formFactorIndicator...)
		default:
			values = append(values, make([]byte, e.Length)...)
		}
	}

	data := make([]byte, 0, len(values)+2)
	data = append(data, 0x83, byte(len(values)))
	return append(data, values...)
}

// GetProcessingOptions builds the GET PROCESSING OPTIONS command (CLA 0x80,
// INS 0xA8) carrying the data produced by BuildGPOData.
func GetProcessingOptions(gpoData []byte) *iso7816.Command {
	return iso7816.NewCommand(0x80, INS_GET_PROCESSING_OPTIONS, 0x00, 0x00, gpoData, iso7816.MaxShortLe)
}
