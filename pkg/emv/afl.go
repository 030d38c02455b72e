package emv

import (
	"github.com/tapnkit/tapscan/pkg/bits"
	"github.com/tapnkit/tapscan/pkg/tlv"
)

// AFLEntry is one Application File Locator entry: a contiguous range of
// records within the file addressed by SFI.
type AFLEntry struct {
	SFI         byte
	FirstRecord byte
	LastRecord  byte

	// Number of records involved in offline data authentication.
	// Parsed for completeness; nothing here performs offline auth.
	OfflineAuthCount byte
}

// DecodeAFL parses an AFL value (tag 94) into its 4-byte entries. The SFI
// occupies the five high bits of the first byte. A trailing partial group
// is ignored.
func DecodeAFL(data []byte) []AFLEntry {
	var entries []AFLEntry
	for i := 0; i+4 <= len(data); i += 4 {
		entries = append(entries, AFLEntry{
			SFI:              bits.GetRange(data[i], 8, 4),
			FirstRecord:      data[i+1],
			LastRecord:       data[i+2],
			OfflineAuthCount: data[i+3],
		})
	}
	return entries
}

// FindAFL extracts the record plan from a decoded GPO response, searching
// the whole tree for tag 94. The second return reports whether the card
// provided an AFL at all.
func FindAFL(nodes []tlv.Node) ([]AFLEntry, bool) {
	n, ok := tlv.Find(nodes, 0x94)
	if !ok {
		return nil, false
	}
	return DecodeAFL(n.Value), true
}

// DefaultRecordPlan is the record plan probed when a card answers GPO
// without an AFL. The ranges match the file layout of the targeted
// activation application, not general EMV behavior.
func DefaultRecordPlan() []AFLEntry {
	return []AFLEntry{
		{SFI: 1, FirstRecord: 1, LastRecord: 3},
		{SFI: 2, FirstRecord: 1, LastRecord: 2},
	}
}
