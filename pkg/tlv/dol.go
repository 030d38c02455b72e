package tlv

// DOLEntry is one entry of a Data Object List template. DOLs announce what
// the card wants from the terminal: each entry names a tag and how many
// bytes of it the card expects, with no value present in the template
// itself.
type DOLEntry struct {
	Tag    uint
	Length int
}

// DecodeDOL parses a DOL template such as a PDOL (tag 9F38) or CDOL value.
// Tags follow the usual BER-TLV multi-byte rule but the expected length is
// always a single byte. Like Decode, it is best-effort: a trailing entry cut
// off mid-tag or missing its length byte is dropped silently.
func DecodeDOL(data []byte) []DOLEntry {
	var entries []DOLEntry

	offset := 0
	for offset < len(data) {
		tag, _, next, ok := readTag(data, offset)
		if !ok || next >= len(data) {
			break
		}
		entries = append(entries, DOLEntry{Tag: tag, Length: int(data[next])})
		offset = next + 1
	}

	return entries
}
