// Package tlv decodes the BER-TLV (Basic Encoding Rules Tag-Length-Value)
// structures returned by EMV payment cards, along with the tag/length-only
// Data Object List templates (PDOL, CDOL) that describe what a card expects
// from the terminal.
//
// Decoding is deliberately best-effort: card responses are routinely padded
// or cut short, so a buffer that runs out mid-object yields the objects
// parsed up to that point rather than an error.
package tlv

import "github.com/tapnkit/tapscan/pkg/bits"

// Node is one decoded BER-TLV data object.
//
// Tag holds the concatenation of all encoded tag bytes, matching the
// conventional EMV notation (0x5F24, 0x9F38). Length always equals
// len(Value). Children is non-nil only for constructed objects whose value
// decodes to at least one nested object; every child derives from a
// sub-slice of its parent's value, so the tree is acyclic by construction.
type Node struct {
	Tag         uint
	Length      int
	Value       []byte
	Constructed bool
	Children    []Node
}

// Decode parses data as a sequence of BER-TLV objects.
//
// It never fails: if the buffer is exhausted mid-tag, mid-length or
// mid-value, decoding stops and the nodes parsed so far are returned. No
// partial node is emitted for the truncated object. Callers must treat a
// short result as possibly incomplete, not as an error signal.
func Decode(data []byte) []Node {
	var nodes []Node

	offset := 0
	for offset < len(data) {
		node, next, ok := decodeNode(data, offset)
		if !ok {
			break
		}
		nodes = append(nodes, node)
		offset = next
	}

	return nodes
}

// Find walks nodes depth-first, descending into children, and returns the
// first node carrying the given tag.
func Find(nodes []Node, tag uint) (*Node, bool) {
	for i := range nodes {
		if nodes[i].Tag == tag {
			return &nodes[i], true
		}
		if n, ok := Find(nodes[i].Children, tag); ok {
			return n, true
		}
	}
	return nil, false
}

func decodeNode(data []byte, offset int) (Node, int, bool) {
	tag, first, offset, ok := readTag(data, offset)
	if !ok {
		return Node{}, 0, false
	}

	length, offset, ok := readLength(data, offset)
	if !ok || length > len(data)-offset {
		return Node{}, 0, false
	}

	node := Node{
		Tag:    tag,
		Length: length,
		Value:  data[offset : offset+length],
		// Bit 6 (0x20) of the first tag byte marks a constructed object.
		Constructed: bits.IsSet(first, 6),
	}

	if node.Constructed {
		if children := Decode(node.Value); len(children) > 0 {
			node.Children = children
		}
	}

	return node, offset + length, true
}

// readTag reads one tag starting at offset and reports the full tag number,
// the first encoded byte (which carries the constructed bit), and the next
// read position. A first byte with all five low bits set announces a
// multi-byte tag; continuation bytes follow while their high bit is set.
func readTag(data []byte, offset int) (tag uint, first byte, next int, ok bool) {
	if offset >= len(data) {
		return 0, 0, 0, false
	}

	first = data[offset]
	tag = uint(first)
	offset++

	if first&0x1F == 0x1F {
		for {
			if offset >= len(data) {
				return 0, 0, 0, false
			}
			b := data[offset]
			tag = tag<<8 | uint(b)
			offset++
			if b&0x80 == 0 {
				break
			}
		}
	}

	return tag, first, offset, true
}

// readLength reads a short-form (one byte, 0-127) or long-form (length of
// the length, then big-endian length bytes) BER length field.
func readLength(data []byte, offset int) (length, next int, ok bool) {
	if offset >= len(data) {
		return 0, 0, false
	}

	b := data[offset]
	offset++

	if b&0x80 == 0 {
		return int(b), offset, true
	}

	count := int(b & 0x7F)
	if count > len(data)-offset {
		return 0, 0, false
	}

	for i := 0; i < count; i++ {
		length = length<<8 | int(data[offset+i])
		// A length that cannot fit the whole buffer can never be
		// satisfied; bailing here also keeps the accumulator small.
		if length > len(data) {
			return 0, 0, false
		}
	}

	return length, offset + count, true
}
