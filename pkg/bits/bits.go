// Package bits provides helpers for the 1-based bit numbering used by the
// smart-card specifications: bit 8 is the most significant bit of a byte,
// bit 1 the least.
package bits

// Bit returns a byte with only the n-th bit set (1 to 8).
func Bit(n uint) byte {
	if n < 1 || n > 8 {
		return 0
	}
	return 1 << (n - 1)
}

// IsSet checks if the n-th bit is set (1 to 8).
func IsSet(b byte, n uint) bool {
	return b&Bit(n) != 0
}

// GetRange extracts the value held by bits high down to low.
// Example: an AFL entry carries its SFI in bits 8-4, so
// GetRange(0x08, 8, 4) returns 1.
func GetRange(b byte, high, low uint) byte {
	if high < low || high > 8 || low < 1 {
		return 0
	}

	width := high - low + 1
	mask := byte((1 << width) - 1)

	return (b >> (low - 1)) & mask
}
