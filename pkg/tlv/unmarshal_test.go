package tlv

import (
	"encoding/hex"
	"strings"
	"testing"
)

// Mock custom unmarshaler
type customType struct {
	Val string
}

func (c *customType) UnmarshalTLV(data []byte) error {
	c.Val = "custom:" + hex.EncodeToString(data)
	return nil
}

type nestedStruct struct {
	Version []byte `tlv:"82"`
}

type testStruct struct {
	AID     []byte       `tlv:"84"`
	Label   string       `tlv:"50"`
	Details nestedStruct `tlv:"A5"`
	Custom  customType   `tlv:"9F02"`
	Other   []Node       `tlv:",unknown"`
}

func TestUnmarshal(t *testing.T) {
	rawData := Hex(
		"84", "02", "1122", // AID
		"50", "03", "414243", // Label "ABC"
		"A5", "03", "8201FF", // Nested Details (Template A5, Tag 82)
		"9F02", "01", "AA", // Custom type (Tag 9F02)
		"DF01", "01", "BB", // Unknown tag
	)

	var result testStruct
	err := Unmarshal(rawData, &result)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	// Assertions
	if hex.EncodeToString(result.AID) != "1122" {
		t.Errorf("Expected AID 1122, got %s", hex.EncodeToString(result.AID))
	}

	if result.Label != "414243" {
		t.Errorf("Expected Label 414243, got %s", result.Label)
	}

	if hex.EncodeToString(result.Details.Version) != "ff" {
		t.Errorf("Expected nested Version ff, got %s", hex.EncodeToString(result.Details.Version))
	}

	if result.Custom.Val != "custom:aa" {
		t.Errorf("Expected custom:aa, got %s", result.Custom.Val)
	}

	if len(result.Other) != 1 || result.Other[0].Tag != 0xDF01 {
		t.Errorf("Unknown tag DF01 not captured correctly: %+v", result.Other)
	}
}

func TestUnmarshalRepeatedTag(t *testing.T) {
	type entry struct {
		AID []byte `tlv:"4F"`
	}
	type directory struct {
		Entries []entry `tlv:"61"`
	}

	rawData := Hex(
		"61", "04", "4F02A000",
		"61", "04", "4F02A001",
	)

	var result directory
	if err := Unmarshal(rawData, &result); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if len(result.Entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(result.Entries))
	}
	if hex.EncodeToString(result.Entries[0].AID) != "a000" || hex.EncodeToString(result.Entries[1].AID) != "a001" {
		t.Errorf("Entries decoded wrong: %+v", result.Entries)
	}
}

func TestUnmarshalErrors(t *testing.T) {
	t.Run("Non-pointer target", func(t *testing.T) {
		err := Unmarshal([]byte{0x84, 0x00}, testStruct{})
		if err == nil || !strings.Contains(err.Error(), "pointer") {
			t.Errorf("Expected pointer error, got %v", err)
		}
	})

	t.Run("Malformed struct tag", func(t *testing.T) {
		var bad struct {
			Field []byte `tlv:"notahex"`
		}
		err := Unmarshal([]byte{0x84, 0x00}, &bad)
		if err == nil || !strings.Contains(err.Error(), "bad tlv tag") {
			t.Errorf("Expected bad tag error, got %v", err)
		}
	})
}
