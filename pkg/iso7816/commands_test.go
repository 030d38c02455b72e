package iso7816

import (
	"encoding/hex"
	"strings"
	"testing"
)

func TestCommandBuilders(t *testing.T) {
	tests := []struct {
		name     string
		cmd      *Command
		expected string
	}{
		{
			name:     "Select by AID",
			cmd:      SelectByAID([]byte("AMEX1ENABLER")),
			expected: "00A404000C414D455831454E41424C455200",
		},
		{
			name:     "Read record 1 of SFI 1",
			cmd:      ReadRecord(1, 1),
			expected: "00B2010C00",
		},
		{
			name:     "Read record 2 of SFI 1",
			cmd:      ReadRecord(1, 2),
			expected: "00B2020C00",
		},
		{
			name:     "Read record 1 of SFI 2",
			cmd:      ReadRecord(2, 1),
			expected: "00B2011400",
		},
		{
			name:     "Read record of SFI 10",
			cmd:      ReadRecord(10, 3),
			expected: "00B2035400",
		},
		{
			name:     "Get response",
			cmd:      GetResponse(0x00, 0x10),
			expected: "00C0000010",
		},
		{
			name:     "Get response preserves class",
			cmd:      GetResponse(0x80, MaxShortLe),
			expected: "80C0000000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cmd.Bytes()
			if err != nil {
				t.Fatalf("Encoding failed: %v", err)
			}
			gotHex := strings.ToUpper(hex.EncodeToString(got))
			if gotHex != tt.expected {
				t.Errorf("Mismatch\nExpected: %s\nGot:      %s", tt.expected, gotHex)
			}
		})
	}
}

func TestInstructionName(t *testing.T) {
	tests := []struct {
		ins  byte
		want string
	}{
		{0xA4, "SELECT"},
		{0xB2, "READ RECORD"},
		{0xC0, "GET RESPONSE"},
		{0xA8, "GET PROCESSING OPTIONS"},
		{0xF1, "INS F1"},
	}

	for _, tt := range tests {
		if got := InstructionName(tt.ins); got != tt.want {
			t.Errorf("InstructionName(%02X) = %q, want %q", tt.ins, got, tt.want)
		}
	}
}
