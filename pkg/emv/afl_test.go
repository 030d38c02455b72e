package emv

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tapnkit/tapscan/pkg/tlv"
)

func TestDecodeAFL(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want []AFLEntry
	}{
		{
			name: "Single range",
			data: tlv.Hex("08 01 02 00"),
			want: []AFLEntry{{SFI: 1, FirstRecord: 1, LastRecord: 2}},
		},
		{
			name: "Multiple ranges",
			data: tlv.Hex("08 01 02 00", "10 01 03 01", "18 02 02 00"),
			want: []AFLEntry{
				{SFI: 1, FirstRecord: 1, LastRecord: 2},
				{SFI: 2, FirstRecord: 1, LastRecord: 3, OfflineAuthCount: 1},
				{SFI: 3, FirstRecord: 2, LastRecord: 2},
			},
		},
		{
			name: "Trailing partial group ignored",
			data: tlv.Hex("08 01 02 00", "10 01"),
			want: []AFLEntry{{SFI: 1, FirstRecord: 1, LastRecord: 2}},
		},
		{
			name: "Empty value",
			data: nil,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeAFL(tt.data)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("DecodeAFL() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFindAFL(t *testing.T) {
	t.Run("Inside response template", func(t *testing.T) {
		nodes := tlv.Decode(tlv.Hex(
			"77 0A",
			"82 02 1980",
			"94 04 08010200",
		))

		entries, ok := FindAFL(nodes)
		if !ok {
			t.Fatal("FindAFL reported no AFL")
		}

		want := []AFLEntry{{SFI: 1, FirstRecord: 1, LastRecord: 2}}
		if diff := cmp.Diff(want, entries); diff != "" {
			t.Errorf("FindAFL() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Absent", func(t *testing.T) {
		nodes := tlv.Decode(tlv.Hex("77 04", "82 02 1980"))
		if _, ok := FindAFL(nodes); ok {
			t.Error("FindAFL reported an AFL on data without tag 94")
		}
	})
}

func TestDefaultRecordPlan(t *testing.T) {
	want := []AFLEntry{
		{SFI: 1, FirstRecord: 1, LastRecord: 3},
		{SFI: 2, FirstRecord: 1, LastRecord: 2},
	}

	if diff := cmp.Diff(want, DefaultRecordPlan()); diff != "" {
		t.Errorf("DefaultRecordPlan() mismatch (-want +got):\n%s", diff)
	}
}
