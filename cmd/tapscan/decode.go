package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tapnkit/tapscan/pkg/emv"
	"github.com/tapnkit/tapscan/pkg/tlv"
)

var decodeCmd = &cobra.Command{
	Use:   "decode <hex>...",
	Short: "Decode a BER-TLV dump offline",
	Long: `Decodes a pasted card response (spaces between bytes are fine) and
prints the object tree. Responses that parse as an FCI also get the FCI
summary.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := tlv.ParseHex(strings.Join(args, ""))
		if err != nil {
			return err
		}

		nodes := tlv.Decode(data)
		if len(nodes) == 0 {
			return fmt.Errorf("no TLV objects in %d bytes", len(data))
		}
		fmt.Println(tlv.DumpNodes(nodes))

		if fci, err := emv.ParseFCI(data); err == nil {
			fmt.Println()
			fmt.Println(fci.Describe())
		}
		return nil
	},
}
