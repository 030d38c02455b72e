package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tapnkit/tapscan/pkg/tlv"
)

var dolCmd = &cobra.Command{
	Use:   "dol <hex>...",
	Short: "List the entries of a DOL template (PDOL, CDOL)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := tlv.ParseHex(strings.Join(args, ""))
		if err != nil {
			return err
		}

		entries := tlv.DecodeDOL(data)
		if len(entries) == 0 {
			return fmt.Errorf("no template entries in %d bytes", len(data))
		}
		fmt.Println(tlv.DumpDOL(entries))
		return nil
	},
}
