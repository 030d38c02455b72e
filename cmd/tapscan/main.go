// Command tapscan reads a tapped contactless card and prints the fields the
// activation flow needs: a masked card number, the expiration and the full
// exchange transcript. It also ships offline helpers for decoding BER-TLV
// and DOL dumps captured elsewhere.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var debug bool

var rootCmd = &cobra.Command{
	Use:   "tapscan <command>",
	Short: "Contactless EMV card scanner for the activation flow",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debug {
			log.SetLevel(log.DebugLevel)
		}
	},
}

func init() {
	// A .env next to the binary can carry TAPSCAN_READER and TAPSCAN_AID;
	// absence is fine.
	_ = godotenv.Load()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log every APDU exchange")
	rootCmd.AddCommand(scanCmd, decodeCmd, dolCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
