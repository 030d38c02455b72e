package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ebfe/scard"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tapnkit/tapscan/pkg/iso7816"
	"github.com/tapnkit/tapscan/pkg/scan"
	"github.com/tapnkit/tapscan/pkg/tlv"
)

var (
	readerName string
	aidHex     string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Read a tapped card and print its activation fields",
	Long: `Connects to a PC/SC reader, runs the activation exchange against the
card on it (SELECT, GET PROCESSING OPTIONS, READ RECORD) and prints the
transcript followed by the extracted fields. Ctrl-C stops the scan.`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&readerName, "reader", os.Getenv("TAPSCAN_READER"),
		"substring of the PC/SC reader to use (default: first reader)")
	scanCmd.Flags().StringVar(&aidHex, "aid", os.Getenv("TAPSCAN_AID"),
		"hex AID override for bench cards")
}

func runScan(cmd *cobra.Command, args []string) error {
	var opts []scan.Option
	if aidHex != "" {
		aid, err := tlv.ParseHex(aidHex)
		if err != nil {
			return fmt.Errorf("invalid --aid: %w", err)
		}
		opts = append(opts, scan.WithAID(aid))
	}

	ctx, card, err := connectToCard(readerName)
	if err != nil {
		return err
	}
	defer func() {
		if err := ctx.Release(); err != nil {
			log.Warnf("failed to release PC/SC context: %v", err)
		}
	}()

	transport := &scan.ClientTransport{
		Client: iso7816.NewClient(card),
		EndFunc: func() error {
			return card.Disconnect(scard.LeaveCard)
		},
	}
	session := scan.New(transport, opts...)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)
	go func() {
		<-sig
		log.Info("stop requested")
		session.Stop()
	}()

	result, err := session.Run(context.Background())
	if err != nil {
		if transcript := session.Transcript(); transcript != "" {
			fmt.Println(transcript)
		}
		return err
	}

	fmt.Println(result.Report)
	fmt.Println()
	if result.Label != "" {
		fmt.Printf("Application: %s\n", result.Label)
	}
	if result.MaskedPAN != "" {
		fmt.Printf("Card number: %s\n", result.MaskedPAN)
	}
	if result.Expiry != "" {
		fmt.Printf("Expires:     %s\n", result.Expiry)
	}
	return nil
}

// connectToCard establishes the PC/SC context and connects to the chosen
// reader. The caller owns both returned handles.
func connectToCard(name string) (*scard.Context, *scard.Card, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, nil, fmt.Errorf("establishing PC/SC context: %w", err)
	}

	readers, err := ctx.ListReaders()
	if err != nil {
		releaseContext(ctx)
		return nil, nil, fmt.Errorf("listing readers: %w", err)
	}
	if len(readers) == 0 {
		releaseContext(ctx)
		return nil, nil, fmt.Errorf("no smart card reader found")
	}

	reader := readers[0]
	if name != "" {
		reader = ""
		for _, r := range readers {
			if strings.Contains(r, name) {
				reader = r
				break
			}
		}
		if reader == "" {
			releaseContext(ctx)
			return nil, nil, fmt.Errorf("no reader matching %q (available: %s)", name, strings.Join(readers, ", "))
		}
	}
	log.Infof("using reader %s", reader)

	// Force T=0 or T=1 to avoid "Parameter Incorrect" errors from some
	// reader stacks.
	card, err := ctx.Connect(reader, scard.ShareShared, scard.ProtocolT0|scard.ProtocolT1)
	if err != nil {
		releaseContext(ctx)
		return nil, nil, fmt.Errorf("connecting to card: %w", err)
	}

	return ctx, card, nil
}

func releaseContext(ctx *scard.Context) {
	if err := ctx.Release(); err != nil {
		log.Warnf("failed to release PC/SC context: %v", err)
	}
}
