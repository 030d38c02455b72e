/*
Package iso7816 implements data structures and logic to interact with smart cards according to the ISO/IEC 7816 standard.

This package provides the fundamental building blocks for APDU (Application Protocol Data Unit) communication: Command and Response structures with Short/Extended length encoding, Status Word (SW) analysis, builders for the commands a card-reading flow needs, and a Client that hides T=0 transport quirks.

# Fundamentals

The communication with a smart card is strictly synchronous:
 1. The Host sends a Command APDU (Header + Optional Body).
 2. The Card processes it and returns a Response APDU (Optional Body + Trailer SW1/SW2).

# Status Words

Every response ends with a 2-byte Status Word (SW).
  - 0x9000: Success (OK).
  - 0x61XX: Success, but response data is still available (XX bytes).
  - 0x6CXX: Error, wrong length expectation (XX is the correct length).
  - Other: Various error conditions.

The Client resolves the first two automatically, so its callers only ever
deal with final statuses.

# Usage Example: Selecting an Application

	client := iso7816.NewClient(card)

	resp, err := client.Send(iso7816.SelectByAID([]byte("AMEX1ENABLER")))
	if err != nil {
	    log.Fatal(err)
	}

	if resp.SW != iso7816.SW_NO_ERROR {
	    log.Fatalf("selection refused: %s", resp.SW.Verbose())
	}

	// resp.Data now holds the FCI template returned by the card.
*/
package iso7816
