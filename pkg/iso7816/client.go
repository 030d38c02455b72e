package iso7816

import (
	"fmt"
)

// CLIENT & PROTOCOL LOGIC:
// The Client acts as a high-level driver over the physical connection.
// It implements the automatic handling of ISO 7816-3 transport behaviors that are
// often exposed to the application layer in T=0 protocols:
//
// 1. "61 XX" (Response Available):
//    The card indicates that XX bytes are waiting. The client automatically generates
//    and sends a GET RESPONSE command to retrieve them, appending the retrieved
//    bytes to any data already received.
//
// 2. "6C XX" (Wrong Length):
//    The card indicates that the expected length (Le) was incorrect and suggests XX.
//    The client automatically re-sends the original command with Le = XX.
//
// Send() returns the merged logical response, so callers never see the
// intermediate 61XX/6CXX statuses.

// Transmitter abstracts the physical card connection.
type Transmitter interface {
	Transmit(cmd []byte) ([]byte, error)
}

// Client manages the high-level communication with the card.
type Client struct {
	Card Transmitter
}

// NewClient creates a new Client instance.
func NewClient(card Transmitter) *Client {
	return &Client{Card: card}
}

// Send transmits a command and handles protocol logic (61xx, 6Cxx).
func (c *Client) Send(cmd *Command) (*Response, error) {
	rawCmd, err := cmd.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encoding error: %w", err)
	}

	rawResp, err := c.Card.Transmit(rawCmd)
	if err != nil {
		return nil, fmt.Errorf("transmission error: %w", err)
	}

	resp, err := ParseResponse(rawResp)
	if err != nil {
		return nil, err
	}

	sw1 := resp.SW.SW1()
	sw2 := resp.SW.SW2()

	// Case 61XX: More data available -> Issue GET RESPONSE
	if sw1 == 0x61 {
		// SW2 of zero means more than 255 bytes remain.
		ne := int(sw2)
		if ne == 0 {
			ne = MaxShortLe
		}

		more, err := c.Send(GetResponse(cmd.CLA, ne))
		if err != nil {
			return nil, err
		}

		merged := &Response{
			Data: append(append([]byte{}, resp.Data...), more.Data...),
			SW:   more.SW,
		}
		return merged, nil
	}

	// Case 6CXX: Wrong Length -> Re-issue original command with correct Le
	if sw1 == 0x6C {
		// Clone command to update Le without mutating the original pointer
		newCmd := *cmd
		newCmd.Ne = int(sw2)
		return c.Send(&newCmd)
	}

	return resp, nil
}
