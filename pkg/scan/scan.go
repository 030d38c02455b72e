/*
Package scan drives the card-side protocol of the tap-to-activate flow.

A Session walks a fixed command script against one card: SELECT the
activation application, GET PROCESSING OPTIONS with the terminal data its
PDOL asks for, then READ RECORD over the file ranges the card's AFL names
(or a built-in fallback plan when the card returns none). Along the way it
accumulates a human-readable transcript and extracts the cardholder fields
needed by the activation UI.

At most one command is ever in flight: each step waits for its response
before deciding the next state, so the session needs no internal
synchronization beyond the stop flag. SELECT and GPO failures abort the
scan; record-level failures are logged into the transcript and skipped.
*/
package scan

import (
	"context"
	"errors"
	"fmt"

	"github.com/tapnkit/tapscan/pkg/iso7816"
)

// ErrStopped is returned by Run when the session was cancelled with Stop.
var ErrStopped = errors.New("scan stopped")

// DefaultAID names the activation applet this tool was built for.
func DefaultAID() []byte {
	return []byte("AMEX1ENABLER")
}

// State identifies where in the protocol script a session currently is.
type State int

const (
	StateIdle State = iota
	StateSelecting
	StateAwaitingGPO
	StateReadingRecords
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateSelecting:
		return "Selecting"
	case StateAwaitingGPO:
		return "AwaitingGPO"
	case StateReadingRecords:
		return "ReadingRecords"
	case StateCompleted:
		return "Completed"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Transport carries commands to the card for a Session and tears the link
// down once the scan is over. Exchange must return the final logical
// response; transport-level retries (61XX, 6CXX) belong below this
// interface.
type Transport interface {
	Exchange(ctx context.Context, cmd *iso7816.Command) (*iso7816.Response, error)
	End() error
}

// ClientTransport adapts an iso7816.Client to the Transport interface.
type ClientTransport struct {
	Client *iso7816.Client

	// EndFunc releases the underlying card link; nil means nothing to do.
	EndFunc func() error
}

func (t *ClientTransport) Exchange(ctx context.Context, cmd *iso7816.Command) (*iso7816.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.Client.Send(cmd)
}

func (t *ClientTransport) End() error {
	if t.EndFunc == nil {
		return nil
	}
	return t.EndFunc()
}
