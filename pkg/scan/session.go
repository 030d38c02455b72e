package scan

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tapnkit/tapscan/internal/syncutil"
	"github.com/tapnkit/tapscan/pkg/emv"
	"github.com/tapnkit/tapscan/pkg/iso7816"
	"github.com/tapnkit/tapscan/pkg/tlv"
)

// Result is what a completed scan hands to the presentation layer.
type Result struct {
	// Report is the full labeled transcript of the exchange.
	Report string

	// MaskedPAN and Expiry are display-ready; either may be empty when the
	// card's records did not carry the field.
	MaskedPAN string
	Expiry    string

	// Label is the application label from the SELECT response, when the
	// card provided one.
	Label string
}

// Session drives one scan against one card. Create with New, drive with
// Run; a Session is single-use.
type Session struct {
	transport Transport
	aid       []byte
	log       *logrus.Logger

	// mu guards everything below. Only one command is ever in flight, so
	// the lock's real job is the race between Stop and the response that
	// was already on its way when Stop was called.
	mu      syncutil.Mutex
	state   State
	stopped bool
	ended   bool
	report  Report
	card    emv.CardData
	label   string
}

// Option configures a Session at creation time.
type Option func(*Session)

// WithAID overrides the application selected at the start of the scan.
func WithAID(aid []byte) Option {
	return func(s *Session) { s.aid = aid }
}

// WithLogger routes the session's diagnostic output to log.
func WithLogger(log *logrus.Logger) Option {
	return func(s *Session) { s.log = log }
}

// New creates a Session over the given transport, targeting the default
// activation applet unless WithAID says otherwise.
func New(transport Transport, opts ...Option) *Session {
	s := &Session{
		transport: transport,
		aid:       DefaultAID(),
		log:       logrus.StandardLogger(),
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State reports where in the protocol script the session currently is.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transcript returns the report accumulated so far. After a failed scan it
// holds whatever sections were completed before the failure.
func (s *Session) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report.String()
}

// Stop cancels the scan. The transport session is ended immediately; a
// response still in flight when Stop is called is discarded without
// touching the report, the extracted fields or the state, and Run returns
// ErrStopped. Safe to call from any goroutine, and more than once.
func (s *Session) Stop() {
	s.mu.Lock()
	s.stopped = true
	alreadyEnded := s.ended
	s.ended = true
	s.mu.Unlock()

	if alreadyEnded {
		return
	}
	if err := s.transport.End(); err != nil {
		s.log.WithError(err).Debug("ending transport session")
	}
}

// Run executes the scan script: SELECT, GET PROCESSING OPTIONS, then READ
// RECORD over the card's AFL (or the fallback plan). It blocks until the
// scan reaches a terminal state and returns the Result on completion. A
// SELECT or GPO failure aborts with a descriptive error; per-record
// failures only earn a transcript line. The transport session is ended
// before Run returns, whatever the outcome.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	defer s.end()

	selNodes, err := s.stepSelect(ctx)
	if err != nil {
		return nil, err
	}

	gpoNodes, err := s.stepGPO(ctx, selNodes)
	if err != nil {
		return nil, err
	}

	if err := s.stepReadRecords(ctx, gpoNodes); err != nil {
		return nil, err
	}

	return s.complete()
}

func (s *Session) stepSelect(ctx context.Context) ([]tlv.Node, error) {
	s.setState(StateSelecting)

	resp, err := s.exchange(ctx, iso7816.SelectByAID(s.aid))
	if err != nil {
		return nil, s.fail(fmt.Errorf("selecting application %X: %w", s.aid, err))
	}
	if resp.SW != iso7816.SW_NO_ERROR {
		return nil, s.fail(fmt.Errorf("application %X refused selection: %s", s.aid, resp.SW.Verbose()))
	}

	nodes := tlv.Decode(resp.Data)

	// The label is presentation sugar; a SELECT response that does not
	// parse as an FCI just leaves it empty.
	var label string
	if fci, err := emv.ParseFCI(resp.Data); err == nil {
		label = string(fci.ProprietaryTemplate.ApplicationLabel)
	}

	s.mutate(func() {
		s.report.Response("SELECT RESPONSE", nodes, resp.Data)
		s.label = label
	})

	return nodes, nil
}

func (s *Session) stepGPO(ctx context.Context, selNodes []tlv.Node) ([]tlv.Node, error) {
	s.setState(StateAwaitingGPO)

	pdol := emv.FindPDOL(selNodes)
	resp, err := s.exchange(ctx, emv.GetProcessingOptions(emv.BuildGPOData(pdol)))
	if err != nil {
		return nil, s.fail(fmt.Errorf("get processing options: %w", err))
	}
	if resp.SW != iso7816.SW_NO_ERROR {
		return nil, s.fail(fmt.Errorf("get processing options refused: %s", resp.SW.Verbose()))
	}

	nodes := tlv.Decode(resp.Data)
	s.mutate(func() {
		s.report.Response("GPO RESPONSE", nodes, resp.Data)
	})

	return nodes, nil
}

func (s *Session) stepReadRecords(ctx context.Context, gpoNodes []tlv.Node) error {
	s.setState(StateReadingRecords)

	plan, found := emv.FindAFL(gpoNodes)
	if !found {
		plan = emv.DefaultRecordPlan()
		s.log.Debug("no AFL in GPO response, probing the default record plan")
		s.mutate(func() {
			s.report.Line("NO AFL IN GPO RESPONSE, USING DEFAULT RECORD PLAN")
		})
	}

	for _, entry := range plan {
		for rec := int(entry.FirstRecord); rec <= int(entry.LastRecord); rec++ {
			label := fmt.Sprintf("READ RECORD SFI %d REC %d", entry.SFI, rec)

			resp, err := s.exchange(ctx, iso7816.ReadRecord(entry.SFI, byte(rec)))
			if err != nil {
				if errors.Is(err, ErrStopped) || ctx.Err() != nil {
					return err
				}
				// One unreadable record does not spoil the scan.
				s.mutate(func() {
					s.report.Line("%s ERROR: %v", label, err)
				})
				continue
			}
			if resp.SW != iso7816.SW_NO_ERROR {
				s.mutate(func() {
					s.report.Line("%s ERROR: %s", label, resp.SW.Verbose())
				})
				continue
			}

			nodes := tlv.Decode(resp.Data)
			s.mutate(func() {
				s.report.Response(label, nodes, resp.Data)
				s.card.Absorb(nodes)
			})
		}
	}

	return nil
}

func (s *Session) complete() (*Result, error) {
	var result *Result
	s.mutate(func() {
		s.state = StateCompleted
		result = &Result{
			Report:    s.report.String(),
			MaskedPAN: emv.MaskPAN(s.card.PAN),
			Expiry:    s.card.Expiry(),
			Label:     s.label,
		}
	})
	if result == nil {
		return nil, ErrStopped
	}

	s.log.WithFields(logrus.Fields{
		"label":   result.Label,
		"has_pan": result.MaskedPAN != "",
	}).Info("scan completed")
	return result, nil
}

// exchange sends one command and waits for its result. A session that was
// stopped while the command was in flight discards the result: the
// transport is already torn down and the response must not move the state
// machine or the report.
func (s *Session) exchange(ctx context.Context, cmd *iso7816.Command) (*iso7816.Response, error) {
	if s.isStopped() {
		return nil, ErrStopped
	}

	s.log.WithField("cmd", cmd.String()).Debug("sending command")

	resp, err := s.transport.Exchange(ctx, cmd)
	if s.isStopped() {
		return nil, ErrStopped
	}
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"sw":    fmt.Sprintf("%04X", uint16(resp.SW)),
		"bytes": len(resp.Data),
	}).Debug("received response")
	return resp, nil
}

// fail moves the session to Failed and passes the error through. On a
// stopped session the state stays put, which is what mutate enforces.
func (s *Session) fail(err error) error {
	s.log.WithError(err).Debug("scan failed")
	s.mutate(func() {
		s.state = StateFailed
	})
	return err
}

// end tears the transport session down once, unless Stop already did.
func (s *Session) end() {
	s.mu.Lock()
	alreadyEnded := s.ended
	s.ended = true
	s.mu.Unlock()

	if alreadyEnded {
		return
	}
	if err := s.transport.End(); err != nil {
		s.log.WithError(err).Debug("ending transport session")
	}
}

func (s *Session) setState(state State) {
	s.mutate(func() { s.state = state })
}

// mutate applies fn to the accumulator unless the session was stopped;
// everything that happens after a Stop is a no-op.
func (s *Session) mutate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	fn()
}

func (s *Session) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}
