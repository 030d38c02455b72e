package scan_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tapnkit/tapscan/pkg/emv"
	"github.com/tapnkit/tapscan/pkg/iso7816"
	"github.com/tapnkit/tapscan/pkg/scan"
	"github.com/tapnkit/tapscan/pkg/tlv"
)

// mockTransport plays back scripted responses keyed by the encoded command
// bytes, so a test fails loudly when the session sends anything unexpected.
type mockTransport struct {
	t *testing.T

	mu        sync.Mutex
	responses map[string][]byte
	errs      map[string]error
	calls     []string
	endCount  int

	// onExchange runs after the command is recorded, before the response
	// is returned. Used to simulate a Stop racing an in-flight response.
	onExchange func(cmd *iso7816.Command)
}

func newMockTransport(t *testing.T) *mockTransport {
	return &mockTransport{
		t:         t,
		responses: make(map[string][]byte),
		errs:      make(map[string]error),
	}
}

func cmdKey(t *testing.T, cmd *iso7816.Command) string {
	raw, err := cmd.Bytes()
	require.NoError(t, err)
	return fmt.Sprintf("%X", raw)
}

func (m *mockTransport) script(cmd *iso7816.Command, resp []byte) {
	m.responses[cmdKey(m.t, cmd)] = resp
}

func (m *mockTransport) scriptErr(cmd *iso7816.Command, err error) {
	m.errs[cmdKey(m.t, cmd)] = err
}

func (m *mockTransport) Exchange(ctx context.Context, cmd *iso7816.Command) (*iso7816.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := cmdKey(m.t, cmd)

	m.mu.Lock()
	m.calls = append(m.calls, key)
	err := m.errs[key]
	resp, ok := m.responses[key]
	hook := m.onExchange
	m.mu.Unlock()

	if hook != nil {
		hook(cmd)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("unscripted command %s", key)
	}
	return iso7816.ParseResponse(resp)
}

func (m *mockTransport) End() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endCount++
	return nil
}

func (m *mockTransport) ends() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.endCount
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// fciResponse is the SELECT response of the target applet: FCI with DF name
// "AMEX1ENABLER", label "TAPN" and a PDOL asking for terminal type (1 byte)
// and form factor indicator (4 bytes).
func fciResponse() []byte {
	return tlv.Hex(
		"6F 27",
		"84 0C 41 4D 45 58 31 45 4E 41 42 4C 45 52",
		"A5 17",
		"50 04 54 41 50 4E",
		"9F 38 06 9F 35 01 9F 6E 04",
		"87 01 03",
		"5F 2D 02 65 6E",
		"90 00",
	)
}

// gpoForFCIResponse is the GPO command the session must build for
// fciResponse's PDOL: terminal type 34 and the form factor indicator,
// wrapped in a command template.
func gpoForFCIResponse() *iso7816.Command {
	return emv.GetProcessingOptions(tlv.Hex("83 05 34 10 40 00 83"))
}

func TestSessionRunFullFlow(t *testing.T) {
	transport := newMockTransport(t)

	transport.script(iso7816.SelectByAID(scan.DefaultAID()), fciResponse())

	// AFL: SFI 1, records 1 through 2.
	transport.script(gpoForFCIResponse(), tlv.Hex("77 0A 82 02 19 80 94 04 08 01 02 00 90 00"))

	// Record 1 carries Track 2 Equivalent Data; record 2 does not exist.
	transport.script(iso7816.ReadRecord(1, 1), tlv.Hex(
		"70 12 57 10 41 11 11 11 11 11 11 11 D2 61 22 01 00 00 00 0F 90 00"))
	transport.script(iso7816.ReadRecord(1, 2), tlv.Hex("6A 83"))

	session := scan.New(transport, scan.WithLogger(quietLogger()))
	result, err := session.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, scan.StateCompleted, session.State())
	assert.Equal(t, 1, transport.ends())

	assert.Equal(t, "TAPN", result.Label)
	assert.Equal(t, "4111 •••••••• 1111", result.MaskedPAN)
	assert.Equal(t, "12/26", result.Expiry)

	// Sections appear in command order.
	report := result.Report
	selectAt := strings.Index(report, "SELECT RESPONSE")
	gpoAt := strings.Index(report, "GPO RESPONSE")
	rec1At := strings.Index(report, "READ RECORD SFI 1 REC 1")
	rec2At := strings.Index(report, "READ RECORD SFI 1 REC 2 ERROR")
	require.True(t, selectAt >= 0 && gpoAt >= 0 && rec1At >= 0 && rec2At >= 0, "missing section:\n%s", report)
	assert.True(t, selectAt < gpoAt && gpoAt < rec1At && rec1At < rec2At, "sections out of order:\n%s", report)

	assert.Contains(t, report, "Record not found")
	assert.Contains(t, report, "RAW HEX")
	assert.NotContains(t, report, "DEFAULT RECORD PLAN")
}

func TestSessionRunRecordErrorDoesNotAbort(t *testing.T) {
	transport := newMockTransport(t)

	transport.script(iso7816.SelectByAID(scan.DefaultAID()), fciResponse())

	// AFL: SFI 1, records 1 through 3; the middle one is missing.
	transport.script(gpoForFCIResponse(), tlv.Hex("77 06 94 04 08 01 03 00 90 00"))

	transport.script(iso7816.ReadRecord(1, 1), tlv.Hex("6A 83"))
	transport.scriptErr(iso7816.ReadRecord(1, 2), errors.New("tag moved out of field"))
	transport.script(iso7816.ReadRecord(1, 3), tlv.Hex(
		"70 10 5A 08 41 11 11 11 11 11 11 11 5F 24 03 26 12 31 90 00"))

	session := scan.New(transport, scan.WithLogger(quietLogger()))
	result, err := session.Run(context.Background())
	require.NoError(t, err)

	// Record 3 was still read after the failures of 1 and 2.
	assert.Contains(t, result.Report, "READ RECORD SFI 1 REC 1 ERROR")
	assert.Contains(t, result.Report, "READ RECORD SFI 1 REC 2 ERROR: tag moved out of field")
	assert.Contains(t, result.Report, "READ RECORD SFI 1 REC 3\n")
	assert.Equal(t, "4111 •••••••• 1111", result.MaskedPAN)

	// Tag 5F24 fallback: first digit pair shown as the month.
	assert.Equal(t, "26/12", result.Expiry)
}

func TestSessionRunNoAFLFallbackPlan(t *testing.T) {
	transport := newMockTransport(t)

	// FCI without a PDOL: the GPO carries an empty command template.
	transport.script(iso7816.SelectByAID(scan.DefaultAID()),
		tlv.Hex("6F 0E 84 0C 41 4D 45 58 31 45 4E 41 42 4C 45 52 90 00"))
	transport.script(emv.GetProcessingOptions(tlv.Hex("83 00")),
		tlv.Hex("80 02 19 80 90 00"))

	// Fallback plan: SFI 1 records 1-3, SFI 2 records 1-2.
	transport.script(iso7816.ReadRecord(1, 1), tlv.Hex("6A 83"))
	transport.script(iso7816.ReadRecord(1, 2), tlv.Hex("6A 83"))
	transport.script(iso7816.ReadRecord(1, 3), tlv.Hex("6A 83"))
	transport.script(iso7816.ReadRecord(2, 1), tlv.Hex(
		"70 0A 5A 08 41 11 11 11 11 11 11 11 90 00"))
	transport.script(iso7816.ReadRecord(2, 2), tlv.Hex("6A 83"))

	session := scan.New(transport, scan.WithLogger(quietLogger()))
	result, err := session.Run(context.Background())
	require.NoError(t, err)

	assert.Contains(t, result.Report, "NO AFL IN GPO RESPONSE, USING DEFAULT RECORD PLAN")
	assert.Contains(t, result.Report, "READ RECORD SFI 2 REC 1")
	assert.Equal(t, "4111 •••••••• 1111", result.MaskedPAN)
	assert.Empty(t, result.Expiry)
	assert.Len(t, transport.calls, 7) // SELECT, GPO, 5 records
}

func TestSessionRunSelectRefused(t *testing.T) {
	transport := newMockTransport(t)
	transport.script(iso7816.SelectByAID(scan.DefaultAID()), tlv.Hex("6A 82"))

	session := scan.New(transport, scan.WithLogger(quietLogger()))
	result, err := session.Run(context.Background())

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "refused selection")
	assert.Contains(t, err.Error(), "File or application not found")
	assert.Equal(t, scan.StateFailed, session.State())
	assert.Equal(t, 1, transport.ends())
	assert.Empty(t, session.Transcript())
}

func TestSessionRunGPOTransportErrorAborts(t *testing.T) {
	transport := newMockTransport(t)
	transport.script(iso7816.SelectByAID(scan.DefaultAID()), fciResponse())
	transport.scriptErr(gpoForFCIResponse(), errors.New("connection lost"))

	session := scan.New(transport, scan.WithLogger(quietLogger()))
	result, err := session.Run(context.Background())

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "get processing options")
	assert.Contains(t, err.Error(), "connection lost")
	assert.Equal(t, scan.StateFailed, session.State())

	// The SELECT section survived in the partial transcript.
	assert.Contains(t, session.Transcript(), "SELECT RESPONSE")
}

func TestSessionRunCustomAID(t *testing.T) {
	aid := tlv.Hex("A0 00 00 00 03 10 10")

	transport := newMockTransport(t)
	transport.script(iso7816.SelectByAID(aid), tlv.Hex("6A 82"))

	session := scan.New(transport, scan.WithAID(aid), scan.WithLogger(quietLogger()))
	_, err := session.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "A0000000031010")
}

func TestSessionStopDiscardsInFlightResponse(t *testing.T) {
	transport := newMockTransport(t)
	transport.script(iso7816.SelectByAID(scan.DefaultAID()), fciResponse())

	session := scan.New(transport, scan.WithLogger(quietLogger()))

	// Stop lands while the SELECT response is on its way back: the result
	// must be discarded without touching the report or the state.
	transport.onExchange = func(*iso7816.Command) {
		session.Stop()
	}

	result, err := session.Run(context.Background())

	require.ErrorIs(t, err, scan.ErrStopped)
	assert.Nil(t, result)
	assert.Empty(t, session.Transcript())
	assert.NotEqual(t, scan.StateCompleted, session.State())
	assert.NotEqual(t, scan.StateFailed, session.State())
	assert.Equal(t, 1, transport.ends(), "Stop ends the transport exactly once")
}

func TestSessionStopBeforeRun(t *testing.T) {
	transport := newMockTransport(t)

	session := scan.New(transport, scan.WithLogger(quietLogger()))
	session.Stop()
	session.Stop() // idempotent

	result, err := session.Run(context.Background())
	require.ErrorIs(t, err, scan.ErrStopped)
	assert.Nil(t, result)
	assert.Empty(t, transport.calls, "no command may go out after Stop")
	assert.Equal(t, 1, transport.ends())
}

func TestSessionRunContextCancelled(t *testing.T) {
	transport := newMockTransport(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	session := scan.New(transport, scan.WithLogger(quietLogger()))
	result, err := session.Run(ctx)

	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, context.Canceled)
}
