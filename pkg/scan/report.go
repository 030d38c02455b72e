package scan

import (
	"fmt"
	"strings"

	"github.com/tapnkit/tapscan/pkg/tlv"
)

// Report accumulates the human-readable transcript of one scan: labeled
// response sections in command order, each with the decoded object tree and
// the raw bytes, plus per-record error lines. The presentation layer shows
// it verbatim.
type Report struct {
	sb strings.Builder
}

// Line appends one formatted line.
func (r *Report) Line(format string, args ...interface{}) {
	fmt.Fprintf(&r.sb, format+"\n", args...)
}

// Response appends a labeled response section: the decoded tree when the
// payload yielded any objects, then the payload itself under a RAW HEX
// header.
func (r *Report) Response(label string, nodes []tlv.Node, raw []byte) {
	r.Line("%s", label)
	if len(nodes) > 0 {
		r.Line("%s", tlv.DumpNodes(nodes))
	}
	r.Line("RAW HEX")
	r.Line("%X", raw)
}

// String returns the transcript accumulated so far.
func (r *Report) String() string {
	return strings.TrimRight(r.sb.String(), "\n")
}
