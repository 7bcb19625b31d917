package kernel

import "strings"

// LineSplitter accumulates bytes read from a child's stdout pipe and
// yields complete newline-delimited lines, buffering any partial
// remainder between reads. Spec §4.4 calls for exactly this: "the parser
// buffers partial reads and only consumes complete lines." One
// LineSplitter is owned per child reader goroutine (see Child.ReadLines).
type LineSplitter struct {
	buf strings.Builder
}

// Feed appends newly read bytes and returns every complete line found (with
// the trailing newline stripped), in order. Any trailing partial line is
// retained for the next Feed call.
func (l *LineSplitter) Feed(chunk []byte) []string {
	l.buf.Write(chunk)
	pending := l.buf.String()

	var lines []string
	for {
		idx := strings.IndexByte(pending, '\n')
		if idx < 0 {
			break
		}
		line := strings.TrimSuffix(pending[:idx], "\r")
		lines = append(lines, line)
		pending = pending[idx+1:]
	}

	l.buf.Reset()
	l.buf.WriteString(pending)
	return lines
}

// Pending returns the unterminated remainder currently buffered, mainly
// for diagnostics.
func (l *LineSplitter) Pending() string {
	return l.buf.String()
}
