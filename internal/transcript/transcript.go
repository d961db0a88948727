// Package transcript accumulates per-turn agent output into a single
// delimited text document.
package transcript

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// sanitize replaces characters that are unsafe in filenames.
var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

func sanitizeName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "-")
	s = unsafeChars.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		s = "unnamed"
	}
	return s
}

// Filename returns the transcript filename for a pair run.
func Filename(pairID string, ts time.Time) string {
	return fmt.Sprintf("%s-%s.log", sanitizeName(pairID), ts.Format("20060102-150405"))
}

// Buffer accumulates turn output with clear delimiters. The zero value is
// ready to use.
type Buffer struct {
	b strings.Builder
}

// AppendTurn records one turn's raw output. Turns are 0-indexed internally
// but delimited 1-based for readability.
func (t *Buffer) AppendTurn(turn int, output string) {
	fmt.Fprintf(&t.b, "===== TURN %d =====\n", turn+1)
	t.b.WriteString(output)
	if !strings.HasSuffix(output, "\n") {
		t.b.WriteByte('\n')
	}
}

// AppendError records a captured run error at the point it occurred.
func (t *Buffer) AppendError(err error) {
	fmt.Fprintf(&t.b, "===== ERROR =====\n%v\n", err)
}

// String returns the accumulated transcript text.
func (t *Buffer) String() string {
	return t.b.String()
}

// Len returns the accumulated length in bytes.
func (t *Buffer) Len() int {
	return t.b.Len()
}
