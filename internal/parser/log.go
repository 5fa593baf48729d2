package parser

import (
	"fmt"
	"time"
)

// LogBuffer is the append-only progress feed of the current job. Lines are
// never rewritten or removed mid-job; the buffer is cleared only when a new
// job starts. It is not internally synchronized: the owning Service guards
// all access with its mutex so that log appends and status transitions form
// a single atomic step.
type LogBuffer struct {
	lines []string
}

// Append adds a timestamped line to the buffer
func (b *LogBuffer) Append(format string, args ...interface{}) {
	line := fmt.Sprintf("%s %s", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	b.lines = append(b.lines, line)
}

// Len returns the number of buffered lines
func (b *LogBuffer) Len() int {
	return len(b.lines)
}

// Lines returns a copy of the full buffer from the start of the current job
func (b *LogBuffer) Lines() []string {
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

// Reset clears the buffer for a new job
func (b *LogBuffer) Reset() {
	b.lines = nil
}
