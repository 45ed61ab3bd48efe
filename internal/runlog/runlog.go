// Package runlog holds the append-only, step-numbered history of what the
// agent did during one run. The rendered text is replayed into every decision
// call, so it is never truncated or reordered.
package runlog

import (
	"fmt"
	"strconv"
	"strings"
)

// Header opens every rendered log.
const Header = "Previous action observations:\n"

// Entry is one numbered observation.
type Entry struct {
	Step int    `json:"step"`
	Text string `json:"text"`
}

// Line renders the entry the way it appears in the log text.
func (e Entry) Line() string {
	return fmt.Sprintf("%d. %s", e.Step, e.Text)
}

// Log is owned by a single run and is not safe for concurrent use.
type Log struct {
	entries []Entry
}

// New returns an empty log.
func New() *Log {
	return &Log{}
}

// Append records text under the next step number and returns the new entry.
func (l *Log) Append(text string) Entry {
	e := Entry{Step: l.NextStep(), Text: text}
	l.entries = append(l.entries, e)
	return e
}

// NextStep derives the next step number from the numeric prefix of the last
// rendered line. An empty log starts at 1. A tail line without a numeric
// prefix also restarts at 1.
func (l *Log) NextStep() int {
	if len(l.entries) == 0 {
		return 1
	}
	return ParseStep(l.entries[len(l.entries)-1].Line()) + 1
}

// ParseStep returns the leading integer of line, or 0 when there is none.
func ParseStep(line string) int {
	end := 0
	for end < len(line) && line[end] >= '0' && line[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.Atoi(line[:end])
	if err != nil {
		return 0
	}
	return n
}

// Entries returns a copy of the recorded entries in order.
func (l *Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len is the number of entries.
func (l *Log) Len() int {
	return len(l.entries)
}

// Empty reports whether nothing has been recorded yet.
func (l *Log) Empty() bool {
	return len(l.entries) == 0
}

// Last returns the most recent entry.
func (l *Log) Last() (Entry, bool) {
	if len(l.entries) == 0 {
		return Entry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// String renders the full log. An empty log renders as the empty string so
// prompts can omit the section entirely.
func (l *Log) String() string {
	if len(l.entries) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(Header)
	for _, e := range l.entries {
		b.WriteString("\n")
		b.WriteString(e.Line())
	}
	return b.String()
}
