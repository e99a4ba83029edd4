package capture

import (
	"sync"
	"time"
)

// Entry is one response shown to the user
type Entry struct {
	Seq  int       `json:"seq"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// ResponseLog is the append-only list of responses for the session
type ResponseLog struct {
	mu       sync.Mutex
	entries  []Entry
	onAppend func(Entry)
}

// NewResponseLog creates an empty log. onAppend, if set, is called for every
// new entry in append order.
func NewResponseLog(onAppend func(Entry)) *ResponseLog {
	return &ResponseLog{onAppend: onAppend}
}

// Append adds text after all previous entries
func (l *ResponseLog) Append(text string, at time.Time) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := Entry{Seq: len(l.entries) + 1, Text: text, At: at}
	l.entries = append(l.entries, e)
	// Called under the lock so listeners observe entries in order
	if l.onAppend != nil {
		l.onAppend(e)
	}
	return e
}

// Entries returns a copy of all entries
func (l *ResponseLog) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries
func (l *ResponseLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
