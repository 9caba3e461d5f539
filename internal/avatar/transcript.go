package avatar

import (
	"strings"
	"sync"
	"time"
)

// Role identifies the speaker of a transcript entry.
type Role string

const (
	RoleUser   Role = "user"
	RoleAvatar Role = "avatar"
)

// Entry is one finalized conversation turn.
type Entry struct {
	Role      Role
	Text      string
	Timestamp time.Time
}

// Transcript assembles per-speaker turns from streamed message deltas.
// Deltas accumulate into the speaker's open turn; EndTurn freezes it
// into an immutable entry.
type Transcript struct {
	mu      sync.Mutex
	entries []Entry
	open    map[Role]*strings.Builder
	started map[Role]time.Time
}

func NewTranscript() *Transcript {
	return &Transcript{
		open:    make(map[Role]*strings.Builder),
		started: make(map[Role]time.Time),
	}
}

// StartTurn opens an empty turn for the speaker, discarding any
// unfinalized text they had.
func (t *Transcript) StartTurn(role Role) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.open[role] = &strings.Builder{}
	t.started[role] = time.Now()
}

// AppendDelta adds a message fragment to the speaker's open turn,
// opening one if needed. Fragments are joined with single spaces.
func (t *Transcript) AppendDelta(role Role, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.open[role]
	if !ok {
		b = &strings.Builder{}
		t.open[role] = b
		t.started[role] = time.Now()
	}
	if b.Len() > 0 {
		b.WriteString(" ")
	}
	b.WriteString(text)
}

// EndTurn finalizes the speaker's open turn. Empty turns are dropped.
func (t *Transcript) EndTurn(role Role) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.open[role]
	if !ok {
		return
	}
	delete(t.open, role)
	started := t.started[role]
	delete(t.started, role)
	if b.Len() == 0 {
		return
	}
	t.entries = append(t.entries, Entry{Role: role, Text: b.String(), Timestamp: started})
}

// Partial returns the speaker's accumulated unfinalized text.
func (t *Transcript) Partial(role Role) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok := t.open[role]; ok {
		return b.String()
	}
	return ""
}

// Entries returns a copy of the finalized turns in order.
func (t *Transcript) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}
