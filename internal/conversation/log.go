// Package conversation provides the append-only record of exchanged
// utterances between the user and the coach.
package conversation

import (
	"sync"
	"time"
)

// Speaker identifies who produced an entry.
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerCoach Speaker = "coach"
)

// Entry is one utterance. Immutable once appended.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Speaker   Speaker   `json:"speaker"`
	Message   string    `json:"message"`
	Action    string    `json:"action,omitempty"`
}

// Observer receives the full entry sequence after every append.
// The slice is a copy; the callback owns it.
type Observer func(entries []Entry)

// Log is an append-only, insertion-ordered sequence of entries.
// Entries are never edited or removed for the life of a session.
type Log struct {
	mu       sync.Mutex
	entries  []Entry
	observer Observer
}

// New creates an empty log.
func New() *Log {
	return &Log{}
}

// Append adds an entry and synchronously notifies the observer with the
// complete current sequence. Observers treat the callback as the new
// authoritative snapshot, not a delta.
func (l *Log) Append(e Entry) {
	l.mu.Lock()
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	l.entries = append(l.entries, e)
	observer := l.observer
	snapshot := l.snapshotLocked()
	l.mu.Unlock()

	if observer != nil {
		observer(snapshot)
	}
}

// SetObserver registers the snapshot callback, replacing any prior one.
// The observer is invoked immediately with the current sequence.
func (l *Log) SetObserver(fn Observer) {
	l.mu.Lock()
	l.observer = fn
	snapshot := l.snapshotLocked()
	l.mu.Unlock()

	if fn != nil {
		fn(snapshot)
	}
}

// Entries returns a copy of the current sequence.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Log) snapshotLocked() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}
