package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_AppendPreservesOrder(t *testing.T) {
	l := New()
	l.Append(Entry{Speaker: SpeakerCoach, Message: "Voice mode activated, I am here to help"})
	l.Append(Entry{Speaker: SpeakerUser, Message: "start murph"})
	l.Append(Entry{Speaker: SpeakerCoach, Message: "Let's begin!"})

	entries := l.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, SpeakerCoach, entries[0].Speaker)
	assert.Equal(t, "start murph", entries[1].Message)
	assert.Equal(t, "Let's begin!", entries[2].Message)
}

func TestLog_AppendStampsTimestamp(t *testing.T) {
	l := New()
	before := time.Now()
	l.Append(Entry{Speaker: SpeakerUser, Message: "hi"})

	entries := l.Entries()
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Timestamp.Before(before))
}

func TestLog_AppendKeepsExplicitTimestamp(t *testing.T) {
	l := New()
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.Append(Entry{Timestamp: ts, Speaker: SpeakerUser, Message: "hi"})

	assert.Equal(t, ts, l.Entries()[0].Timestamp)
}

func TestLog_ObserverGetsFullSnapshot(t *testing.T) {
	l := New()
	var snapshots [][]Entry
	l.SetObserver(func(entries []Entry) {
		snapshots = append(snapshots, entries)
	})

	l.Append(Entry{Speaker: SpeakerUser, Message: "one"})
	l.Append(Entry{Speaker: SpeakerCoach, Message: "two"})

	// Immediate callback on registration, then one per append.
	require.Len(t, snapshots, 3)
	assert.Empty(t, snapshots[0])
	assert.Len(t, snapshots[1], 1)
	assert.Len(t, snapshots[2], 2)
	assert.Equal(t, "two", snapshots[2][1].Message)
}

func TestLog_ObserverSnapshotIsACopy(t *testing.T) {
	l := New()
	var captured []Entry
	l.SetObserver(func(entries []Entry) { captured = entries })

	l.Append(Entry{Speaker: SpeakerUser, Message: "original"})
	captured[0].Message = "mutated"

	assert.Equal(t, "original", l.Entries()[0].Message)
}

func TestLog_LatestObserverWins(t *testing.T) {
	l := New()
	first, second := 0, 0
	l.SetObserver(func([]Entry) { first++ })
	l.SetObserver(func([]Entry) { second++ })

	firstBefore := first
	l.Append(Entry{Speaker: SpeakerUser, Message: "x"})

	assert.Equal(t, firstBefore, first)
	assert.Equal(t, 2, second) // registration + append
}

func TestLog_Len(t *testing.T) {
	l := New()
	assert.Zero(t, l.Len())
	l.Append(Entry{Speaker: SpeakerUser, Message: "x"})
	assert.Equal(t, 1, l.Len())
}
