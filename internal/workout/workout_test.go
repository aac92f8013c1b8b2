package workout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedback(t *testing.T) {
	cases := []struct {
		name  string
		state State
		want  string
	}{
		{
			name:  "no timing yet",
			state: State{Name: "Pull-ups", RepsCompleted: 10},
			want:  "Keep pushing through the pull-ups! Maintain good form.",
		},
		{
			name:  "good pace",
			state: State{Name: "Thrusters", RepsCompleted: 15, TimePerRep: 2.1},
			want:  "Great pace on the thrusters! Keep up the intensity.",
		},
		{
			name:  "slow pace",
			state: State{Name: "Squats", RepsCompleted: 50, TimePerRep: 4.8},
			want:  "Take your time with the squats, focus on form over speed.",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Feedback(tc.state))
		})
	}
}

func TestCatalog_Benchmarks(t *testing.T) {
	for _, name := range []string{"Murph", "Fran", "Grace"} {
		w, ok := Catalog[name]
		require.True(t, ok, name)
		assert.Equal(t, name, w.Name)
		assert.NotEmpty(t, w.Movements)
	}

	assert.Len(t, Catalog["Fran"].Movements, 6)
	assert.Equal(t, MovementDistance, Catalog["Murph"].Movements[0].Type)
}

func trackerAt(start time.Time) (*Tracker, *time.Time) {
	now := start
	tr := NewTracker()
	tr.now = func() time.Time { return now }
	return tr, &now
}

func TestTracker_StartUnknownWorkout(t *testing.T) {
	tr := NewTracker()
	_, err := tr.Start("Helen")
	assert.ErrorIs(t, err, ErrUnknownWorkout)
	assert.False(t, tr.Active())
}

func TestTracker_AdvanceThroughWorkout(t *testing.T) {
	tr, now := trackerAt(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))

	w, err := tr.Start("Grace")
	require.NoError(t, err)
	assert.Equal(t, "Grace", w.Name)
	assert.True(t, tr.Active())

	current, err := tr.Current()
	require.NoError(t, err)
	assert.Equal(t, "Clean & Jerks", current.Name)

	*now = now.Add(90 * time.Second)
	_, more, err := tr.Advance()
	require.NoError(t, err)
	assert.False(t, more)

	summary, err := tr.Finish()
	require.NoError(t, err)
	assert.Equal(t, "Grace", summary.Name)
	assert.Equal(t, 30, summary.TotalReps)
	assert.Equal(t, 90, summary.DurationSeconds)
	require.Len(t, summary.Movements, 1)
	assert.InDelta(t, 3.0, summary.Movements[0].TimePerRep, 0.001)
	assert.False(t, tr.Active())
}

func TestTracker_FinishEarlyCountsCurrentMovement(t *testing.T) {
	tr, now := trackerAt(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))

	_, err := tr.Start("Fran")
	require.NoError(t, err)

	*now = now.Add(60 * time.Second)
	next, more, err := tr.Advance()
	require.NoError(t, err)
	require.True(t, more)
	assert.Equal(t, "Pull-ups", next.Name)

	*now = now.Add(45 * time.Second)
	summary, err := tr.Finish()
	require.NoError(t, err)

	// First thrusters set plus the pull-up set in progress.
	require.Len(t, summary.Movements, 2)
	assert.Equal(t, 21+21, summary.TotalReps)
	assert.Equal(t, 105, summary.DurationSeconds)
}

func TestTracker_FinishWithoutStart(t *testing.T) {
	tr := NewTracker()
	_, err := tr.Finish()
	assert.ErrorIs(t, err, ErrNoActiveWorkout)

	_, err = tr.Current()
	assert.ErrorIs(t, err, ErrNoActiveWorkout)

	_, _, err = tr.Advance()
	assert.ErrorIs(t, err, ErrNoActiveWorkout)
}

func TestTracker_DistanceMovementHasNoPerRepTiming(t *testing.T) {
	tr, now := trackerAt(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))

	_, err := tr.Start("Murph")
	require.NoError(t, err)

	*now = now.Add(8 * time.Minute)
	_, more, err := tr.Advance()
	require.NoError(t, err)
	require.True(t, more)

	summary, err := tr.Finish()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(summary.Movements), 1)
	assert.Zero(t, summary.Movements[0].TimePerRep)
}
