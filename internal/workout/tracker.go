package workout

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrUnknownWorkout means the requested name is not in the catalog.
	ErrUnknownWorkout = errors.New("workout: unknown workout")

	// ErrNoActiveWorkout means a progress operation ran with nothing started.
	ErrNoActiveWorkout = errors.New("workout: no active workout")
)

// MovementSummary is one movement line of a finished workout.
type MovementSummary struct {
	Name          string
	RepsCompleted int
	TimePerRep    float64 // seconds; zero for distance work
}

// Summary is the result of a finished workout.
type Summary struct {
	Name            string
	DurationSeconds int
	TotalReps       int
	Movements       []MovementSummary
}

// Tracker follows one workout through its movement sequence. Thread-safe;
// the voice action handler and the UI may touch it concurrently.
type Tracker struct {
	mu           sync.Mutex
	workout      *Workout
	movementIdx  int
	startedAt    time.Time
	movementAt   time.Time
	completed    []MovementSummary
	now          func() time.Time
}

// NewTracker creates an idle tracker.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// Start begins the named catalog workout at its first movement. Starting
// while another workout is active replaces it.
func (t *Tracker) Start(name string) (Workout, error) {
	w, ok := Catalog[name]
	if !ok {
		return Workout{}, fmt.Errorf("%w: %q", ErrUnknownWorkout, name)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.workout = &w
	t.movementIdx = 0
	t.startedAt = t.now()
	t.movementAt = t.startedAt
	t.completed = nil
	return w, nil
}

// Active reports whether a workout is in progress.
func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.workout != nil
}

// Current returns the movement in progress.
func (t *Tracker) Current() (Movement, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.workout == nil {
		return Movement{}, ErrNoActiveWorkout
	}
	return t.workout.Movements[t.movementIdx], nil
}

// Advance marks the current movement complete at its prescribed reps and
// moves to the next one. The second result is false once the sequence is
// exhausted; the caller should then finish the workout.
func (t *Tracker) Advance() (Movement, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.workout == nil {
		return Movement{}, false, ErrNoActiveWorkout
	}

	t.completeCurrentLocked()

	t.movementIdx++
	if t.movementIdx >= len(t.workout.Movements) {
		t.movementIdx = len(t.workout.Movements) - 1
		return Movement{}, false, nil
	}
	t.movementAt = t.now()
	return t.workout.Movements[t.movementIdx], true, nil
}

// Finish ends the workout and returns its summary. Movements not yet
// advanced past are counted as completed where the last one finishes at
// the moment of the call.
func (t *Tracker) Finish() (Summary, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.workout == nil {
		return Summary{}, ErrNoActiveWorkout
	}

	// Movements complete sequentially, so the current one is pending
	// exactly when the completed count equals its index.
	if len(t.completed) == t.movementIdx {
		t.completeCurrentLocked()
	}

	total := 0
	for _, m := range t.completed {
		total += m.RepsCompleted
	}

	s := Summary{
		Name:            t.workout.Name,
		DurationSeconds: int(t.now().Sub(t.startedAt).Seconds()),
		TotalReps:       total,
		Movements:       t.completed,
	}

	t.workout = nil
	t.completed = nil
	t.movementIdx = 0
	return s, nil
}

// completeCurrentLocked records the movement in progress as done at its
// prescribed reps, with per-rep timing from the time spent on it.
func (t *Tracker) completeCurrentLocked() {
	m := t.workout.Movements[t.movementIdx]
	summary := MovementSummary{
		Name:          m.Name,
		RepsCompleted: m.Reps,
	}
	if m.Type == MovementReps && m.Reps > 0 {
		summary.TimePerRep = t.now().Sub(t.movementAt).Seconds() / float64(m.Reps)
	}
	t.completed = append(t.completed, summary)
	t.movementAt = t.now()
}
