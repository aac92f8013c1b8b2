// Package workout holds the workout collaborator's types: the state
// snapshot the session core consumes, coach feedback synthesis, and the
// static workout catalog.
package workout

import (
	"fmt"
	"strings"
)

// State is the latest snapshot from the workout collaborator. The
// session core holds one snapshot at a time and does not own it.
type State struct {
	Name          string  `json:"name"`
	RepsCompleted int     `json:"repsCompleted"`
	TimePerRep    float64 `json:"timePerRep,omitempty"` // seconds; 0 when unknown
}

// goodPaceSeconds is the time-per-rep under which the pace counts as good.
const goodPaceSeconds = 3.0

// Feedback synthesizes a coach-voiced message for a state snapshot.
func Feedback(s State) string {
	name := strings.ToLower(s.Name)
	if s.TimePerRep == 0 {
		return fmt.Sprintf("Keep pushing through the %s! Maintain good form.", name)
	}
	if s.TimePerRep < goodPaceSeconds {
		return fmt.Sprintf("Great pace on the %s! Keep up the intensity.", name)
	}
	return fmt.Sprintf("Take your time with the %s, focus on form over speed.", name)
}
