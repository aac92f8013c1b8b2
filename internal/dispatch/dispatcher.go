// Package dispatch maps backend function calls to application actions.
package dispatch

import (
	"encoding/json"
	"sync"

	"github.com/soyeahso/repcoach/internal/logging"
)

// Action is one of the fixed application actions the backend can trigger.
type Action string

const (
	ActionStartWorkout    Action = "START_WORKOUT"
	ActionNextMovement    Action = "NEXT_MOVEMENT"
	ActionShowStats       Action = "SHOW_STATS"
	ActionEndWorkout      Action = "END_WORKOUT"
	ActionMusicPlay       Action = "MUSIC_PLAY"
	ActionMusicPause      Action = "MUSIC_PAUSE"
	ActionMusicNext       Action = "MUSIC_NEXT"
	ActionMusicVolumeUp   Action = "MUSIC_VOLUME_UP"
	ActionMusicVolumeDown Action = "MUSIC_VOLUME_DOWN"
)

// Request is a parsed function call from an inbound frame. Transient;
// consumed immediately by Dispatch.
type Request struct {
	Name      string
	Arguments string
	CallID    string
}

// Handler receives resolved actions. Exactly one handler is active at a
// time; the latest registration wins.
type Handler func(Action)

// Dispatcher resolves function-call requests to actions and notifies the
// registered handler. Unknown names and malformed arguments are dropped
// without error so a bad upstream call can never take down the session.
type Dispatcher struct {
	mu      sync.RWMutex
	handler Handler
	log     *logging.Logger
}

// New creates a dispatcher with no handler registered.
func New(log *logging.Logger) *Dispatcher {
	return &Dispatcher{log: log.Sub("dispatch")}
}

// SetHandler registers the action handler, replacing any prior one.
func (d *Dispatcher) SetHandler(h Handler) {
	d.mu.Lock()
	d.handler = h
	d.mu.Unlock()
}

// Dispatch resolves and delivers a request. Requests that resolve to no
// action are dropped silently.
func (d *Dispatcher) Dispatch(req Request) {
	action, ok := Resolve(req)
	if !ok {
		d.log.Debug().Str("name", req.Name).Str("callId", req.CallID).Msg("dropping unresolvable function call")
		return
	}

	d.mu.RLock()
	handler := d.handler
	d.mu.RUnlock()

	if handler == nil {
		d.log.Debug().Str("action", string(action)).Msg("no handler registered")
		return
	}

	d.log.Info().Str("action", string(action)).Str("callId", req.CallID).Msg("dispatching action")
	handler(action)
}

// musicArgs is the argument payload of a music_control call.
type musicArgs struct {
	Action string `json:"action"`
}

// Resolve maps a function call to its canonical action. The bool result
// is false for unknown names, unknown music sub-actions, and argument
// payloads that fail to parse.
func Resolve(req Request) (Action, bool) {
	switch req.Name {
	case "start_workout":
		return ActionStartWorkout, true
	case "next_movement":
		return ActionNextMovement, true
	case "show_stats":
		return ActionShowStats, true
	case "end_workout":
		return ActionEndWorkout, true
	case "music_control":
		var args musicArgs
		if err := json.Unmarshal([]byte(req.Arguments), &args); err != nil {
			return "", false
		}
		switch args.Action {
		case "play":
			return ActionMusicPlay, true
		case "pause":
			return ActionMusicPause, true
		case "next":
			return ActionMusicNext, true
		case "volume_up":
			return ActionMusicVolumeUp, true
		case "volume_down":
			return ActionMusicVolumeDown, true
		}
		return "", false
	default:
		return "", false
	}
}
