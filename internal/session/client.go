// Package session owns the persistent connection to the realtime voice
// backend: protocol encode/decode, the session lifecycle state machine,
// and the speech-to-transcription flow.
package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/repcoach/internal/audio"
	"github.com/soyeahso/repcoach/internal/conversation"
	"github.com/soyeahso/repcoach/internal/dispatch"
	"github.com/soyeahso/repcoach/internal/logging"
	"github.com/soyeahso/repcoach/internal/protocol"
	"github.com/soyeahso/repcoach/internal/transcribe"
	"github.com/soyeahso/repcoach/internal/workout"
)

var (
	// ErrNoCredential means no backend key or relay token was configured.
	// The session never attempts to connect.
	ErrNoCredential = errors.New("session: no credential configured")

	// ErrAlreadyStarted means Start was called on a non-idle client.
	ErrAlreadyStarted = errors.New("session: already started")
)

// coachInstructions is the persona sent at session establishment and on
// every generation request.
const coachInstructions = "You are a CrossFit AI coach. Keep responses brief and actionable. " +
	"You will help guide users through their workouts, provide motivation, and respond to " +
	"their questions. You can control the workout UI and music playback through available functions."

// Canned coach-visible messages for lifecycle and failure events.
const (
	msgDeactivated   = "Voice mode deactivated"
	msgConnectFailed = "I'm having trouble connecting. Please try again."
	msgRemoteClosed  = "Connection closed. Please restart voice mode if you'd like to continue."
	msgCannotProcess = "Sorry, I couldn't process that. Please try again."
)

// Config controls a session client.
type Config struct {
	// URL is the websocket endpoint: the backend directly, or a relay.
	URL string

	// Credential is the backend key, or a relay-issued token when URL
	// points at a relay. Required.
	Credential string

	Voice         string
	TurnDetection string
	Instructions  string
}

// Pipeline is the audio source the client consumes. Satisfied by
// *audio.Pipeline.
type Pipeline interface {
	Start(ctx context.Context) error
	Chunks() <-chan []byte
	SetActivityObserver(audio.ActivityObserver)
	Stop()
}

// Client is the session core. One client serves one listening period:
// created idle, started once, stopped once.
type Client struct {
	cfg         Config
	id          string
	log         *logging.Logger
	dialer      *websocket.Dialer
	pipeline    Pipeline
	transcriber transcribe.Transcriber
	conv        *conversation.Log
	dispatcher  *dispatch.Dispatcher

	mu           sync.Mutex
	state        State
	conn         *websocket.Conn
	buffered     [][]byte // captured audio awaiting transcription
	workoutState *workout.State

	writeMu sync.Mutex

	processing atomic.Bool
	stopping   atomic.Bool
	cancel     context.CancelFunc
	flows      sync.WaitGroup // send loop + in-flight transcription flows
	closeOnce  sync.Once
}

// New creates an idle client. The conversation log and dispatcher are
// owned by the client and live for its lifetime.
func New(cfg Config, pipeline Pipeline, tr transcribe.Transcriber, log *logging.Logger) *Client {
	if cfg.Voice == "" {
		cfg.Voice = "onyx"
	}
	if cfg.TurnDetection == "" {
		cfg.TurnDetection = "server_vad"
	}
	if cfg.Instructions == "" {
		cfg.Instructions = coachInstructions
	}

	return &Client{
		cfg:         cfg,
		id:          uuid.New().String(),
		log:         log.Sub("session"),
		dialer:      websocket.DefaultDialer,
		pipeline:    pipeline,
		transcriber: tr,
		conv:        conversation.New(),
		dispatcher:  dispatch.New(log),
	}
}

// ID returns the client-generated session identifier.
func (c *Client) ID() string { return c.id }

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Processing reports whether the backend currently detects user speech.
// Observability only; it gates nothing.
func (c *Client) Processing() bool { return c.processing.Load() }

// SetConversationObserver registers the conversation snapshot callback.
func (c *Client) SetConversationObserver(fn conversation.Observer) {
	c.conv.SetObserver(fn)
}

// SetActionHandler registers the application action handler.
func (c *Client) SetActionHandler(h dispatch.Handler) {
	c.dispatcher.SetHandler(h)
}

// SetVoiceActivityObserver registers the voice-activity callback.
func (c *Client) SetVoiceActivityObserver(fn audio.ActivityObserver) {
	c.pipeline.SetActivityObserver(fn)
}

// History returns a copy of the conversation so far.
func (c *Client) History() []conversation.Entry {
	return c.conv.Entries()
}

// UpdateWorkoutState stores the latest workout snapshot and appends a
// synthesized coach feedback entry.
func (c *Client) UpdateWorkoutState(s workout.State) {
	c.mu.Lock()
	c.workoutState = &s
	c.mu.Unlock()

	c.appendCoach(workout.Feedback(s))
}

// WorkoutState returns the latest snapshot, or nil before the first update.
func (c *Client) WorkoutState() *workout.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.workoutState
}

// Start acquires the microphone, connects the socket, and sends the
// session configuration followed by a generation request priming the
// coach to speak first.
//
// Only missing-credential and device-permission failures are returned to
// the caller; transport failures after that point are absorbed into the
// Errored state with a coach-visible message, per the session's
// error-containment policy.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	if c.cfg.Credential == "" {
		c.mu.Unlock()
		return ErrNoCredential
	}
	c.state = StateConnecting
	c.mu.Unlock()

	c.log.Info().Str("sessionId", c.id).Str("url", c.cfg.URL).Msg("starting session")

	if err := c.pipeline.Start(ctx); err != nil {
		c.setState(StateIdle)
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.cfg.Credential)

	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.log.Error().Err(err).Msg("socket dial failed")
		c.teardown(StateErrored, msgConnectFailed)
		return nil
	}

	c.mu.Lock()
	c.conn = conn
	c.state = StateNegotiating
	c.mu.Unlock()

	// Configure the session and prime the coach to speak first. The
	// backend buffers, so audio can flow before any acknowledgment.
	update := protocol.NewSessionUpdate(protocol.Tools(), c.cfg.Instructions, c.cfg.Voice, c.cfg.TurnDetection)
	if err := c.writeFrame(update); err != nil {
		c.log.Error().Err(err).Msg("sending session configuration failed")
		c.teardown(StateErrored, msgConnectFailed)
		return nil
	}
	if err := c.writeFrame(protocol.NewResponseCreate(c.cfg.Instructions)); err != nil {
		c.log.Error().Err(err).Msg("sending initial generation request failed")
		c.teardown(StateErrored, msgConnectFailed)
		return nil
	}

	c.setState(StateActive)

	c.flows.Add(1)
	go c.sendLoop(runCtx)
	go c.readLoop(runCtx)

	return nil
}

// Stop ends the session: both audio cadences, the input device, the
// socket, and any buffered audio go down in one coordinated release.
// Idempotent; a second call is a no-op.
func (c *Client) Stop() {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.teardown(StateClosed, msgDeactivated)
}

// teardown releases every session resource exactly once and moves to the
// final state. Safe to call from any goroutine, including the read loop.
func (c *Client) teardown(final State, coachMsg string) {
	c.closeOnce.Do(func() {
		c.stopping.Store(true)
		c.setState(StateClosing)

		if c.cancel != nil {
			c.cancel()
		}
		c.pipeline.Stop()

		c.mu.Lock()
		conn := c.conn
		c.conn = nil
		c.buffered = nil
		c.mu.Unlock()

		if conn != nil {
			conn.Close()
		}

		// Send loop and transcription flows observe the cancelled
		// context and the closed chunk channel.
		c.flows.Wait()

		c.processing.Store(false)
		c.setState(final)
		if coachMsg != "" {
			c.appendCoach(coachMsg)
		}
		c.log.Info().Str("sessionId", c.id).Str("state", final.String()).Msg("session ended")
	})
}

// sendLoop forwards captured chunks as they arrive and retains them for
// the transcription flow.
func (c *Client) sendLoop(ctx context.Context) {
	defer c.flows.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-c.pipeline.Chunks():
			if !ok {
				return
			}
			c.mu.Lock()
			c.buffered = append(c.buffered, chunk)
			c.mu.Unlock()

			if err := c.writeFrame(protocol.NewAudioAppend(chunk)); err != nil {
				if ctx.Err() == nil {
					c.log.Warn().Err(err).Msg("audio frame send failed")
				}
			}
		}
	}
}

// readLoop decodes and routes inbound frames in arrival order.
func (c *Client) readLoop(ctx context.Context) {
	conn := c.currentConn()
	if conn == nil {
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.stopping.Load() {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Info().Msg("socket closed by remote")
				c.teardown(StateErrored, msgRemoteClosed)
			} else {
				c.log.Warn().Err(err).Msg("socket read failed")
				c.teardown(StateErrored, msgConnectFailed)
			}
			return
		}

		ev, err := protocol.Decode(data)
		if err != nil {
			// Malformed frames degrade to a skip, never a crash.
			c.log.Debug().Err(err).Msg("ignoring malformed frame")
			continue
		}
		if ev == nil {
			continue
		}
		c.handleEvent(ctx, ev)
	}
}

func (c *Client) handleEvent(ctx context.Context, ev protocol.Event) {
	switch e := ev.(type) {
	case protocol.SessionCreated:
		c.log.Info().Str("backendSessionId", e.ID).Msg("session created")

	case protocol.ConversationCreated:
		c.log.Info().Str("conversationId", e.ID).Msg("conversation created")

	case protocol.SpeechStarted:
		c.processing.Store(true)

	case protocol.SpeechStopped:
		c.processing.Store(false)
		chunks := c.takeBuffered()
		if len(chunks) == 0 {
			return
		}
		// Teardown may already be waiting on flows; never add to a
		// draining counter.
		if c.stopping.Load() {
			return
		}
		c.flows.Add(1)
		go c.transcribeFlow(ctx, chunks)

	case protocol.AssistantMessage:
		c.appendCoach(e.Text)

	case protocol.FunctionCall:
		c.dispatcher.Dispatch(dispatch.Request{
			Name:      e.Name,
			Arguments: e.Arguments,
			CallID:    e.CallID,
		})

	case protocol.UpstreamError:
		c.log.Error().Str("code", e.Code).Str("message", e.Message).Msg("backend error")
	}
}

// transcribeFlow packages buffered speech audio into one transcription
// request, appends the user entry, and issues a fresh generation
// request. The entry is always appended before the follow-up request so
// causally dependent messages observe it.
//
// Failures recover locally: an apology entry on error, nothing at all on
// an empty transcript.
func (c *Client) transcribeFlow(ctx context.Context, chunks [][]byte) {
	defer c.flows.Done()

	var size int
	for _, ch := range chunks {
		size += len(ch)
	}
	pcm := make([]byte, 0, size)
	for _, ch := range chunks {
		pcm = append(pcm, ch...)
	}

	text, err := c.transcriber.Transcribe(ctx, pcm)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.log.Warn().Err(err).Msg("transcription failed")
		c.appendCoach(msgCannotProcess)
		return
	}
	if text == "" {
		return
	}

	c.conv.Append(conversation.Entry{Speaker: conversation.SpeakerUser, Message: text})

	if err := c.writeFrame(protocol.NewUserMessage(text)); err != nil {
		c.log.Warn().Err(err).Msg("sending transcript item failed")
		return
	}
	if err := c.writeFrame(protocol.NewResponseCreate(c.cfg.Instructions)); err != nil {
		c.log.Warn().Err(err).Msg("sending generation request failed")
	}
}

// writeFrame serializes socket writes. Thread-safe.
func (c *Client) writeFrame(f protocol.Frame) error {
	conn := c.currentConn()
	if conn == nil {
		return errors.New("session: socket not open")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(f)
}

func (c *Client) currentConn() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Client) takeBuffered() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	chunks := c.buffered
	c.buffered = nil
	return chunks
}

func (c *Client) appendCoach(msg string) {
	c.conv.Append(conversation.Entry{Speaker: conversation.SpeakerCoach, Message: msg})
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	old := c.state
	c.state = s
	c.mu.Unlock()
	if old != s {
		c.log.Debug().Str("from", old.String()).Str("to", s.String()).Msg("state changed")
	}
}
