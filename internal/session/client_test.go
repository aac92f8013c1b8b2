package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/soyeahso/repcoach/internal/audio"
	"github.com/soyeahso/repcoach/internal/conversation"
	"github.com/soyeahso/repcoach/internal/dispatch"
	"github.com/soyeahso/repcoach/internal/logging"
	"github.com/soyeahso/repcoach/internal/protocol"
	"github.com/soyeahso/repcoach/internal/workout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePipeline satisfies Pipeline without touching any audio device.
type fakePipeline struct {
	startErr error
	chunks   chan []byte
	once     sync.Once
	started  bool
	stopped  bool
	mu       sync.Mutex
}

func newFakePipeline() *fakePipeline {
	return &fakePipeline{chunks: make(chan []byte, 16)}
}

func (f *fakePipeline) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.mu.Lock()
	f.started = true
	f.mu.Unlock()
	return nil
}

func (f *fakePipeline) Chunks() <-chan []byte { return f.chunks }

func (f *fakePipeline) SetActivityObserver(audio.ActivityObserver) {}

func (f *fakePipeline) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
	f.once.Do(func() { close(f.chunks) })
}

func (f *fakePipeline) feed(chunk []byte) { f.chunks <- chunk }

// fakeTranscriber returns a scripted transcript.
type fakeTranscriber struct {
	mu    sync.Mutex
	text  string
	err   error
	calls [][]byte
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, pcm)
	return f.text, f.err
}

func (f *fakeTranscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// backend is a scripted realtime endpoint over httptest.
type backend struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conn   *websocket.Conn
	auth   string
	frames []protocol.Frame
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		b.mu.Lock()
		b.conn = conn
		b.auth = r.Header.Get("Authorization")
		b.mu.Unlock()

		for {
			var f protocol.Frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			b.mu.Lock()
			b.frames = append(b.frames, f)
			b.mu.Unlock()
		}
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *backend) url() string {
	return "ws" + strings.TrimPrefix(b.srv.URL, "http")
}

func (b *backend) send(t *testing.T, raw string) {
	t.Helper()
	require.Eventually(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.conn != nil
	}, 2*time.Second, 10*time.Millisecond, "client never connected")

	b.mu.Lock()
	defer b.mu.Unlock()
	require.NoError(t, b.conn.WriteMessage(websocket.TextMessage, []byte(raw)))
}

func (b *backend) received() []protocol.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]protocol.Frame, len(b.frames))
	copy(out, b.frames)
	return out
}

func (b *backend) authorization() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.auth
}

func startedClient(t *testing.T, b *backend, pipe *fakePipeline, tr *fakeTranscriber) *Client {
	t.Helper()
	c := New(Config{URL: b.url(), Credential: "sk-test"}, pipe, tr, logging.New(nil, "silent"))
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(c.Stop)

	require.Eventually(t, func() bool {
		return c.State() == StateActive
	}, 2*time.Second, 10*time.Millisecond)
	return c
}

func lastEntry(c *Client) conversation.Entry {
	entries := c.History()
	if len(entries) == 0 {
		return conversation.Entry{}
	}
	return entries[len(entries)-1]
}

func TestStart_NoCredential(t *testing.T) {
	pipe := newFakePipeline()
	c := New(Config{URL: "ws://localhost:1"}, pipe, &fakeTranscriber{}, logging.New(nil, "silent"))

	err := c.Start(context.Background())
	assert.ErrorIs(t, err, ErrNoCredential)
	assert.Equal(t, StateIdle, c.State())
	assert.False(t, pipe.started)
}

func TestStart_DevicePermissionDenied(t *testing.T) {
	pipe := newFakePipeline()
	pipe.startErr = audio.ErrPermissionDenied
	c := New(Config{URL: "ws://localhost:1", Credential: "sk-test"}, pipe, &fakeTranscriber{}, logging.New(nil, "silent"))

	err := c.Start(context.Background())
	assert.ErrorIs(t, err, audio.ErrPermissionDenied)
	assert.Equal(t, StateIdle, c.State())
}

func TestStart_DialFailureAbsorbed(t *testing.T) {
	pipe := newFakePipeline()
	c := New(Config{URL: "ws://127.0.0.1:1", Credential: "sk-test"}, pipe, &fakeTranscriber{}, logging.New(nil, "silent"))

	err := c.Start(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateErrored, c.State())
	assert.Equal(t, "I'm having trouble connecting. Please try again.", lastEntry(c).Message)
	assert.True(t, pipe.stopped)
}

func TestStart_AlreadyStarted(t *testing.T) {
	b := newBackend(t)
	c := startedClient(t, b, newFakePipeline(), &fakeTranscriber{})

	err := c.Start(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestStart_SendsSessionConfigThenPrimesCoach(t *testing.T) {
	b := newBackend(t)
	c := startedClient(t, b, newFakePipeline(), &fakeTranscriber{})

	require.Eventually(t, func() bool {
		return len(b.received()) >= 2
	}, 2*time.Second, 10*time.Millisecond)

	frames := b.received()
	assert.Equal(t, protocol.KindSessionUpdate, frames[0].Type)
	require.NotNil(t, frames[0].Session)
	assert.Equal(t, "onyx", frames[0].Session.Voice)
	assert.Equal(t, "server_vad", frames[0].Session.TurnDetection)
	assert.Len(t, frames[0].Session.Tools, 5)

	assert.Equal(t, protocol.KindResponseCreate, frames[1].Type)

	assert.Equal(t, "Bearer sk-test", b.authorization())
	// Nothing lands in the conversation until the coach speaks.
	assert.Empty(t, c.History())
}

func TestClient_AssistantMessageAppended(t *testing.T) {
	b := newBackend(t)
	c := startedClient(t, b, newFakePipeline(), &fakeTranscriber{})

	b.send(t, `{"type":"conversation.item.created","item":{"type":"message","role":"assistant","content":[{"type":"text","text":"Let's begin!"}]}}`)

	require.Eventually(t, func() bool {
		e := lastEntry(c)
		return e.Speaker == conversation.SpeakerCoach && e.Message == "Let's begin!"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClient_FunctionCallDispatched(t *testing.T) {
	b := newBackend(t)
	c := startedClient(t, b, newFakePipeline(), &fakeTranscriber{})

	actions := make(chan dispatch.Action, 4)
	c.SetActionHandler(func(a dispatch.Action) { actions <- a })

	b.send(t, `{"type":"response.function_call_arguments.done","name":"next_movement","arguments":"{}","call_id":"c1"}`)

	select {
	case a := <-actions:
		assert.Equal(t, dispatch.ActionNextMovement, a)
	case <-time.After(2 * time.Second):
		t.Fatal("no action dispatched")
	}
}

func TestClient_UnknownFramesIgnored(t *testing.T) {
	b := newBackend(t)
	c := startedClient(t, b, newFakePipeline(), &fakeTranscriber{})

	before := len(c.History())
	b.send(t, `{"type":"rate_limits.updated"}`)
	b.send(t, `{"type":"response.audio.delta","delta":"abcd"}`)
	b.send(t, `{"type":"conversation.item.created","item":{"type":"function_call"}}`)

	// Still active and nothing new recorded.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, StateActive, c.State())
	assert.Len(t, c.History(), before)
}

func TestClient_SpeechMarkersDriveProcessing(t *testing.T) {
	b := newBackend(t)
	tr := &fakeTranscriber{text: ""}
	c := startedClient(t, b, newFakePipeline(), tr)

	assert.False(t, c.Processing())
	b.send(t, `{"type":"input_audio_buffer.speech_started"}`)
	require.Eventually(t, func() bool { return c.Processing() }, 2*time.Second, 10*time.Millisecond)

	b.send(t, `{"type":"input_audio_buffer.speech_stopped"}`)
	require.Eventually(t, func() bool { return !c.Processing() }, 2*time.Second, 10*time.Millisecond)
}

func TestClient_TranscriptionFlow(t *testing.T) {
	b := newBackend(t)
	pipe := newFakePipeline()
	tr := &fakeTranscriber{text: "how many reps left"}
	c := startedClient(t, b, pipe, tr)

	pipe.feed([]byte{1, 2, 3, 4})

	// Wait for the chunk to be forwarded before ending speech.
	require.Eventually(t, func() bool {
		for _, f := range b.received() {
			if f.Type == protocol.KindAudioAppend {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	b.send(t, `{"type":"input_audio_buffer.speech_stopped"}`)

	require.Eventually(t, func() bool {
		e := lastEntry(c)
		return e.Speaker == conversation.SpeakerUser && e.Message == "how many reps left"
	}, 2*time.Second, 10*time.Millisecond)

	// The transcript item goes out before the new generation request.
	require.Eventually(t, func() bool {
		var sawItem bool
		for _, f := range b.received() {
			if f.Type == protocol.KindConversationItemCreate {
				sawItem = true
			}
			if f.Type == protocol.KindResponseCreate && sawItem {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	frames := b.received()
	for _, f := range frames {
		if f.Type == protocol.KindConversationItemCreate {
			require.NotNil(t, f.Item)
			assert.Equal(t, "user", f.Item.Role)
			assert.Equal(t, "how many reps left", f.Item.Content[0].Text)
		}
	}
}

func TestClient_EmptyTranscriptDoesNothing(t *testing.T) {
	b := newBackend(t)
	pipe := newFakePipeline()
	tr := &fakeTranscriber{text: ""}
	c := startedClient(t, b, pipe, tr)

	pipe.feed([]byte{1, 2, 3, 4})
	require.Eventually(t, func() bool {
		for _, f := range b.received() {
			if f.Type == protocol.KindAudioAppend {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	before := len(c.History())
	b.send(t, `{"type":"input_audio_buffer.speech_stopped"}`)

	require.Eventually(t, func() bool { return tr.callCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(200 * time.Millisecond)

	assert.Len(t, c.History(), before)
	for _, f := range b.received() {
		assert.NotEqual(t, protocol.KindConversationItemCreate, f.Type)
	}
}

func TestClient_SpeechStoppedAfterStopSkipsTranscription(t *testing.T) {
	b := newBackend(t)
	tr := &fakeTranscriber{text: "too late"}
	c := startedClient(t, b, newFakePipeline(), tr)

	c.Stop()
	require.Equal(t, StateClosed, c.State())

	// A speech marker racing teardown must not launch a flow against a
	// stopped session.
	c.mu.Lock()
	c.buffered = [][]byte{{1, 2, 3, 4}}
	c.mu.Unlock()
	c.handleEvent(context.Background(), protocol.SpeechStopped{})

	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, tr.callCount())
}

func TestClient_TranscriptionFailureApologizes(t *testing.T) {
	b := newBackend(t)
	pipe := newFakePipeline()
	tr := &fakeTranscriber{err: errors.New("whisper down")}
	c := startedClient(t, b, pipe, tr)

	pipe.feed([]byte{1, 2, 3, 4})
	require.Eventually(t, func() bool {
		for _, f := range b.received() {
			if f.Type == protocol.KindAudioAppend {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	b.send(t, `{"type":"input_audio_buffer.speech_stopped"}`)

	require.Eventually(t, func() bool {
		e := lastEntry(c)
		return e.Speaker == conversation.SpeakerCoach &&
			e.Message == "Sorry, I couldn't process that. Please try again."
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClient_SpeechStoppedWithNoAudioSkipsTranscription(t *testing.T) {
	b := newBackend(t)
	tr := &fakeTranscriber{text: "ghost"}
	c := startedClient(t, b, newFakePipeline(), tr)

	b.send(t, `{"type":"input_audio_buffer.speech_stopped"}`)
	time.Sleep(200 * time.Millisecond)

	assert.Zero(t, tr.callCount())
	assert.Equal(t, StateActive, c.State())
}

func TestClient_StopIsIdempotent(t *testing.T) {
	b := newBackend(t)
	pipe := newFakePipeline()
	c := startedClient(t, b, pipe, &fakeTranscriber{})

	c.Stop()
	assert.Equal(t, StateClosed, c.State())
	assert.Equal(t, "Voice mode deactivated", lastEntry(c).Message)
	assert.True(t, pipe.stopped)

	entries := len(c.History())
	c.Stop()
	assert.Equal(t, StateClosed, c.State())
	assert.Len(t, c.History(), entries)
}

func TestClient_StopBeforeStart(t *testing.T) {
	c := New(Config{URL: "ws://localhost:1", Credential: "sk-test"}, newFakePipeline(), &fakeTranscriber{}, logging.New(nil, "silent"))

	c.Stop()
	assert.Equal(t, StateIdle, c.State())
	assert.Empty(t, c.History())
}

func TestClient_RemoteCloseEndsSession(t *testing.T) {
	b := newBackend(t)
	c := startedClient(t, b, newFakePipeline(), &fakeTranscriber{})

	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	conn.Close()

	require.Eventually(t, func() bool {
		return c.State() == StateErrored
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "Connection closed. Please restart voice mode if you'd like to continue.", lastEntry(c).Message)
}

func TestClient_UpdateWorkoutState(t *testing.T) {
	b := newBackend(t)
	c := startedClient(t, b, newFakePipeline(), &fakeTranscriber{})

	c.UpdateWorkoutState(workout.State{Name: "Pull-ups", RepsCompleted: 12, TimePerRep: 2.0})

	require.NotNil(t, c.WorkoutState())
	assert.Equal(t, "Pull-ups", c.WorkoutState().Name)

	e := lastEntry(c)
	assert.Equal(t, conversation.SpeakerCoach, e.Speaker)
	assert.Equal(t, "Great pace on the pull-ups! Keep up the intensity.", e.Message)
}

func TestClient_ConversationObserver(t *testing.T) {
	b := newBackend(t)
	c := startedClient(t, b, newFakePipeline(), &fakeTranscriber{})

	var mu sync.Mutex
	var latest []conversation.Entry
	c.SetConversationObserver(func(entries []conversation.Entry) {
		mu.Lock()
		latest = entries
		mu.Unlock()
	})

	b.send(t, `{"type":"conversation.item.created","item":{"type":"message","role":"assistant","content":[{"type":"text","text":"Nice work"}]}}`)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(latest) > 0 && latest[len(latest)-1].Message == "Nice work"
	}, 2*time.Second, 10*time.Millisecond)
}
