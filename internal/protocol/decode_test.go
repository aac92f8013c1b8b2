package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_SessionCreated(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"session.created","session":{"id":"sess_123"}}`))
	require.NoError(t, err)
	require.IsType(t, SessionCreated{}, ev)
	assert.Equal(t, "sess_123", ev.(SessionCreated).ID)
}

func TestDecode_ConversationCreated(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"conversation.created","conversation":{"id":"conv_1"}}`))
	require.NoError(t, err)
	require.IsType(t, ConversationCreated{}, ev)
	assert.Equal(t, "conv_1", ev.(ConversationCreated).ID)
}

func TestDecode_SpeechMarkers(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"input_audio_buffer.speech_started"}`))
	require.NoError(t, err)
	assert.IsType(t, SpeechStarted{}, ev)

	ev, err = Decode([]byte(`{"type":"input_audio_buffer.speech_stopped"}`))
	require.NoError(t, err)
	assert.IsType(t, SpeechStopped{}, ev)
}

func TestDecode_AssistantMessage(t *testing.T) {
	data := `{"type":"conversation.item.created","item":{"type":"message","role":"assistant","content":[{"type":"text","text":"Let's begin!"}]}}`
	ev, err := Decode([]byte(data))
	require.NoError(t, err)
	require.IsType(t, AssistantMessage{}, ev)
	assert.Equal(t, "Let's begin!", ev.(AssistantMessage).Text)
}

func TestDecode_UserItemIgnored(t *testing.T) {
	data := `{"type":"conversation.item.created","item":{"type":"message","role":"user","content":[{"type":"text","text":"hi"}]}}`
	ev, err := Decode([]byte(data))
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestDecode_EmptyAssistantTextIgnored(t *testing.T) {
	data := `{"type":"conversation.item.created","item":{"type":"message","role":"assistant","content":[]}}`
	ev, err := Decode([]byte(data))
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestDecode_FunctionCallItem(t *testing.T) {
	data := `{"type":"conversation.item.created","item":{"type":"function_call","name":"next_movement","arguments":"{}","call_id":"call_7"}}`
	ev, err := Decode([]byte(data))
	require.NoError(t, err)
	require.IsType(t, FunctionCall{}, ev)

	fc := ev.(FunctionCall)
	assert.Equal(t, "next_movement", fc.Name)
	assert.Equal(t, "{}", fc.Arguments)
	assert.Equal(t, "call_7", fc.CallID)
}

func TestDecode_FunctionCallItem_MissingFieldsIgnored(t *testing.T) {
	cases := []string{
		`{"type":"conversation.item.created","item":{"type":"function_call","arguments":"{}"}}`,
		`{"type":"conversation.item.created","item":{"type":"function_call","name":"next_movement"}}`,
		`{"type":"conversation.item.created","item":{"type":"function_call"}}`,
		`{"type":"conversation.item.created"}`,
	}
	for _, data := range cases {
		ev, err := Decode([]byte(data))
		require.NoError(t, err, data)
		assert.Nil(t, ev, data)
	}
}

func TestDecode_FunctionCallArgsDone(t *testing.T) {
	data := `{"type":"response.function_call_arguments.done","name":"music_control","arguments":"{\"action\":\"volume_up\"}","call_id":"call_9"}`
	ev, err := Decode([]byte(data))
	require.NoError(t, err)
	require.IsType(t, FunctionCall{}, ev)

	fc := ev.(FunctionCall)
	assert.Equal(t, "music_control", fc.Name)
	assert.JSONEq(t, `{"action":"volume_up"}`, fc.Arguments)
}

func TestDecode_FunctionCallArgsDone_NoNameIgnored(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"response.function_call_arguments.done","arguments":"{}"}`))
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestDecode_FunctionCallArgsDone_NoArgumentsIgnored(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"response.function_call_arguments.done","name":"next_movement"}`))
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestDecode_Error(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"error","error":{"code":"rate_limited","message":"slow down"}}`))
	require.NoError(t, err)
	require.IsType(t, UpstreamError{}, ev)

	ue := ev.(UpstreamError)
	assert.Equal(t, "rate_limited", ue.Code)
	assert.Equal(t, "slow down", ue.Message)
}

func TestDecode_UnknownKindIgnored(t *testing.T) {
	for _, kind := range []string{"response.audio.delta", "rate_limits.updated", "something.new"} {
		ev, err := Decode([]byte(`{"type":"` + kind + `"}`))
		require.NoError(t, err, kind)
		assert.Nil(t, ev, kind)
	}
}

func TestDecode_MalformedJSON(t *testing.T) {
	ev, err := Decode([]byte(`{"type":`))
	assert.Error(t, err)
	assert.Nil(t, ev)
}
