// Package protocol defines the JSON frames exchanged with the realtime
// voice backend, and decodes inbound frames into a closed set of events.
package protocol

import "encoding/base64"

// Message kinds the client consumes or produces.
const (
	KindSessionCreated         = "session.created"
	KindConversationCreated    = "conversation.created"
	KindSpeechStarted          = "input_audio_buffer.speech_started"
	KindSpeechStopped          = "input_audio_buffer.speech_stopped"
	KindItemCreated            = "conversation.item.created"
	KindFunctionCallArgsDone   = "response.function_call_arguments.done"
	KindError                  = "error"
	KindSessionUpdate          = "session.update"
	KindResponseCreate         = "response.create"
	KindConversationItemCreate = "conversation.item.create"
	KindAudioAppend            = "input_audio_buffer.append"
)

// Frame is the envelope for all realtime protocol messages.
// Only the fields relevant to the Type are populated.
type Frame struct {
	Type         string               `json:"type"`
	Session      *SessionPayload      `json:"session,omitempty"`
	Conversation *ConversationPayload `json:"conversation,omitempty"`
	Item         *Item                `json:"item,omitempty"`
	Response     *ResponsePayload     `json:"response,omitempty"`
	Error        *ErrorPayload        `json:"error,omitempty"`
	Audio        string               `json:"audio,omitempty"`

	// response.function_call_arguments.done carries these at the top level.
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	CallID    string `json:"call_id,omitempty"`
}

// SessionPayload configures (outbound) or identifies (inbound) a session.
type SessionPayload struct {
	ID                      string           `json:"id,omitempty"`
	Tools                   []ToolDescriptor `json:"tools,omitempty"`
	Voice                   string           `json:"voice,omitempty"`
	Instructions            string           `json:"instructions,omitempty"`
	InputAudioTranscription bool             `json:"input_audio_transcription,omitempty"`
	TurnDetection           string           `json:"turn_detection,omitempty"`
}

// ConversationPayload identifies a conversation.
type ConversationPayload struct {
	ID string `json:"id"`
}

// Item is a conversation item: an assistant/user message or a function call.
type Item struct {
	Type      string        `json:"type"`
	Role      string        `json:"role,omitempty"`
	Content   []ContentPart `json:"content,omitempty"`
	Name      string        `json:"name,omitempty"`
	Arguments string        `json:"arguments,omitempty"`
	CallID    string        `json:"call_id,omitempty"`
}

// ContentPart is one piece of an item's content.
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ResponsePayload requests a model generation.
type ResponsePayload struct {
	Modalities   []string `json:"modalities"`
	Instructions string   `json:"instructions,omitempty"`
}

// ErrorPayload carries a backend-reported error.
type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewSessionUpdate builds the session-configuration frame sent right
// after the socket opens, before any audio.
func NewSessionUpdate(tools []ToolDescriptor, instructions, voice, turnDetection string) Frame {
	return Frame{
		Type: KindSessionUpdate,
		Session: &SessionPayload{
			Tools:                   tools,
			Voice:                   voice,
			Instructions:            instructions,
			InputAudioTranscription: true,
			TurnDetection:           turnDetection,
		},
	}
}

// NewResponseCreate builds a generation request.
func NewResponseCreate(instructions string) Frame {
	return Frame{
		Type: KindResponseCreate,
		Response: &ResponsePayload{
			Modalities:   []string{"text", "audio"},
			Instructions: instructions,
		},
	}
}

// NewUserMessage builds a conversation item carrying user text.
func NewUserMessage(text string) Frame {
	return Frame{
		Type: KindConversationItemCreate,
		Item: &Item{
			Type:    "message",
			Role:    "user",
			Content: []ContentPart{{Type: "text", Text: text}},
		},
	}
}

// NewAudioAppend builds an audio buffer frame from raw PCM bytes.
func NewAudioAppend(pcm []byte) Frame {
	return Frame{
		Type:  KindAudioAppend,
		Audio: base64.StdEncoding.EncodeToString(pcm),
	}
}
