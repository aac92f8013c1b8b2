package protocol

import "encoding/json"

// Event is one decoded inbound frame. The concrete types form a closed
// set; callers switch exhaustively and ignore anything they don't know.
type Event interface {
	isEvent()
}

// SessionCreated reports the backend-assigned session id. Informational.
type SessionCreated struct {
	ID string
}

// ConversationCreated reports the backend-assigned conversation id. Informational.
type ConversationCreated struct {
	ID string
}

// SpeechStarted flags that the backend detected the user speaking.
type SpeechStarted struct{}

// SpeechStopped flags the end of detected speech and triggers the
// transcription flow in the session client.
type SpeechStopped struct{}

// AssistantMessage carries assistant-generated text.
type AssistantMessage struct {
	Text string
}

// FunctionCall requests one of the declared tool actions.
type FunctionCall struct {
	Name      string
	Arguments string
	CallID    string
}

// UpstreamError carries a backend-reported error. Never fatal to the session.
type UpstreamError struct {
	Code    string
	Message string
}

func (SessionCreated) isEvent()      {}
func (ConversationCreated) isEvent() {}
func (SpeechStarted) isEvent()       {}
func (SpeechStopped) isEvent()       {}
func (AssistantMessage) isEvent()    {}
func (FunctionCall) isEvent()        {}
func (UpstreamError) isEvent()       {}

// Decode parses an inbound frame into an Event.
//
// A nil Event with nil error means the frame should be ignored: unknown
// kinds (forward compatibility) and known kinds missing required fields
// both degrade to a silent skip rather than an error. A non-nil error is
// returned only for malformed JSON, and is itself non-fatal to callers.
func Decode(data []byte) (Event, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	switch f.Type {
	case KindSessionCreated:
		if f.Session == nil {
			return nil, nil
		}
		return SessionCreated{ID: f.Session.ID}, nil

	case KindConversationCreated:
		if f.Conversation == nil {
			return nil, nil
		}
		return ConversationCreated{ID: f.Conversation.ID}, nil

	case KindSpeechStarted:
		return SpeechStarted{}, nil

	case KindSpeechStopped:
		return SpeechStopped{}, nil

	case KindItemCreated:
		return decodeItem(f.Item), nil

	case KindFunctionCallArgsDone:
		if f.Name == "" || f.Arguments == "" {
			return nil, nil
		}
		return FunctionCall{Name: f.Name, Arguments: f.Arguments, CallID: f.CallID}, nil

	case KindError:
		if f.Error == nil {
			return nil, nil
		}
		return UpstreamError{Code: f.Error.Code, Message: f.Error.Message}, nil

	default:
		// Unknown kind: skip.
		return nil, nil
	}
}

func decodeItem(item *Item) Event {
	if item == nil {
		return nil
	}

	switch item.Type {
	case "message":
		if item.Role != "assistant" {
			return nil
		}
		text := ""
		if len(item.Content) > 0 {
			text = item.Content[0].Text
		}
		if text == "" {
			return nil
		}
		return AssistantMessage{Text: text}

	case "function_call":
		if item.Name == "" || item.Arguments == "" {
			return nil
		}
		return FunctionCall{Name: item.Name, Arguments: item.Arguments, CallID: item.CallID}

	default:
		return nil
	}
}
