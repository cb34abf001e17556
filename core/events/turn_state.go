package events

// ConversationState is the externally visible phase of the current turn.
type ConversationState string

const (
	StateIdle       ConversationState = "idle"
	StateListening  ConversationState = "listening"
	StateProcessing ConversationState = "processing"
	StateSpeaking   ConversationState = "speaking"
)

func (s ConversationState) String() string { return string(s) }

// KindStateChanged identifies a conversation state transition.
const KindStateChanged Kind = "turn_state.changed"

// StateChanged marks a transition of the conversation into State.
//
// TurnID is empty for transitions not tied to a turn.
type StateChanged struct {
	Base
	State  ConversationState
	TurnID string
}

// NewStateChanged creates a state changed event.
func NewStateChanged(state ConversationState, turnID string) StateChanged {
	return StateChanged{Base: NewBase(KindStateChanged), State: state, TurnID: turnID}
}
