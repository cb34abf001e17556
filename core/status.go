package orchestration

import (
	"sync"

	"github.com/koscakluka/ema-jarvis/core/events"
)

// StatusSink observes conversation state transitions. Notify must not block.
type StatusSink interface {
	Notify(event events.StateChanged)
}

type StatusSinkFunc func(event events.StateChanged)

func (f StatusSinkFunc) Notify(event events.StateChanged) { f(event) }

// ChannelStatusSink delivers transitions on a buffered channel. When the
// observer falls behind the oldest transitions are dropped, the latest one is
// always kept.
type ChannelStatusSink struct {
	mu     sync.Mutex
	events chan events.StateChanged
}

func NewChannelStatusSink(capacity int) *ChannelStatusSink {
	if capacity < 1 {
		capacity = 1
	}
	return &ChannelStatusSink{events: make(chan events.StateChanged, capacity)}
}

func (s *ChannelStatusSink) Events() <-chan events.StateChanged {
	return s.events
}

func (s *ChannelStatusSink) Notify(event events.StateChanged) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		select {
		case s.events <- event:
			return
		default:
		}

		select {
		case <-s.events:
		default:
		}
	}
}

func (a *Assistant) emit(state events.ConversationState, turnID string) {
	if a.status == nil {
		return
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("status sink panicked", "state", state.String(), "panic", recovered)
		}
	}()
	a.status.Notify(events.NewStateChanged(state, turnID))
}
