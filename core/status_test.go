package orchestration

import (
	"context"
	"testing"

	"github.com/koscakluka/ema-jarvis/core/events"
)

func TestChannelStatusSinkKeepsLatestWhenFull(t *testing.T) {
	sink := NewChannelStatusSink(2)

	sink.Notify(events.NewStateChanged(events.StateListening, "turn"))
	sink.Notify(events.NewStateChanged(events.StateProcessing, "turn"))
	sink.Notify(events.NewStateChanged(events.StateSpeaking, "turn"))

	first := <-sink.Events()
	second := <-sink.Events()
	if first.State != events.StateProcessing || second.State != events.StateSpeaking {
		t.Fatalf("expected processing then speaking, got %s then %s", first.State, second.State)
	}
	if second.TurnID != "turn" || second.Kind() != events.KindStateChanged {
		t.Fatalf("expected a state changed event for the turn, got %+v", second)
	}
}

func TestStatusSinkFuncForwardsEvents(t *testing.T) {
	var got events.ConversationState
	sink := StatusSinkFunc(func(event events.StateChanged) { got = event.State })

	sink.Notify(events.NewStateChanged(events.StateIdle, ""))
	if got != events.StateIdle {
		t.Fatalf("expected idle, got %q", got)
	}
}

func TestAssistantWithoutStatusSinkRunsTurns(t *testing.T) {
	h := newHarness("", nil)
	h.assistant.status = nil

	outcome := h.assistant.RunTurn(context.Background())
	if outcome.Kind != OutcomeEmptyCommand {
		t.Fatalf("expected empty command outcome, got %s", outcome)
	}
	if h.assistant.gate.Held() {
		t.Fatalf("expected the gate to be released")
	}
}

func TestPanickingStatusSinkDoesNotBreakCleanup(t *testing.T) {
	h := newHarness("", nil, WithStatusSink(StatusSinkFunc(func(events.StateChanged) { panic("display crashed") })))

	outcome := h.assistant.RunTurn(context.Background())
	if outcome.Kind != OutcomeEmptyCommand {
		t.Fatalf("expected empty command outcome, got %s", outcome)
	}
	if got := h.hotword.resumes.Load(); got != 1 {
		t.Fatalf("expected resume exactly once, got %d", got)
	}
	if h.assistant.gate.Held() {
		t.Fatalf("expected the gate to be released")
	}
}
