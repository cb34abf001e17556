package orchestration

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/ema-jarvis/core/events"
)

func TestRunTurnEmptyCommandApologises(t *testing.T) {
	h := newHarness("   ", contentStream("never used."))

	outcome := h.assistant.RunTurn(context.Background())
	if outcome.Kind != OutcomeEmptyCommand || !outcome.Recovered() || outcome.TurnID == "" {
		t.Fatalf("expected recovered empty command outcome with a turn id, got %+v", outcome)
	}

	want := []string{DefaultAcknowledgement, DefaultApology}
	if got := h.speaker.spoken(); !slices.Equal(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if len(h.llm.prompts) != 0 {
		t.Fatalf("expected no prompt, got %v", h.llm.prompts)
	}
	if ended := h.awaitOutcome(t); ended.Kind != OutcomeEmptyCommand || ended.TurnID != outcome.TurnID {
		t.Fatalf("expected the same outcome to be reported, got %+v", ended)
	}
	h.assertCleanedUp(t)
}

func TestRunTurnBusyTouchesNoCollaborator(t *testing.T) {
	h := newHarness("hello", contentStream("Hi."))

	lease, ok := h.assistant.gate.TryAcquire()
	if !ok {
		t.Fatalf("expected to acquire the gate")
	}
	defer lease.Release()

	outcome := h.assistant.RunTurn(context.Background())
	if outcome.Kind != OutcomeBusy || outcome.TurnID != "" {
		t.Fatalf("expected busy outcome without a turn, got %+v", outcome)
	}
	if calls := h.log.snapshot(); len(calls) != 0 {
		t.Fatalf("expected no collaborator calls, got %v", calls)
	}
	if states := h.sink.snapshot(); len(states) != 0 {
		t.Fatalf("expected no state changes, got %v", states)
	}
	select {
	case ended := <-h.outcomes:
		t.Fatalf("expected no turn ended callback, got %+v", ended)
	default:
	}
}

func TestRunTurnTranscriberErrorCleansUpOnce(t *testing.T) {
	h := newHarness("", contentStream("never used."))
	h.transcriber.err = errBoom

	outcome := h.assistant.RunTurn(context.Background())
	if outcome.Kind != OutcomeFatal || !errors.Is(outcome.Err, errBoom) {
		t.Fatalf("expected fatal outcome caused by the transcriber, got %s", outcome)
	}

	want := []string{DefaultAcknowledgement}
	if got := h.speaker.spoken(); !slices.Equal(got, want) {
		t.Fatalf("expected only the acknowledgement, got %q", got)
	}
	h.awaitOutcome(t)
	h.assertCleanedUp(t)
}

func TestRunTurnTranscriberPanicCleansUp(t *testing.T) {
	h := newHarness("", contentStream("never used."))
	h.transcriber.panicWith = "microphone unplugged"

	outcome := h.assistant.RunTurn(context.Background())
	if outcome.Kind != OutcomeFatal || outcome.Err == nil {
		t.Fatalf("expected fatal outcome from the panic, got %s", outcome)
	}
	if ended := h.awaitOutcome(t); ended.Kind != OutcomeFatal {
		t.Fatalf("expected the fatal outcome to be reported, got %s", ended)
	}
	h.assertCleanedUp(t)
}

func TestRunTurnAcknowledgementFailureEndsTurn(t *testing.T) {
	h := newHarness("hello", contentStream("Hi."))
	h.speaker.failOn = map[string]error{DefaultAcknowledgement: errBoom}

	outcome := h.assistant.RunTurn(context.Background())
	if outcome.Kind != OutcomeFatal || !errors.Is(outcome.Err, errBoom) {
		t.Fatalf("expected fatal outcome caused by the speaker, got %s", outcome)
	}
	if got := h.transcriber.calls.Load(); got != 0 {
		t.Fatalf("expected no capture after a failed acknowledgement, got %d", got)
	}
	h.awaitOutcome(t)
	h.assertCleanedUp(t)
}

func TestRunTurnDispatchesPromptWithModel(t *testing.T) {
	var spoken []string
	var mu sync.Mutex
	h := newHarness("  what time is it  ", contentStream("Seven."),
		WithModel("llama3"),
		WithAcknowledgement("At your service."),
		WithSpokenUtteranceCallback(func(utterance string) {
			mu.Lock()
			defer mu.Unlock()
			spoken = append(spoken, utterance)
		}),
	)

	outcome := h.assistant.RunTurn(context.Background())
	if outcome.Kind != OutcomeDispatched {
		t.Fatalf("expected dispatched outcome, got %s", outcome)
	}
	ended := h.awaitOutcome(t)
	if ended.Kind != OutcomeCompleted || ended.TurnID != outcome.TurnID {
		t.Fatalf("expected the dispatched turn to complete, got %+v", ended)
	}

	h.llm.mu.Lock()
	prompts, models := h.llm.prompts, h.llm.models
	h.llm.mu.Unlock()
	if len(prompts) != 1 || prompts[0] != DefaultPrompt("what time is it") {
		t.Fatalf("expected the templated prompt, got %q", prompts)
	}
	if !strings.HasSuffix(prompts[0], "The user's question is: what time is it") {
		t.Fatalf("expected the command at the end of the prompt, got %q", prompts[0])
	}
	if len(models) != 1 || models[0] != "llama3" {
		t.Fatalf("expected model llama3, got %q", models)
	}

	mu.Lock()
	defer mu.Unlock()
	if want := []string{"At your service.", "Seven."}; !slices.Equal(spoken, want) {
		t.Fatalf("expected spoken utterances %q, got %q", want, spoken)
	}
	h.assertCleanedUp(t)
}

func TestRunTurnPausesBeforeAcknowledging(t *testing.T) {
	h := newHarness("", nil)

	h.assistant.RunTurn(context.Background())

	want := []string{"pause", "speak:" + DefaultAcknowledgement, "capture", "speak:" + DefaultApology, "resume"}
	if got := h.log.snapshot(); !slices.Equal(got, want) {
		t.Fatalf("expected calls %v, got %v", want, got)
	}
	wantStates := []events.ConversationState{events.StateListening, events.StateIdle}
	if got := h.sink.snapshot(); !slices.Equal(got, wantStates) {
		t.Fatalf("expected states %v, got %v", wantStates, got)
	}
}

func TestRunTurnCaptureTimeoutIsApplied(t *testing.T) {
	h := newHarness("", nil, WithCaptureTimeout(20*time.Millisecond))
	h.transcriber.block = make(chan struct{})

	outcome := h.assistant.RunTurn(context.Background())
	if !h.transcriber.hadDeadline.Load() {
		t.Fatalf("expected the capture to have a deadline")
	}
	if outcome.Kind != OutcomeFatal || !errors.Is(outcome.Err, context.DeadlineExceeded) {
		t.Fatalf("expected fatal outcome from the timeout, got %s", outcome)
	}
	h.awaitOutcome(t)
	h.assertCleanedUp(t)
}

func TestRunTurnMissingCollaboratorLeavesGateAlone(t *testing.T) {
	hotword := newFakeHotword(nil)
	assistant := NewAssistant(hotword, WithSpeaker(&fakeSpeaker{}))

	outcome := assistant.RunTurn(context.Background())
	if outcome.Kind != OutcomeFatal || !errors.Is(outcome.Err, ErrMissingCollaborator) {
		t.Fatalf("expected missing collaborator error, got %s", outcome)
	}
	if assistant.gate.Held() {
		t.Fatalf("expected the gate to be untouched")
	}
	if hotword.pauses.Load() != 0 {
		t.Fatalf("expected detection not to be paused")
	}
}

func TestRunTurnNeverOverlaps(t *testing.T) {
	h := newHarness("tell me a story", contentStream("Once upon a time. ", "The end."))
	h.speaker.delay = 2 * time.Millisecond

	var wg sync.WaitGroup
	outcomes := make(chan TurnOutcome, 32)
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes <- h.assistant.RunTurn(context.Background())
		}()
	}
	wg.Wait()
	close(outcomes)
	h.assistant.Wait()

	acquired := 0
	for outcome := range outcomes {
		if outcome.Kind != OutcomeBusy {
			acquired++
		}
	}
	if acquired < 1 {
		t.Fatalf("expected at least one turn to run")
	}

	if got := h.speaker.maxInFlight.Load(); got != 1 {
		t.Fatalf("expected turns never to speak at the same time, got %d", got)
	}
	if pauses, resumes := h.hotword.pauses.Load(), h.hotword.resumes.Load(); pauses != int32(acquired) || resumes != int32(acquired) {
		t.Fatalf("expected %d pauses and resumes, got %d and %d", acquired, pauses, resumes)
	}

	calls := h.log.snapshot()
	paused := false
	for _, call := range calls {
		switch call {
		case "pause":
			if paused {
				t.Fatalf("expected every pause to be followed by a resume first, got %v", calls)
			}
			paused = true
		case "resume":
			if !paused {
				t.Fatalf("expected resume only after pause, got %v", calls)
			}
			paused = false
		}
	}
	if h.assistant.gate.Held() {
		t.Fatalf("expected the gate to be released")
	}
}
