package orchestration

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-jarvis/core/events"
	"github.com/koscakluka/ema-jarvis/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// turn is one conversation from activation back to idle. Whoever holds the
// turn owns its lease and must call end exactly once.
type turn struct {
	id        string
	assistant *Assistant
	lease     *Lease

	ctx    context.Context
	cancel context.CancelFunc
	span   trace.Span

	endOnce sync.Once
}

func (a *Assistant) newTurn(ctx context.Context, lease *Lease) *turn {
	id := uuid.NewString()
	ctx, span := tracer.Start(ctx, "process turn", trace.WithAttributes(attribute.String("turn.id", id)))
	ctx, cancel := context.WithCancel(ctx)

	return &turn{
		id:        id,
		assistant: a,
		lease:     lease,
		ctx:       ctx,
		cancel:    cancel,
		span:      span,
	}
}

// end returns the assistant to a listenable state: idle is reported, keyword
// detection resumed and the gate released.
func (t *turn) end(outcome TurnOutcome) {
	t.endOnce.Do(func() {
		a := t.assistant

		a.emit(events.StateIdle, t.id)
		if err := panicSafeNamedWorker("resume detection", func(context.Context) error {
			a.hotword.Resume()
			return nil
		})(t.ctx); err != nil {
			logger.Error("failed to resume keyword detection", "turn_id", t.id, "error", err)
		}
		t.lease.Release()
		t.cancel()

		t.span.SetAttributes(attribute.String("turn.outcome", string(outcome.Kind)))
		if outcome.Err != nil {
			t.span.RecordError(outcome.Err)
			if !outcome.Recovered() {
				t.span.SetStatus(codes.Error, outcome.Err.Error())
			}
			logger.Error("turn failed", "turn_id", t.id, "outcome", string(outcome.Kind), "error", outcome.Err)
		}
		t.span.End()

		if a.onTurnEnded != nil {
			if err := panicSafeNamedWorker("turn ended callback", func(context.Context) error {
				a.onTurnEnded(outcome)
				return nil
			})(context.Background()); err != nil {
				logger.Error("turn ended callback failed", "turn_id", t.id, "error", err)
			}
		}
	})
}

func (t *turn) fail(err error) TurnOutcome {
	return TurnOutcome{TurnID: t.id, Kind: OutcomeFatal, Err: err}
}

// RunTurn runs one conversation turn. It returns OutcomeBusy without touching
// any collaborator when another turn is active. When the command is dispatched
// to the language model it returns OutcomeDispatched while the response is
// spoken in the background; the final outcome is then reported through
// [WithTurnEndedCallback]. Every other outcome is final.
func (a *Assistant) RunTurn(ctx context.Context) (outcome TurnOutcome) {
	if err := a.validate(); err != nil {
		logger.Error("cannot run turn", "error", err)
		return TurnOutcome{Kind: OutcomeFatal, Err: err}
	}

	lease, ok := a.gate.TryAcquire()
	if !ok {
		logger.Debug("activation ignored, a conversation is already active")
		return TurnOutcome{Kind: OutcomeBusy}
	}

	t := a.newTurn(ctx, lease)
	handedOff := false
	defer func() {
		if recovered := recover(); recovered != nil {
			outcome = t.fail(fmt.Errorf("turn panicked: %v", recovered))
		}
		if !handedOff {
			t.end(outcome)
		}
	}()

	a.hotword.Pause()

	a.emit(events.StateListening, t.id)
	if err := a.speak(t.ctx, a.acknowledgement); err != nil {
		return t.fail(fmt.Errorf("failed to acknowledge activation: %w", err))
	}

	command, err := a.captureCommand(t.ctx)
	if err != nil {
		return t.fail(fmt.Errorf("failed to capture command: %w", err))
	}

	if command = strings.TrimSpace(command); command == "" {
		if err := a.speak(t.ctx, a.apology); err != nil {
			return t.fail(fmt.Errorf("failed to apologise for empty command: %w", err))
		}
		return TurnOutcome{TurnID: t.id, Kind: OutcomeEmptyCommand}
	}
	t.span.SetAttributes(attribute.Int("command.length", len(command)))

	a.emit(events.StateProcessing, t.id)
	stream := a.llm.PromptWithStream(t.ctx, a.buildPrompt(command), llms.WithModel(a.model))
	if stream == nil {
		return t.fail(fmt.Errorf("language model returned no response stream"))
	}

	a.turns.Add(1)
	go a.streamSpeech(t, stream)
	handedOff = true

	return TurnOutcome{TurnID: t.id, Kind: OutcomeDispatched}
}

func (a *Assistant) captureCommand(ctx context.Context) (string, error) {
	if a.captureTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.captureTimeout)
		defer cancel()
	}

	return a.transcriber.CaptureCommand(ctx)
}

func (a *Assistant) speak(ctx context.Context, text string) error {
	if err := a.speaker.Speak(ctx, text); err != nil {
		return err
	}

	if a.onSpokenUtterance != nil {
		a.onSpokenUtterance(text)
	}
	return nil
}
