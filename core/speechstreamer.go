package orchestration

import (
	"context"
	"errors"
	"fmt"

	"github.com/koscakluka/ema-jarvis/core/events"
	"github.com/koscakluka/ema-jarvis/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// streamSpeech speaks the response sentence by sentence and ends the turn.
// Nothing it runs into stops the turn from ending, whatever is left in the
// sentence buffer is still spoken first.
func (a *Assistant) streamSpeech(t *turn, stream llms.Stream) {
	defer a.turns.Done()

	ctx, span := tracer.Start(t.ctx, "stream speech")
	outcome := TurnOutcome{TurnID: t.id, Kind: OutcomeCompleted}
	buffer := ""
	spoken := 0

	defer func() {
		if recovered := recover(); recovered != nil {
			outcome.Kind = OutcomeFatal
			outcome.Err = errors.Join(outcome.Err, fmt.Errorf("speech stream panicked: %v", recovered))
		}

		if utterance, ok := flushSentence(buffer); ok {
			if err := panicSafeNamedWorker("flush speech", func(ctx context.Context) error {
				return a.speak(ctx, utterance)
			})(t.ctx); err != nil {
				outcome.Kind = OutcomeFatal
				outcome.Err = errors.Join(outcome.Err, err)
			} else {
				spoken++
			}
		}

		span.SetAttributes(attribute.Int("utterances.spoken", spoken))
		if outcome.Err != nil {
			span.RecordError(outcome.Err)
			span.SetStatus(codes.Error, outcome.Err.Error())
		}
		span.End()

		t.end(outcome)
	}()

	a.emit(events.StateSpeaking, t.id)

	streamCtx := ctx
	if a.responseTimeout > 0 {
		var cancel context.CancelFunc
		streamCtx, cancel = context.WithTimeout(ctx, a.responseTimeout)
		defer cancel()
	}

	for chunk, err := range stream.Chunks(streamCtx) {
		if err != nil {
			outcome.Kind = OutcomeFatal
			outcome.Err = fmt.Errorf("response stream failed: %w", err)
			return
		}

		var text string
		switch chunk := chunk.(type) {
		case llms.StreamApologyChunk:
			outcome.Kind = OutcomeApologyFragment
			text = chunk.Apology()
		case llms.StreamContentChunk:
			text = chunk.Content()
		default:
			continue
		}

		var sentences []string
		buffer, sentences = feedSentence(buffer, text)
		for _, sentence := range sentences {
			if err := a.speak(ctx, sentence); err != nil {
				outcome.Kind = OutcomeFatal
				outcome.Err = fmt.Errorf("failed to speak response: %w", err)
				return
			}
			spoken++
		}
	}
}
