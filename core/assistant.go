// Package orchestration runs voice assistant conversations: it waits for the
// keyword, captures a command, streams the language model's answer and speaks
// it sentence by sentence, one conversation at a time.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koscakluka/ema-jarvis/core/events"
)

const activationQueueCapacity = 4

var (
	ErrMissingCollaborator = errors.New("missing collaborator")
	ErrAlreadyRunning      = errors.New("assistant already running")
)

type Assistant struct {
	hotword     HotwordControl
	transcriber Transcriber
	speaker     Speaker
	llm         StreamingLLM
	status      StatusSink

	model           string
	buildPrompt     func(command string) string
	acknowledgement string
	apology         string
	captureTimeout  time.Duration
	responseTimeout time.Duration

	onSpokenUtterance func(utterance string)
	onTurnEnded       func(outcome TurnOutcome)

	gate *Gate

	running       atomic.Bool
	activationsMu sync.RWMutex
	activations   chan struct{}
	turns         sync.WaitGroup
}

func NewAssistant(hotword HotwordControl, opts ...AssistantOption) *Assistant {
	a := &Assistant{
		hotword:         hotword,
		model:           DefaultModel,
		buildPrompt:     DefaultPrompt,
		acknowledgement: DefaultAcknowledgement,
		apology:         DefaultApology,
		gate:            NewGate(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Assistant) validate() error {
	var errs []error
	if a.hotword == nil {
		errs = append(errs, fmt.Errorf("%w: hotword control", ErrMissingCollaborator))
	}
	if a.transcriber == nil {
		errs = append(errs, fmt.Errorf("%w: transcriber", ErrMissingCollaborator))
	}
	if a.speaker == nil {
		errs = append(errs, fmt.Errorf("%w: speaker", ErrMissingCollaborator))
	}
	if a.llm == nil {
		errs = append(errs, fmt.Errorf("%w: streaming llm", ErrMissingCollaborator))
	}
	return errors.Join(errs...)
}

// Run listens for the keyword and runs a turn for every activation until Stop
// is called or ctx is done. It returns once all started turns have ended.
func (a *Assistant) Run(ctx context.Context) error {
	if err := a.validate(); err != nil {
		return err
	}
	if !a.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer a.running.Store(false)

	activations := make(chan struct{}, activationQueueCapacity)
	a.activationsMu.Lock()
	a.activations = activations
	a.activationsMu.Unlock()

	dispatcherDone := make(chan struct{})
	go a.dispatch(ctx, activations, dispatcherDone)

	a.hotword.OnActivation(a.Activate)
	a.emit(events.StateIdle, "")

	releaseHook := withContextCancelHook(ctx, a.hotword.Stop)
	err := a.hotword.Start(ctx)
	releaseHook()

	a.activationsMu.Lock()
	close(a.activations)
	a.activations = nil
	a.activationsMu.Unlock()

	<-dispatcherDone
	a.turns.Wait()

	if err != nil {
		return fmt.Errorf("keyword detection failed: %w", err)
	}
	return nil
}

// Stop ends keyword detection, which makes Run return once the current turn
// has ended.
func (a *Assistant) Stop() {
	if a.hotword != nil {
		a.hotword.Stop()
	}
}

// Activate requests a turn. It never blocks: activations arriving while the
// queue is full, or while the assistant is not running, are dropped.
func (a *Assistant) Activate() {
	a.activationsMu.RLock()
	defer a.activationsMu.RUnlock()

	if a.activations == nil {
		logger.Debug("activation ignored, assistant is not running")
		return
	}

	select {
	case a.activations <- struct{}{}:
	default:
		logger.Debug("activation dropped, queue is full")
	}
}

// Wait blocks until every turn started so far, including responses still
// being spoken, has ended.
func (a *Assistant) Wait() {
	a.turns.Wait()
}

func (a *Assistant) dispatch(ctx context.Context, activations <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for range activations {
		a.turns.Add(1)
		go func() {
			defer a.turns.Done()
			outcome := a.RunTurn(ctx)
			logger.Debug("activation handled", "turn_id", outcome.TurnID, "outcome", outcome.String())
		}()
	}
}
