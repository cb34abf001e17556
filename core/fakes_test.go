package orchestration

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koscakluka/ema-jarvis/core/events"
	"github.com/koscakluka/ema-jarvis/core/llms"
)

// callLog records collaborator calls of all fakes in one order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeHotword struct {
	log *callLog

	pauses  atomic.Int32
	resumes atomic.Int32
	started atomic.Bool

	mu       sync.Mutex
	callback func()
	stop     chan struct{}
	stopOnce sync.Once
	startErr error
}

func newFakeHotword(log *callLog) *fakeHotword {
	return &fakeHotword{log: log, stop: make(chan struct{})}
}

func (h *fakeHotword) Start(ctx context.Context) error {
	h.started.Store(true)
	if h.startErr != nil {
		return h.startErr
	}
	select {
	case <-h.stop:
	case <-ctx.Done():
	}
	return nil
}

func (h *fakeHotword) Pause() {
	h.pauses.Add(1)
	h.log.add("pause")
}

func (h *fakeHotword) Resume() {
	h.resumes.Add(1)
	h.log.add("resume")
}

func (h *fakeHotword) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

func (h *fakeHotword) OnActivation(callback func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.callback = callback
}

func (h *fakeHotword) fire() {
	h.mu.Lock()
	callback := h.callback
	h.mu.Unlock()
	if callback != nil {
		callback()
	}
}

type fakeTranscriber struct {
	log *callLog

	command string
	err     error
	// block makes CaptureCommand wait until it is closed or ctx is done.
	block chan struct{}
	// panicWith makes CaptureCommand panic.
	panicWith any

	calls       atomic.Int32
	hadDeadline atomic.Bool
}

func (t *fakeTranscriber) CaptureCommand(ctx context.Context) (string, error) {
	t.calls.Add(1)
	t.log.add("capture")
	if _, ok := ctx.Deadline(); ok {
		t.hadDeadline.Store(true)
	}
	if t.panicWith != nil {
		panic(t.panicWith)
	}
	if t.block != nil {
		select {
		case <-t.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return t.command, t.err
}

type fakeSpeaker struct {
	log *callLog

	// failOn makes Speak fail for the given text.
	failOn map[string]error
	delay  time.Duration

	mu          sync.Mutex
	utterances  []string
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (s *fakeSpeaker) Speak(_ context.Context, text string) error {
	inFlight := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		highest := s.maxInFlight.Load()
		if inFlight <= highest || s.maxInFlight.CompareAndSwap(highest, inFlight) {
			break
		}
	}

	s.log.add("speak:" + text)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if err, ok := s.failOn[text]; ok {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.utterances = append(s.utterances, text)
	return nil
}

func (s *fakeSpeaker) spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.utterances...)
}

type contentChunk struct{ content string }

func (c contentChunk) FinishReason() *string { return nil }
func (c contentChunk) Content() string       { return c.content }

type apologyChunk struct{ apology string }

func (c apologyChunk) FinishReason() *string { return nil }
func (c apologyChunk) Apology() string       { return c.apology }

// streamItem is one step of a scripted stream: a chunk, an error or a panic.
type streamItem struct {
	chunk     llms.StreamChunk
	err       error
	panicWith any
	// wait blocks the stream until ctx is done before the item is produced.
	wait bool
}

type fakeStream struct {
	items []streamItem
}

func (s fakeStream) Chunks(ctx context.Context) func(func(llms.StreamChunk, error) bool) {
	return func(yield func(llms.StreamChunk, error) bool) {
		for _, item := range s.items {
			if item.wait {
				<-ctx.Done()
				yield(nil, ctx.Err())
				return
			}
			if item.panicWith != nil {
				panic(item.panicWith)
			}
			if !yield(item.chunk, item.err) {
				return
			}
		}
	}
}

func contentStream(fragments ...string) fakeStream {
	stream := fakeStream{}
	for _, fragment := range fragments {
		stream.items = append(stream.items, streamItem{chunk: contentChunk{fragment}})
	}
	return stream
}

type fakeLLM struct {
	log    *callLog
	stream llms.Stream

	mu      sync.Mutex
	prompts []string
	models  []string
}

func (l *fakeLLM) PromptWithStream(_ context.Context, prompt string, opts ...llms.StreamingPromptOption) llms.Stream {
	l.log.add("prompt")
	options := llms.ApplyStreamingOptions(llms.StreamingPromptOptions{}, opts...)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.prompts = append(l.prompts, prompt)
	l.models = append(l.models, options.Model)
	return l.stream
}

type recordingSink struct {
	mu     sync.Mutex
	states []events.ConversationState
}

func (s *recordingSink) Notify(event events.StateChanged) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, event.State)
}

func (s *recordingSink) snapshot() []events.ConversationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.ConversationState(nil), s.states...)
}

type harness struct {
	log         *callLog
	hotword     *fakeHotword
	transcriber *fakeTranscriber
	speaker     *fakeSpeaker
	llm         *fakeLLM
	sink        *recordingSink
	outcomes    chan TurnOutcome
	assistant   *Assistant
}

func newHarness(command string, stream llms.Stream, opts ...AssistantOption) *harness {
	log := &callLog{}
	h := &harness{
		log:         log,
		hotword:     newFakeHotword(log),
		transcriber: &fakeTranscriber{log: log, command: command},
		speaker:     &fakeSpeaker{log: log},
		llm:         &fakeLLM{log: log, stream: stream},
		sink:        &recordingSink{},
		outcomes:    make(chan TurnOutcome, 64),
	}

	h.assistant = NewAssistant(h.hotword, append([]AssistantOption{
		WithTranscriber(h.transcriber),
		WithSpeaker(h.speaker),
		WithStreamingLLM(h.llm),
		WithStatusSink(h.sink),
		WithTurnEndedCallback(func(outcome TurnOutcome) { h.outcomes <- outcome }),
	}, opts...)...)
	return h
}

func (h *harness) awaitOutcome(t *testing.T) TurnOutcome {
	t.Helper()
	select {
	case outcome := <-h.outcomes:
		return outcome
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the turn to end")
		return TurnOutcome{}
	}
}

func (h *harness) assertCleanedUp(t *testing.T) {
	t.Helper()
	if got := h.hotword.pauses.Load(); got != 1 {
		t.Fatalf("expected pause exactly once, got %d", got)
	}
	if got := h.hotword.resumes.Load(); got != 1 {
		t.Fatalf("expected resume exactly once, got %d", got)
	}
	if h.assistant.gate.Held() {
		t.Fatalf("expected the gate to be released")
	}

	states := h.sink.snapshot()
	if len(states) == 0 || states[len(states)-1] != events.StateIdle {
		t.Fatalf("expected idle as the last state, got %v", states)
	}
}

var errBoom = errors.New("boom")
