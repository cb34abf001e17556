package orchestration

import (
	"context"
	"fmt"
	"time"

	"github.com/koscakluka/ema-jarvis/core/llms"
)

const (
	DefaultModel           = "mistral"
	DefaultAcknowledgement = "Yes, sir?"
	DefaultApology         = "I didn't understand the command."

	defaultPromptTemplate = "You are an AI assistant named Jarvis. Answer helpfully and concisely. The user's question is: %s"
)

// DefaultPrompt wraps a spoken command in the assistant's instructions.
func DefaultPrompt(command string) string {
	return fmt.Sprintf(defaultPromptTemplate, command)
}

type AssistantOption func(*Assistant)

// HotwordControl runs keyword detection. Start blocks until Stop is called or
// ctx is done. Pause and Resume must take effect before the next detection.
type HotwordControl interface {
	Start(ctx context.Context) error
	Pause()
	Resume()
	Stop()
	OnActivation(callback func())
}

// Transcriber captures one spoken command. An empty command means nothing
// usable was heard and is not an error.
type Transcriber interface {
	CaptureCommand(ctx context.Context) (string, error)
}

func WithTranscriber(transcriber Transcriber) AssistantOption {
	return func(a *Assistant) { a.transcriber = transcriber }
}

// Speaker speaks text and blocks until the audio has finished playing.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

func WithSpeaker(speaker Speaker) AssistantOption {
	return func(a *Assistant) { a.speaker = speaker }
}

type StreamingLLM interface {
	PromptWithStream(ctx context.Context, prompt string, opts ...llms.StreamingPromptOption) llms.Stream
}

func WithStreamingLLM(llm StreamingLLM) AssistantOption {
	return func(a *Assistant) { a.llm = llm }
}

// WithStatusSink sets where state transitions are reported. Without one they
// are not reported at all.
func WithStatusSink(sink StatusSink) AssistantOption {
	return func(a *Assistant) { a.status = sink }
}

// WithGate shares a gate between assistants so that only one of them
// converses at a time.
func WithGate(gate *Gate) AssistantOption {
	return func(a *Assistant) {
		if gate != nil {
			a.gate = gate
		}
	}
}

func WithModel(model string) AssistantOption {
	return func(a *Assistant) { a.model = model }
}

func WithPromptBuilder(build func(command string) string) AssistantOption {
	return func(a *Assistant) {
		if build != nil {
			a.buildPrompt = build
		}
	}
}

// WithAcknowledgement sets what is said right after the keyword is heard.
func WithAcknowledgement(text string) AssistantOption {
	return func(a *Assistant) { a.acknowledgement = text }
}

// WithApology sets what is said when no command was heard.
func WithApology(text string) AssistantOption {
	return func(a *Assistant) { a.apology = text }
}

// WithCaptureTimeout bounds how long a turn waits for the command.
func WithCaptureTimeout(timeout time.Duration) AssistantOption {
	return func(a *Assistant) { a.captureTimeout = timeout }
}

// WithResponseTimeout bounds how long a turn reads the response stream. Text
// received until then is still spoken.
func WithResponseTimeout(timeout time.Duration) AssistantOption {
	return func(a *Assistant) { a.responseTimeout = timeout }
}

// WithSpokenUtteranceCallback is called after every utterance has been
// spoken, including the acknowledgement and apologies.
func WithSpokenUtteranceCallback(callback func(utterance string)) AssistantOption {
	return func(a *Assistant) { a.onSpokenUtterance = callback }
}

// WithTurnEndedCallback is called once per acquired turn, after the gate has
// been released.
func WithTurnEndedCallback(callback func(outcome TurnOutcome)) AssistantOption {
	return func(a *Assistant) { a.onTurnEnded = callback }
}
