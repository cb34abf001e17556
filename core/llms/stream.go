package llms

import "context"

// Stream is a lazy, finite and non-restartable response. Chunks must be
// ranged over exactly once.
type Stream interface {
	Chunks(context.Context) func(func(StreamChunk, error) bool)
}

type StreamChunk interface {
	// ID() string
	// Model() string
	FinishReason() *string
}

type StreamContentChunk interface {
	StreamChunk
	Content() string
}

// StreamApologyChunk is yielded by providers that recover from a failed
// request by substituting a fixed apology instead of returning an error.
type StreamApologyChunk interface {
	StreamChunk
	Apology() string
}
