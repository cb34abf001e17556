package speechtotext

import "context"

// Stream is an open live transcription session. Results are delivered through
// the callbacks given when the stream was opened.
type Stream interface {
	SendAudio(audio []byte) error
	Close() error
}

// Recognizer opens live transcription streams.
type Recognizer interface {
	OpenStream(ctx context.Context, opts ...TranscriptionOption) (Stream, error)
}
