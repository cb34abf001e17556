package deepgram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/koscakluka/ema-jarvis/core/audio"
	"github.com/koscakluka/ema-jarvis/core/speechtotext"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultCommandTimeout = 10 * time.Second

// CommandTranscriber captures a single spoken command from an audio source.
type CommandTranscriber struct {
	recognizer speechtotext.Recognizer
	source     audio.Source

	timeout  time.Duration
	keyterms []string
}

type CommandTranscriberOption func(*CommandTranscriber)

// WithCommandTimeout bounds how long CaptureCommand waits for speech. Zero
// waits until the caller's context is done.
func WithCommandTimeout(timeout time.Duration) CommandTranscriberOption {
	return func(t *CommandTranscriber) { t.timeout = timeout }
}

func WithCommandKeyterms(keyterms ...string) CommandTranscriberOption {
	return func(t *CommandTranscriber) { t.keyterms = append(t.keyterms, keyterms...) }
}

func NewCommandTranscriber(recognizer speechtotext.Recognizer, source audio.Source, opts ...CommandTranscriberOption) *CommandTranscriber {
	t := &CommandTranscriber{
		recognizer: recognizer,
		source:     source,
		timeout:    defaultCommandTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// CaptureCommand returns the first complete utterance heard on the source.
// When nothing is said before the timeout it returns an empty command and no
// error.
func (t *CommandTranscriber) CaptureCommand(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "capture command")
	defer span.End()

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	transcripts := make(chan string, 1)
	stream, err := t.recognizer.OpenStream(ctx,
		speechtotext.WithEncodingInfo(t.source.EncodingInfo()),
		speechtotext.WithKeyterms(t.keyterms...),
		speechtotext.WithTranscriptionCallback(func(transcript string) {
			select {
			case transcripts <- transcript:
			default:
			}
		}),
	)
	if err != nil {
		err = fmt.Errorf("failed to open transcription stream: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	defer func() {
		if err := stream.Close(); err != nil {
			logger.Debug("failed to close transcription stream", "error", err)
		}
	}()

	unsubscribe := t.source.Subscribe(func(audio []byte) {
		if err := stream.SendAudio(audio); err != nil && !errors.Is(err, ErrStreamClosed) {
			logger.Debug("failed to forward command audio", "error", err)
		}
	})
	defer unsubscribe()

	select {
	case transcript := <-transcripts:
		transcript = strings.TrimSpace(transcript)
		span.SetAttributes(attribute.Int("command.length", len(transcript)))
		return transcript, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			span.AddEvent("no command heard")
			return "", nil
		}
		return "", ctx.Err()
	}
}
