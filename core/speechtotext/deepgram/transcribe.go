package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-jarvis/core/audio"
	"github.com/koscakluka/ema-jarvis/core/speechtotext"
	"github.com/koscakluka/ema-jarvis/internal/utils"
)

var ErrStreamClosed = errors.New("deepgram stream closed")

// Listener is one live transcription websocket. Messages are processed in
// arrival order on the read goroutine, so callbacks never run concurrently.
type Listener struct {
	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool
	done   chan struct{}
	cancel context.CancelFunc

	lastMsgTs atomic.Int64

	callbacks             callbacks
	accumulatedTranscript string
	unendedSegment        bool
}

// OpenStream connects to Deepgram and starts delivering transcripts to the
// callbacks in opts until the stream is closed or ctx is done.
func (c *Client) OpenStream(ctx context.Context, opts ...speechtotext.TranscriptionOption) (speechtotext.Stream, error) {
	return c.Listen(ctx, opts...)
}

func (c *Client) Listen(ctx context.Context, opts ...speechtotext.TranscriptionOption) (*Listener, error) {
	options := speechtotext.ApplyOptions(opts...)

	encoding, err := convertEncoding(options.EncodingInfo)
	if err != nil {
		return nil, fmt.Errorf("invalid encoding: %w", err)
	}

	callbacks, wsConfig := newCallbackConfig(options)
	conn, err := c.connectWebsocket(ctx, connectionOptions{
		sampleRate: encoding.SampleRate,
		encoding:   encoding.Format.Name(),
		keyterms:   options.Keyterms,
		config:     wsConfig,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open websocket: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	l := &Listener{
		conn:      conn,
		done:      make(chan struct{}),
		cancel:    cancel,
		callbacks: callbacks,
	}
	l.lastMsgTs.Store(time.Now().UnixNano())

	go l.readAndProcessMessages(ctx)
	go l.generateSilence(ctx, options.EncodingInfo)
	go func() {
		<-ctx.Done()
		_ = l.Close()
	}()

	return l, nil
}

type connectionOptions struct {
	sampleRate int
	encoding   string
	keyterms   []string

	config websocketConfig
}

func (c *Client) connectWebsocket(ctx context.Context, options connectionOptions) (*websocket.Conn, error) {
	listenUrl, err := url.Parse(c.url)
	if err != nil {
		return nil, fmt.Errorf("invalid listen url: %w", err)
	}

	queryParams := listenUrl.Query()
	queryParams.Set("encoding", options.encoding)
	queryParams.Set("sample_rate", strconv.Itoa(options.sampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", c.model)
	queryParams.Set("language", c.language)
	queryParams.Set("smart_format", "true")
	if options.config.shouldEnhanceSpeechEndingDetection {
		queryParams.Set("utterance_end_ms", "1000")
		queryParams.Set("interim_results", "true")
	} else if options.config.shouldRequestInterimResults {
		queryParams.Set("interim_results", "true")
	}
	queryParams.Set("endpointing", "300")
	if options.config.shouldDetectSpeechStart || options.config.shouldEnhanceSpeechEndingDetection {
		queryParams.Set("vad_events", "true")
	}
	for _, keyterm := range options.keyterms {
		queryParams.Add("keyterm", keyterm)
	}

	listenUrl.RawQuery = queryParams.Encode()
	conn, _, err := c.dialer.DialContext(ctx, listenUrl.String(),
		http.Header{"Authorization": {"Token " + c.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

func (l *Listener) SendAudio(audio []byte) error {
	l.lastMsgTs.Store(time.Now().UnixNano())
	return l.write(websocket.BinaryMessage, audio)
}

// Close asks Deepgram to finish the stream and closes the connection. It is
// safe to call more than once.
func (l *Listener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	defer l.cancel()

	l.connMu.Lock()
	defer l.connMu.Unlock()

	err := l.conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)})
	if closeErr := l.conn.Close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	if err != nil {
		return fmt.Errorf("failed to close deepgram stream: %w", err)
	}
	return nil
}

// Done is closed once the read loop has stopped.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

func (l *Listener) sendKeepAlive() {
	if err := l.writeJSON(struct {
		Type string `json:"type"`
	}{Type: "KeepAlive"}); err != nil {
		logger.Warn("failed to send keepalive to deepgram", "error", err)
	}
}

func (l *Listener) write(messageType int, data []byte) error {
	if l.closed.Load() {
		return ErrStreamClosed
	}

	l.connMu.Lock()
	defer l.connMu.Unlock()
	if err := l.conn.WriteMessage(messageType, data); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

func (l *Listener) writeJSON(v any) error {
	if l.closed.Load() {
		return ErrStreamClosed
	}

	l.connMu.Lock()
	defer l.connMu.Unlock()
	if err := l.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

func (l *Listener) readAndProcessMessages(ctx context.Context) {
	defer close(l.done)
	defer l.cancel()

	for {
		msgType, msg, err := l.conn.ReadMessage()
		if err != nil {
			if !l.closed.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.Warn("failed to read deepgram websocket message", "error", err)
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			l.processMessage(ctx, msg)
		}
	}
}

func (l *Listener) processMessage(_ context.Context, msg []byte) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		logger.Warn("failed to unmarshal deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			logger.Warn("failed to unmarshal deepgram message", "error", err)
			return
		}

		transcript := ""
		if len(msgResp.Channel.Alternatives) > 0 {
			transcript = strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
		}

		if msgResp.IsFinal {
			if len(transcript) > 0 {
				if l.callbacks.accumulateTranscript {
					l.accumulatedTranscript += " " + transcript
				}
				l.callbacks.partialTranscriptionCallback(transcript)
			}
			if msgResp.SpeechFinal {
				l.onSpeechEnded()
			}
		} else if l.callbacks.emitInterim && len(transcript) > 0 {
			l.callbacks.partialInterimTranscriptionCallback(transcript)
			l.callbacks.interimTranscriptionCallback(strings.TrimSpace(l.accumulatedTranscript + " " + transcript))
		}

	case api.TypeUtteranceEndResponse:
		if l.unendedSegment {
			l.onSpeechEnded()
		}

	case api.TypeSpeechStartedResponse:
		l.unendedSegment = true
		l.callbacks.startSpeechCallback()
	}
}

func (l *Listener) onSpeechEnded() {
	l.unendedSegment = false

	fullTranscript := strings.TrimSpace(l.accumulatedTranscript)
	l.accumulatedTranscript = ""
	if len(fullTranscript) > 0 {
		l.callbacks.transcriptionCallback(fullTranscript)
	}
	l.callbacks.endSpeechCallback()
}

// generateSilence keeps Deepgram's endpointing working while the microphone
// is quiet, switching to keepalives after a second without audio.
func (l *Listener) generateSilence(ctx context.Context, encoding audio.EncodingInfo) {
	type silenceGeneratorState string
	const (
		silenceGeneratorStateWaiting   silenceGeneratorState = "waiting"
		silenceGeneratorStateSilence   silenceGeneratorState = "silence"
		silenceGeneratorStateKeepAlive silenceGeneratorState = "keepAlive"
	)

	const chunkDuration = 50 * time.Millisecond
	ticker := time.NewTicker(chunkDuration)
	defer ticker.Stop()

	chunk := encoding.Silence(chunkDuration)
	sinceLastAudio := func() time.Duration {
		return time.Since(time.Unix(0, l.lastMsgTs.Load()))
	}

	var state = silenceGeneratorStateWaiting
	var firstSilenceTime *time.Time
	var lastKeepAliveTime *time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			switch state {
			case silenceGeneratorStateWaiting:
				if sinceLastAudio() > chunkDuration {
					state = silenceGeneratorStateSilence
					firstSilenceTime = utils.Ptr(time.Now())
					continue
				}

			case silenceGeneratorStateSilence:
				if sinceLastAudio() < chunkDuration {
					state = silenceGeneratorStateWaiting
					firstSilenceTime = nil
					continue
				}
				if time.Since(*firstSilenceTime) >= time.Second {
					state = silenceGeneratorStateKeepAlive
					lastKeepAliveTime = utils.Ptr(time.Now())
					firstSilenceTime = nil
					continue
				}

				if err := l.write(websocket.BinaryMessage, chunk); err != nil && !errors.Is(err, ErrStreamClosed) {
					logger.Warn("failed to send silence to deepgram", "error", err)
				}

			case silenceGeneratorStateKeepAlive:
				if sinceLastAudio() < chunkDuration {
					state = silenceGeneratorStateWaiting
					continue
				}

				if time.Since(*lastKeepAliveTime) >= 5*time.Second {
					lastKeepAliveTime = utils.Ptr(time.Now())
					l.sendKeepAlive()
				}
			}
		}
	}
}
