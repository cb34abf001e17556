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

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-jarvis/core/audio"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var ErrConnectionClosed = errors.New("deepgram speak connection closed")

// Speak synthesizes text and blocks until its audio has been played. Blank
// text is a no-op.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	ctx, span := tracer.Start(ctx, "speak")
	defer span.End()
	span.SetAttributes(attribute.Int("text.length", len(text)))

	fail := func(err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil || s.conn.isClosed() {
		conn, err := s.connect(ctx)
		if err != nil {
			return fail(err)
		}
		s.conn = conn
	}
	conn := s.conn

	if err := conn.send(sendTextMsg{Type: "Speak", Text: text}); err != nil {
		s.dropConnection()
		return fail(err)
	}
	if err := conn.send(flushMsg); err != nil {
		s.dropConnection()
		return fail(err)
	}

	select {
	case <-conn.flushed:
	case <-conn.closed:
		err := conn.err()
		s.dropConnection()
		return fail(fmt.Errorf("speech interrupted: %w", err))
	case <-ctx.Done():
		// A later Flushed could be mistaken for the next utterance's, so the
		// connection is not reused.
		_ = conn.send(clearMsg)
		s.dropConnection()
		s.output.ClearBuffer()
		return fail(ctx.Err())
	}

	if err := s.output.AwaitMark(); err != nil {
		return fail(fmt.Errorf("failed to play speech: %w", err))
	}
	s.options.SpeechMarkCallback(text)

	return nil
}

func (s *Speaker) connect(ctx context.Context) (*speakConnection, error) {
	encodingInfo := s.options.EncodingInfo

	speakUrl, err := url.Parse(s.url)
	if err != nil {
		return nil, fmt.Errorf("invalid speak url: %w", err)
	}

	urlValues := speakUrl.Query()
	urlValues.Set("encoding", encodingInfo.Format.Name())
	urlValues.Set("sample_rate", strconv.Itoa(encodingInfo.SampleRate))
	urlValues.Set("model", string(s.voice))
	urlValues.Set("container", "none")
	speakUrl.RawQuery = urlValues.Encode()

	ws, _, err := s.dialer.DialContext(ctx, speakUrl.String(),
		http.Header{"Authorization": {"token " + s.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	conn := &speakConnection{
		ws:      ws,
		flushed: make(chan struct{}, 1),
		closed:  make(chan struct{}),
	}
	go conn.processIncomingMessages(s.output, s.options.SpeechAudioCallback, s.options.ErrorCallback)

	return conn, nil
}

type speakConnection struct {
	ws   *websocket.Conn
	mu   sync.Mutex
	once sync.Once

	flushed chan struct{}
	closed  chan struct{}
	readErr error
}

func (c *speakConnection) processIncomingMessages(output audio.Output, onAudio func([]byte), onError func(error)) {
	for {
		msgType, msg, err := c.ws.ReadMessage()
		if err != nil {
			if !c.isClosed() && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.Warn("deepgram speak websocket read error", "error", err)
				onError(err)
			}
			c.closeWithError(err)
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if len(msg) == 0 {
				continue
			}
			if err := output.SendAudio(msg); err != nil {
				logger.Warn("failed to play speech audio", "error", err)
			}
			onAudio(msg)

		case websocket.TextMessage:
			var parsedMsg websocketMessage
			if err := json.Unmarshal(msg, &parsedMsg); err != nil {
				logger.Debug("failed to unmarshal deepgram message", "error", err)
				continue
			}

			switch parsedMsg.Type {
			case "Flushed":
				select {
				case c.flushed <- struct{}{}:
				default:
				}
			case "Warning", "Error":
				logger.Warn("deepgram speak message", "type", parsedMsg.Type, "message", string(msg))
			}
		}
	}
}

func (c *speakConnection) send(msg any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isClosed() {
		return ErrConnectionClosed
	}

	if err := c.ws.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write to websocket: %w", err)
	}
	return nil
}

func (c *speakConnection) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *speakConnection) err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr == nil {
		return ErrConnectionClosed
	}
	return c.readErr
}

func (c *speakConnection) closeWithError(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.readErr = err
		c.mu.Unlock()
		close(c.closed)
		_ = c.ws.Close()
	})
}

// Close asks Deepgram to close the stream before closing the socket.
func (c *speakConnection) Close() {
	_ = c.send(closeMsg)
	c.closeWithError(ErrConnectionClosed)
}

type websocketMessage struct {
	Type string `json:"type"`
}

type sendTextMsg struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

var (
	flushMsg = websocketMessage{Type: "Flush"}
	clearMsg = websocketMessage{Type: "Clear"}
	closeMsg = websocketMessage{Type: "Close"}
)
