package deepgram

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-jarvis/core/speechtotext"
)

func resultsMessage(transcript string, isFinal, speechFinal bool) []byte {
	return []byte(fmt.Sprintf(
		`{"type":%q,"is_final":%t,"speech_final":%t,"channel":{"alternatives":[{"transcript":%q}]}}`,
		string(api.TypeMessageResponse), isFinal, speechFinal, transcript))
}

func newTestListener(options speechtotext.TranscriptionOptions) *Listener {
	callbacks, _ := newCallbackConfig(options)
	return &Listener{callbacks: callbacks}
}

func TestProcessMessageAccumulatesFinalTranscriptsUntilSpeechFinal(t *testing.T) {
	var transcripts []string
	var partials []string
	listener := newTestListener(speechtotext.TranscriptionOptions{
		TranscriptionCallback:        func(transcript string) { transcripts = append(transcripts, transcript) },
		PartialTranscriptionCallback: func(transcript string) { partials = append(partials, transcript) },
	})

	listener.processMessage(context.Background(), resultsMessage("what time", true, false))
	listener.processMessage(context.Background(), resultsMessage("is it", true, true))

	if len(partials) != 2 {
		t.Fatalf("expected 2 partial transcripts, got %v", partials)
	}
	if len(transcripts) != 1 || transcripts[0] != "what time is it" {
		t.Fatalf("expected one full transcript %q, got %v", "what time is it", transcripts)
	}
}

func TestProcessMessageIgnoresInterimResultsWithoutInterimCallbacks(t *testing.T) {
	var transcripts []string
	listener := newTestListener(speechtotext.TranscriptionOptions{
		TranscriptionCallback: func(transcript string) { transcripts = append(transcripts, transcript) },
	})

	listener.processMessage(context.Background(), resultsMessage("what", false, false))
	listener.processMessage(context.Background(), resultsMessage("", true, true))

	if len(transcripts) != 0 {
		t.Fatalf("expected no transcript, got %v", transcripts)
	}
}

func TestProcessMessageUtteranceEndFlushesUnendedSegment(t *testing.T) {
	var transcripts []string
	started, ended := 0, 0
	listener := newTestListener(speechtotext.TranscriptionOptions{
		TranscriptionCallback: func(transcript string) { transcripts = append(transcripts, transcript) },
		SpeechStartedCallback: func() { started++ },
		SpeechEndedCallback:   func() { ended++ },
	})

	listener.processMessage(context.Background(), []byte(fmt.Sprintf(`{"type":%q}`, string(api.TypeSpeechStartedResponse))))
	listener.processMessage(context.Background(), resultsMessage("jarvis", true, false))
	listener.processMessage(context.Background(), []byte(fmt.Sprintf(`{"type":%q}`, string(api.TypeUtteranceEndResponse))))
	listener.processMessage(context.Background(), []byte(fmt.Sprintf(`{"type":%q}`, string(api.TypeUtteranceEndResponse))))

	if started != 1 || ended != 1 {
		t.Fatalf("expected one speech start and end, got %d and %d", started, ended)
	}
	if len(transcripts) != 1 || transcripts[0] != "jarvis" {
		t.Fatalf("expected transcript %q, got %v", "jarvis", transcripts)
	}
}

func TestProcessMessageInterimIncludesAccumulatedTranscript(t *testing.T) {
	var interim []string
	listener := newTestListener(speechtotext.TranscriptionOptions{
		TranscriptionCallback:        func(string) {},
		InterimTranscriptionCallback: func(transcript string) { interim = append(interim, transcript) },
	})

	listener.processMessage(context.Background(), resultsMessage("turn on", true, false))
	listener.processMessage(context.Background(), resultsMessage("the lig", false, false))

	if len(interim) != 1 || interim[0] != "turn on the lig" {
		t.Fatalf("expected interim %q, got %v", "turn on the lig", interim)
	}
}

func TestListenConnectsAndDeliversTranscripts(t *testing.T) {
	type request struct {
		authorization string
		model         string
		keyterms      []string
		encoding      string
	}
	requests := make(chan request, 1)

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests <- request{
			authorization: r.Header.Get("Authorization"),
			model:         r.URL.Query().Get("model"),
			keyterms:      r.URL.Query()["keyterm"],
			encoding:      r.URL.Query().Get("encoding"),
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, resultsMessage("lights on", true, true))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client, err := NewClient(WithAPIKey("secret"), WithURL("ws"+strings.TrimPrefix(server.URL, "http")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	transcripts := make(chan string, 1)
	listener, err := client.Listen(context.Background(),
		speechtotext.WithKeyterms("jarvis"),
		speechtotext.WithTranscriptionCallback(func(transcript string) { transcripts <- transcript }),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer listener.Close()

	if err := listener.SendAudio([]byte{0, 0}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case transcript := <-transcripts:
		if transcript != "lights on" {
			t.Fatalf("expected %q, got %q", "lights on", transcript)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected a transcript")
	}

	req := <-requests
	if req.authorization != "Token secret" {
		t.Fatalf("expected token authorization, got %q", req.authorization)
	}
	if req.model != defaultModel {
		t.Fatalf("expected model %q, got %q", defaultModel, req.model)
	}
	if len(req.keyterms) != 1 || req.keyterms[0] != "jarvis" {
		t.Fatalf("expected keyterm jarvis, got %v", req.keyterms)
	}
	if req.encoding != "linear16" {
		t.Fatalf("expected linear16 encoding, got %q", req.encoding)
	}
}

func TestListenerCloseIsIdempotent(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client, _ := NewClient(WithAPIKey("secret"), WithURL("ws"+strings.TrimPrefix(server.URL, "http")))
	listener, err := client.Listen(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_ = listener.Close()
	if err := listener.Close(); err != nil {
		t.Fatalf("expected second close to be a no-op, got %v", err)
	}
	if err := listener.SendAudio([]byte{0}); err != ErrStreamClosed {
		t.Fatalf("expected ErrStreamClosed, got %v", err)
	}

	select {
	case <-listener.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("expected read loop to stop after close")
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "")
	if _, err := NewClient(); err == nil {
		t.Fatalf("expected an error without an api key")
	}

	t.Setenv("DEEPGRAM_API_KEY", "from-env")
	client, err := NewClient()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.apiKey != "from-env" {
		t.Fatalf("expected api key from env, got %q", client.apiKey)
	}
}

func TestConvertEncodingRejectsUnsupportedRates(t *testing.T) {
	if _, err := convertEncoding(speechtotext.ApplyOptions().EncodingInfo); err != nil {
		t.Fatalf("unexpected error for default encoding: %v", err)
	}

	options := speechtotext.ApplyOptions()
	options.EncodingInfo.SampleRate = 44100
	if _, err := convertEncoding(options.EncodingInfo); err == nil {
		t.Fatalf("expected an error for 44.1kHz")
	}
}
