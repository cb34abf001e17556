package deepgram

import (
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-jarvis/core/audio"
	"github.com/koscakluka/ema-jarvis/core/texttospeech"
)

const speakURL = "wss://api.deepgram.com/v1/speak"

// Speaker turns text into speech with Deepgram Aura and plays it on an audio
// output. Speak calls are serialized, so concurrent callers take turns.
type Speaker struct {
	apiKey  string
	url     string
	voice   deepgramVoice
	dialer  *websocket.Dialer
	output  audio.Output
	options texttospeech.TextToSpeechOptions

	mu   sync.Mutex
	conn *speakConnection
}

type SpeakerOption func(*Speaker)

func WithAPIKey(apiKey string) SpeakerOption {
	return func(s *Speaker) { s.apiKey = apiKey }
}

// WithURL overrides the speak endpoint, mostly useful for tests.
func WithURL(url string) SpeakerOption {
	return func(s *Speaker) { s.url = url }
}

func WithVoice(voice deepgramVoice) SpeakerOption {
	return func(s *Speaker) { s.voice = voice }
}

func WithSpeechOptions(opts ...texttospeech.TextToSpeechOption) SpeakerOption {
	return func(s *Speaker) {
		for _, opt := range opts {
			opt(&s.options)
		}
	}
}

// NewSpeaker creates a speaker playing on output. The API key falls back to
// DEEPGRAM_API_KEY.
func NewSpeaker(output audio.Output, opts ...SpeakerOption) (*Speaker, error) {
	if output == nil {
		return nil, fmt.Errorf("audio output is required")
	}

	s := &Speaker{
		url:     speakURL,
		voice:   defaultVoice,
		dialer:  websocket.DefaultDialer,
		output:  output,
		options: texttospeech.ApplyOptions(texttospeech.WithEncodingInfo(output.EncodingInfo())),
	}
	for _, opt := range opts {
		opt(s)
	}

	if !slices.Contains(GetAvailableVoices(), s.voice) {
		return nil, fmt.Errorf("invalid voice %q", s.voice)
	}

	if s.apiKey == "" {
		apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY")
		if !ok || apiKey == "" {
			return nil, fmt.Errorf("deepgram api key not found")
		}
		s.apiKey = apiKey
	}

	return s, nil
}

func (s *Speaker) SetVoice(voice deepgramVoice) error {
	if !slices.Contains(GetAvailableVoices(), voice) {
		return fmt.Errorf("invalid voice %q", voice)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.voice = voice
	s.dropConnection()
	return nil
}

// Close closes the open connection, if any. The next Speak reconnects.
func (s *Speaker) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropConnection()
}

func (s *Speaker) dropConnection() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}
