package deepgram

import (
	"fmt"
	"os"

	"github.com/gorilla/websocket"
)

const (
	listenURL       = "wss://api.deepgram.com/v1/listen"
	defaultModel    = "nova-3"
	defaultLanguage = "en-US"
)

// Client opens Deepgram live transcription streams.
type Client struct {
	apiKey   string
	url      string
	model    string
	language string
	dialer   *websocket.Dialer
}

type ClientOption func(*Client)

func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) { c.apiKey = apiKey }
}

// WithURL overrides the listen endpoint, mostly useful for tests.
func WithURL(url string) ClientOption {
	return func(c *Client) { c.url = url }
}

func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

func WithLanguage(language string) ClientOption {
	return func(c *Client) { c.language = language }
}

// NewClient creates a Deepgram listen client. The API key falls back to
// DEEPGRAM_API_KEY.
func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{
		url:      listenURL,
		model:    defaultModel,
		language: defaultLanguage,
		dialer:   websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY")
		if !ok || apiKey == "" {
			return nil, fmt.Errorf("deepgram api key not found")
		}
		c.apiKey = apiKey
	}

	return c, nil
}
