package groq

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/koscakluka/ema-jarvis/core/llms"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	url          = "https://api.groq.com/openai/v1/chat/completions"
	DefaultModel = "llama-3.1-8b-instant"

	endMessage  = "[DONE]"
	chunkPrefix = "data:"
)

type Client struct {
	apiKey string
	url    string
	model  string
	client *http.Client
}

type ClientOption func(*Client)

func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) { c.apiKey = apiKey }
}

func WithURL(url string) ClientOption {
	return func(c *Client) { c.url = url }
}

func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// NewClient creates a Groq client. The API key falls back to GROQ_API_KEY.
func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{
		url:   url,
		model: DefaultModel,
		client: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)},
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		apiKey, ok := os.LookupEnv("GROQ_API_KEY")
		if !ok || apiKey == "" {
			return nil, fmt.Errorf("groq api key not found")
		}
		c.apiKey = apiKey
	}

	return c, nil
}

func (c *Client) PromptWithStream(_ context.Context, prompt string, opts ...llms.StreamingPromptOption) llms.Stream {
	options := llms.ApplyStreamingOptions(llms.StreamingPromptOptions{Model: c.model}, opts...)

	return &Stream{
		client:   c,
		model:    options.Model,
		messages: toMessages(options.Instructions, prompt),
	}
}
