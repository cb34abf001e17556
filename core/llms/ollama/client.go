package ollama

import (
	"context"
	"net/http"

	"github.com/koscakluka/ema-jarvis/core/llms"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultURL   = "http://localhost:11434/api/generate"
	DefaultModel = "mistral"

	DefaultConnectionApology = "Sorry, I can't reach my brain right now."
	DefaultUnexpectedApology = "An unexpected error occurred."
)

// Client streams responses from a local Ollama server.
//
// Transport failures do not surface as errors: the stream yields a single
// apology chunk instead so the assistant can still say something. Context
// cancellation is the exception and is always returned as an error.
type Client struct {
	url    string
	model  string
	client *http.Client

	connectionApology string
	unexpectedApology string
}

type ClientOption func(*Client)

func WithURL(url string) ClientOption {
	return func(c *Client) { c.url = url }
}

// WithModel sets the default model, used when the prompt does not select one.
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

// WithApologies overrides the fragments yielded when the server cannot be
// reached and when the response cannot be processed. Empty values keep the
// defaults.
func WithApologies(connection, unexpected string) ClientOption {
	return func(c *Client) {
		if connection != "" {
			c.connectionApology = connection
		}
		if unexpected != "" {
			c.unexpectedApology = unexpected
		}
	}
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		url:   defaultURL,
		model: DefaultModel,
		client: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)},
		connectionApology: DefaultConnectionApology,
		unexpectedApology: DefaultUnexpectedApology,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) PromptWithStream(_ context.Context, prompt string, opts ...llms.StreamingPromptOption) llms.Stream {
	options := llms.ApplyStreamingOptions(llms.StreamingPromptOptions{Model: c.model}, opts...)

	return &Stream{
		client:  c,
		model:   options.Model,
		system:  options.Instructions,
		prompt:  prompt,
		started: false,
	}
}
