package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/koscakluka/ema-jarvis/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var ErrStreamConsumed = errors.New("ollama stream already consumed")

type requestBody struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Stream bool   `json:"stream"`
}

type responseLine struct {
	Response   string `json:"response"`
	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason,omitempty"`
	Error      string `json:"error,omitempty"`
}

type Stream struct {
	client *Client

	model  string
	system string
	prompt string

	started bool
}

func (s *Stream) Chunks(ctx context.Context) func(func(llms.StreamChunk, error) bool) {
	return func(yield func(llms.StreamChunk, error) bool) {
		if s.started {
			yield(nil, ErrStreamConsumed)
			return
		}
		s.started = true

		ctx, span := tracer.Start(ctx, "prompt llm stream")
		defer span.End()
		span.SetAttributes(attribute.String("request.model", s.model))

		apologise := func(apology string, cause error) {
			span.RecordError(cause)
			span.SetStatus(codes.Error, cause.Error())
			if ctx.Err() != nil {
				yield(nil, fmt.Errorf("ollama stream interrupted: %w", errors.Join(ctx.Err(), cause)))
				return
			}

			logger.Warn("ollama request failed, substituting apology", "error", cause)
			yield(StreamApologyChunk{apology: apology, cause: cause}, nil)
		}

		requestBodyBytes, err := json.Marshal(requestBody{
			Model:  s.model,
			Prompt: s.prompt,
			System: s.system,
			Stream: true,
		})
		if err != nil {
			apologise(s.client.unexpectedApology, fmt.Errorf("error marshalling JSON: %w", err))
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.client.url, bytes.NewBuffer(requestBodyBytes))
		if err != nil {
			apologise(s.client.unexpectedApology, fmt.Errorf("error creating HTTP request: %w", err))
			return
		}
		req.Header.Set("Content-Type", "application/json")

		requestStartTime := time.Now()
		span.AddEvent("request started")
		resp, err := s.client.client.Do(req)
		if err != nil {
			apologise(s.client.connectionApology, fmt.Errorf("error sending request: %w", err))
			return
		}
		defer resp.Body.Close()

		span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
		if resp.StatusCode != http.StatusOK {
			apologise(s.client.connectionApology, fmt.Errorf("non-OK HTTP status: %s", resp.Status))
			return
		}

		firstChunk := true
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			var body responseLine
			if err := json.Unmarshal(line, &body); err != nil {
				apologise(s.client.unexpectedApology, fmt.Errorf("error unmarshalling JSON: %w", err))
				return
			}
			if body.Error != "" {
				apologise(s.client.unexpectedApology, fmt.Errorf("ollama error: %s", body.Error))
				return
			}

			if firstChunk {
				firstChunk = false
				span.SetAttributes(attribute.Float64("response.request_to_first_token_time", time.Since(requestStartTime).Seconds()))
				span.AddEvent("received first chunk")
			}

			var finishReason *string
			if body.Done && body.DoneReason != "" {
				finishReason = &body.DoneReason
			}

			if body.Response != "" {
				if !yield(StreamContentChunk{content: body.Response, finishReason: finishReason}, nil) {
					return
				}
			}

			if body.Done {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			apologise(s.client.connectionApology, fmt.Errorf("error reading streamed response: %w", err))
		}
	}
}

type StreamContentChunk struct {
	finishReason *string
	content      string
}

func (s StreamContentChunk) FinishReason() *string { return s.finishReason }
func (s StreamContentChunk) Content() string       { return s.content }

type StreamApologyChunk struct {
	apology string
	cause   error
}

func (s StreamApologyChunk) FinishReason() *string { return nil }
func (s StreamApologyChunk) Apology() string       { return s.apology }

// Cause is the failure the apology stands in for.
func (s StreamApologyChunk) Cause() error { return s.cause }
