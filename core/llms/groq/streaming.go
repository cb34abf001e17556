package groq

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/koscakluka/ema-jarvis/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Stream struct {
	client *Client

	model    string
	messages []message
}

// Chunks sends the prompt and yields content deltas as they arrive. A
// malformed event is reported and skipped, transport failures end the stream.
func (s *Stream) Chunks(ctx context.Context) func(func(llms.StreamChunk, error) bool) {
	return func(yield func(llms.StreamChunk, error) bool) {
		ctx, span := tracer.Start(ctx, "prompt llm stream",
			trace.WithAttributes(attribute.String("request.model", s.model)))
		defer span.End()

		fail := func(err error) bool {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return yield(nil, err)
		}

		resp, err := s.send(ctx, span)
		if err != nil {
			fail(err)
			return
		}
		defer resp.Body.Close()

		requestedAt := time.Now()
		chunks := 0
		defer func() { span.SetAttributes(attribute.Int("response.chunks", chunks)) }()

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			data := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), chunkPrefix))
			if data == "" {
				continue
			}
			if data == endMessage {
				return
			}

			var event streamingResponseBody
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				if !fail(fmt.Errorf("error unmarshalling JSON: %w", err)) {
					return
				}
				continue
			}
			recordUsage(span, event)

			chunk, ok := contentOf(event)
			if !ok {
				continue
			}
			if chunks == 0 {
				span.SetAttributes(attribute.Float64("response.time_to_first_chunk", time.Since(requestedAt).Seconds()))
			}
			chunks++
			if !yield(chunk, nil) {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			fail(fmt.Errorf("error reading streamed response: %w", err))
		}
	}
}

func (s *Stream) send(ctx context.Context, span trace.Span) (*http.Response, error) {
	body, err := json.Marshal(requestBody{
		Model:    s.model,
		Messages: s.messages,
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.client.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.client.apiKey)
	span.SetAttributes(attribute.String("request.url", req.URL.String()))

	resp, err := s.client.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		if errorBody, err := io.ReadAll(resp.Body); err == nil {
			span.SetAttributes(attribute.String("response.error", string(errorBody)))
		}
		return nil, fmt.Errorf("non-OK HTTP status: %s", resp.Status)
	}
	return resp, nil
}

func contentOf(event streamingResponseBody) (StreamContentChunk, bool) {
	if len(event.Choices) == 0 {
		return StreamContentChunk{}, false
	}

	choice := event.Choices[0]
	if choice.Delta.Content == "" {
		return StreamContentChunk{}, false
	}

	finishReason := choice.FinishReason
	if choice.Delta.FinishReason != nil {
		finishReason = choice.Delta.FinishReason
	}
	return StreamContentChunk{finishReason: finishReason, content: choice.Delta.Content}, true
}

func recordUsage(span trace.Span, event streamingResponseBody) {
	if event.Usage == nil {
		return
	}
	span.SetAttributes(
		attribute.Int("usage.prompt", event.Usage.PromptTokens),
		attribute.Int("usage.completion", event.Usage.CompletionTokens),
		attribute.Int("usage.total", event.Usage.TotalTokens),
		attribute.Float64("usage.queue_time", event.Usage.QueueTime),
		attribute.Float64("usage.total_time", event.Usage.TotalTime),
	)
}

type StreamContentChunk struct {
	finishReason *string
	content      string
}

func (s StreamContentChunk) FinishReason() *string { return s.finishReason }
func (s StreamContentChunk) Content() string       { return s.content }
