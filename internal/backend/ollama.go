package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"JetsonChat/internal/session"
)

// maxErrorBody caps how much of a failed upstream response is kept for logs.
const maxErrorBody = 4 << 10

// OllamaRequest represents the request body for the Ollama chat API
type OllamaRequest struct {
	Model    string            `json:"model"`
	Messages []session.Message `json:"messages"`
	Stream   bool              `json:"stream"`
}

// OllamaChunk is one line of a streaming Ollama chat response. Only
// Message.Content matters to the relay; the rest is decoded for logging.
type OllamaChunk struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Message   *struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// Content returns the nested content fragment, or "" when the chunk has none.
func (c OllamaChunk) Content() string {
	if c.Message == nil {
		return ""
	}
	return c.Message.Content
}

// StatusError is returned when the upstream answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream responded with status %s", e.Status)
	}
	return fmt.Sprintf("upstream responded with status %s: %s", e.Status, e.Body)
}

// OllamaConfig configures an OllamaClient. Zero-valued fields get defaults.
type OllamaConfig struct {
	URL        string
	HTTPClient *http.Client
	Logger     *slog.Logger
	Tracer     trace.Tracer
	Meter      metric.Meter
}

// OllamaClient issues streaming chat requests to a local Ollama server
type OllamaClient struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
	duration   metric.Float64Histogram
}

// NewOllamaClient creates a new OllamaClient
func NewOllamaClient(cfg OllamaConfig) (*OllamaClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("ollama url is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// No client timeout: it would cut off long streams. Callers bound
		// requests through the context instead.
		httpClient = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = tracenoop.NewTracerProvider().Tracer("backend")
	}
	meter := cfg.Meter
	if meter == nil {
		meter = metricnoop.NewMeterProvider().Meter("backend")
	}

	histogram, err := meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return &OllamaClient{
		url:        cfg.URL,
		httpClient: httpClient,
		logger:     logger,
		tracer:     tracer,
		duration:   histogram,
	}, nil
}

// StreamChat posts the conversation to Ollama with streaming enabled and
// returns the live response body. The caller must close it. Cancelling ctx
// aborts the request and releases the upstream connection.
func (c *OllamaClient) StreamChat(ctx context.Context, model string, messages []session.Message) (io.ReadCloser, error) {
	ctx, span := c.tracer.Start(ctx, "ollama_api_call",
		trace.WithAttributes(
			attribute.String("llm.model", model),
			attribute.Int("llm.message_count", len(messages)),
		),
	)
	defer span.End()

	start := time.Now()

	if messages == nil {
		messages = []session.Message{}
	}
	reqBody := OllamaRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("content-type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	c.duration.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(attribute.Int("http.response.status_code", resp.StatusCode)))
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(body)),
		}
		span.RecordError(statusErr)
		span.SetStatus(codes.Error, resp.Status)
		c.logger.Error("ollama rejected chat request", "status", resp.StatusCode, "model", model)
		return nil, statusErr
	}

	c.logger.Debug("ollama stream opened", "model", model, "messages", len(messages), "latency_ms", time.Since(start).Milliseconds())
	return resp.Body, nil
}
