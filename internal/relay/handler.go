package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"JetsonChat/internal/session"
)

// RequestIDKey is the gin context key holding the request correlation id.
const RequestIDKey = "request_id"

const (
	outcomeOK                  = "ok"
	outcomeInputMalformed      = "input_malformed"
	outcomeUpstreamUnavailable = "upstream_unavailable"
	outcomeUpstreamBroken      = "upstream_broken"
	outcomeClientGone          = "client_gone"
)

// Upstream opens a streaming chat completion.
type Upstream interface {
	StreamChat(ctx context.Context, model string, messages []session.Message) (io.ReadCloser, error)
}

// InboundMessage is a message as posted by the browser.
type InboundMessage struct {
	Role string `json:"role" binding:"required"`
	Text string `json:"text"`
}

// ChatRequest is the relay request body.
type ChatRequest struct {
	Messages []InboundMessage `json:"messages" binding:"required,dive"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ToUpstream maps inbound messages to upstream messages, preserving order.
func ToUpstream(in []InboundMessage) ([]session.Message, error) {
	out := make([]session.Message, 0, len(in))
	for _, m := range in {
		role, ok := session.MapRole(m.Role)
		if !ok {
			return nil, newError(KindInputMalformed, "unknown_role:"+m.Role, nil)
		}
		out = append(out, session.Message{Role: role, Content: m.Text})
	}
	return out, nil
}

// HandlerConfig configures a Handler.
type HandlerConfig struct {
	Model string
	// StreamTimeout bounds the whole relay. Zero disables it.
	StreamTimeout time.Duration
	Translator    *Translator
	Logger        *slog.Logger
	Tracer        trace.Tracer
	Meter         metric.Meter
}

// Handler is the relay endpoint.
type Handler struct {
	upstream      Upstream
	model         string
	streamTimeout time.Duration
	translator    *Translator
	logger        *slog.Logger
	tracer        trace.Tracer
	requests      metric.Int64Counter
	frames        metric.Int64Counter
}

func NewHandler(upstream Upstream, cfg HandlerConfig) (*Handler, error) {
	if upstream == nil {
		return nil, errors.New("relay: nil upstream")
	}
	if cfg.Model == "" {
		return nil, errors.New("relay: model is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = tracenoop.NewTracerProvider().Tracer("relay")
	}
	meter := cfg.Meter
	if meter == nil {
		meter = metricnoop.NewMeterProvider().Meter("relay")
	}

	translator := cfg.Translator
	if translator == nil {
		var err error
		translator, err = NewTranslator(TranslatorConfig{Logger: logger, Meter: meter})
		if err != nil {
			return nil, err
		}
	}

	requests, err := meter.Int64Counter("relay.requests",
		metric.WithDescription("Relay requests by outcome"))
	if err != nil {
		return nil, err
	}
	frames, err := meter.Int64Counter("relay.frames",
		metric.WithDescription("SSE frames written to callers"))
	if err != nil {
		return nil, err
	}

	return &Handler{
		upstream:      upstream,
		model:         cfg.Model,
		streamTimeout: cfg.StreamTimeout,
		translator:    translator,
		logger:        logger,
		tracer:        tracer,
		requests:      requests,
		frames:        frames,
	}, nil
}

// Chat relays one conversation to the upstream and streams the reply back
// as server-sent events.
func (h *Handler) Chat(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "relay_chat")
	defer span.End()

	logger := h.logger.With(RequestIDKey, c.GetString(RequestIDKey))

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(ctx, c, logger, span, newError(KindInputMalformed, "invalid_body", err), outcomeInputMalformed)
		return
	}
	messages, err := ToUpstream(req.Messages)
	if err != nil {
		h.fail(ctx, c, logger, span, err, outcomeInputMalformed)
		return
	}
	span.SetAttributes(attribute.Int("relay.message_count", len(messages)))

	if h.streamTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, h.streamTimeout)
		defer cancelTimeout()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	body, err := h.upstream.StreamChat(ctx, h.model, messages)
	if err != nil {
		h.fail(ctx, c, logger, span, newError(KindUpstreamUnavailable, "upstream_request_failed", err), outcomeUpstreamUnavailable)
		return
	}
	defer body.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	frames := make(chan Frame, 1)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return h.translator.Run(gctx, body, frames)
	})

	written, writeErr := pump(c.Writer, frames)
	if writeErr != nil {
		// Unblocks the producer whether it is sending or reading upstream.
		cancel()
	}
	runErr := g.Wait()
	h.frames.Add(ctx, int64(written))
	span.SetAttributes(attribute.Int("relay.frames", written))

	switch {
	case writeErr != nil || c.Request.Context().Err() != nil:
		h.record(ctx, outcomeClientGone)
		logger.Warn("caller went away mid-stream", "frames", written, "error", errors.Join(writeErr, runErr))
	case runErr != nil:
		h.record(ctx, outcomeUpstreamBroken)
		if KindOf(runErr) == "" {
			runErr = newError(KindUpstreamStreamBroken, "stream_aborted", runErr)
		}
		span.RecordError(runErr)
		span.SetStatus(codes.Error, string(KindUpstreamStreamBroken))
		logger.Error("stream processing error", "frames", written, "error", runErr)
		// Abort the response so the caller sees a broken connection rather
		// than a clean end of stream.
		panic(http.ErrAbortHandler)
	default:
		h.record(ctx, outcomeOK)
		logger.Info("relay completed", "frames", written, "model", h.model)
	}
}

// pump writes frames until the channel closes or a write fails.
func pump(w gin.ResponseWriter, frames <-chan Frame) (int, error) {
	written := 0
	for f := range frames {
		if err := WriteFrame(w, f); err != nil {
			return written, err
		}
		w.Flush()
		written++
	}
	return written, nil
}

func (h *Handler) fail(ctx context.Context, c *gin.Context, logger *slog.Logger, span trace.Span, err error, outcome string) {
	h.record(ctx, outcome)
	span.RecordError(err)
	span.SetStatus(codes.Error, outcome)
	logger.Error("error in chat relay", "error", err)

	resp := errorResponse{Error: string(KindOf(err)), Message: "Internal Server Error"}
	var re *Error
	if errors.As(err, &re) {
		resp.Message = re.Reason
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, resp)
}

func (h *Handler) record(ctx context.Context, outcome string) {
	h.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
