package relay

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"

	"JetsonChat/internal/backend"
)

const defaultReadSize = 32 << 10

// LineMode selects how upstream bytes are split into NDJSON lines.
type LineMode int

const (
	// LinesPerRead splits each read on its own and never carries a partial
	// line over to the next read. A line that straddles two reads becomes two
	// unparseable halves which are skipped.
	LinesPerRead LineMode = iota
	// LinesBuffered accumulates partial lines across reads.
	LinesBuffered
)

func (m LineMode) String() string {
	switch m {
	case LinesPerRead:
		return "per_read"
	case LinesBuffered:
		return "buffered"
	default:
		return fmt.Sprintf("LineMode(%d)", int(m))
	}
}

// TranslatorConfig configures a Translator. Zero-valued fields get defaults.
type TranslatorConfig struct {
	Mode     LineMode
	ReadSize int
	Logger   *slog.Logger
	Meter    metric.Meter
}

// Translator turns an Ollama NDJSON stream into relay frames.
type Translator struct {
	mode        LineMode
	readSize    int
	logger      *slog.Logger
	parseErrors metric.Int64Counter
}

func NewTranslator(cfg TranslatorConfig) (*Translator, error) {
	readSize := cfg.ReadSize
	if readSize <= 0 {
		readSize = defaultReadSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	meter := cfg.Meter
	if meter == nil {
		meter = metricnoop.NewMeterProvider().Meter("relay")
	}
	parseErrors, err := meter.Int64Counter(
		"relay.frame_parse_errors",
		metric.WithDescription("Upstream lines skipped because they were not valid JSON"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create parse error counter: %w", err)
	}
	return &Translator{
		mode:        cfg.Mode,
		readSize:    readSize,
		logger:      logger,
		parseErrors: parseErrors,
	}, nil
}

// Mode reports the configured line mode.
func (t *Translator) Mode() LineMode { return t.mode }

// Run reads upstream until EOF and sends one Frame to out for every line
// that carries a non-empty content fragment. out is closed when Run returns.
// A nil error means upstream ended cleanly; anything else means the
// outbound stream must be aborted.
func (t *Translator) Run(ctx context.Context, upstream io.Reader, out chan<- Frame) error {
	defer close(out)

	if t.mode == LinesBuffered {
		return t.runBuffered(ctx, upstream, out)
	}
	return t.runPerRead(ctx, upstream, out)
}

func (t *Translator) runPerRead(ctx context.Context, upstream io.Reader, out chan<- Frame) error {
	buf := make([]byte, t.readSize)
	for {
		n, err := upstream.Read(buf)
		if n > 0 {
			for _, line := range strings.Split(string(buf[:n]), "\n") {
				if err := t.emit(ctx, line, out); err != nil {
					return err
				}
			}
		}
		if err != nil {
			return readResult(err)
		}
	}
}

func (t *Translator) runBuffered(ctx context.Context, upstream io.Reader, out chan<- Frame) error {
	r := bufio.NewReaderSize(upstream, t.readSize)
	for {
		line, err := r.ReadString('\n')
		if len(line) > 0 {
			if err := t.emit(ctx, line, out); err != nil {
				return err
			}
		}
		if err != nil {
			return readResult(err)
		}
	}
}

func readResult(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return newError(KindUpstreamStreamBroken, "read_failed", err)
}

// emit parses one line and forwards its fragment. Blank lines and lines
// without content are dropped; malformed lines are logged and skipped.
func (t *Translator) emit(ctx context.Context, line string, out chan<- Frame) error {
	if strings.TrimSpace(line) == "" {
		return nil
	}

	var chunk backend.OllamaChunk
	if err := json.Unmarshal([]byte(line), &chunk); err != nil {
		t.parseErrors.Add(ctx, 1)
		t.logger.Warn("skipping malformed upstream line",
			"error", newError(KindFrameParse, "invalid_json", err),
			"line", truncate(line, 256),
		)
		return nil
	}

	content := chunk.Content()
	if content == "" {
		return nil
	}

	select {
	case out <- Frame{Content: content}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
