package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

const (
	DefaultAddr          = ":3000"
	DefaultUpstreamURL   = "http://localhost:11434/api/chat"
	DefaultModel         = "jakerains/jetsonv2"
	DefaultStreamTimeout = 10 * time.Minute
	DefaultLogDir        = "logs"
	DefaultServiceName   = "jetsonchat"
)

// Config holds application configuration
type Config struct {
	Addr        string
	UpstreamURL string // Ollama chat endpoint, e.g. http://localhost:11434/api/chat
	Model       string // Model identifier sent with every upstream request

	// StreamTimeout bounds a whole relay request. Zero disables it.
	StreamTimeout time.Duration

	// BufferPartialLines accumulates NDJSON lines that straddle upstream reads
	// instead of assuming each read carries whole lines.
	BufferPartialLines bool

	AllowedOrigins string

	LogDir    string
	LogStdout bool
	Debug     bool
}

// Default returns a Config populated with the built-in defaults.
func Default() Config {
	return Config{
		Addr:           DefaultAddr,
		UpstreamURL:    DefaultUpstreamURL,
		Model:          DefaultModel,
		StreamTimeout:  DefaultStreamTimeout,
		AllowedOrigins: "*",
		LogDir:         DefaultLogDir,
	}
}

// Validate reports the first configuration problem found.
func (c Config) Validate() error {
	if c.Model == "" {
		return errors.New("model must not be empty")
	}
	u, err := url.Parse(c.UpstreamURL)
	if err != nil {
		return fmt.Errorf("invalid upstream url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("upstream url must be http or https, got %q", c.UpstreamURL)
	}
	if u.Host == "" {
		return fmt.Errorf("upstream url must be absolute, got %q", c.UpstreamURL)
	}
	if c.StreamTimeout < 0 {
		return errors.New("stream timeout must not be negative")
	}
	return nil
}
