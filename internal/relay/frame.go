package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Frame is one relayed content fragment.
type Frame struct {
	Content string `json:"content"`
}

// EncodeFrame renders f as a single SSE event: data: {"content":...}\n\n.
// HTML characters are not escaped so the payload matches what a browser's
// JSON.stringify would produce.
func EncodeFrame(f Frame) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("data: ")
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(f); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	// Encode terminates with one newline; SSE needs a blank line after it.
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// WriteFrame encodes f and writes it to w in a single call.
func WriteFrame(w io.Writer, f Frame) error {
	b, err := EncodeFrame(f)
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}
