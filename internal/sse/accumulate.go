// Package sse reads the relay's event stream on the caller side.
package sse

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const dataPrefix = "data: "

// maxLineSize bounds a single SSE line.
const maxLineSize = 1 << 20

type payload struct {
	Content *string `json:"content"`
}

// Accumulate reads an SSE stream to its end, calling onFragment (if non-nil)
// for every content fragment, and returns the concatenated text. Lines
// without the data prefix are ignored, as are data lines whose JSON does not
// parse or carries no content. A non-nil error means the stream broke; the
// text gathered so far is still returned.
func Accumulate(r io.Reader, onFragment func(string)) (string, error) {
	var text strings.Builder

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineSize)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		var p payload
		if err := json.Unmarshal([]byte(line[len(dataPrefix):]), &p); err != nil || p.Content == nil {
			continue
		}
		text.WriteString(*p.Content)
		if onFragment != nil {
			onFragment(*p.Content)
		}
	}
	if err := scanner.Err(); err != nil {
		return text.String(), fmt.Errorf("failed to read event stream: %w", err)
	}
	return text.String(), nil
}
