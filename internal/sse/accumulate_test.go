package sse

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAccumulate_ConcatenatesInOrder(t *testing.T) {
	stream := "data: {\"content\":\"He\"}\n\ndata: {\"content\":\"llo\"}\n\n"

	var fragments []string
	text, err := Accumulate(strings.NewReader(stream), func(s string) { fragments = append(fragments, s) })
	require.NoError(t, err)
	require.Equal(t, "Hello", text)
	require.Equal(t, []string{"He", "llo"}, fragments)
}

func TestAccumulate_IgnoresNoise(t *testing.T) {
	stream := strings.Join([]string{
		": comment",
		"event: ping",
		"data: not-json",
		"data: {\"other\":1}",
		"data:{\"content\":\"no space\"}",
		"data: {\"content\":\"a\\nb\"}",
		"",
		"data: {\"content\":\"\"}",
		"data: {\"content\":\"!\"}",
		"",
	}, "\n")

	text, err := Accumulate(strings.NewReader(stream), nil)
	require.NoError(t, err)
	require.Equal(t, "a\nb!", text)
}

type brokenReader struct {
	data io.Reader
}

func (b *brokenReader) Read(p []byte) (int, error) {
	n, err := b.data.Read(p)
	if err == io.EOF {
		return n, io.ErrUnexpectedEOF
	}
	return n, err
}

func TestAccumulate_BrokenStreamKeepsPartialText(t *testing.T) {
	r := &brokenReader{data: strings.NewReader("data: {\"content\":\"par\"}\n\ndata: {\"content\":\"tial\"}\n\n")}
	text, err := Accumulate(r, nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	require.Equal(t, "partial", text)
}
