package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"JetsonChat/internal/session"
)

func TestNewOllamaClient_RequiresURL(t *testing.T) {
	_, err := NewOllamaClient(OllamaConfig{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "url")
}

func TestStreamChat_SendsStreamingRequest(t *testing.T) {
	var got OllamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/chat", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"message":{"content":"ok"}}`+"\n")
	}))
	defer srv.Close()

	c, err := NewOllamaClient(OllamaConfig{URL: srv.URL + "/api/chat"})
	require.NoError(t, err)

	msgs := []session.Message{
		{Role: session.RoleUser, Content: "hi"},
		{Role: session.RoleAssistant, Content: "hello"},
		{Role: session.RoleUser, Content: "again"},
	}
	body, err := c.StreamChat(context.Background(), "jakerains/jetsonv2", msgs)
	require.NoError(t, err)
	defer body.Close()

	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	require.Equal(t, `{"message":{"content":"ok"}}`+"\n", string(raw))

	require.Equal(t, "jakerains/jetsonv2", got.Model)
	require.True(t, got.Stream)
	require.Equal(t, msgs, got.Messages)
}

func TestStreamChat_NilMessagesEncodeAsEmptyArray(t *testing.T) {
	var raw map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
	}))
	defer srv.Close()

	c, err := NewOllamaClient(OllamaConfig{URL: srv.URL})
	require.NoError(t, err)

	body, err := c.StreamChat(context.Background(), "m", nil)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	require.JSONEq(t, `[]`, string(raw["messages"]))
}

func TestStreamChat_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model is loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewOllamaClient(OllamaConfig{URL: srv.URL})
	require.NoError(t, err)

	body, err := c.StreamChat(context.Background(), "m", []session.Message{{Role: "user", Content: "hi"}})
	require.Nil(t, body)
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	require.Equal(t, "model is loading", statusErr.Body)
}

func TestStreamChat_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewOllamaClient(OllamaConfig{URL: url})
	require.NoError(t, err)

	_, err = c.StreamChat(context.Background(), "m", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to send request")
}

func TestOllamaChunk_Content(t *testing.T) {
	cases := []struct {
		line string
		want string
	}{
		{line: `{"message":{"role":"assistant","content":"He"},"done":false}`, want: "He"},
		{line: `{"done":true}`, want: ""},
		{line: `{"message":null}`, want: ""},
		{line: `{"message":{}}`, want: ""},
	}
	for _, tc := range cases {
		var chunk OllamaChunk
		require.NoError(t, json.Unmarshal([]byte(tc.line), &chunk))
		require.Equal(t, tc.want, chunk.Content(), "line=%s", tc.line)
	}
}
