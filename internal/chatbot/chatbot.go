package chatbot

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"JetsonChat/internal/relay"
	"JetsonChat/internal/session"
	"JetsonChat/internal/sse"
)

// FallbackReply replaces the bot's answer when a relay call fails.
const FallbackReply = "Sorry, I couldn't process your request."

// Config holds the terminal client configuration
type Config struct {
	RelayURL   string // e.g. http://localhost:3000/api/chat
	HTTPClient *http.Client
	Logger     *slog.Logger
	In         io.Reader
	Out        io.Writer
}

// ChatBot is a terminal front end for the relay. It keeps the conversation
// in memory only.
type ChatBot struct {
	relayURL     string
	httpClient   *http.Client
	logger       *slog.Logger
	in           io.Reader
	out          io.Writer
	conversation session.Conversation
}

// NewChatBot creates a new ChatBot instance
func NewChatBot(cfg Config) (*ChatBot, error) {
	if cfg.RelayURL == "" {
		return nil, errors.New("relay url is required")
	}
	if cfg.In == nil || cfg.Out == nil {
		return nil, errors.New("input and output are required")
	}

	cb := &ChatBot{
		relayURL:   cfg.RelayURL,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
		in:         cfg.In,
		out:        cfg.Out,
	}
	if cb.httpClient == nil {
		cb.httpClient = &http.Client{}
	}
	if cb.logger == nil {
		cb.logger = slog.Default()
	}
	return cb, nil
}

// History returns the in-memory conversation.
func (cb *ChatBot) History() []session.Message {
	return cb.conversation.Messages()
}

// sendMessage posts the conversation plus userMessage to the relay and
// streams the reply through onFragment. The reply, or FallbackReply on
// failure, is appended to the conversation as the bot's turn.
func (cb *ChatBot) sendMessage(ctx context.Context, userMessage string, onFragment func(string)) (string, error) {
	cb.conversation.Append(session.Message{Role: session.RoleUser, Content: userMessage})

	reply, err := cb.callRelay(ctx, cb.conversation.Messages(), onFragment)
	if err != nil {
		cb.conversation.Append(session.Message{Role: session.RoleBot, Content: FallbackReply})
		return "", err
	}

	cb.conversation.Append(session.Message{Role: session.RoleBot, Content: reply})
	return reply, nil
}

func (cb *ChatBot) callRelay(ctx context.Context, messages []session.Message, onFragment func(string)) (string, error) {
	reqBody := relay.ChatRequest{Messages: make([]relay.InboundMessage, len(messages))}
	for i, msg := range messages {
		reqBody.Messages[i] = relay.InboundMessage{Role: msg.Role, Text: msg.Content}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cb.relayURL, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := cb.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API responded with status %d", resp.StatusCode)
	}

	reply, err := sse.Accumulate(resp.Body, onFragment)
	if err != nil {
		return "", err
	}

	cb.logger.Info("reply received",
		"request_id", resp.Header.Get("X-Request-Id"),
		"chars", len(reply),
		"history", len(messages),
	)
	return reply, nil
}

// handleCommand handles special commands
func (cb *ChatBot) handleCommand(cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, nil
	}

	switch parts[0] {
	case "/quit", "/exit":
		return true, nil

	case "/clear":
		cb.conversation.Clear()
		fmt.Fprintln(cb.out, "Chat cleared.")
		return false, nil

	case "/help":
		fmt.Fprintln(cb.out, "Available commands:")
		fmt.Fprintln(cb.out, "  /quit, /exit  - Exit the chat")
		fmt.Fprintln(cb.out, "  /clear        - Clear the conversation")
		fmt.Fprintln(cb.out, "  /help         - Show this help message")
		return false, nil

	default:
		return false, fmt.Errorf("unknown command: %s", parts[0])
	}
}

// Run starts the chat loop and returns when input ends or /quit is typed.
func (cb *ChatBot) Run(ctx context.Context) error {
	fmt.Fprintln(cb.out, "=== JETSON ===")
	fmt.Fprintf(cb.out, "Relay: %s\n", cb.relayURL)
	fmt.Fprintln(cb.out, "Type /help for commands, /quit to exit")
	fmt.Fprintln(cb.out)

	scanner := bufio.NewScanner(cb.in)

	for {
		fmt.Fprint(cb.out, "You: ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			shouldQuit, err := cb.handleCommand(input)
			if err != nil {
				fmt.Fprintf(cb.out, "Error: %v\n", err)
			}
			if shouldQuit {
				break
			}
			continue
		}

		fmt.Fprint(cb.out, "Bot: ")
		_, err := cb.sendMessage(ctx, input, func(fragment string) {
			fmt.Fprint(cb.out, fragment)
		})
		if err != nil {
			fmt.Fprint(cb.out, FallbackReply)
			cb.logger.Error("failed to send message", "error", err)
		}
		fmt.Fprint(cb.out, "\n\n")

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	fmt.Fprintln(cb.out, "Goodbye!")
	return nil
}
