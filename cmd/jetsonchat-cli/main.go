package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"JetsonChat/internal/chatbot"
	"JetsonChat/internal/config"
	"JetsonChat/internal/telemetry"
)

func main() {
	var relayURL, logDir string
	var debug bool

	flag.StringVar(&relayURL, "relay-url", "http://localhost"+config.DefaultAddr+"/api/chat", "Relay chat endpoint")
	flag.StringVar(&logDir, "log-dir", config.DefaultLogDir, "Directory for client logs")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.Parse()

	// Log only to file so the terminal stays readable.
	logger, logFile, err := telemetry.InitLogger(telemetry.LoggerConfig{
		Dir:         logDir,
		ServiceName: config.DefaultServiceName + "-cli",
		Debug:       debug,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	bot, err := chatbot.NewChatBot(chatbot.Config{
		RelayURL: relayURL,
		Logger:   logger,
		In:       os.Stdin,
		Out:      os.Stdout,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize chatbot: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := bot.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
