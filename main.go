package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/RichardoC/aether-chat/internal/config"
	"github.com/RichardoC/aether-chat/internal/llm"
	"github.com/RichardoC/aether-chat/internal/logging"
)

// Sends one prompt to the configured responder and prints the reply.
func main() {
	prompt := flag.String("prompt", "Any advice for me?", "message to reply to")
	backend := flag.String("backend", "", "override responder.backend (canned or openai)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *backend != "" {
		cfg.Responder.Backend = *backend
	}

	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	var responder llm.Responder = llm.NewCanned()
	if cfg.Responder.Backend == "openai" {
		responder, err = llm.NewOpenAI(cfg.Responder.BaseURL, cfg.Responder.Token, cfg.Responder.Model, cfg.Responder.Timeout)
		if err != nil {
			logger.Fatal("failed to initialize OpenAI", zap.Error(err))
		}
	}

	reply, err := responder.Reply(context.Background(), *prompt, nil)
	if err != nil {
		logger.Fatal("failed to generate reply",
			zap.Error(err),
			zap.String("backend", cfg.Responder.Backend))
	}
	fmt.Println(reply)
}
