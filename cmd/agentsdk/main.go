// Package main is a small driver for the SDK: it runs one prompt against
// the Agent CLI and prints the assistant's text output. Useful for checking
// a CLI installation and for demonstrating the Query surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/kandev/agentsdk/internal/common/logger"
	"github.com/kandev/agentsdk/pkg/session"
	"github.com/kandev/agentsdk/pkg/streamjson"
)

func main() {
	configPath := flag.String("config", "", "directory containing agentsdk.yaml")
	cliPath := flag.String("cli", "", "path to the agent binary (defaults to PATH lookup)")
	model := flag.String("model", "", "model override")
	flag.Parse()

	prompt := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if prompt == "" {
		fmt.Fprintln(os.Stderr, "usage: agentsdk [flags] <prompt>")
		os.Exit(2)
	}

	opts, err := session.LoadOptions(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load options: %v\n", err)
		os.Exit(1)
	}
	if *cliPath != "" {
		opts.CLIPath = *cliPath
	}
	if *model != "" {
		opts.Model = *model
	}

	log, err := logger.NewLogger(opts.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	opts.Logger = log

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, prompt, opts, log); err != nil {
		log.Error("query failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, prompt string, opts *session.Options, log *logger.Logger) error {
	for msg, err := range session.Query(ctx, prompt, opts) {
		if err != nil {
			return err
		}
		switch m := msg.(type) {
		case *streamjson.SystemMessage:
			if m.Subtype == streamjson.SystemInit {
				log.Info("session started",
					zap.String("session_id", m.SessionID),
					zap.String("model", m.Model))
			}
		case *streamjson.AssistantMessage:
			for _, block := range m.Message.Content {
				if block.Type == streamjson.BlockText {
					fmt.Println(block.Text)
				}
			}
		case *streamjson.ResultMessage:
			if m.IsError {
				return fmt.Errorf("agent reported an error result: %s", m.Result)
			}
			log.Info("turn complete",
				zap.Int("num_turns", m.NumTurns),
				zap.Int64("duration_ms", m.DurationMS))
		}
	}
	return nil
}
