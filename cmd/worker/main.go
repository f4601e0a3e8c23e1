// Command worker runs a Temporal worker that executes DatasetWorkflow and
// the stage activities.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/ahrav/go-synth/internal/config"
	"github.com/ahrav/go-synth/internal/worker"
	"github.com/ahrav/go-synth/pkg/events"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := cfg.Logger(os.Stderr)
	slog.SetDefault(logger)

	llmClient, err := worker.InitializeLLMClient(ctx, cfg, logger)
	if err != nil {
		return err
	}
	exec, err := worker.NewStageExecutor(cfg, llmClient, os.Stdout, logger)
	if err != nil {
		return err
	}

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    log.NewStructuredLogger(logger),
	})
	if err != nil {
		return fmt.Errorf("connect to temporal at %s: %w", cfg.Temporal.HostPort, err)
	}
	defer c.Close()

	w := sdkworker.New(c, cfg.Temporal.TaskQueue, sdkworker.Options{})
	worker.RegisterAll(w, exec, events.NewLogSink(logger))

	logger.Info("worker starting", "task_queue", cfg.Temporal.TaskQueue, "providers", llmClient.Providers())
	if err := w.Start(); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	<-ctx.Done()
	w.Stop()
	logger.Info("worker stopped", "stats", llmClient.Stats())
	return nil
}
