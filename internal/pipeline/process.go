package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/ahrav/go-synth/internal/dataset"
)

// ProcessHost runs each step as a separate synth process, the same way a
// user would from the shell.
type ProcessHost struct {
	// Binary is the synth executable. Empty means the running executable.
	Binary string
	// Args are passed before the stage subcommand, e.g. --config.
	Args []string

	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// NewProcessHost creates a host writing console output to stdout.
func NewProcessHost(args []string, stdout, stderr io.Writer) *ProcessHost {
	return &ProcessHost{Args: args, Stdout: stdout, Stderr: stderr, Logger: slog.Default()}
}

func (h *ProcessHost) binary() (string, error) {
	if h.Binary != "" {
		return h.Binary, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate synth binary: %w", err)
	}
	return exe, nil
}

// Stat implements Host.
func (h *ProcessHost) Stat(_ context.Context, path string) (int64, bool, error) {
	return dataset.Stat(path)
}

// RunStage implements Host. It blocks until the child process exits.
func (h *ProcessHost) RunStage(ctx context.Context, step Step) error {
	bin, err := h.binary()
	if err != nil {
		return err
	}
	args := append(append([]string(nil), h.Args...), step.Stage)

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = h.Stdout
	cmd.Stderr = h.Stderr
	cmd.WaitDelay = 10 * time.Second

	h.logger().DebugContext(ctx, "starting stage process", "stage", step.Stage, "binary", bin, "args", args)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run %s %s: %w", bin, step.Stage, err)
	}
	return nil
}

// Sleep implements Host.
func (h *ProcessHost) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Notify implements Host by printing the event's console line.
func (h *ProcessHost) Notify(ctx context.Context, ev Event) {
	if h.Stdout != nil {
		fmt.Fprintln(h.Stdout, ev.String())
	}
	h.logger().DebugContext(ctx, "pipeline event", "kind", ev.Kind, "state", ev.State, "step", ev.Step, "path", ev.Path)
}

func (h *ProcessHost) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}
