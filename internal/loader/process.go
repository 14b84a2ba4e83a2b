// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// waitDelay bounds how long Wait blocks on worker I/O after the worker is
// killed.
const waitDelay = 5 * time.Second

// maxStderrInError caps the worker stderr copied into a LoadError.
const maxStderrInError = 2048

type (
	// ProcessConfig configures a ProcessLoader.
	ProcessConfig struct {
		// Executable is the worker binary. Defaults to os.Executable().
		Executable string
		// Args precede the worker flags. Defaults to ["internal", "inspect"].
		Args []string
		// Env is the worker environment. Nil inherits the current environment.
		Env []string
		// Inspector selects the worker's inspector.
		Inspector InspectorKind
		// Script is passed to the worker when Inspector is InspectorScript.
		Script string
		// Timeout bounds each worker. Zero means DefaultTimeout.
		Timeout time.Duration
		// Logger receives skipped-type warnings reported by workers.
		Logger *log.Logger
	}

	// ProcessLoader inspects every assembly in its own worker process. The
	// worker starts in the assembly's directory and exits once the result is
	// written, releasing everything it loaded.
	ProcessLoader struct {
		cfg         ProcessConfig
		outputLimit int
	}
)

// NewProcessLoader validates cfg and fills in defaults.
func NewProcessLoader(cfg ProcessConfig) (*ProcessLoader, error) {
	if cfg.Inspector == "" {
		cfg.Inspector = InspectorMetadata
	}
	if valid, errs := cfg.Inspector.IsValid(); !valid {
		return nil, errs[0]
	}
	if cfg.Inspector == InspectorScript && strings.TrimSpace(cfg.Script) == "" {
		return nil, ErrEmptyScript
	}
	if cfg.Executable == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to get helpaudit executable path: %w", err)
		}
		cfg.Executable = exe
	}
	if cfg.Args == nil {
		cfg.Args = []string{"internal", "inspect"}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}
	return &ProcessLoader{cfg: cfg, outputLimit: maxWorkerOutput}, nil
}

// Timeout returns the per-assembly deadline.
func (l *ProcessLoader) Timeout() time.Duration {
	return l.cfg.Timeout
}

// LoadCommands implements Loader.
func (l *ProcessLoader) LoadCommands(ctx context.Context, binaryPath string) ([]CommandMetadata, error) {
	dir, file, err := splitTarget(binaryPath)
	if err != nil {
		return nil, &LoadError{Path: binaryPath, Err: err}
	}

	workerCtx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(workerCtx, l.cfg.Executable, l.workerArgs(dir, file)...)
	cmd.Dir = dir
	cmd.Env = l.cfg.Env
	cmd.WaitDelay = waitDelay
	stdout, stderr := newCappedBuffer(l.outputLimit), newCappedBuffer(maxWorkerStderr)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	l.cfg.Logger.Debug("Starting worker", "assembly", binaryPath, "inspector", l.cfg.Inspector)
	start := time.Now()
	// Run waits for the worker on every path, including a context kill.
	runErr := cmd.Run()
	l.cfg.Logger.Debug("Worker exited", "assembly", binaryPath, "elapsed", time.Since(start), "error", runErr)

	if ctx.Err() != nil {
		return nil, &LoadError{Path: binaryPath, Err: ctx.Err()}
	}
	if errors.Is(workerCtx.Err(), context.DeadlineExceeded) {
		return nil, &LoadError{
			Path:    binaryPath,
			Timeout: true,
			Err:     fmt.Errorf("worker killed after %s", l.cfg.Timeout),
		}
	}

	if stdout.Truncated() {
		return nil, &LoadError{Path: binaryPath, Err: outputTooLarge("worker output", l.outputLimit)}
	}
	wr, decodeErr := decodeWorkerResult(stdout.Bytes())
	switch {
	case decodeErr == nil && wr.Error != "":
		return nil, &LoadError{Path: binaryPath, Err: errors.New(wr.Error)}
	case decodeErr == nil && runErr == nil:
		logWarnings(l.cfg.Logger, binaryPath, wr.Warnings)
		return wr.Commands, nil
	case runErr != nil:
		return nil, &LoadError{Path: binaryPath, Err: workerFailure(runErr, stderr.String())}
	default:
		return nil, &LoadError{Path: binaryPath, Err: fmt.Errorf("unreadable worker output: %w", decodeErr)}
	}
}

func (l *ProcessLoader) workerArgs(dir, file string) []string {
	args := slices.Clone(l.cfg.Args)
	args = append(args, "--inspector", l.cfg.Inspector.String(), "--dir", dir)
	if l.cfg.Inspector == InspectorScript {
		args = append(args, "--script", l.cfg.Script)
	}
	// Guard against assembly names that look like flags.
	return append(args, "--", file)
}

func workerFailure(runErr error, stderr string) error {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return fmt.Errorf("worker failed: %w", runErr)
	}
	if len(stderr) > maxStderrInError {
		stderr = stderr[:maxStderrInError] + "..."
	}
	return fmt.Errorf("worker failed: %w: %s", runErr, stderr)
}
