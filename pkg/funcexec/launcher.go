package funcexec

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/harun/shellm/internal/observability"
	"github.com/kballard/go-shellquote"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

const (
	defaultMaxOutputBytes = 64 * 1024
	defaultWaitDelay      = 2 * time.Second
)

// LauncherConfig controls how tag commands are started
type LauncherConfig struct {
	// Dir is the working directory of spawned commands; empty uses the current one
	Dir string

	// Env replaces the environment of spawned commands; nil inherits it
	Env []string

	// ExecLogPath is the execution log file; empty disables the log
	ExecLogPath string

	// MaxOutputBytes bounds the captured tail of combined stdout/stderr
	MaxOutputBytes int

	// WaitDelay bounds how long Wait lingers on pipes held open by grandchildren
	WaitDelay time.Duration
}

// Launcher turns a cmd attribute into a running process
type Launcher struct {
	cfg     LauncherConfig
	execLog *ExecLog
	stdout  io.Writer
	logger  zerolog.Logger
}

// NewLauncher creates a launcher. Announce lines go to stdout.
func NewLauncher(cfg LauncherConfig, stdout io.Writer, logger zerolog.Logger) *Launcher {
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = defaultMaxOutputBytes
	}
	if cfg.WaitDelay <= 0 {
		cfg.WaitDelay = defaultWaitDelay
	}
	if stdout == nil {
		stdout = io.Discard
	}
	return &Launcher{
		cfg:     cfg,
		execLog: NewExecLog(cfg.ExecLogPath),
		stdout:  stdout,
		logger:  logger,
	}
}

// SplitCommand splits a cmd attribute into words using POSIX shell quoting.
func SplitCommand(cmdline string) ([]string, error) {
	args, err := shellquote.Split(cmdline)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}
	return args, nil
}

// Launch records, announces and starts cmdline with a piped stdin.
func (l *Launcher) Launch(cmdline string) (*Invocation, error) {
	args, err := SplitCommand(cmdline)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrSpawnFailed, cmdline, err)
	}

	if err := l.execLog.Append(args); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSpawnFailed, err)
	}

	cwd := l.cfg.Dir
	if cwd == "" {
		if wd, err := os.Getwd(); err == nil {
			cwd = wd
		}
	}
	fmt.Fprintf(l.stdout, "%s$ %s\n", cwd, cmdline)

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = l.cfg.Dir
	cmd.Env = l.cfg.Env
	cmd.WaitDelay = l.cfg.WaitDelay

	output := newTailBuffer(l.cfg.MaxOutputBytes)
	cmd.Stdout = output
	cmd.Stderr = output

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: stdin pipe: %w", ErrSpawnFailed, err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %w", ErrSpawnFailed, err)
	}

	id, err := gonanoid.New(10)
	if err != nil {
		id = fmt.Sprintf("pid-%d", cmd.Process.Pid)
	}

	inv := &Invocation{
		ID:      id,
		Args:    args,
		Cmdline: cmdline,
		cmd:     cmd,
		stdin:   stdin,
		output:  output,
		cancel:  cancel,
		started: time.Now(),
	}

	observability.RecordInvocationStart()
	l.logger.Debug().
		Str("invocation_id", id).
		Strs("args", args).
		Int("pid", cmd.Process.Pid).
		Msg("Command started")

	return inv, nil
}
