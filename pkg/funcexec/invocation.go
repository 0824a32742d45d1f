package funcexec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"
)

// Invocation is a spawned tag command together with its open stdin
type Invocation struct {
	ID      string
	Args    []string
	Cmdline string

	cmd      *exec.Cmd
	stdin    io.WriteCloser
	output   *tailBuffer
	cancel   context.CancelFunc
	started  time.Time
	written  int64
	writeErr error
	done     bool
}

// Result describes a finished invocation
type Result struct {
	ExitCode  int
	Duration  time.Duration
	Output    []byte
	Truncated bool
}

// Write forwards p to the process. After the first failure every later write
// returns the same error without touching the pipe.
func (inv *Invocation) Write(p []byte) (int, error) {
	if inv.writeErr != nil {
		return 0, inv.writeErr
	}
	n, err := inv.stdin.Write(p)
	inv.written += int64(n)
	if err != nil {
		inv.writeErr = fmt.Errorf("%w: %w", ErrWriteFailed, err)
		return n, inv.writeErr
	}
	return n, nil
}

// WriteErr returns the sticky write error, if any
func (inv *Invocation) WriteErr() error {
	return inv.writeErr
}

// Written returns the number of body bytes delivered to the process
func (inv *Invocation) Written() int64 {
	return inv.written
}

// CloseInput signals end of input to the process.
func (inv *Invocation) CloseInput() error {
	if err := inv.stdin.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrCloseFailed, err)
	}
	return nil
}

// Wait blocks until the process exits, ctx is done or timeout elapses. A zero
// timeout waits without a deadline. On ctx or deadline the process is killed
// and the error wraps ErrInvocationTimeout. A non-zero exit status is reported
// in the result, not as an error.
func (inv *Invocation) Wait(ctx context.Context, timeout time.Duration) (Result, error) {
	if inv.done {
		return inv.result(), nil
	}

	done := make(chan error, 1)
	go func() {
		done <- inv.cmd.Wait()
	}()

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	var waitErr, stopErr error
	select {
	case waitErr = <-done:
	case <-ctx.Done():
		inv.cancel()
		waitErr = <-done
		stopErr = fmt.Errorf("%w: %w", ErrInvocationTimeout, ctx.Err())
	case <-deadline:
		inv.cancel()
		waitErr = <-done
		stopErr = fmt.Errorf("%w after %s", ErrInvocationTimeout, timeout)
	}
	inv.cancel()
	inv.done = true

	// the kill lost the race against a normal exit
	if stopErr != nil && inv.cmd.ProcessState != nil && inv.cmd.ProcessState.Exited() {
		stopErr = nil
		waitErr = nil
	}

	res := inv.result()
	if stopErr != nil {
		return res, stopErr
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return res, waitErr
	}
	return res, nil
}

// Abort kills the process and reaps it.
func (inv *Invocation) Abort() Result {
	if inv.done {
		return inv.result()
	}
	_ = inv.stdin.Close()
	inv.cancel()
	_ = inv.cmd.Wait()
	inv.done = true
	return inv.result()
}

func (inv *Invocation) result() Result {
	exitCode := -1
	if inv.cmd.ProcessState != nil {
		exitCode = inv.cmd.ProcessState.ExitCode()
	}
	out, truncated := inv.output.Bytes()
	return Result{
		ExitCode:  exitCode,
		Duration:  time.Since(inv.started),
		Output:    out,
		Truncated: truncated,
	}
}

// tailBuffer keeps the last max bytes written to it and never fails a write,
// so a chatty child cannot block on its own output.
type tailBuffer struct {
	mu        sync.Mutex
	max       int
	buf       []byte
	truncated bool
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
		b.truncated = true
	}
	return len(p), nil
}

func (b *tailBuffer) Bytes() ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	return out, b.truncated
}
