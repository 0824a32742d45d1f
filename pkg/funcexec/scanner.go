package funcexec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/harun/shellm/internal/observability"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// State is the scanner mode
type State int

const (
	// StateText discards plain text while waiting for '<'
	StateText State = iota
	// StateOpenDetect matches the bytes following '<' against "<function"
	StateOpenDetect
	// StateTagAttrs collects the opening tag up to '>'
	StateTagAttrs
	// StateStreaming forwards the tag body until "</function>"
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateText:
		return "text"
	case StateOpenDetect:
		return "open_detect"
	case StateTagAttrs:
		return "tag_attrs"
	case StateStreaming:
		return "streaming"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// EOFPolicy decides what Close does when the stream ends inside a tag
type EOFPolicy string

const (
	// EOFClose treats end of stream as an implicit closing tag
	EOFClose EOFPolicy = "close"
	// EOFFail kills the running command and reports ErrTruncatedInput
	EOFFail EOFPolicy = "fail"
)

const defaultMaxTagLength = 4096

// Options configures a Scanner
type Options struct {
	// Launch configures spawned commands
	Launch LauncherConfig

	// Stdout receives the "<cwd>$ <cmd>" line of every launch
	Stdout io.Writer

	// Stderr receives executor error lines
	Stderr io.Writer

	// Logger defaults to the global zerolog logger
	Logger *zerolog.Logger

	// MaxTagLength bounds the opening tag text; 0 uses the default, negative disables
	MaxTagLength int

	// WaitTimeout bounds the wait for a command after its closing tag; 0 waits forever
	WaitTimeout time.Duration

	// OnEOF selects the end-of-stream behavior inside a tag; empty means EOFClose
	OnEOF EOFPolicy
}

// Stats counts scanner activity
type Stats struct {
	Invocations    int
	SpawnFailures  int
	WriteFailures  int
	Timeouts       int
	BytesForwarded int64
}

// Scanner is the tag-triggered executor. It is not safe for concurrent use.
type Scanner struct {
	opts     Options
	launcher *Launcher
	logger   zerolog.Logger
	stderr   io.Writer

	state   State
	open    lookback
	close   lookback
	tag     []byte
	pending []byte
	scratch []byte
	active  *Invocation
	closed  bool
	stats   Stats
}

// New creates a scanner in StateText.
func New(opts Options) *Scanner {
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	if opts.MaxTagLength == 0 {
		opts.MaxTagLength = defaultMaxTagLength
	}
	if opts.OnEOF == "" {
		opts.OnEOF = EOFClose
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	return &Scanner{
		opts:     opts,
		launcher: NewLauncher(opts.Launch, opts.Stdout, logger),
		logger:   logger.With().Str("component", "funcexec").Logger(),
		stderr:   stderr,
		state:    StateText,
		open:     newLookback(openMarker),
		close:    newLookback(closeMarker),
	}
}

// State returns the current scan state
func (s *Scanner) State() State {
	return s.state
}

// Stats returns a snapshot of the counters
func (s *Scanner) Stats() Stats {
	return s.stats
}

// Active returns the running invocation, or nil
func (s *Scanner) Active() *Invocation {
	return s.active
}

// ProcessChunk scans p. Body bytes that are known not to belong to the closing
// marker are written to the running command before ProcessChunk returns. The
// only errors returned are ctx cancellation and use after Close; executor
// failures are reported on Stderr and scanning goes on.
func (s *Scanner) ProcessChunk(ctx context.Context, p []byte) error {
	if s.closed {
		return ErrScannerClosed
	}

	for _, c := range p {
		switch s.state {
		case StateText, StateOpenDetect:
			var matched bool
			s.scratch, matched = s.open.push(s.scratch[:0], c)
			switch {
			case matched:
				s.tag = s.tag[:0]
				s.state = StateTagAttrs
			case s.open.pending() > 0:
				s.state = StateOpenDetect
			default:
				s.state = StateText
			}

		case StateTagAttrs:
			s.tag = append(s.tag, c)
			if c == '>' {
				s.openTag()
				continue
			}
			if s.opts.MaxTagLength > 0 && len(s.tag) > s.opts.MaxTagLength {
				s.report("Error parsing tag", "tag", fmt.Errorf("%w (%d bytes)", ErrTagTooLong, len(s.tag)))
				s.tag = s.tag[:0]
				s.state = StateText
			}

		case StateStreaming:
			var matched bool
			s.pending, matched = s.close.push(s.pending, c)
			if matched {
				if err := s.finish(ctx); err != nil {
					return err
				}
			}
		}
	}

	s.flush()
	return nil
}

// Write feeds p to the scanner so it can be used with io.Copy and io.MultiWriter.
func (s *Scanner) Write(p []byte) (int, error) {
	if err := s.ProcessChunk(context.Background(), p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// WriterContext is Write bound to ctx, for use when the stream is cancellable.
func (s *Scanner) WriterContext(ctx context.Context) io.Writer {
	return &ctxWriter{ctx: ctx, s: s}
}

type ctxWriter struct {
	ctx context.Context
	s   *Scanner
}

func (w *ctxWriter) Write(p []byte) (int, error) {
	if err := w.s.ProcessChunk(w.ctx, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Run scans r until EOF and then closes the scanner.
func (s *Scanner) Run(ctx context.Context, r io.Reader) error {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if perr := s.ProcessChunk(ctx, buf[:n]); perr != nil {
				s.abort()
				return perr
			}
		}
		if errors.Is(err, io.EOF) {
			return s.Close(ctx)
		}
		if err != nil {
			s.abort()
			return fmt.Errorf("failed to read input: %w", err)
		}
		if ctx.Err() != nil {
			s.abort()
			return ctx.Err()
		}
	}
}

// Close ends the stream. Inside a tag body it either completes the invocation
// as if the closing marker had arrived (EOFClose) or kills it and returns
// ErrTruncatedInput (EOFFail). Close is idempotent.
func (s *Scanner) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true

	switch s.state {
	case StateTagAttrs:
		s.tag = s.tag[:0]
		s.state = StateText
		if s.opts.OnEOF == EOFFail {
			return fmt.Errorf("%w: stream ended inside opening tag", ErrTruncatedInput)
		}
		s.logger.Warn().Msg("Stream ended inside opening tag, dropping it")
		return nil

	case StateStreaming:
		if s.opts.OnEOF == EOFFail {
			s.abort()
			return fmt.Errorf("%w: stream ended before %s", ErrTruncatedInput, closeMarker)
		}
		s.logger.Warn().Msg("Stream ended inside tag body, closing command input")
		s.pending = s.close.drain(s.pending)
		return s.finish(ctx)

	default:
		s.open.reset()
		s.state = StateText
		return nil
	}
}

// openTag handles a complete opening tag.
func (s *Scanner) openTag() {
	attrs := ParseAttributes(string(s.tag))
	s.tag = s.tag[:0]
	s.state = StateStreaming

	cmdline := attrs["cmd"]
	if strings.TrimSpace(cmdline) == "" {
		s.logger.Debug().Msg("Function tag without cmd, discarding body")
		return
	}

	if s.active != nil {
		s.report("Error executing command", "spawn", fmt.Errorf("%w: %s", ErrInvocationActive, s.active.ID))
		return
	}

	inv, err := s.launcher.Launch(cmdline)
	if err != nil {
		s.stats.SpawnFailures++
		observability.RecordSpawnFailure()
		fmt.Fprintf(s.stderr, "Error executing command: %v\n", err)
		s.logger.Warn().Err(err).Str("cmd", cmdline).Msg("Command spawn failed")
		return
	}

	s.stats.Invocations++
	s.active = inv
}

// flush writes confirmed body bytes to the running command.
func (s *Scanner) flush() {
	if len(s.pending) == 0 {
		return
	}
	data := s.pending
	s.pending = s.pending[:0]

	inv := s.active
	if inv == nil || inv.WriteErr() != nil {
		return
	}

	n, err := inv.Write(data)
	s.stats.BytesForwarded += int64(n)
	observability.RecordBytesForwarded(n)
	if err != nil {
		s.stats.WriteFailures++
		s.report("Error writing to command", "write", err)
	}
}

// finish runs the close sequence: flush, close stdin, wait, back to text.
func (s *Scanner) finish(ctx context.Context) error {
	s.flush()
	s.close.reset()

	inv := s.active
	s.active = nil
	if inv == nil {
		s.state = StateText
		return nil
	}

	if err := inv.CloseInput(); err != nil {
		s.report("Error closing command writer", "close", err)
	}

	res, err := inv.Wait(ctx, s.opts.WaitTimeout)
	s.state = StateText
	observability.RecordInvocationEnd(res.Duration, err == nil && res.ExitCode == 0)

	event := s.logger.Debug()
	if res.ExitCode != 0 {
		event = s.logger.Info()
	}
	event.Str("invocation_id", inv.ID).
		Strs("args", inv.Args).
		Int("exit_code", res.ExitCode).
		Int64("bytes_in", inv.Written()).
		Dur("duration", res.Duration).
		Bool("output_truncated", res.Truncated).
		Str("output_tail", string(res.Output)).
		Msg("Command finished")

	if err != nil {
		if errors.Is(err, ErrInvocationTimeout) {
			s.stats.Timeouts++
		}
		s.report("Error waiting for command", "wait", err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return nil
}

// abort kills a running command without waiting for more input.
func (s *Scanner) abort() {
	s.pending = s.pending[:0]
	s.close.reset()
	if s.active == nil {
		return
	}
	inv := s.active
	s.active = nil
	res := inv.Abort()
	observability.RecordInvocationEnd(res.Duration, false)
	s.logger.Warn().Str("invocation_id", inv.ID).Msg("Command aborted")
	s.state = StateText
}

func (s *Scanner) report(prefix, kind string, err error) {
	observability.RecordExecError(kind)
	fmt.Fprintf(s.stderr, "%s: %v\n", prefix, err)
	s.logger.Warn().Err(err).Str("kind", kind).Msg(prefix)
}
