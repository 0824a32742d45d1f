package funcexec

import "errors"

var (
	// ErrEmptyCommand is returned when the cmd attribute splits into no words
	ErrEmptyCommand = errors.New("empty command")

	// ErrSpawnFailed is returned when a command cannot be split or started
	ErrSpawnFailed = errors.New("spawn failed")

	// ErrWriteFailed is returned when the tag body cannot be written to the process
	ErrWriteFailed = errors.New("write to command failed")

	// ErrCloseFailed is returned when the process input cannot be closed
	ErrCloseFailed = errors.New("close command input failed")

	// ErrInvocationActive is returned when a launch is attempted while a process is still attached
	ErrInvocationActive = errors.New("invocation already active")

	// ErrInvocationTimeout is returned when a process does not exit before the wait deadline
	ErrInvocationTimeout = errors.New("invocation timed out")

	// ErrTruncatedInput is returned when the stream ends inside a tag
	ErrTruncatedInput = errors.New("truncated input")

	// ErrTagTooLong is returned when an opening tag exceeds the configured length
	ErrTagTooLong = errors.New("opening tag too long")

	// ErrScannerClosed is returned when input arrives after Close
	ErrScannerClosed = errors.New("scanner closed")
)
