package funcexec

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ExecLog is the append-only record of spawned commands. Each line is the JSON
// array of argument tokens of one command.
type ExecLog struct {
	path string
}

// NewExecLog returns a log writing to path. An empty path disables logging.
func NewExecLog(path string) *ExecLog {
	return &ExecLog{path: path}
}

// Path returns the log file path
func (l *ExecLog) Path() string {
	return l.path
}

// Append records args as one line, creating the file if needed.
func (l *ExecLog) Append(args []string) error {
	if l == nil || l.path == "" {
		return nil
	}

	var line bytes.Buffer
	enc := json.NewEncoder(&line)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(args); err != nil {
		return fmt.Errorf("failed to encode execution record: %w", err)
	}

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create execution log directory: %w", err)
		}
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open execution log: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(line.Bytes()); err != nil {
		return fmt.Errorf("failed to write execution log: %w", err)
	}
	return nil
}

// ReadExecLog returns the recorded argument lists, oldest first. A missing file
// yields no records.
func ReadExecLog(path string) ([][]string, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open execution log: %w", err)
	}
	defer file.Close()

	var records [][]string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var args []string
		if err := json.Unmarshal(line, &args); err != nil {
			return records, fmt.Errorf("execution log line %d: %w", lineNum, err)
		}
		records = append(records, args)
	}
	if err := scanner.Err(); err != nil {
		return records, fmt.Errorf("failed to read execution log: %w", err)
	}
	return records, nil
}
