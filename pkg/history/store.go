package history

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/harun/shellm/internal/observability"
	"github.com/rs/zerolog/log"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrInvalidMessage is returned for messages without a role or content
var ErrInvalidMessage = errors.New("invalid message")

// Message is a single conversation turn
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is a JSONL-backed chat history
type Store struct {
	path        string
	maxMessages int
	mu          sync.Mutex
}

// New creates a store at path. maxMessages <= 0 keeps everything.
func New(path string, maxMessages int) (*Store, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, ".shellm", "history.jsonl")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	return &Store{
		path:        path,
		maxMessages: maxMessages,
	}, nil
}

// Path returns the history file path
func (s *Store) Path() string {
	return s.path
}

// Append writes msgs in order, then trims the file to the message limit.
func (s *Store) Append(msgs ...Message) error {
	start := time.Now()
	defer func() {
		observability.RecordHistorySave(time.Since(start))
	}()

	for i := range msgs {
		if msgs[i].Role == "" {
			return fmt.Errorf("%w: role cannot be empty", ErrInvalidMessage)
		}
		if msgs[i].Content == "" {
			return fmt.Errorf("%w: content cannot be empty", ErrInvalidMessage)
		}
		if msgs[i].Timestamp.IsZero() {
			msgs[i].Timestamp = time.Now()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open history file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	for _, msg := range msgs {
		if err := enc.Encode(msg); err != nil {
			return fmt.Errorf("failed to write message: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}

	log.Debug().Str("path", s.path).Int("messages", len(msgs)).Msg("History appended")

	if s.maxMessages > 0 {
		return s.trimLocked()
	}
	return nil
}

// Load returns every message in file order. A missing file is an empty history.
func (s *Store) Load() ([]Message, error) {
	start := time.Now()
	defer func() {
		observability.RecordHistoryLoad(time.Since(start))
	}()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// Tail returns the newest n messages; n <= 0 returns all of them.
func (s *Store) Tail(n int) ([]Message, error) {
	msgs, err := s.Load()
	if err != nil {
		return nil, err
	}
	if n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return msgs, nil
}

// Clear removes the history file
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove history file: %w", err)
	}
	log.Info().Str("path", s.path).Msg("History cleared")
	return nil
}

func (s *Store) loadLocked() ([]Message, error) {
	file, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return []Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open history file: %w", err)
	}
	defer file.Close()

	msgs := []Message{}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			log.Warn().Str("path", s.path).Int("line", lineNum).Err(err).Msg("Failed to parse history line, skipping")
			continue
		}
		if msg.Role == "" || msg.Content == "" {
			log.Warn().Str("path", s.path).Int("line", lineNum).Msg("Invalid history entry, skipping")
			continue
		}
		msgs = append(msgs, msg)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}
	return msgs, nil
}

// trimLocked rewrites the file with the newest maxMessages entries through a
// temp file and rename.
func (s *Store) trimLocked() error {
	msgs, err := s.loadLocked()
	if err != nil {
		return err
	}
	if len(msgs) <= s.maxMessages {
		return nil
	}
	dropped := len(msgs) - s.maxMessages
	msgs = msgs[dropped:]

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".history-*.jsonl")
	if err != nil {
		return fmt.Errorf("failed to create temp history file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	for _, msg := range msgs {
		if err := enc.Encode(msg); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write message: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp history file: %w", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		return fmt.Errorf("failed to chmod history file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace history file: %w", err)
	}

	log.Debug().Str("path", s.path).Int("dropped", dropped).Msg("History trimmed")
	return nil
}
