package memory

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/google/uuid"
	"github.com/harun/shellm/internal/observability"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

func init() {
	sqlite_vec.Auto()
}

// Entry is one memorized sentence
type Entry struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Result is a recalled sentence with its cosine similarity to the query
type Result struct {
	Entry
	Score float64 `json:"score"`
}

// Config holds memory store configuration
type Config struct {
	DBPath            string
	Logger            zerolog.Logger
	EmbeddingProvider EmbeddingProvider
}

// Store keeps sentences and their embeddings in sqlite with a sqlite-vec index
type Store struct {
	db        *sql.DB
	logger    zerolog.Logger
	provider  EmbeddingProvider
	mu        sync.Mutex
	dimension int
}

// NewStore opens or creates the database at cfg.DBPath
func NewStore(cfg Config) (*Store, error) {
	observability.EnsureRegistered()

	if cfg.DBPath == "" {
		return nil, errors.New("database path is required")
	}
	if cfg.EmbeddingProvider == nil {
		return nil, errors.New("embedding provider is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection keeps the lazily created vec0 table visible to every query
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{
		db:       db,
		logger:   cfg.Logger.With().Str("component", "memory").Logger(),
		provider: cfg.EmbeddingProvider,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if n, err := s.Count(context.Background()); err == nil {
		observability.SetMemoryEntries(n)
	}

	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sentences (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS embedding_cache (
			content_hash TEXT PRIMARY KEY,
			embedding TEXT NOT NULL,
			dimension INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = 'dimension'").Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return err
	}

	dim, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid stored dimension %q: %w", value, err)
	}
	return s.ensureVectorTable(s.db, dim)
}

// ensureVectorTable creates the vec0 table sized to dim and records dim.
func (s *Store) ensureVectorTable(exec interface {
	Exec(string, ...any) (sql.Result, error)
}, dim int) error {
	if s.dimension != 0 {
		if s.dimension != dim {
			return fmt.Errorf("%w: store uses %d, got %d", ErrDimensionMismatch, s.dimension, dim)
		}
		return nil
	}

	vectorSchema := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS sentence_embeddings USING vec0(
			sentence_id TEXT PRIMARY KEY,
			embedding float[%d] distance_metric=cosine
		);
	`, dim)
	if _, err := exec.Exec(vectorSchema); err != nil {
		return fmt.Errorf("failed to create vector table: %w", err)
	}
	if _, err := exec.Exec("INSERT OR REPLACE INTO metadata (key, value) VALUES ('dimension', ?)", strconv.Itoa(dim)); err != nil {
		return fmt.Errorf("failed to record dimension: %w", err)
	}

	s.dimension = dim
	return nil
}

// Memorize splits text into sentences, embeds and stores each one.
func (s *Store) Memorize(ctx context.Context, text string) ([]Entry, error) {
	start := time.Now()
	defer func() {
		observability.RecordMemoryWrite(time.Since(start))
	}()

	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil, ErrNothingToMemorize
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	embeddings, err := s.embed(ctx, sentences)
	if err != nil {
		return nil, err
	}

	dim := len(embeddings[0])
	for i, vec := range embeddings {
		if len(vec) != dim || dim == 0 {
			return nil, fmt.Errorf("%w: sentence %d has %d dimensions, expected %d", ErrDimensionMismatch, i, len(vec), dim)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	previousDim := s.dimension
	if err := s.ensureVectorTable(tx, dim); err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(sentences))
	now := time.Now().UTC()
	for i, sentence := range sentences {
		entry := Entry{
			ID:        uuid.NewString(),
			Text:      sentence,
			CreatedAt: now,
		}

		vecJSON, err := json.Marshal(embeddings[i])
		if err != nil {
			s.dimension = previousDim
			return nil, fmt.Errorf("failed to marshal embedding: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO sentences (id, text, created_at) VALUES (?, ?, ?)",
			entry.ID, entry.Text, entry.CreatedAt.Format(time.RFC3339Nano),
		); err != nil {
			s.dimension = previousDim
			return nil, fmt.Errorf("failed to store sentence: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO sentence_embeddings (sentence_id, embedding) VALUES (?, ?)",
			entry.ID, string(vecJSON),
		); err != nil {
			s.dimension = previousDim
			return nil, fmt.Errorf("failed to store embedding: %w", err)
		}

		entries = append(entries, entry)
	}

	if err := tx.Commit(); err != nil {
		s.dimension = previousDim
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	if n, err := s.countLocked(ctx); err == nil {
		observability.SetMemoryEntries(n)
	}
	s.logger.Info().Int("sentences", len(entries)).Int("dimension", dim).Msg("Memorized text")

	return entries, nil
}

// Recall returns up to limit stored sentences nearest to query
func (s *Store) Recall(ctx context.Context, query string, limit int) ([]Result, error) {
	start := time.Now()
	defer func() {
		observability.RecordMemorySearch(time.Since(start))
	}()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = 5
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimension == 0 {
		return []Result{}, nil
	}

	vec, err := s.provider.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}
	if len(vec) != s.dimension {
		return nil, fmt.Errorf("%w: store uses %d, query has %d", ErrDimensionMismatch, s.dimension, len(vec))
	}

	vecJSON, err := json.Marshal(vec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			s.id,
			s.text,
			s.created_at,
			vec_distance_cosine(e.embedding, ?) AS distance
		FROM sentence_embeddings e
		JOIN sentences s ON s.id = e.sentence_id
		ORDER BY distance ASC
		LIMIT ?
	`, string(vecJSON), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	defer rows.Close()

	results := []Result{}
	for rows.Next() {
		var r Result
		var createdAt string
		var distance float64
		if err := rows.Scan(&r.ID, &r.Text, &createdAt, &distance); err != nil {
			return nil, err
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		r.Score = 1.0 - distance
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.logger.Debug().Int("results", len(results)).Msg("Recall completed")
	return results, nil
}

// Count returns the number of stored sentences
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countLocked(ctx)
}

func (s *Store) countLocked(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sentences").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// embed returns vectors for texts, serving repeats from the embedding cache.
func (s *Store) embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	hashes := make([]string, len(texts))
	var missing []string
	var missingIdx []int

	for i, text := range texts {
		sum := sha256.Sum256([]byte(s.provider.Model() + "\x00" + text))
		hashes[i] = hex.EncodeToString(sum[:])

		var cached string
		err := s.db.QueryRowContext(ctx, "SELECT embedding FROM embedding_cache WHERE content_hash = ?", hashes[i]).Scan(&cached)
		if err == nil {
			var vec []float32
			if err := json.Unmarshal([]byte(cached), &vec); err == nil {
				out[i] = vec
				continue
			}
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) > 0 {
		vecs, err := s.provider.GenerateEmbeddings(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("failed to generate embeddings: %w", err)
		}
		if len(vecs) != len(missing) {
			return nil, fmt.Errorf("%w: sent %d texts, got %d vectors", ErrEmbeddingCount, len(missing), len(vecs))
		}
		for j, vec := range vecs {
			i := missingIdx[j]
			out[i] = vec

			vecJSON, err := json.Marshal(vec)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal embedding: %w", err)
			}
			if _, err := s.db.ExecContext(ctx,
				"INSERT OR REPLACE INTO embedding_cache (content_hash, embedding, dimension, created_at) VALUES (?, ?, ?, ?)",
				hashes[i], string(vecJSON), len(vec), time.Now().Unix(),
			); err != nil {
				s.logger.Warn().Err(err).Msg("Failed to cache embedding")
			}
		}
	}

	s.logger.Debug().
		Int("texts", len(texts)).
		Int("cache_hits", len(texts)-len(missing)).
		Msg("Embeddings ready")

	return out, nil
}
