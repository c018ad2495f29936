// Package dfstore loads the document-frequency relation and the corpus size
// from Postgres or from a tab-separated file, and caches the resulting
// table for the streaming worker.
package dfstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/record"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/scorer"
	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/errors"
)

// Source produces a validated table. corpusSize 0 asks the source for its
// own corpus size.
type Source interface {
	LoadTable(ctx context.Context, corpusSize int) (*scorer.Table, error)
}

// Store reads the corpus_stats and document_frequencies tables.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CorpusSize returns the recorded number of documents in the corpus.
func (s *Store) CorpusSize(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT document_count FROM corpus_stats WHERE id = 1`).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("corpus_stats is empty: %w", apperrors.ErrInvalidInput)
	}
	if err != nil {
		return 0, fmt.Errorf("querying corpus size: %w", err)
	}
	return n, nil
}

func (s *Store) Frequencies(ctx context.Context) ([]record.DocumentFrequency, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT term, document_count FROM document_frequencies ORDER BY term`)
	if err != nil {
		return nil, fmt.Errorf("querying document frequencies: %w", err)
	}
	defer rows.Close()

	var dfs []record.DocumentFrequency
	for rows.Next() {
		var df record.DocumentFrequency
		if err := rows.Scan(&df.Term, &df.Count); err != nil {
			return nil, fmt.Errorf("scanning document frequency: %w", err)
		}
		dfs = append(dfs, df)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document frequencies: %w", err)
	}
	return dfs, nil
}

func (s *Store) LoadTable(ctx context.Context, corpusSize int) (*scorer.Table, error) {
	if corpusSize == 0 {
		n, err := s.CorpusSize(ctx)
		if err != nil {
			return nil, err
		}
		corpusSize = n
	}
	dfs, err := s.Frequencies(ctx)
	if err != nil {
		return nil, err
	}
	return scorer.NewTable(corpusSize, dfs)
}

// Replace overwrites the stored relation in one transaction.
func (s *Store) Replace(ctx context.Context, corpusSize int, dfs []record.DocumentFrequency) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO corpus_stats (id, document_count, updated_at) VALUES (1, $1, NOW())
		 ON CONFLICT (id) DO UPDATE SET document_count = EXCLUDED.document_count, updated_at = NOW()`,
		corpusSize,
	); err != nil {
		return fmt.Errorf("storing corpus size: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM document_frequencies`); err != nil {
		return fmt.Errorf("clearing document frequencies: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO document_frequencies (term, document_count) VALUES ($1, $2)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()
	for _, df := range dfs {
		if _, err := stmt.ExecContext(ctx, df.Term, df.Count); err != nil {
			return fmt.Errorf("inserting term %q: %w", df.Term, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// File reads the relation from a tab-separated file.
type File struct {
	Path string
}

func (f File) LoadTable(_ context.Context, corpusSize int) (*scorer.Table, error) {
	return scorer.LoadTable(f.Path, corpusSize)
}
