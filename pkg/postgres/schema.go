package postgres

import (
	"context"
	"fmt"
)

// Schema holds the tables the vectorizer reads and writes. The document
// frequency relation is produced upstream; the worker only records per
// document status.
const Schema = `
CREATE TABLE IF NOT EXISTS corpus_stats (
	id             SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
	document_count INTEGER  NOT NULL CHECK (document_count > 0),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS document_frequencies (
	term           TEXT    PRIMARY KEY,
	document_count INTEGER NOT NULL CHECK (document_count > 0)
);

CREATE TABLE IF NOT EXISTS document_vectors (
	doc_id        INTEGER PRIMARY KEY,
	status        TEXT    NOT NULL,
	entries       INTEGER NOT NULL DEFAULT 0,
	payload_bytes INTEGER NOT NULL DEFAULT 0,
	error         TEXT,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Migrate creates any missing tables.
func (c *Client) Migrate(ctx context.Context) error {
	if _, err := c.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}
