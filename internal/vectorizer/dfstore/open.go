package dfstore

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/postgres"
)

// Open returns the Source selected by cfg.Pipeline.DFSource together with
// the Postgres client it uses, which is nil for the file source.
func Open(ctx context.Context, cfg *config.Config) (Source, *postgres.Client, error) {
	switch cfg.Pipeline.DFSource {
	case "file":
		if cfg.Pipeline.DFFile == "" {
			return nil, nil, fmt.Errorf("pipeline.dfFile is required for the file source")
		}
		return File{Path: cfg.Pipeline.DFFile}, nil, nil
	case "postgres":
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("opening document frequency store: %w", err)
		}
		return NewStore(db.DB), db, nil
	default:
		return nil, nil, fmt.Errorf("unknown document frequency source %q", cfg.Pipeline.DFSource)
	}
}
