// Package storage persists accepted listings in PostgreSQL.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/aluiziolira/jbscrape/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS listings (
	source      VARCHAR(16)  NOT NULL,
	item_id     TEXT         NOT NULL,
	url         TEXT         NOT NULL DEFAULT '',
	title       TEXT         NOT NULL,
	ios_version VARCHAR(32)  NOT NULL,
	price       TEXT         NOT NULL DEFAULT '',
	scraped_at  TIMESTAMPTZ  NOT NULL,
	updated_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
	PRIMARY KEY (source, item_id)
);

CREATE INDEX IF NOT EXISTS idx_listings_ios_version ON listings(ios_version);
`

const listingColumns = 7

// PostgresStore upserts listings keyed by (source, item_id).
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to dsn and creates the schema if needed.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	s := &PostgresStore{db: db}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return s, nil
}

// Store implements pipeline.ListingSink. Listings without an identifier
// cannot be keyed and are skipped.
func (s *PostgresStore) Store(ctx context.Context, listings []*models.Listing) error {
	query, args := upsertStatement(listings)
	if query == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("postgres: upsert %d listings: %w", len(args)/listingColumns, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func upsertStatement(listings []*models.Listing) (string, []any) {
	var (
		rows []string
		args []any
	)
	seen := make(map[string]bool, len(listings))
	for _, l := range listings {
		if l == nil || l.Identifier == "" {
			continue
		}
		// ON CONFLICT cannot touch the same row twice in one statement.
		key := string(l.Source) + "\x00" + l.Identifier
		if seen[key] {
			continue
		}
		seen[key] = true

		n := len(args)
		placeholders := make([]string, listingColumns)
		for i := range placeholders {
			placeholders[i] = fmt.Sprintf("$%d", n+i+1)
		}
		rows = append(rows, "("+strings.Join(placeholders, ", ")+")")
		args = append(args, string(l.Source), l.Identifier, l.URL, l.Title, l.IOSVersion, l.PriceText, l.ScrapedAt)
	}
	if len(rows) == 0 {
		return "", nil
	}

	query := `INSERT INTO listings (source, item_id, url, title, ios_version, price, scraped_at) VALUES ` +
		strings.Join(rows, ", ") +
		` ON CONFLICT (source, item_id) DO UPDATE SET
	url = EXCLUDED.url,
	title = EXCLUDED.title,
	ios_version = EXCLUDED.ios_version,
	price = EXCLUDED.price,
	scraped_at = EXCLUDED.scraped_at,
	updated_at = NOW()`
	return query, args
}
