package postgres

import (
	"context"
	"fmt"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS movies (
	id BIGSERIAL PRIMARY KEY,
	tmdb_id BIGINT NOT NULL UNIQUE,
	title VARCHAR(255) NOT NULL,
	description TEXT,
	poster_url VARCHAR(255),
	last_updated TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS release_dates (
	id BIGSERIAL PRIMARY KEY,
	movie_id BIGINT NOT NULL REFERENCES movies(id),
	country_code VARCHAR(2) NOT NULL,
	release_date DATE NOT NULL,
	release_type INTEGER NOT NULL,
	CONSTRAINT release_dates_unique UNIQUE (movie_id, country_code, release_date, release_type)
);

CREATE INDEX IF NOT EXISTS release_dates_country_date_idx
	ON release_dates (country_code, release_date);
`

// Migrate creates the movies and release_dates tables when absent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
