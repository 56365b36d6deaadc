package catalog

import "context"

// Store is the write side used by ingestion. Both operations are idempotent.
type Store interface {
	// UpsertMovie returns the existing movie for m.TMDBID or inserts a new one.
	// The bool reports whether a row was inserted. Existing rows are returned
	// as stored; title, description and poster are never refreshed.
	UpsertMovie(ctx context.Context, m NewMovie) (Movie, bool, error)
	// UpsertReleaseDate inserts rd unless a row with the same movie, country,
	// date and type exists. The bool reports whether a row was inserted.
	UpsertReleaseDate(ctx context.Context, rd ReleaseDate) (bool, error)
}

// TxStore is a Store scoped to an open transaction.
type TxStore interface {
	Store
	// Savepoint runs fn inside a nested savepoint. A non-nil error from fn
	// rolls back only the savepoint; the enclosing transaction stays usable.
	Savepoint(ctx context.Context, fn func(Store) error) error
}

// Reader serves the joined read model.
type Reader interface {
	ListReleases(ctx context.Context, q ReleaseQuery) ([]MovieRelease, error)
}

// Repository is the full persistence surface.
type Repository interface {
	Store
	Reader
	// WithinTx runs fn in one transaction, committing when fn returns nil.
	WithinTx(ctx context.Context, fn func(TxStore) error) error
	Ping(ctx context.Context) error
	Close()
}
