package catalog

import (
	"errors"
	"time"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("catalog record not found")

// DateLayout is the calendar-date format used on the wire and in the API.
const DateLayout = "2006-01-02"

// ReleaseType is the upstream release-type code. The set is open: values
// outside the named constants are stored and served unchanged.
type ReleaseType int

// Release types documented by the upstream API.
const (
	ReleasePremiere          ReleaseType = 1
	ReleaseTheatricalLimited ReleaseType = 2
	ReleaseTheatrical        ReleaseType = 3
	ReleaseDigital           ReleaseType = 4
	ReleasePhysical          ReleaseType = 5
	ReleaseTV                ReleaseType = 6
)

// DefaultReleaseTypes is applied by ListReleases when no type filter is given.
var DefaultReleaseTypes = []ReleaseType{ReleaseTheatrical}

// String returns a human label, or "unknown" for codes without one.
func (t ReleaseType) String() string {
	switch t {
	case ReleasePremiere:
		return "premiere"
	case ReleaseTheatricalLimited:
		return "theatrical_limited"
	case ReleaseTheatrical:
		return "theatrical"
	case ReleaseDigital:
		return "digital"
	case ReleasePhysical:
		return "physical"
	case ReleaseTV:
		return "tv"
	default:
		return "unknown"
	}
}

// Movie mirrors a row in the movies table.
type Movie struct {
	ID          int64     `json:"movie_id"`
	TMDBID      int64     `json:"tmdb_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	PosterURL   string    `json:"poster_url"`
	LastUpdated time.Time `json:"last_updated"`
}

// NewMovie carries the fields written when a movie is first sighted.
type NewMovie struct {
	TMDBID      int64
	Title       string
	Description string
	PosterURL   string
}

// ReleaseDate mirrors a row in the release_dates table. The tuple
// (MovieID, CountryCode, Date, Type) is unique.
type ReleaseDate struct {
	ID          int64
	MovieID     int64
	CountryCode string
	Date        time.Time
	Type        ReleaseType
}

// MovieRelease is one joined movie + release-date row served by the API.
type MovieRelease struct {
	Movie
	CountryCode string
	ReleaseDate time.Time
	ReleaseType ReleaseType
}
