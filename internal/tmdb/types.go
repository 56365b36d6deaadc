package tmdb

// MovieSummary is one entry of a discover page.
type MovieSummary struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Overview   string `json:"overview"`
	PosterPath string `json:"poster_path"`
}

// DiscoverPage is the decoded body of /discover/movie.
type DiscoverPage struct {
	Page         int            `json:"page"`
	TotalPages   int            `json:"total_pages"`
	TotalResults int            `json:"total_results"`
	Results      []MovieSummary `json:"results"`
}

// ReleaseDateEntry is a single dated release within a country.
type ReleaseDateEntry struct {
	ReleaseDate   string `json:"release_date"`
	Type          int    `json:"type"`
	Certification string `json:"certification"`
	Note          string `json:"note"`
}

// CountryReleases groups release dates for one ISO 3166-1 country.
type CountryReleases struct {
	CountryCode  string             `json:"iso_3166_1"`
	ReleaseDates []ReleaseDateEntry `json:"release_dates"`
}

type releaseDatesResponse struct {
	ID      int64             `json:"id"`
	Results []CountryReleases `json:"results"`
}

// PosterURL builds the w500 poster URL for a poster path. Empty paths yield "".
func PosterURL(posterPath string) string {
	if posterPath == "" {
		return ""
	}
	return ImageBaseURL + "/" + PosterSize + posterPath
}
