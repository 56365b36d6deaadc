package ics

import (
	"fmt"
	"strings"

	"github.com/JakeFAU/release-calendar/internal/catalog"
)

// UIDDomain is the right-hand side of generated event UIDs.
const UIDDomain = "release-calendar"

// EventUID returns a stable identifier for one release so calendar clients
// update events in place across downloads.
func EventUID(r catalog.MovieRelease) string {
	return fmt.Sprintf("%d-%s-%d-%s@%s",
		r.TMDBID,
		strings.ToUpper(r.CountryCode),
		int(r.ReleaseType),
		r.ReleaseDate.Format(dateLayout),
		UIDDomain,
	)
}

// ReleaseEvent converts a joined release row to an all-day event.
func ReleaseEvent(r catalog.MovieRelease) Event {
	return Event{
		UID:         EventUID(r),
		Summary:     r.Title + " (Release)",
		Description: r.Description,
		URL:         r.PosterURL,
		Date:        r.ReleaseDate,
	}
}

// FromReleases builds a calendar with one event per release, in order.
func FromReleases(name string, releases []catalog.MovieRelease) Calendar {
	cal := Calendar{Name: name, Events: make([]Event, 0, len(releases))}
	for _, r := range releases {
		cal.Events = append(cal.Events, ReleaseEvent(r))
	}
	return cal
}
