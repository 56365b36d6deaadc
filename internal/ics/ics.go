// Package ics writes RFC 5545 calendars of all-day release events.
package ics

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
)

const (
	// MaxLineOctets is the folding limit for content lines, excluding CRLF.
	MaxLineOctets = 75
	// ContentType is the media type served for calendars.
	ContentType = "text/calendar; charset=utf-8"
	// DefaultProdID identifies the producing application.
	DefaultProdID = "-//release-calendar//movie releases//EN"

	crlf       = "\r\n"
	dateLayout = "20060102"
)

// Event is a single all-day calendar entry.
type Event struct {
	UID         string
	Summary     string
	Description string
	URL         string
	Date        time.Time
}

// Calendar is a VCALENDAR with its events in order.
type Calendar struct {
	ProdID string
	Name   string
	// Stamp is written as DTSTAMP on every event. Zero means time.Now.
	Stamp  time.Time
	Events []Event
}

// WriteTo serializes the calendar with CRLF line endings, folded at
// MaxLineOctets.
func (c Calendar) WriteTo(w io.Writer) (int64, error) {
	prodID := c.ProdID
	if prodID == "" {
		prodID = DefaultProdID
	}
	stamp := c.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetProductId(cleanText(prodID))
	cal.SetCalscale("GREGORIAN")
	cal.SetMethod(ical.MethodPublish)
	if c.Name != "" {
		cal.SetXWRCalName(cleanText(c.Name))
	}
	for _, ev := range c.Events {
		day := time.Date(ev.Date.Year(), ev.Date.Month(), ev.Date.Day(), 0, 0, 0, 0, time.UTC)
		vev := cal.AddEvent(cleanText(ev.UID))
		vev.SetDtStampTime(stamp)
		vev.SetAllDayStartAt(day)
		vev.SetAllDayEndAt(day.AddDate(0, 0, 1))
		vev.SetSummary(cleanText(ev.Summary))
		if ev.Description != "" {
			vev.SetDescription(cleanText(ev.Description))
		}
		if ev.URL != "" {
			vev.SetURL(cleanText(ev.URL))
		}
		vev.SetProperty(ical.ComponentPropertyTransp, "TRANSPARENT")
	}

	cw := &countingWriter{w: w}
	if err := cal.SerializeTo(cw, ical.WithNewLineWindows, ical.WithLineLength(MaxLineOctets)); err != nil {
		return cw.n, fmt.Errorf("write calendar: %w", err)
	}
	if cw.err != nil {
		return cw.n, fmt.Errorf("write calendar: %w", cw.err)
	}
	return cw.n, nil
}

// Bytes renders the calendar into memory.
func (c Calendar) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := c.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unfold joins folded content lines: every CRLF followed by a space or tab
// is removed.
func Unfold(text string) string {
	text = strings.ReplaceAll(text, crlf+" ", "")
	return strings.ReplaceAll(text, crlf+"\t", "")
}

var newlines = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// cleanText replaces each run of invalid UTF-8 with U+FFFD and normalizes
// line breaks to \n, which the serializer escapes. Folding counts runes, so it
// must only see valid UTF-8.
func cleanText(s string) string {
	return newlines.Replace(strings.ToValidUTF8(s, "\uFFFD"))
}

// countingWriter records bytes written and keeps the first error; the
// serializer ignores some write errors.
type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	if cw.err != nil {
		return 0, cw.err
	}
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	cw.err = err
	return n, err
}
