package vandra

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"k8s.io/klog/v2"
)

// TrackWindow is a summarized track: its route and the time it was recorded over.
type TrackWindow struct {
	Title  string
	Slug   string
	Source string

	// Points are in the order they were recorded.
	Points []Point

	// Start and End are the times of the first and last point, in UTC.
	Start time.Time
	End   time.Time

	// Centroid is the arithmetic mean of all positions. It is not a geodesic centroid.
	Centroid Point

	// Distance is in meters.
	Distance float64
	Duration time.Duration
}

// unsafeSlugChars are replaced in slugs, along with whitespace.
const unsafeSlugChars = `/\<>:"|?*#%`

// Slugify returns a filesystem and URL safe form of a title.
func Slugify(title string) string {
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || strings.ContainsRune(unsafeSlugChars, r) {
			return '_'
		}
		return r
	}, title)

	// never ".", ".." or hidden
	if strings.HasPrefix(s, ".") {
		s = "_" + s[1:]
	}
	return s
}

// SummarizeTrack reads the first segment of the first track in path.
func SummarizeTrack(path string, tr TrackReader) (*TrackWindow, error) {
	tf, err := tr.ReadTrack(path)
	if err != nil {
		return nil, &TrackError{Path: path, Err: err}
	}

	if len(tf.Tracks) == 0 {
		return nil, &TrackError{Path: path, Err: ErrNoTrack}
	}
	t := tf.Tracks[0]

	if len(t.Segments) == 0 {
		return nil, &TrackError{Path: path, Err: ErrNoSegment}
	}
	ps := t.Segments[0]

	if len(ps) == 0 {
		return nil, &TrackError{Path: path, Err: ErrNoPoints}
	}

	first, last := ps[0], ps[len(ps)-1]
	if first.Time.IsZero() {
		return nil, &TrackError{Path: path, Err: fmt.Errorf("first point: %w", ErrNoTimestamp)}
	}
	if last.Time.IsZero() {
		return nil, &TrackError{Path: path, Err: fmt.Errorf("last point: %w", ErrNoTimestamp)}
	}
	if last.Time.Before(first.Time) {
		return nil, &TrackError{Path: path, Err: ErrInvertedWindow}
	}

	title := t.Name
	if title == "" {
		title = tf.Name
	}
	if title == "" {
		base := filepath.Base(path)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}

	var lon, lat float64
	for _, p := range ps {
		lon += p.Lon
		lat += p.Lat
	}
	n := float64(len(ps))

	w := &TrackWindow{
		Title:    title,
		Slug:     Slugify(title),
		Source:   path,
		Points:   ps,
		Start:    first.Time.UTC(),
		End:      last.Time.UTC(),
		Centroid: Point{Lon: lon / n, Lat: lat / n},
		Distance: distance(ps),
		Duration: last.Time.Sub(first.Time),
	}

	klog.V(1).Infof("%s: %q [%s - %s] %d points, %.0fm", path, w.Title, w.Start, w.End, len(ps), w.Distance)
	return w, nil
}
