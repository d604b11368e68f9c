package vandra

import (
	"sort"
)

// Correlate returns the photos taken while a track was recorded, oldest first.
// Times are compared in whole seconds and both ends of the window are inclusive.
// Photos taken within the same second keep their catalog order. The second
// return value is false if no photos match.
func Correlate(c Catalog, w *TrackWindow) ([]Photo, bool) {
	start := w.Start.Unix()
	end := w.End.Unix()

	ms := []Photo{}
	for _, p := range c {
		t := p.Taken.Unix()
		if start <= t && t <= end {
			ms = append(ms, p)
		}
	}

	if len(ms) == 0 {
		return nil, false
	}

	sort.SliceStable(ms, func(i, j int) bool {
		return ms[i].Taken.Unix() < ms[j].Taken.Unix()
	})
	return ms, true
}
