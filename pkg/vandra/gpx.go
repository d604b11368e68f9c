package vandra

import (
	"fmt"

	"github.com/tkrajina/gpxgo/gpx"
)

// GPXReader reads GPX 1.0 and 1.1 track logs.
type GPXReader struct{}

// ReadTrack parses the GPX file at path.
func (GPXReader) ReadTrack(path string) (*TrackFile, error) {
	g, err := gpx.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parse gpx: %w", err)
	}

	tf := &TrackFile{Name: g.Name}
	for _, t := range g.Tracks {
		rt := RawTrack{Name: t.Name}
		for _, s := range t.Segments {
			ps := make([]Point, 0, len(s.Points))
			for _, p := range s.Points {
				ps = append(ps, Point{
					Lon:       p.Longitude,
					Lat:       p.Latitude,
					Elevation: p.Elevation.Value(),
					Time:      p.Timestamp,
				})
			}
			rt.Segments = append(rt.Segments, ps)
		}
		tf.Tracks = append(tf.Tracks, rt)
	}
	return tf, nil
}

// distance returns the length of a path in meters, ignoring elevation.
func distance(ps []Point) float64 {
	d := 0.0
	for i := 1; i < len(ps); i++ {
		d += gpx.HaversineDistance(ps[i-1].Lat, ps[i-1].Lon, ps[i].Lat, ps[i].Lon)
	}
	return d
}
