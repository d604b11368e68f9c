// Package vandra builds a static website from GPS track logs and the photos taken along them.
package vandra

import (
	"time"
)

// Point is a single timestamped position on a track.
type Point struct {
	Lon       float64
	Lat       float64
	Elevation float64
	Time      time.Time
}

// TrackFile is the parsed content of a track log.
type TrackFile struct {
	// Name is the document-level name, if any.
	Name   string
	Tracks []RawTrack
}

// RawTrack is a single track as read from a track log.
type RawTrack struct {
	Name     string
	Segments [][]Point
}

// TrackReader parses track logs.
type TrackReader interface {
	ReadTrack(path string) (*TrackFile, error)
}

// Deps are the collaborators used by Build.
type Deps struct {
	Tracks   TrackReader
	Metadata MetadataStore
	// Geocoder may be nil, in which case place names are left empty.
	Geocoder Geocoder
	Renderer Renderer
}
