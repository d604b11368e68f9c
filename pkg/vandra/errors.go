package vandra

import (
	"errors"
	"fmt"
)

var (
	ErrNoTrack        = errors.New("file contains no track")
	ErrNoSegment      = errors.New("track contains no segment")
	ErrNoPoints       = errors.New("segment contains no points")
	ErrNoTimestamp    = errors.New("point has no timestamp")
	ErrInvertedWindow = errors.New("track ends before it starts")
	ErrSlugCollision  = errors.New("slug already used by another track")
	ErrNoCaptureTime  = errors.New("no capture time")
	ErrNoMatch        = errors.New("no photos taken during track")
)

// TrackError aborts the processing of a single track.
type TrackError struct {
	Path string
	Err  error
}

func (e *TrackError) Error() string {
	return fmt.Sprintf("track %s: %v", e.Path, e.Err)
}

func (e *TrackError) Unwrap() error {
	return e.Err
}

// Photo processing stages reported in a PhotoError.
const (
	StageExif      = "exif"
	StageCopy      = "copy"
	StageThumbnail = "thumbnail"
	StageStrip     = "strip"
)

// PhotoError describes a photo that was skipped, or only partially processed.
type PhotoError struct {
	Path  string
	Stage string
	Err   error
}

func (e PhotoError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Path, e.Err)
}

func (e PhotoError) Unwrap() error {
	return e.Err
}

// ConfigError aborts the whole run.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
