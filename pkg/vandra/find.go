package vandra

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/karrick/godirwalk"
	"k8s.io/klog/v2"
)

var (
	exifDate = "2006:01:02 15:04:05"
	// some tools write EXIF dates with dashes
	altExifDate = "2006-01-02 15:04:05"
)

// Photo is an image file with a known capture time.
type Photo struct {
	Path  string
	Taken time.Time
}

// Catalog is the set of photos available to every track, in file name order.
// It is not modified once BuildCatalog returns.
type Catalog []Photo

// MetadataStore reads capture times from, and removes embedded metadata from, image files.
// Implementations must be safe for concurrent use.
type MetadataStore interface {
	// CaptureTime returns ErrNoCaptureTime if the file has no capture time.
	CaptureTime(path string) (time.Time, error)
	// Clear removes embedded metadata in place. Files without metadata are left unmodified.
	Clear(path string) error
	Close() error
}

// parseCaptureTime parses an EXIF date as a naive wall-clock time, represented in UTC.
func parseCaptureTime(s string) (time.Time, error) {
	s = strings.TrimSpace(strings.TrimRight(s, "\x00"))
	// drop sub-seconds and offsets, as in "2024:06:01 08:00:00.52+02:00"
	if len(s) > len(exifDate) {
		s = s[:len(exifDate)]
	}

	for _, layout := range []string{exifDate, altExifDate} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse time %q: unknown layout", s)
}

// listFiles returns the non-hidden regular files in dir, sorted by name.
func listFiles(dir string, suffix string) ([]string, error) {
	des, err := godirwalk.ReadDirents(dir, nil)
	if err != nil {
		return nil, err
	}
	sort.Sort(des)

	paths := []string{}
	for _, de := range des {
		name := de.Name()
		if name[0] == '.' {
			continue
		}
		if !de.IsRegular() && !de.IsSymlink() {
			continue
		}
		if suffix != "" && !strings.EqualFold(filepath.Ext(name), suffix) {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	return paths, nil
}

// TrackFiles returns the track logs in dir, sorted by name, skipping hidden files.
func TrackFiles(dir string) ([]string, error) {
	return listFiles(dir, ".gpx")
}

// BuildCatalog reads the capture time of every photo in dir. Photos without a
// usable capture time are skipped and reported.
func BuildCatalog(ctx context.Context, dir string, ms MetadataStore) (Catalog, []PhotoError, error) {
	paths, err := listFiles(dir, "")
	if err != nil {
		return nil, nil, &ConfigError{Field: "data.img_input", Err: err}
	}

	klog.Infof("reading capture times of %d files in %s ...", len(paths), dir)
	c := Catalog{}
	skipped := []PhotoError{}

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		t, err := ms.CaptureTime(p)
		if err != nil {
			klog.Warningf("skipping %s: %v", p, err)
			skipped = append(skipped, PhotoError{Path: p, Stage: StageExif, Err: err})
			continue
		}

		klog.V(2).Infof("%s taken at %s", p, t)
		c = append(c, Photo{Path: p, Taken: t})
	}

	klog.Infof("catalog has %d photos (%d skipped)", len(c), len(skipped))
	return c, skipped, nil
}
