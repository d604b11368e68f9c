package vandra

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/barasher/go-exiftool"
	"k8s.io/klog/v2"
)

// captureFields are tried in order when looking for a capture time.
var captureFields = []string{"DateTimeOriginal", "CreateDate", "DateTime"}

// derivedGroups are exiftool family 0 groups describing the file rather than
// anything embedded in it.
var derivedGroups = map[string]bool{
	"ExifTool":  true,
	"File":      true,
	"Composite": true,
	"JFIF":      true,
}

// ExiftoolStore is a MetadataStore backed by long-running exiftool processes.
type ExiftoolStore struct {
	read  *exiftool.Exiftool
	clear *exiftool.Exiftool
}

// NewExiftoolStore starts exiftool. bin may be empty to search $PATH.
func NewExiftoolStore(bin string) (*ExiftoolStore, error) {
	opts := []func(*exiftool.Exiftool) error{}
	if bin != "" {
		opts = append(opts, exiftool.SetExiftoolBinaryPath(bin))
	}

	// tag names are prefixed by their group, as in "IPTC:City"
	r, err := exiftool.NewExiftool(append(opts, exiftool.PrintGroupNames("0"))...)
	if err != nil {
		return nil, fmt.Errorf("exiftool: %w", err)
	}

	c, err := exiftool.NewExiftool(append(opts, exiftool.ClearFieldsBeforeWriting())...)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("exiftool: %w", err)
	}

	return &ExiftoolStore{read: r, clear: c}, nil
}

func (s *ExiftoolStore) extract(path string) (exiftool.FileMetadata, error) {
	fi := s.read.ExtractMetadata(path)[0]
	if fi.Err != nil {
		return fi, fmt.Errorf("extract fail for %q: %w", path, fi.Err)
	}

	for k, v := range fi.Fields {
		klog.V(3).Infof("%q=%v", k, v)
	}
	return fi, nil
}

// field returns the first value of name in any group, preferring EXIF.
func field(fi exiftool.FileMetadata, name string) string {
	if v, err := fi.GetString("EXIF:" + name); err == nil && v != "" {
		return v
	}

	keys := []string{}
	for k := range fi.Fields {
		if _, n, ok := strings.Cut(k, ":"); ok && n == name {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v, err := fi.GetString(k); err == nil && v != "" {
			return v
		}
	}
	return ""
}

// embeddedGroups returns the metadata groups stored in the file itself.
func embeddedGroups(fi exiftool.FileMetadata) []string {
	seen := map[string]bool{}
	for k := range fi.Fields {
		g, _, ok := strings.Cut(k, ":")
		if !ok || derivedGroups[g] {
			continue
		}
		seen[g] = true
	}

	gs := []string{}
	for g := range seen {
		gs = append(gs, g)
	}
	sort.Strings(gs)
	return gs
}

// CaptureTime returns the time the photo at path was taken.
func (s *ExiftoolStore) CaptureTime(path string) (time.Time, error) {
	fi, err := s.extract(path)
	if err != nil {
		return time.Time{}, err
	}

	for _, k := range captureFields {
		if ds := field(fi, k); ds != "" {
			return parseCaptureTime(ds)
		}
	}
	return time.Time{}, ErrNoCaptureTime
}

// Clear removes all writable metadata from path. Files carrying nothing but
// file-level information are left untouched.
func (s *ExiftoolStore) Clear(path string) error {
	fi, err := s.extract(path)
	if err != nil {
		return err
	}

	gs := embeddedGroups(fi)
	if len(gs) == 0 {
		klog.V(1).Infof("%s has no metadata to clear", path)
		return nil
	}
	klog.V(1).Infof("clearing %v from %s", gs, path)

	fm := exiftool.EmptyFileMetadata()
	fm.File = path
	fms := []exiftool.FileMetadata{fm}
	s.clear.WriteMetadata(fms)
	if err := fms[0].Err; err != nil {
		// groups like PNG:ImageWidth describe the image and cannot be deleted
		if strings.Contains(err.Error(), "1 image files unchanged") {
			klog.V(1).Infof("%s: nothing deletable in %v", path, gs)
			return nil
		}
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// Close stops the exiftool processes.
func (s *ExiftoolStore) Close() error {
	rerr := s.read.Close()
	if err := s.clear.Close(); err != nil {
		return err
	}
	return rerr
}
