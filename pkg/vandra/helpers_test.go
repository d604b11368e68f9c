package vandra

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeStore is a MetadataStore keyed by file base name.
type fakeStore struct {
	mu       sync.Mutex
	taken    map[string]time.Time
	clearErr error
	cleared  []string
}

func (s *fakeStore) CaptureTime(path string) (time.Time, error) {
	t, ok := s.taken[filepath.Base(path)]
	if !ok {
		return time.Time{}, ErrNoCaptureTime
	}
	return t, nil
}

func (s *fakeStore) Clear(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared = append(s.cleared, filepath.Base(path))
	return s.clearErr
}

func (s *fakeStore) Close() error { return nil }

// fakeGeocoder answers with a fixed place, or err.
type fakeGeocoder struct {
	mu    sync.Mutex
	place string
	err   error
	calls int
}

func (g *fakeGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.place, g.err
}

// fakeReader returns canned track files by path.
type fakeReader map[string]*TrackFile

func (r fakeReader) ReadTrack(path string) (*TrackFile, error) {
	tf, ok := r[path]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path, os.ErrNotExist)
	}
	return tf, nil
}

func ts(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return tm
}

// writeJPEG writes a w*h JPEG with a gradient, so that its encoding is not trivial.
func writeJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode: %v", err)
	}
}

// gpxPoint is lat, lon, time for writeGPX.
type gpxPoint struct {
	lat, lon float64
	time     string
}

func writeGPX(t *testing.T, path string, name string, ps []gpxPoint) {
	t.Helper()
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="vandra-test" xmlns="http://www.topografix.com/GPX/1/1">
  <trk>
`)
	if name != "" {
		fmt.Fprintf(&b, "    <name>%s</name>\n", name)
	}
	b.WriteString("    <trkseg>\n")
	for _, p := range ps {
		fmt.Fprintf(&b, "      <trkpt lat=\"%f\" lon=\"%f\"><ele>100</ele><time>%s</time></trkpt>\n", p.lat, p.lon, p.time)
	}
	b.WriteString("    </trkseg>\n  </trk>\n</gpx>\n")

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write gpx: %v", err)
	}
}

var errNetwork = errors.New("network is unreachable")

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// exifSegment builds an APP1 block holding an orientation, a DateTimeOriginal
// ("2006:01:02 15:04:05") and a GPS latitude of 59°19'45" N.
func exifSegment(t *testing.T, taken string, orientation uint16) []byte {
	t.Helper()
	if len(taken) != 19 {
		t.Fatalf("bad EXIF date %q", taken)
	}

	var b bytes.Buffer
	u16 := func(v uint16) { binary.Write(&b, binary.LittleEndian, v) }
	u32 := func(v uint32) { binary.Write(&b, binary.LittleEndian, v) }
	entry := func(tag, typ uint16, count, value uint32) {
		u16(tag)
		u16(typ)
		u32(count)
		u32(value)
	}

	// offsets are relative to the TIFF header
	b.WriteString("II")
	u16(42)
	u32(8)

	// IFD0 at 8
	u16(3)
	entry(0x0112, 3, 1, uint32(orientation))
	entry(0x8769, 4, 1, 50)
	entry(0x8825, 4, 1, 88)
	u32(0)

	// Exif IFD at 50
	u16(1)
	entry(0x9003, 2, 20, 68)
	u32(0)
	b.WriteString(taken)
	b.WriteByte(0)

	// GPS IFD at 88
	u16(2)
	entry(0x0001, 2, 2, uint32('N'))
	entry(0x0002, 5, 3, 118)
	u32(0)
	for _, v := range []uint32{59, 1, 19, 1, 45, 1} {
		u32(v)
	}

	seg := []byte{0xFF, 0xE1, 0, 0}
	binary.BigEndian.PutUint16(seg[2:], uint16(2+6+b.Len()))
	seg = append(seg, "Exif\x00\x00"...)
	return append(seg, b.Bytes()...)
}

// writeExifJPEG writes a w*h JPEG carrying the block built by exifSegment.
func writeExifJPEG(t *testing.T, path string, w, h int, taken string, orientation uint16) {
	t.Helper()
	writeJPEG(t, path, w, h)
	plain, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	// right after SOI
	out := append([]byte{}, plain[:2]...)
	out = append(out, exifSegment(t, taken, orientation)...)
	out = append(out, plain[2:]...)
	if err := os.WriteFile(path, out, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}
