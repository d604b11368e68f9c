package vandra

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestParseCaptureTime(t *testing.T) {
	want := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	tests := []struct {
		in      string
		wantErr bool
	}{
		{in: "2024:06:01 08:00:00"},
		{in: "2024-06-01 08:00:00"},
		{in: "2024:06:01 08:00:00\x00"},
		{in: "2024:06:01 08:00:00.52+02:00"},
		{in: " 2024:06:01 08:00:00 "},
		{in: "0000:00:00 00:00:00", wantErr: true},
		{in: "yesterday", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tc := range tests {
		got, err := parseCaptureTime(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseCaptureTime(%q) = %s, want error", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseCaptureTime(%q) error: %v", tc.in, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("parseCaptureTime(%q) = %s, want %s", tc.in, got, want)
		}
	}
}

func TestBuildCatalog(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"c.jpg", "a.jpg", "untagged.jpg", "b.png", ".hidden.jpg"} {
		writeFile(t, filepath.Join(dir, name), "x")
	}
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	s := &fakeStore{taken: map[string]time.Time{
		"a.jpg":       ts(t, "2024-06-01T10:00:00Z"),
		"b.png":       ts(t, "2024-06-01T09:00:00Z"),
		"c.jpg":       ts(t, "2024-06-01T08:00:00Z"),
		".hidden.jpg": ts(t, "2024-06-01T08:00:00Z"),
		"nested":      ts(t, "2024-06-01T08:00:00Z"),
	}}

	c, skipped, err := BuildCatalog(context.Background(), dir, s)
	if err != nil {
		t.Fatalf("BuildCatalog() error: %v", err)
	}

	want := Catalog{
		{Path: filepath.Join(dir, "a.jpg"), Taken: ts(t, "2024-06-01T10:00:00Z")},
		{Path: filepath.Join(dir, "b.png"), Taken: ts(t, "2024-06-01T09:00:00Z")},
		{Path: filepath.Join(dir, "c.jpg"), Taken: ts(t, "2024-06-01T08:00:00Z")},
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("BuildCatalog() mismatch (-want +got):\n%s", diff)
	}

	if len(skipped) != 1 || filepath.Base(skipped[0].Path) != "untagged.jpg" || skipped[0].Stage != StageExif {
		t.Fatalf("skipped = %v, want untagged.jpg", skipped)
	}
	if !errors.Is(skipped[0], ErrNoCaptureTime) {
		t.Errorf("skipped error = %v, want ErrNoCaptureTime", skipped[0].Err)
	}
}

func TestBuildCatalogMissingDir(t *testing.T) {
	_, _, err := BuildCatalog(context.Background(), filepath.Join(t.TempDir(), "missing"), &fakeStore{})
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Errorf("BuildCatalog() error = %v, want *ConfigError", err)
	}
}

func TestBuildCatalogCancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.jpg"), "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := BuildCatalog(ctx, dir, &fakeStore{}); !errors.Is(err, context.Canceled) {
		t.Errorf("BuildCatalog() error = %v, want context.Canceled", err)
	}
}

func TestTrackFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.gpx", "a.GPX", ".hidden.gpx", "notes.txt"} {
		writeFile(t, filepath.Join(dir, name), "<gpx/>")
	}
	if err := os.Mkdir(filepath.Join(dir, "old.gpx"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	got, err := TrackFiles(dir)
	if err != nil {
		t.Fatalf("TrackFiles() error: %v", err)
	}
	want := []string{filepath.Join(dir, "a.GPX"), filepath.Join(dir, "b.gpx")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("TrackFiles() mismatch (-want +got):\n%s", diff)
	}
}
