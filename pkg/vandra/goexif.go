package vandra

import (
	"fmt"
	"image"
	"os"
	"time"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"
	"github.com/rwcarlsen/goexif/exif"
	"k8s.io/klog/v2"
)

// GoexifStore is a pure-Go MetadataStore. It only understands EXIF, and clears it
// by decoding and re-encoding the image, which costs some quality for JPEGs.
// The EXIF orientation is applied to the pixels before re-encoding, since the
// tag that describes it is removed along with everything else.
type GoexifStore struct {
	Quality int
}

func decodeExif(path string) (*exif.Exif, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode exif: %w", err)
	}
	return x, nil
}

// CaptureTime returns the time the photo at path was taken.
func (s *GoexifStore) CaptureTime(path string) (time.Time, error) {
	x, err := decodeExif(path)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrNoCaptureTime, err)
	}

	for _, f := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTime} {
		tag, err := x.Get(f)
		if err != nil {
			continue
		}
		ds, err := tag.StringVal()
		if err != nil {
			klog.V(1).Infof("%s: %s is not a string: %v", path, f, err)
			continue
		}
		return parseCaptureTime(ds)
	}
	return time.Time{}, ErrNoCaptureTime
}

// Clear re-encodes path without its EXIF block.
func (s *GoexifStore) Clear(path string) error {
	x, err := decodeExif(path)
	if err != nil {
		klog.V(1).Infof("%s has no readable EXIF, leaving as-is: %v", path, err)
		return nil
	}

	enc, err := encoderFor(path, s.Quality)
	if err != nil {
		return err
	}

	img, err := imgio.Open(path)
	if err != nil {
		return fmt.Errorf("imgio.Open: %w", err)
	}

	if o := orientation(x); o > 1 {
		klog.V(1).Infof("%s: applying orientation %d", path, o)
		img = orient(img, o)
	}

	if err := imgio.Save(path, img, enc); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

// orientation returns the EXIF orientation (1-8), or 0 if it is missing.
func orientation(x *exif.Exif) int {
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 0
	}
	o, err := tag.Int(0)
	if err != nil || o < 1 || o > 8 {
		return 0
	}
	return o
}

// orient transforms img so that it displays upright without an orientation tag.
func orient(img image.Image, o int) image.Image {
	rot := func(i image.Image, deg float64) image.Image {
		return transform.Rotate(i, deg, &transform.RotationOptions{ResizeBounds: true})
	}

	switch o {
	case 2:
		return transform.FlipH(img)
	case 3:
		return rot(img, 180)
	case 4:
		return transform.FlipV(img)
	case 5:
		return transform.FlipH(rot(img, 90))
	case 6:
		return rot(img, 90)
	case 7:
		return transform.FlipH(rot(img, 270))
	case 8:
		return rot(img, 270)
	}
	return img
}

// Close is a no-op.
func (s *GoexifStore) Close() error {
	return nil
}
