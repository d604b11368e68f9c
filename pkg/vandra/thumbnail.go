package vandra

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"
	"github.com/otiai10/copy"
	"k8s.io/klog/v2"
)

// ThumbDir is the subdirectory of a track's photo directory holding thumbnails.
const ThumbDir = "thumbnails"

// Materializer copies matched photos into a track's output directory.
type Materializer struct {
	Store MetadataStore
	Thumb ThumbOpts
}

var copyOpts = copy.Options{
	// never publish a link back into the photo library
	OnSymlink:         func(string) copy.SymlinkAction { return copy.Deep },
	PermissionControl: copy.AddPermission(0o200),
}

// Materialize writes photos to dir as 1.<ext> ... N.<ext> (lower-cased), with a thumbnail of each
// in dir/thumbnails, and clears metadata from the full-size copies.
//
// Numbering is compact: a photo that cannot be copied or thumbnailed is skipped
// and does not use up a number. dir is emptied first so that reruns produce the
// same set of files. The returned names are in photo order.
func (m *Materializer) Materialize(ctx context.Context, ps []Photo, dir string) ([]string, []PhotoError, error) {
	klog.V(1).Infof("materializing %d photos in %s", len(ps), dir)

	if err := os.RemoveAll(dir); err != nil {
		return nil, nil, fmt.Errorf("clean: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, ThumbDir), 0o755); err != nil {
		return nil, nil, fmt.Errorf("mkdir: %w", err)
	}

	names := []string{}
	perrs := []PhotoError{}

	for _, p := range ps {
		if err := ctx.Err(); err != nil {
			return names, perrs, err
		}

		name := fmt.Sprintf("%d%s", len(names)+1, strings.ToLower(filepath.Ext(p.Path)))
		full := filepath.Join(dir, name)
		thumb := filepath.Join(dir, ThumbDir, name)

		if err := copy.Copy(p.Path, full, copyOpts); err != nil {
			klog.Errorf("unable to copy %s: %v", p.Path, err)
			perrs = append(perrs, PhotoError{Path: p.Path, Stage: StageCopy, Err: err})
			os.Remove(full)
			continue
		}

		if err := m.thumbnail(full, thumb); err != nil {
			klog.Errorf("unable to thumbnail %s: %v", p.Path, err)
			perrs = append(perrs, PhotoError{Path: p.Path, Stage: StageThumbnail, Err: err})
			os.Remove(full)
			os.Remove(thumb)
			continue
		}

		if err := m.Store.Clear(full); err != nil {
			klog.Errorf("unable to clear metadata from %s: %v", full, err)
			perrs = append(perrs, PhotoError{Path: p.Path, Stage: StageStrip, Err: err})
		}

		klog.V(1).Infof("%s -> %s", p.Path, full)
		names = append(names, name)
	}

	return names, perrs, nil
}

func (m *Materializer) thumbnail(in string, out string) error {
	enc, err := encoderFor(out, m.Thumb.Quality)
	if err != nil {
		return err
	}

	img, err := imgio.Open(in)
	if err != nil {
		return fmt.Errorf("imgio.Open: %w", err)
	}

	_, err = createThumb(img, out, m.Thumb.Size, enc)
	return err
}

// fitBox scales x*y down to fit in a size*size box, keeping the aspect ratio.
// Images that already fit are not enlarged.
func fitBox(x, y, size int) (int, int) {
	if x <= size && y <= size {
		return x, y
	}

	if x >= y {
		return size, max(1, int(math.Round(float64(y)*float64(size)/float64(x))))
	}
	return max(1, int(math.Round(float64(x)*float64(size)/float64(y)))), size
}

func createThumb(i image.Image, path string, size int, enc imgio.Encoder) (image.Rectangle, error) {
	if i.Bounds().Dy() == 0 {
		return image.Rectangle{}, fmt.Errorf("no Y for %+v", i.Bounds())
	}

	if i.Bounds().Dx() == 0 {
		return image.Rectangle{}, fmt.Errorf("no X for %+v", i.Bounds())
	}

	x, y := fitBox(i.Bounds().Dx(), i.Bounds().Dy(), size)
	klog.V(2).Infof("creating %dx%d thumb: %s - %+v", x, y, path, i.Bounds())

	rimg := transform.Resize(i, x, y, transform.Lanczos)
	if err := imgio.Save(path, rimg, enc); err != nil {
		return image.Rectangle{}, fmt.Errorf("save: %w", err)
	}
	return rimg.Bounds(), nil
}

// encoderFor picks an encoder matching the extension of path.
func encoderFor(path string, quality int) (imgio.Encoder, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return imgio.JPEGEncoder(quality), nil
	case ".png":
		return imgio.PNGEncoder(), nil
	case ".bmp":
		return imgio.BMPEncoder(), nil
	default:
		return nil, fmt.Errorf("unsupported image type: %q", filepath.Ext(path))
	}
}
