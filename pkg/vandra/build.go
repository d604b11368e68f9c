package vandra

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// SkippedTrack is a track that produced no article.
type SkippedTrack struct {
	Path string
	Err  error
}

// Report summarizes what a build skipped.
type Report struct {
	mu sync.Mutex

	Tracks        int
	Published     int
	SkippedTracks []SkippedTrack
	SkippedPhotos []PhotoError
}

func (r *Report) skipTrack(path string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.SkippedTracks = append(r.SkippedTracks, SkippedTrack{Path: path, Err: err})
}

func (r *Report) skipPhotos(perrs []PhotoError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.SkippedPhotos = append(r.SkippedPhotos, perrs...)
}

// sort orders the report by path, as tracks finish in no particular order.
func (r *Report) sort() {
	sort.SliceStable(r.SkippedTracks, func(i, j int) bool {
		return r.SkippedTracks[i].Path < r.SkippedTracks[j].Path
	})
	sort.SliceStable(r.SkippedPhotos, func(i, j int) bool {
		return r.SkippedPhotos[i].Path < r.SkippedPhotos[j].Path
	})
}

func (r *Report) log() {
	klog.Infof("published %d of %d tracks", r.Published, r.Tracks)
	for _, s := range r.SkippedTracks {
		if errors.Is(s.Err, ErrNoMatch) {
			klog.Infof("skipped track %s: %v", s.Path, s.Err)
			continue
		}
		klog.Warningf("skipped track %s: %v", s.Path, s.Err)
	}
	for _, p := range r.SkippedPhotos {
		klog.Warningf("skipped photo: %v", p)
	}
}

// Result is the outcome of a build.
type Result struct {
	// Articles are sorted by start time.
	Articles []*Article
	Report   *Report
}

// Build generates the site described by c. Problems with individual tracks or photos
// are logged and reported, and only configuration problems or cancellation of ctx
// stop the build.
func Build(ctx context.Context, c *Config, d Deps) (*Result, error) {
	klog.Infof("build: %s + %s -> %s", c.Data.GPXInput, c.Data.ImgInput, c.Data.SiteOutput)

	if err := checkDirs(c); err != nil {
		return nil, err
	}

	r := &Report{}
	catalog, skipped, err := BuildCatalog(ctx, c.Data.ImgInput, d.Metadata)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	r.skipPhotos(skipped)

	ws, err := summarize(c, d, r)
	if err != nil {
		return nil, err
	}

	m := &Materializer{Store: d.Metadata, Thumb: c.Thumbnail}
	as := make([]*Article, len(ws))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, c.Workers))
	for i, w := range ws {
		if gctx.Err() != nil {
			break
		}
		i, w := i, w
		g.Go(func() error {
			a, err := processTrack(gctx, c, d, m, r, catalog, w)
			if err != nil {
				r.skipTrack(w.Source, err)
				return nil
			}
			as[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("build interrupted: %w", err)
	}

	articles := []*Article{}
	for _, a := range as {
		if a != nil {
			articles = append(articles, a)
		}
	}
	SortArticles(articles)
	r.Published = len(articles)

	if err := writeAssets(c.Site.AssetsDir, c.Data.SiteOutput); err != nil {
		return nil, fmt.Errorf("write assets: %w", err)
	}

	p := filepath.Join(c.Data.SiteOutput, "index.html")
	klog.Infof("writing index with %d articles to %s", len(articles), p)
	if err := writePage(d.Renderer, p, IndexTemplate, NewIndexPage(c.Site, articles)); err != nil {
		return nil, fmt.Errorf("write index: %w", err)
	}

	r.sort()
	r.log()
	return &Result{Articles: articles, Report: r}, nil
}

func checkDirs(c *Config) error {
	for field, dir := range map[string]string{
		"data.gpx_input": c.Data.GPXInput,
		"data.img_input": c.Data.ImgInput,
	} {
		st, err := os.Stat(dir)
		if err != nil {
			return &ConfigError{Field: field, Err: err}
		}
		if !st.IsDir() {
			return &ConfigError{Field: field, Err: fmt.Errorf("%s is not a directory", dir)}
		}
	}

	if err := os.MkdirAll(c.Data.SiteOutput, 0o755); err != nil {
		return &ConfigError{Field: "data.site_output", Err: err}
	}
	return nil
}

// summarize reads every track and assigns slugs in file name order. A track whose
// slug is already taken is skipped rather than overwriting the earlier one.
func summarize(c *Config, d Deps, r *Report) ([]*TrackWindow, error) {
	paths, err := TrackFiles(c.Data.GPXInput)
	if err != nil {
		return nil, &ConfigError{Field: "data.gpx_input", Err: err}
	}
	r.Tracks = len(paths)

	ws := []*TrackWindow{}
	claimed := map[string]string{}
	for _, p := range paths {
		klog.Infof("processing %s", p)
		w, err := SummarizeTrack(p, d.Tracks)
		if err != nil {
			klog.Errorf("skipping %s: %v", p, err)
			r.skipTrack(p, err)
			continue
		}

		if prev, ok := claimed[w.Slug]; ok {
			err := &TrackError{Path: p, Err: fmt.Errorf("%w: %q (%s)", ErrSlugCollision, w.Slug, prev)}
			klog.Errorf("skipping %s: %v", p, err)
			r.skipTrack(p, err)
			continue
		}
		claimed[w.Slug] = p
		ws = append(ws, w)
	}
	return ws, nil
}

// processTrack takes a summarized track through correlation, materialization,
// geocoding, and rendering.
func processTrack(ctx context.Context, c *Config, d Deps, m *Materializer, r *Report, catalog Catalog, w *TrackWindow) (*Article, error) {
	matched, ok := Correlate(catalog, w)
	if !ok && !c.PublishUnmatched {
		klog.Infof("no photos found for %s [%s - %s]", w.Source, w.Start, w.End)
		return nil, ErrNoMatch
	}

	copied := []string{}
	if ok {
		dir := filepath.Join(c.Data.SiteOutput, filepath.FromSlash(photoRelDir(w.Slug)))
		names, perrs, err := m.Materialize(ctx, matched, dir)
		r.skipPhotos(perrs)
		if err != nil {
			return nil, &TrackError{Path: w.Source, Err: fmt.Errorf("materialize: %w", err)}
		}
		copied = names
	}

	place := locate(ctx, d.Geocoder, w)
	a := AssembleArticle(w, matched, copied, place)

	p := filepath.Join(c.Data.SiteOutput, filepath.FromSlash(a.Page()))
	if err := writePage(d.Renderer, p, TrackTemplate, NewTrackPage(c.Site, w, a)); err != nil {
		return nil, &TrackError{Path: w.Source, Err: err}
	}

	klog.Infof("published %q with %d photos", a.Title, a.PhotoCount)
	return a, nil
}

// locate returns the place name for a track, or "" if it cannot be found.
func locate(ctx context.Context, g Geocoder, w *TrackWindow) string {
	if g == nil {
		return ""
	}

	place, err := g.ReverseGeocode(ctx, w.Centroid.Lat, w.Centroid.Lon)
	if err != nil {
		klog.Warningf("unable to geocode %s (%f, %f): %v", w.Source, w.Centroid.Lat, w.Centroid.Lon, err)
		return ""
	}
	return place
}
