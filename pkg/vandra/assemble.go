package vandra

import (
	"fmt"
	"path"
	"sort"
	"time"
)

// DisplayTimeFormat is how track times are shown on pages.
var DisplayTimeFormat = "2006-01-02 15:04:05 MST"

// Article is a published track.
type Article struct {
	Title string
	Slug  string

	// PhotoCount is the number of photos published; Matched is the number taken during the track.
	PhotoCount int
	Matched    int
	Photos     []string

	Place    string
	Start    time.Time
	End      time.Time
	Centroid Point
	Distance float64
	Duration time.Duration
}

// PhotoDir returns the directory holding an article's photos, relative to the site root.
func (a *Article) PhotoDir() string {
	return photoRelDir(a.Slug)
}

// Page returns the article's page, relative to the site root.
func (a *Article) Page() string {
	return path.Join("tracks", a.Slug+".html")
}

// Cover returns the first thumbnail relative to the site root, or "" if there are no photos.
func (a *Article) Cover() string {
	if len(a.Photos) == 0 {
		return ""
	}
	return path.Join(a.PhotoDir(), ThumbDir, a.Photos[0])
}

func photoRelDir(slug string) string {
	return path.Join("static", "photos", slug)
}

// AssembleArticle combines a summarized track and its published photos.
func AssembleArticle(w *TrackWindow, matched []Photo, copied []string, place string) *Article {
	return &Article{
		Title:      w.Title,
		Slug:       w.Slug,
		PhotoCount: len(copied),
		Matched:    len(matched),
		Photos:     copied,
		Place:      place,
		Start:      w.Start,
		End:        w.End,
		Centroid:   w.Centroid,
		Distance:   w.Distance,
		Duration:   w.Duration,
	}
}

// SortArticles orders articles by start time, oldest first.
func SortArticles(as []*Article) {
	sort.SliceStable(as, func(i, j int) bool {
		if as[i].Start.Equal(as[j].Start) {
			return as[i].Slug < as[j].Slug
		}
		return as[i].Start.Before(as[j].Start)
	})
}

// TrackPage is the context handed to the track template.
type TrackPage struct {
	Site  Site
	Title string
	// Route is [lat, lon] pairs in recorded order.
	Route    [][2]float64
	Start    string
	End      string
	Lon      float64
	Lat      float64
	Place    string
	Distance string
	Duration string
	Photos   []string
	// PhotoDir and StaticDir are relative to the page.
	PhotoDir  string
	StaticDir string
	Article   *Article
}

// IndexPage is the context handed to the index template.
type IndexPage struct {
	Site      Site
	Articles  []*Article
	StaticDir string
}

// NewTrackPage builds the rendering context for one article.
func NewTrackPage(s Site, w *TrackWindow, a *Article) *TrackPage {
	route := make([][2]float64, 0, len(w.Points))
	for _, p := range w.Points {
		route = append(route, [2]float64{p.Lat, p.Lon})
	}

	return &TrackPage{
		Site:      s,
		Title:     a.Title,
		Route:     route,
		Start:     a.Start.Format(DisplayTimeFormat),
		End:       a.End.Format(DisplayTimeFormat),
		Lon:       a.Centroid.Lon,
		Lat:       a.Centroid.Lat,
		Place:     a.Place,
		Distance:  fmt.Sprintf("%.1f km", a.Distance/1000),
		Duration:  a.Duration.Round(time.Minute).String(),
		Photos:    a.Photos,
		PhotoDir:  path.Join("..", a.PhotoDir()),
		StaticDir: "../static",
		Article:   a,
	}
}

// NewIndexPage builds the rendering context for the index. as must already be sorted.
func NewIndexPage(s Site, as []*Article) *IndexPage {
	return &IndexPage{Site: s, Articles: as, StaticDir: "static"}
}
