// correlate lists the photos taken during each track, without building a site
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/goccy/go-json"
	"k8s.io/klog/v2"

	"github.com/tstromberg/vandra/pkg/vandra"
)

var (
	configPath = flag.String("config", "config.yaml", "Location of the site configuration file")
	jsonOut    = flag.Bool("json", false, "output JSON instead of text")
)

type match struct {
	Track  string   `json:"track"`
	Slug   string   `json:"slug"`
	Start  string   `json:"start"`
	End    string   `json:"end"`
	Photos []string `json:"photos"`
	Error  string   `json:"error,omitempty"`
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	c, err := vandra.LoadConfig(*configPath)
	if err != nil {
		klog.Exitf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var ms vandra.MetadataStore = &vandra.GoexifStore{Quality: c.Thumbnail.Quality}
	if c.Metadata.Backend == "exiftool" {
		et, err := vandra.NewExiftoolStore(c.Metadata.ExiftoolPath)
		if err != nil {
			klog.Exitf("exiftool: %v", err)
		}
		ms = et
	}
	defer ms.Close()

	catalog, _, err := vandra.BuildCatalog(ctx, c.Data.ImgInput, ms)
	if err != nil {
		klog.Exitf("catalog: %v", err)
	}

	paths, err := vandra.TrackFiles(c.Data.GPXInput)
	if err != nil {
		klog.Exitf("tracks: %v", err)
	}

	out := []match{}
	for _, p := range paths {
		m := match{Track: p, Photos: []string{}}
		w, err := vandra.SummarizeTrack(p, vandra.GPXReader{})
		if err != nil {
			m.Error = err.Error()
			out = append(out, m)
			continue
		}

		m.Slug = w.Slug
		m.Start = w.Start.Format(vandra.DisplayTimeFormat)
		m.End = w.End.Format(vandra.DisplayTimeFormat)
		ps, _ := vandra.Correlate(catalog, w)
		for _, ph := range ps {
			m.Photos = append(m.Photos, ph.Path)
		}
		out = append(out, m)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			klog.Exitf("encode: %v", err)
		}
		return
	}

	for _, m := range out {
		if m.Error != "" {
			fmt.Printf("%s: %s\n", m.Track, m.Error)
			continue
		}
		fmt.Printf("%s [%s - %s]: %d photos\n", m.Slug, m.Start, m.End, len(m.Photos))
		for _, p := range m.Photos {
			fmt.Printf("  %s\n", p)
		}
	}
}
