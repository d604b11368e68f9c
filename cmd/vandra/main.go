package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	_ "image/jpeg"
	_ "image/png"

	"github.com/fsnotify/fsnotify"
	"k8s.io/klog/v2"

	"github.com/tstromberg/vandra/pkg/vandra"
)

var (
	configPath = flag.String("config", "config.yaml", "Location of the site configuration file")
	listen     = flag.Bool("listen", false, "serve content via HTTP")
	addr       = flag.String("addr", "localhost:12800", "host:port to bind to in listen mode")
	watchFlag  = flag.Bool("watch", false, "watch for changes to the input directories and rebuild")
	debounce   = flag.Duration("debounce", 2*time.Second, "how long to wait for changes to settle before rebuilding")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	c, err := vandra.LoadConfig(*configPath)
	if err != nil {
		klog.Exitf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	d, closeDeps, err := newDeps(c)
	if err != nil {
		klog.Exitf("setup failed: %v", err)
	}
	defer closeDeps()

	if _, err := vandra.Build(ctx, c, d); err != nil {
		klog.Exitf("build failed: %v", err)
	}

	var wg sync.WaitGroup
	if *watchFlag {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := watch(ctx, c, d); err != nil {
				klog.Errorf("watch: %v", err)
			}
		}()
	}

	if *listen {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serve(ctx, c.Data.SiteOutput, *addr)
		}()
	}

	wg.Wait()
}

// newDeps wires the collaborators selected by the configuration.
func newDeps(c *vandra.Config) (vandra.Deps, func(), error) {
	closers := []func() error{}
	closeAll := func() {
		for _, f := range closers {
			if err := f(); err != nil {
				klog.Errorf("close: %v", err)
			}
		}
	}

	d := vandra.Deps{Tracks: vandra.GPXReader{}}

	switch c.Metadata.Backend {
	case "goexif":
		d.Metadata = &vandra.GoexifStore{Quality: c.Thumbnail.Quality}
	default:
		et, err := vandra.NewExiftoolStore(c.Metadata.ExiftoolPath)
		if err != nil {
			return d, closeAll, err
		}
		d.Metadata = et
	}
	closers = append(closers, d.Metadata.Close)

	if c.Geocode.Enabled {
		cg, err := vandra.NewCachedGeocoder(vandra.NewNominatim(c.Geocode), c.Geocode.CacheDir, c.Geocode.Locale)
		if err != nil {
			closeAll()
			return d, func() {}, err
		}
		d.Geocoder = cg
		closers = append(closers, cg.Close)
	}

	r, err := vandra.NewTemplateRenderer()
	if err != nil {
		closeAll()
		return d, func() {}, err
	}
	d.Renderer = r

	return d, closeAll, nil
}

// serve serves a static web directory via HTTP
func serve(ctx context.Context, path string, addr string) {
	srv := &http.Server{Addr: addr, Handler: http.FileServer(http.Dir(path))}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	klog.Infof("Listening on %s...", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		klog.Exitf("listen failed: %v", err)
	}
}

// watch rebuilds the site when the input directories change.
func watch(ctx context.Context, c *vandra.Config, d vandra.Deps) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("new watcher: %w", err)
	}
	defer w.Close()

	for _, dir := range []string{c.Data.GPXInput, c.Data.ImgInput} {
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	klog.Infof("watching %s and %s ...", c.Data.GPXInput, c.Data.ImgInput)

	var timer <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			klog.V(1).Infof("event: %s", event)
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				timer = time.After(*debounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			klog.Errorf("watch error: %v", err)
		case <-timer:
			timer = nil
			if _, err := vandra.Build(ctx, c, d); err != nil {
				klog.Errorf("rebuild failed: %v", err)
			}
		}
	}
}
