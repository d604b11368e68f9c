package vandra

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"golang.org/x/sync/singleflight"
	"k8s.io/klog/v2"
)

// CachedGeocoder remembers successful lookups by coordinates rounded to two decimal
// places (roughly a kilometer), and merges concurrent lookups of the same place.
type CachedGeocoder struct {
	next   Geocoder
	locale string
	db     *badger.DB
	group  singleflight.Group
}

// NewCachedGeocoder wraps next. The cache is kept in dir, or in memory if dir is empty.
func NewCachedGeocoder(next Geocoder, dir string, locale string) (*CachedGeocoder, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open geocode cache: %w", err)
	}
	return &CachedGeocoder{next: next, locale: locale, db: db}, nil
}

func (c *CachedGeocoder) key(lat, lon float64) string {
	return fmt.Sprintf("geo/%s/%.2f,%.2f", c.locale, lat, lon)
}

func (c *CachedGeocoder) get(k string) (string, bool) {
	var v []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(k))
		if err != nil {
			return err
		}
		v, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			klog.Warningf("geocode cache read %s: %v", k, err)
		}
		return "", false
	}
	return string(v), true
}

// ReverseGeocode returns a cached place name, or asks the wrapped Geocoder.
// Concurrent lookups of the same place share one request, which is not
// cancelled when one of the callers gives up.
func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	k := c.key(lat, lon)
	if place, ok := c.get(k); ok {
		klog.V(1).Infof("geocode cache hit: %s = %q", k, place)
		return place, nil
	}

	ch := c.group.DoChan(k, func() (interface{}, error) {
		if place, ok := c.get(k); ok {
			return place, nil
		}

		place, err := c.next.ReverseGeocode(context.WithoutCancel(ctx), lat, lon)
		if err != nil {
			return "", err
		}

		if err := c.db.Update(func(txn *badger.Txn) error {
			return txn.Set([]byte(k), []byte(place))
		}); err != nil {
			klog.Warningf("geocode cache write %s: %v", k, err)
		}
		return place, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return "", r.Err
		}
		return r.Val.(string), nil
	}
}

// Close closes the cache.
func (c *CachedGeocoder) Close() error {
	return c.db.Close()
}
