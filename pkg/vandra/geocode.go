package vandra

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
	"k8s.io/klog/v2"
)

// ErrNoCountry is returned when a lookup succeeds but names no country.
var ErrNoCountry = errors.New("response has no country")

// Geocoder resolves coordinates to a human-readable place name.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (string, error)
}

// Nominatim is a Geocoder for the OpenStreetMap Nominatim reverse API.
type Nominatim struct {
	endpoint  string
	locale    string
	zoom      int
	userAgent string
	timeout   time.Duration

	client  *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[string]
}

type nominatimResponse struct {
	Address map[string]string `json:"address"`
	Error   string            `json:"error"`
}

// NewNominatim returns a Nominatim client. Requests are limited to c.Rate per second
// (unlimited if zero), and stop being sent for a while after repeated failures.
func NewNominatim(c GeocodeConfig) *Nominatim {
	limit := rate.Inf
	if c.Rate > 0 {
		limit = rate.Limit(c.Rate)
	}

	n := &Nominatim{
		endpoint:  strings.TrimSuffix(c.Endpoint, "/"),
		locale:    c.Locale,
		zoom:      c.Zoom,
		userAgent: c.UserAgent,
		timeout:   c.Timeout,
		client:    &http.Client{},
		limiter:   rate.NewLimiter(limit, 1),
	}

	n.cb = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "nominatim",
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		// a place without a country is an answer, not an outage
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNoCountry)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			klog.Warningf("%s circuit breaker: %s -> %s", name, from, to)
		},
	})
	return n
}

// ReverseGeocode returns the country containing lat/lon.
func (n *Nominatim) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}

	return n.cb.Execute(func() (string, error) {
		return n.lookup(ctx, lat, lon)
	})
}

func (n *Nominatim) lookup(ctx context.Context, lat, lon float64) (string, error) {
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("zoom", strconv.Itoa(n.zoom))
	q.Set("accept-language", n.locale)
	u := n.endpoint + "/reverse?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	klog.V(1).Infof("GET %s", u)
	resp, err := n.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("get %s: unexpected status %s", u, resp.Status)
	}

	var r nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}

	if r.Error != "" {
		return "", fmt.Errorf("nominatim: %s", r.Error)
	}

	country := r.Address["country"]
	if country == "" {
		return "", ErrNoCountry
	}
	return country, nil
}
