package vandra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables that override the config file.
// Nested keys are separated by a double underscore: VANDRA_GEOCODE__ENABLED=false
const EnvPrefix = "VANDRA_"

// Config holds configuration for vandra.
type Config struct {
	Site      Site           `koanf:"site"`
	Data      Data           `koanf:"data"`
	Metadata  MetadataConfig `koanf:"metadata"`
	Geocode   GeocodeConfig  `koanf:"geocode"`
	Thumbnail ThumbOpts      `koanf:"thumbnail"`

	// Workers is the number of tracks processed at once.
	Workers int `koanf:"workers" validate:"min=1,max=64"`

	// PublishUnmatched renders tracks that have no photos with an empty gallery.
	PublishUnmatched bool `koanf:"publish_unmatched"`
}

// Site is metadata about the generated site, passed to every template.
type Site struct {
	Name        string `koanf:"name"`
	Description string `koanf:"description"`
	BaseURI     string `koanf:"base_uri"`
	Proto       string `koanf:"proto" validate:"omitempty,oneof=http https"`
	// AssetsDir holds extra static files copied into <site_output>/static.
	AssetsDir string `koanf:"assets_dir"`
}

// Data points at the input and output directories.
type Data struct {
	GPXInput   string `koanf:"gpx_input" validate:"required"`
	ImgInput   string `koanf:"img_input" validate:"required"`
	SiteOutput string `koanf:"site_output" validate:"required"`
}

// MetadataConfig selects how capture times are read and metadata is removed.
type MetadataConfig struct {
	Backend      string `koanf:"backend" validate:"oneof=exiftool goexif"`
	ExiftoolPath string `koanf:"exiftool_path"`
}

// GeocodeConfig configures reverse geocoding of track centroids.
type GeocodeConfig struct {
	Enabled   bool          `koanf:"enabled"`
	Endpoint  string        `koanf:"endpoint" validate:"omitempty,url"`
	Locale    string        `koanf:"locale"`
	Zoom      int           `koanf:"zoom" validate:"min=0,max=18"`
	Timeout   time.Duration `koanf:"timeout" validate:"gte=0"`
	Rate      float64       `koanf:"rate" validate:"gte=0"`
	UserAgent string        `koanf:"user_agent"`
	// CacheDir persists lookups across runs. Empty keeps them in memory.
	CacheDir string `koanf:"cache_dir"`
}

// ThumbOpts are thumbnail options.
type ThumbOpts struct {
	// Size is the edge of the square box thumbnails are fitted into.
	Size    int `koanf:"size" validate:"min=1"`
	Quality int `koanf:"quality" validate:"min=1,max=100"`
}

// DefaultConfig returns a configuration with every optional setting filled in.
func DefaultConfig() *Config {
	return &Config{
		Site: Site{
			Name:  "vandra",
			Proto: "https",
		},
		Metadata: MetadataConfig{Backend: "exiftool"},
		Geocode: GeocodeConfig{
			Enabled:   true,
			Endpoint:  "https://nominatim.openstreetmap.org",
			Locale:    "en",
			Zoom:      3,
			Timeout:   10 * time.Second,
			Rate:      1,
			UserAgent: "vandra/1.0",
		},
		Thumbnail: ThumbOpts{Size: 300, Quality: 85},
		Workers:   4,
	}
}

// LoadConfig reads the YAML config document at path, layered over DefaultConfig and
// under VANDRA_ environment variables.
func LoadConfig(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, &ConfigError{Field: "path", Err: err}
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	c := &Config{}
	if err := k.Unmarshal("", c); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// envKey maps VANDRA_GEOCODE__CACHE_DIR to geocode.cache_dir.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

var validate = validator.New()

// Validate checks the configuration for values Build cannot work with.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var ves validator.ValidationErrors
		if errors.As(err, &ves) && len(ves) > 0 {
			return &ConfigError{Field: ves[0].Namespace(), Err: fmt.Errorf("failed %q validation", ves[0].Tag())}
		}
		return &ConfigError{Field: "config", Err: err}
	}

	if c.Geocode.Enabled && c.Geocode.Endpoint == "" {
		return &ConfigError{Field: "Config.Geocode.Endpoint", Err: errors.New("required when geocoding is enabled")}
	}
	return nil
}
