// Package config handles configuration loading and defaults.
package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/woozymasta/ndvimap/internal/palette"
	"github.com/woozymasta/ndvimap/internal/stats"
	"github.com/woozymasta/ndvimap/internal/tiles"
)

// Default provider endpoints.
const (
	DefaultTokenURL = "https://services.sentinel-hub.com/auth/realms/main/protocol/openid-connect/token"
	DefaultStatsURL = "https://services.sentinel-hub.com/api/v1/statistics"
)

// Defaults that zero may legitimately override.
const (
	DefaultZoom = 14
	DefaultNDVI = 0.6
)

// Config represents the root configuration file structure.
type Config struct {
	// Fields is a GeoJSON file path or URL with the field polygons.
	Fields   string          `yaml:"fields,omitempty" json:"fields,omitempty"`
	Provider Provider        `yaml:"provider" json:"provider"`
	Stats    stats.Options   `yaml:"stats" json:"stats"`
	Tiles    Tiles           `yaml:"tiles" json:"tiles"`
	Preview  Preview         `yaml:"preview" json:"preview"`
	Palettes []PaletteConfig `yaml:"palettes,omitempty" json:"palettes,omitempty"`
}

// Provider describes the statistics provider and its OAuth client.
type Provider struct {
	TokenURL     string        `yaml:"token_url" json:"token_url"`
	StatsURL     string        `yaml:"stats_url" json:"stats_url"`
	ClientID     string        `yaml:"client_id,omitempty" json:"-"`
	ClientSecret string        `yaml:"client_secret,omitempty" json:"-"`
	Timeout      time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// Tiles configures the external tile service.
type Tiles struct {
	// Template may contain {field}, {z}, {x}, {y} and {tms_y}. Empty disables tiles.
	Template  string        `yaml:"template,omitempty" json:"template,omitempty"`
	Zoom      int           `yaml:"zoom,omitempty" json:"zoom,omitempty"`
	URLTTL    time.Duration `yaml:"url_ttl,omitempty" json:"url_ttl,omitempty"`
	CacheSize int           `yaml:"cache_size,omitempty" json:"cache_size,omitempty"`
}

// Preview configures synthetic preview rendering.
type Preview struct {
	MaxDimension int     `yaml:"max_dimension,omitempty" json:"max_dimension,omitempty"`
	DefaultNDVI  float64 `yaml:"default_ndvi,omitempty" json:"default_ndvi,omitempty"`
	Palette      string  `yaml:"palette,omitempty" json:"palette,omitempty"`
}

// PaletteConfig declares a custom tile palette.
type PaletteConfig struct {
	ID    string         `yaml:"id" json:"id"`
	Stops []palette.Stop `yaml:"stops" json:"stops"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{
		Tiles:   Tiles{Zoom: DefaultZoom},
		Preview: Preview{DefaultNDVI: DefaultNDVI},
	}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the YAML configuration file from the specified path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// keys absent from the file keep their defaults, zero values included
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Provider.TokenURL == "" {
		c.Provider.TokenURL = DefaultTokenURL
	}
	if c.Provider.StatsURL == "" {
		c.Provider.StatsURL = DefaultStatsURL
	}
	if c.Provider.Timeout <= 0 {
		c.Provider.Timeout = 30 * time.Second
	}
	if c.Stats.Interval == "" {
		c.Stats.Interval = "P10D"
	}
	if c.Tiles.URLTTL <= 0 {
		c.Tiles.URLTTL = tiles.DefaultURLTTL
	}
	if c.Tiles.CacheSize <= 0 {
		c.Tiles.CacheSize = 256
	}
	if c.Preview.MaxDimension <= 0 {
		c.Preview.MaxDimension = 512
	}
	if c.Preview.Palette == "" {
		c.Preview.Palette = palette.DefaultTileID
	}
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	if !stats.ValidInterval(c.Stats.Interval) {
		return fmt.Errorf("stats.interval %q is not an ISO-8601 duration", c.Stats.Interval)
	}
	if c.Stats.MaxCloudCoverage < 0 || c.Stats.MaxCloudCoverage > 100 {
		return fmt.Errorf("stats.max_cloud_coverage %d outside 0-100", c.Stats.MaxCloudCoverage)
	}
	if c.Tiles.Zoom < 0 || c.Tiles.Zoom > 22 {
		return fmt.Errorf("tiles.zoom %d outside 0-22", c.Tiles.Zoom)
	}
	if v := c.Preview.DefaultNDVI; math.IsNaN(v) || v < -1 || v > 1 {
		return fmt.Errorf("preview.default_ndvi %v outside [-1,1]", v)
	}
	if c.Preview.MaxDimension > 8192 {
		return fmt.Errorf("preview.max_dimension %d too large", c.Preview.MaxDimension)
	}

	registry, err := c.Registry()
	if err != nil {
		return err
	}
	if _, ok := registry.Lookup(c.Preview.Palette); !ok {
		return fmt.Errorf("preview.palette %q is not defined", c.Preview.Palette)
	}

	return nil
}

// Registry returns the built-in tile palettes plus the configured ones.
func (c *Config) Registry() (*palette.Registry, error) {
	registry := palette.NewRegistry()
	for _, pc := range c.Palettes {
		p, err := palette.New(pc.ID, pc.Stops...)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(p); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
