package config

import (
	"fmt"
	"time"
)

// Flags are command-line overrides shared by every command.
type Flags struct {
	ConfigFile   string        `short:"c" long:"config"        env:"CONFIG_FILE"      description:"Path to configuration file"`
	Fields       string        `short:"g" long:"fields"        env:"FIELDS"           description:"GeoJSON file or URL with field polygons"`
	ClientID     string        `long:"client-id"               env:"SH_CLIENT_ID"     description:"Statistics provider OAuth client ID"`
	ClientSecret string        `long:"client-secret"           env:"SH_CLIENT_SECRET" description:"Statistics provider OAuth client secret"`
	Interval     string        `long:"interval"                env:"INTERVAL"         description:"Aggregation interval as ISO-8601 duration (e.g. P5D)"`
	Timeout      time.Duration `long:"timeout"                 env:"HTTP_TIMEOUT"     description:"Outbound request timeout"`
}

// Resolve loads the configuration file, or defaults when none is given,
// and applies the overrides.
func (f Flags) Resolve() (*Config, error) {
	cfg := Default()
	if f.ConfigFile != "" {
		loaded, err := Load(f.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if f.Fields != "" {
		cfg.Fields = f.Fields
	}
	if f.ClientID != "" {
		cfg.Provider.ClientID = f.ClientID
	}
	if f.ClientSecret != "" {
		cfg.Provider.ClientSecret = f.ClientSecret
	}
	if f.Interval != "" {
		cfg.Stats.Interval = f.Interval
	}
	if f.Timeout > 0 {
		cfg.Provider.Timeout = f.Timeout
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	return cfg, nil
}
