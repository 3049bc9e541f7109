package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/woozymasta/ndvimap/internal/auth"
	"github.com/woozymasta/ndvimap/internal/config"
	"github.com/woozymasta/ndvimap/internal/geo"
	"github.com/woozymasta/ndvimap/internal/stats"
	"github.com/woozymasta/ndvimap/internal/tiles"
)

// ErrNoCredentials is returned when the provider client ID or secret is missing.
var ErrNoCredentials = errors.New("provider client_id and client_secret are required")

// Context holds a configured service and the fields it serves.
type Context struct {
	Config  *config.Config
	Service *Service
	Tokens  *auth.Cache
	Fields  []geo.Field

	fieldResolver map[string]int
}

// NewContext wires the provider, tile and palette configuration into a
// Service and loads the configured fields.
func NewContext(ctx context.Context, cfg *config.Config, client *http.Client) (*Context, error) {
	log.Info().Str("fields", cfg.Fields).Msg("Initializing service context")

	if cfg.Provider.ClientID == "" || cfg.Provider.ClientSecret == "" {
		return nil, ErrNoCredentials
	}

	registry, err := cfg.Registry()
	if err != nil {
		return nil, err
	}

	tokens := auth.NewCache(&auth.HTTPExchanger{TokenURL: cfg.Provider.TokenURL, Client: client})
	deps := Deps{
		Stats: &stats.Client{
			URL:  cfg.Provider.StatsURL,
			HTTP: client,
			Tokens: auth.Source{
				Cache: tokens,
				Credentials: auth.Credentials{
					ClientID:     cfg.Provider.ClientID,
					ClientSecret: cfg.Provider.ClientSecret,
				},
			},
		},
		URLs:     tiles.NewURLCache(tiles.WithTTL(cfg.Tiles.URLTTL)),
		Palettes: registry,
	}

	if cfg.Tiles.Template != "" {
		fetcher, err := tiles.NewFetcher(client, tiles.FetcherOptions{
			CacheSize: cfg.Tiles.CacheSize,
			TTL:       cfg.Tiles.URLTTL,
		})
		if err != nil {
			return nil, err
		}
		deps.Resolver = tiles.TemplateResolver{Template: cfg.Tiles.Template}
		deps.Fetcher = fetcher
	} else {
		log.Debug().Msg("Tile template not configured, previews are synthesized")
	}

	c := &Context{
		Config: cfg,
		Tokens: tokens,
		Service: New(deps, Options{
			Stats:        cfg.Stats,
			Zoom:         cfg.Tiles.Zoom,
			MaxDimension: cfg.Preview.MaxDimension,
			DefaultNDVI:  cfg.Preview.DefaultNDVI,
			Palette:      cfg.Preview.Palette,
		}),
		fieldResolver: make(map[string]int),
	}

	if cfg.Fields != "" {
		fields, err := geo.LoadFields(ctx, client, cfg.Fields)
		if err != nil {
			return nil, fmt.Errorf("load fields: %w", err)
		}
		c.SetFields(fields)
	}

	log.Info().
		Int("fields", len(c.Fields)).
		Bool("tiles", deps.Resolver != nil).
		Msg("Service context initialized successfully")

	return c, nil
}

// SetFields replaces the field list. Fields are addressable by ID and,
// when the name is unique, by name.
func (c *Context) SetFields(fields []geo.Field) {
	c.Fields = fields
	c.fieldResolver = make(map[string]int, len(fields))

	seen := make(map[string]int, len(fields))
	for _, f := range fields {
		if f.Name != "" {
			seen[f.Name]++
		}
	}
	for i, f := range fields {
		if f.Name != "" && seen[f.Name] == 1 {
			c.fieldResolver[f.Name] = i
		}
	}
}

// Field finds a field by ID or name. An empty key selects the only field.
func (c *Context) Field(key string) (geo.Field, error) {
	f, err := geo.FindField(c.Fields, key)
	if err == nil {
		return f, nil
	}
	if i, ok := c.fieldResolver[key]; ok {
		return c.Fields[i], nil
	}
	return geo.Field{}, err
}
