package palette

import (
	"fmt"
	"sort"
	"sync"
)

// Synthetic is the fixed 9-band gradient used for procedural previews.
// It is kept separate from the selectable tile palettes.
var Synthetic = MustNew("synthetic",
	Stop{0.00, RGB{165, 0, 38}},
	Stop{0.15, RGB{215, 48, 39}},
	Stop{0.30, RGB{244, 109, 67}},
	Stop{0.40, RGB{253, 174, 97}},
	Stop{0.50, RGB{254, 224, 139}},
	Stop{0.60, RGB{217, 239, 139}},
	Stop{0.70, RGB{166, 217, 106}},
	Stop{0.80, RGB{102, 189, 99}},
	Stop{1.00, RGB{26, 152, 80}},
)

// Selectable tile palettes, addressed by ID in tile URLs.
var (
	Classic = MustNew("classic",
		Stop{0.0, RGB{255, 0, 0}},
		Stop{0.2, RGB{255, 165, 0}},
		Stop{0.5, RGB{255, 255, 0}},
		Stop{1.0, RGB{0, 128, 0}},
	)
	Contrast = MustNew("contrast",
		Stop{0.0, RGB{128, 0, 0}},
		Stop{0.25, RGB{230, 60, 30}},
		Stop{0.5, RGB{250, 220, 50}},
		Stop{0.75, RGB{90, 200, 60}},
		Stop{1.0, RGB{0, 90, 30}},
	)
	Viridis = MustNew("viridis",
		Stop{0.0, RGB{68, 1, 84}},
		Stop{0.25, RGB{59, 82, 139}},
		Stop{0.5, RGB{33, 145, 140}},
		Stop{0.75, RGB{94, 201, 98}},
		Stop{1.0, RGB{253, 231, 37}},
	)
	Greens = MustNew("greens",
		Stop{0.0, RGB{247, 252, 245}},
		Stop{0.2, RGB{199, 233, 192}},
		Stop{0.4, RGB{161, 217, 155}},
		Stop{0.6, RGB{116, 196, 118}},
		Stop{0.8, RGB{49, 163, 84}},
		Stop{1.0, RGB{0, 109, 44}},
	)
)

// DefaultTileID is the palette applied to tiles when none is requested.
const DefaultTileID = "classic"

// Registry holds selectable tile palettes by ID.
type Registry struct {
	mu       sync.RWMutex
	palettes map[string]*Palette
}

// NewRegistry creates a registry seeded with the built-in tile palettes.
func NewRegistry() *Registry {
	r := &Registry{palettes: make(map[string]*Palette)}
	for _, p := range []*Palette{Classic, Contrast, Viridis, Greens} {
		r.palettes[p.ID()] = p
	}
	return r
}

// Register adds or replaces a palette.
func (r *Registry) Register(p *Palette) error {
	if p == nil || p.ID() == "" {
		return fmt.Errorf("palette must have an id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.palettes[p.ID()] = p
	return nil
}

// Lookup returns the palette with the given ID.
func (r *Registry) Lookup(id string) (*Palette, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.palettes[id]
	return p, ok
}

// IDs lists registered palette IDs in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.palettes))
	for id := range r.palettes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
