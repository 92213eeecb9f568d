// Package location holds the fixed set of monitored venues. The set is
// loaded once at startup from YAML and is immutable afterwards: every scan
// samples exactly these locations.
package location

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Category tags a venue and routes its readings into an index pool.
type Category string

const (
	CategoryPizza     Category = "pizza"
	CategoryGayBar    Category = "gay_bar"
	CategorySportsBar Category = "sports_bar"
)

// Pool identifies which composite index a reading contributes to.
type Pool int

const (
	PoolNone Pool = iota
	PoolPizza
	PoolBar
)

// Pool returns the index pool for a category. Bars of both kinds feed the
// gay bar index with equal weight.
func (c Category) Pool() Pool {
	switch c {
	case CategoryPizza:
		return PoolPizza
	case CategoryGayBar, CategorySportsBar:
		return PoolBar
	default:
		return PoolNone
	}
}

// ErrNoLocations is returned when the configured set is empty.
var ErrNoLocations = errors.New("location: no locations configured")

// ErrInvalidCategory is returned when a location's category maps to no pool.
var ErrInvalidCategory = errors.New("location: invalid category")

// Location is one monitored venue.
type Location struct {
	ID       string   `yaml:"id" json:"id"`
	Name     string   `yaml:"name" json:"name"`
	URL      string   `yaml:"url" json:"url"`
	Lat      float64  `yaml:"lat" json:"lat"`
	Lng      float64  `yaml:"lng" json:"lng"`
	Category Category `yaml:"category" json:"category"`
}

// Set is the validated, immutable location set.
type Set struct {
	Locations []Location `yaml:"locations"`
}

// Load reads and validates a location set from a YAML file.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("location: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse validates a YAML location set. Validation is strict: a location
// whose category routes to no pool is a configuration error, rejected here
// rather than silently skipped at scan time.
func Parse(data []byte) (*Set, error) {
	var set Set
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("location: parse: %w", err)
	}
	if len(set.Locations) == 0 {
		return nil, ErrNoLocations
	}
	seen := make(map[string]bool, len(set.Locations))
	for i := range set.Locations {
		loc := &set.Locations[i]
		if loc.ID == "" {
			return nil, fmt.Errorf("location: entry %d has no id", i)
		}
		if seen[loc.ID] {
			return nil, fmt.Errorf("location: duplicate id %q", loc.ID)
		}
		seen[loc.ID] = true
		if loc.URL == "" {
			return nil, fmt.Errorf("location %s: no url", loc.ID)
		}
		if loc.Category.Pool() == PoolNone {
			return nil, fmt.Errorf("%w: location %s has category %q", ErrInvalidCategory, loc.ID, loc.Category)
		}
	}
	return &set, nil
}

// Active returns the number of monitored locations.
func (s *Set) Active() int {
	return len(s.Locations)
}

// ByID returns the location with the given ID, or nil.
func (s *Set) ByID(id string) *Location {
	for i := range s.Locations {
		if s.Locations[i].ID == id {
			return &s.Locations[i]
		}
	}
	return nil
}

// PoolOf returns the pool for a location ID, or PoolNone when unknown.
func (s *Set) PoolOf(id string) Pool {
	if loc := s.ByID(id); loc != nil {
		return loc.Category.Pool()
	}
	return PoolNone
}
