package location

import (
	"errors"
	"testing"
)

const validYAML = `
locations:
  - id: we-the-pizza
    name: We The Pizza
    url: https://maps.app.goo.gl/XfCcjGbFchX6GwbS6
    lat: 38.886
    lng: -77.094
    category: pizza
  - id: freddies
    name: Freddie's Beach Bar
    url: https://maps.app.goo.gl/4pvjcqoabLzr1ak87
    lat: 38.857
    lng: -77.059
    category: gay_bar
  - id: crystal-city-pub
    name: Crystal City Sports Pub
    url: https://maps.app.goo.gl/84sX3twWH3MTyZkm6
    lat: 38.855
    lng: -77.051
    category: sports_bar
`

func TestParseValid(t *testing.T) {
	// WHAT: A well-formed set parses and routes categories to pools.
	// WHY: Pool routing decides which index a reading feeds.
	set, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if set.Active() != 3 {
		t.Fatalf("active: got %d, want 3", set.Active())
	}
	if got := set.PoolOf("we-the-pizza"); got != PoolPizza {
		t.Errorf("we-the-pizza pool: got %v, want PoolPizza", got)
	}
	if got := set.PoolOf("freddies"); got != PoolBar {
		t.Errorf("freddies pool: got %v, want PoolBar", got)
	}
	if got := set.PoolOf("crystal-city-pub"); got != PoolBar {
		t.Errorf("sports bar pool: got %v, want PoolBar", got)
	}
}

func TestParseRejectsUnknownCategory(t *testing.T) {
	// WHAT: A category that routes to no pool fails at load time.
	// WHY: Fatal configuration errors must surface before the first scan.
	_, err := Parse([]byte(`
locations:
  - id: x
    name: X
    url: https://example.com
    category: karaoke
`))
	if !errors.Is(err, ErrInvalidCategory) {
		t.Fatalf("err: got %v, want ErrInvalidCategory", err)
	}
}

func TestParseRejectsEmptySet(t *testing.T) {
	// WHAT: An empty set is rejected.
	_, err := Parse([]byte(`locations: []`))
	if !errors.Is(err, ErrNoLocations) {
		t.Fatalf("err: got %v, want ErrNoLocations", err)
	}
}

func TestParseRejectsDuplicateID(t *testing.T) {
	// WHAT: Duplicate location IDs are a configuration error.
	_, err := Parse([]byte(`
locations:
  - id: a
    url: https://example.com/1
    category: pizza
  - id: a
    url: https://example.com/2
    category: pizza
`))
	if err == nil {
		t.Fatal("expected error for duplicate id")
	}
}

func TestPoolOfUnknownID(t *testing.T) {
	// WHAT: Unknown IDs map to PoolNone so stray readings are discarded.
	set, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := set.PoolOf("nope"); got != PoolNone {
		t.Errorf("unknown pool: got %v, want PoolNone", got)
	}
}
