package location

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/yeleman/anam-desktop/internal/domain"
)

// Commune reference entry
type Commune struct {
	ID   int64  `yaml:"id"`
	Slug string `yaml:"slug"`
	Name string `yaml:"name"`
}

// Cercle reference entry
type Cercle struct {
	ID       int64     `yaml:"id"`
	Slug     string    `yaml:"slug"`
	Name     string    `yaml:"name"`
	Communes []Commune `yaml:"communes"`
}

// Region reference entry
type Region struct {
	ID      int64    `yaml:"id"`
	Slug    string   `yaml:"slug"`
	Name    string   `yaml:"name"`
	Cercles []Cercle `yaml:"cercles"`
}

type communeKey struct {
	cercle  string
	commune string
}

// Table administrative areas of the case database, keyed by survey slug.
// Commune slugs repeat across cercles so communes are looked up with their cercle.
type Table struct {
	regions  map[string]int64
	cercles  map[string]int64
	communes map[communeKey]int64
}

// LoadFile reads a YAML (or JSON) reference file
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read locations file: %w", err)
	}
	return Parse(data)
}

// Parse reads the reference document `regions: [...]`
func Parse(data []byte) (*Table, error) {
	var doc struct {
		Regions []Region `yaml:"regions"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse locations: %w", err)
	}
	return NewTable(doc.Regions)
}

// NewTable indexes regions, rejecting duplicate slugs
func NewTable(regions []Region) (*Table, error) {
	t := &Table{
		regions:  make(map[string]int64),
		cercles:  make(map[string]int64),
		communes: make(map[communeKey]int64),
	}
	var errs []error
	for _, r := range regions {
		if _, dup := t.regions[norm(r.Slug)]; dup {
			errs = append(errs, fmt.Errorf("duplicate region %q", r.Slug))
		}
		t.regions[norm(r.Slug)] = r.ID
		for _, c := range r.Cercles {
			if _, dup := t.cercles[norm(c.Slug)]; dup {
				errs = append(errs, fmt.Errorf("duplicate cercle %q", c.Slug))
			}
			t.cercles[norm(c.Slug)] = c.ID
			for _, m := range c.Communes {
				key := communeKey{cercle: norm(c.Slug), commune: norm(m.Slug)}
				if _, dup := t.communes[key]; dup {
					errs = append(errs, fmt.Errorf("duplicate commune %q in cercle %q", m.Slug, c.Slug))
				}
				t.communes[key] = m.ID
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return t, nil
}

// ResolveCommune is the strict lookup used where a location is mandatory
func (t *Table) ResolveCommune(commune, cercle string) (int64, error) {
	id, ok := t.Commune(commune, cercle)
	if !ok {
		return 0, &domain.LocationError{Commune: commune, Cercle: cercle}
	}
	return id, nil
}

// Commune lenient commune lookup
func (t *Table) Commune(commune, cercle string) (int64, bool) {
	if commune == "" || cercle == "" {
		return 0, false
	}
	id, ok := t.communes[communeKey{cercle: norm(cercle), commune: norm(commune)}]
	return id, ok
}

// Cercle lenient cercle lookup
func (t *Table) Cercle(slug string) (int64, bool) {
	if slug == "" {
		return 0, false
	}
	id, ok := t.cercles[norm(slug)]
	return id, ok
}

// Region lenient region lookup
func (t *Table) Region(slug string) (int64, bool) {
	if slug == "" {
		return 0, false
	}
	id, ok := t.regions[norm(slug)]
	return id, ok
}

// Size number of communes indexed
func (t *Table) Size() int { return len(t.communes) }

func norm(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}
