package feature

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownFeature is returned for names not in the catalog.
	ErrUnknownFeature = errors.New("feature: unknown feature")

	// ErrNoConstructor is returned for catalog names nothing registered.
	ErrNoConstructor = errors.New("feature: no constructor registered")
)

// Constructor builds a feature for one sample.
type Constructor func(env Env) (Feature, error)

// Entry is one catalog row.
type Entry struct {
	Index int
	New   Constructor
}

// Catalog maps feature names to their label index and constructor. The
// label index of a name is its position in the list given to NewCatalog.
// A catalog is built once at startup and is read-only afterwards.
type Catalog struct {
	names   []string
	entries map[string]Entry
}

// NewCatalog returns a catalog over the given label names. Names are
// normalized with Normalize and must be unique.
func NewCatalog(names []string) (*Catalog, error) {
	c := &Catalog{entries: make(map[string]Entry, len(names))}
	for i, n := range names {
		n = Normalize(n)
		if n == "" {
			return nil, fmt.Errorf("feature: empty name at index %d", i)
		}
		if _, dup := c.entries[n]; dup {
			return nil, fmt.Errorf("feature: duplicate name %q", n)
		}
		c.names = append(c.names, n)
		c.entries[n] = Entry{Index: i}
	}
	return c, nil
}

// Register attaches a constructor to a catalog name.
func (c *Catalog) Register(name string, ctor Constructor) error {
	name = Normalize(name)
	e, ok := c.entries[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFeature, name)
	}
	e.New = ctor
	c.entries[name] = e
	return nil
}

// Index returns the label index of name.
func (c *Catalog) Index(name string) (int, bool) {
	e, ok := c.entries[Normalize(name)]
	return e.Index, ok
}

// Name returns the name at a label index, or "" when out of range.
func (c *Catalog) Name(index int) string {
	if index < 0 || index >= len(c.names) {
		return ""
	}
	return c.names[index]
}

// Names returns the label names in index order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}

// Buildable returns the names that have a constructor, in index order.
func (c *Catalog) Buildable() []string {
	var out []string
	for _, n := range c.names {
		if c.entries[n].New != nil {
			out = append(out, n)
		}
	}
	return out
}

// New constructs the named feature.
func (c *Catalog) New(name string, env Env) (Feature, error) {
	name = Normalize(name)
	e, ok := c.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFeature, name)
	}
	if e.New == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoConstructor, name)
	}
	return e.New(env)
}

// Normalize lower-cases a feature name and maps '-' and ' ' to '_', so
// "Spur-Gear" and "spur_gear" name the same feature.
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer("-", "_", " ", "_").Replace(name)
}
