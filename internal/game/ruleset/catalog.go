package ruleset

import (
	"fmt"
	"strings"
)

// Catalog holds all loaded item definitions indexed by ID, preserving
// registration order so uniform picks are reproducible under a seeded
// randomness source.
type Catalog struct {
	items map[string]*ItemDef
	order []string
}

// NewCatalog returns an empty Catalog.
//
// Postcondition: all internal maps are initialised.
func NewCatalog() *Catalog {
	return &Catalog{items: make(map[string]*ItemDef)}
}

// BuildCatalog loads every item definition in dir into a fresh Catalog.
func BuildCatalog(dir string) (*Catalog, error) {
	defs, err := LoadItems(dir)
	if err != nil {
		return nil, err
	}
	c := NewCatalog()
	for _, d := range defs {
		if err := c.Register(d); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Register adds d to the catalog.
//
// Precondition: d must not be nil and must pass Validate.
// Postcondition: Item(d.ID) returns (d, true); returns error if d.ID is
// already registered.
func (c *Catalog) Register(d *ItemDef) error {
	if _, exists := c.items[d.ID]; exists {
		return fmt.Errorf("ruleset: Catalog.Register: item ID %q already registered", d.ID)
	}
	c.items[d.ID] = d
	c.order = append(c.order, d.ID)
	return nil
}

// Item returns the ItemDef for the given id.
func (c *Catalog) Item(id string) (*ItemDef, bool) {
	d, ok := c.items[id]
	return d, ok
}

// ByName returns the ItemDef whose display name matches name,
// case-insensitively. Callers pass user-typed names.
func (c *Catalog) ByName(name string) (*ItemDef, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	for _, id := range c.order {
		if strings.ToLower(c.items[id].Name) == needle {
			return c.items[id], true
		}
	}
	return nil, false
}

// IDs returns the registered item IDs in registration order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Len returns the number of registered items.
func (c *Catalog) Len() int {
	return len(c.order)
}
