// Package models contains domain types for the district product map.
package models

import (
	"encoding/json"
	"sort"
)

// Product is a sourced good shown as a marker inside the districts it comes from.
type Product struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// DistrictGroup is an operator-defined set of districts sharing a shading color.
// When a district belongs to several groups the last group wins.
type DistrictGroup struct {
	Name      string   `json:"name"`
	Districts []string `json:"districts"`
	Color     string   `json:"color"`
}

// Contains reports whether district is a member of the group.
func (g DistrictGroup) Contains(district string) bool {
	for _, d := range g.Districts {
		if d == district {
			return true
		}
	}
	return false
}

// MapConfig is the typed, read-only configuration of one map. It is built
// once per load and never mutated; the With* methods return new values.
type MapConfig struct {
	products         map[int]Product
	districtProducts map[string][]int
	groups           []DistrictGroup
	acronyms         map[string]string
}

// NewMapConfig copies its arguments into a new configuration value. Groups
// keep their order; it decides shading precedence.
func NewMapConfig(products []Product, districtProducts map[string][]int, groups []DistrictGroup, acronyms map[string]string) *MapConfig {
	c := &MapConfig{
		products:         make(map[int]Product, len(products)),
		districtProducts: make(map[string][]int, len(districtProducts)),
		groups:           make([]DistrictGroup, 0, len(groups)),
		acronyms:         make(map[string]string, len(acronyms)),
	}
	for _, p := range products {
		c.products[p.ID] = p
	}
	for d, ids := range districtProducts {
		c.districtProducts[d] = cloneInts(ids)
	}
	for _, g := range groups {
		g.Districts = cloneStrings(g.Districts)
		c.groups = append(c.groups, g)
	}
	for d, a := range acronyms {
		c.acronyms[d] = a
	}
	return c
}

// EmptyMapConfig returns a configuration with no products or groups.
func EmptyMapConfig() *MapConfig {
	return NewMapConfig(nil, nil, nil, nil)
}

// Product looks up a product by id.
func (c *MapConfig) Product(id int) (Product, bool) {
	p, ok := c.products[id]
	return p, ok
}

// Products returns all products sorted by id.
func (c *MapConfig) Products() []Product {
	out := make([]Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ProductsFor returns the product ids configured for a district, in order.
func (c *MapConfig) ProductsFor(district string) []int {
	return cloneInts(c.districtProducts[district])
}

// DistrictProducts returns a copy of the district to product id mapping.
func (c *MapConfig) DistrictProducts() map[string][]int {
	out := make(map[string][]int, len(c.districtProducts))
	for d, ids := range c.districtProducts {
		out[d] = cloneInts(ids)
	}
	return out
}

// Groups returns the district groups in declaration order.
func (c *MapConfig) Groups() []DistrictGroup {
	out := make([]DistrictGroup, len(c.groups))
	for i, g := range c.groups {
		g.Districts = cloneStrings(g.Districts)
		out[i] = g
	}
	return out
}

// Acronym returns the display acronym configured for a district.
func (c *MapConfig) Acronym(district string) (string, bool) {
	a, ok := c.acronyms[district]
	return a, ok
}

// Acronyms returns a copy of the district acronym mapping.
func (c *MapConfig) Acronyms() map[string]string {
	out := make(map[string]string, len(c.acronyms))
	for d, a := range c.acronyms {
		out[d] = a
	}
	return out
}

// DisplayName is the acronym of a district when one is configured, else its name.
func (c *MapConfig) DisplayName(district string) string {
	if a, ok := c.acronyms[district]; ok && a != "" {
		return a
	}
	return district
}

// WithProductColors returns a copy with the given product colors replaced.
// Ids that are not configured products are ignored.
func (c *MapConfig) WithProductColors(colors map[int]string) *MapConfig {
	products := c.Products()
	for i, p := range products {
		if col, ok := colors[p.ID]; ok {
			products[i].Color = col
		}
	}
	return NewMapConfig(products, c.districtProducts, c.groups, c.acronyms)
}

// WithGroupColors returns a copy with the given group colors replaced.
func (c *MapConfig) WithGroupColors(colors map[string]string) *MapConfig {
	groups := c.Groups()
	for i, g := range groups {
		if col, ok := colors[g.Name]; ok {
			groups[i].Color = col
		}
	}
	return NewMapConfig(c.Products(), c.districtProducts, groups, c.acronyms)
}

type mapConfigJSON struct {
	Products         []Product         `json:"products"`
	DistrictProducts map[string][]int  `json:"districtProducts"`
	Groups           []DistrictGroup   `json:"groups"`
	Acronyms         map[string]string `json:"acronyms"`
}

// MarshalJSON renders the configuration for API responses.
func (c *MapConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(mapConfigJSON{
		Products:         c.Products(),
		DistrictProducts: c.DistrictProducts(),
		Groups:           c.Groups(),
		Acronyms:         c.Acronyms(),
	})
}

func cloneInts(s []int) []int {
	out := make([]int, len(s))
	copy(out, s)
	return out
}

func cloneStrings(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
