package parser

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/districtmap/backend/internal/models"
	"github.com/districtmap/backend/internal/palette"
	"gopkg.in/yaml.v3"
)

// Sections of a map configuration document.
const (
	SectionProductCodes     = "product_codes"
	SectionProductColors    = "product_colors"
	SectionDistrictProducts = "district_products"
	SectionDistrictGroups   = "district_groups"
	SectionGroupColors      = "group_colors"
	SectionDistrictAcronyms = "district_acronyms"
)

// ErrInvalidMapConfig wraps every load-time configuration error.
var ErrInvalidMapConfig = errors.New("invalid map config")

//go:embed defaults/map_config.yaml
var defaultMapConfig []byte

// DefaultMapConfigYAML returns the built-in configuration document.
func DefaultMapConfigYAML() []byte {
	return append([]byte(nil), defaultMapConfig...)
}

// DefaultMapConfig parses the built-in configuration document.
func DefaultMapConfig() (*models.MapConfig, error) {
	return ParseMapConfigBytes(defaultMapConfig)
}

// ParseMapConfig reads a YAML or JSON map configuration file.
func ParseMapConfig(filePath string) (*models.MapConfig, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseMapConfigFromReader(file)
}

// ParseMapConfigFromReader parses a configuration document from an io.Reader.
func ParseMapConfigFromReader(r io.Reader) (*models.MapConfig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ParseMapConfigBytes(data)
}

// ParseMapConfigBytes parses a configuration document. Product id keys are
// normalized to integers here and nowhere else; products without a color get
// a generated one.
func ParseMapConfigBytes(data []byte) (*models.MapConfig, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMapConfig, err)
	}
	if len(doc.Content) == 0 {
		return models.EmptyMapConfig(), nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, configErr(root, "document must be a mapping of sections")
	}

	var (
		names    = map[int]string{}
		colors   = map[int]string{}
		order    []int
		products = map[string][]int{}
		groups   []models.DistrictGroup
		gcolors  []namedValue
		acronyms = map[string]string{}
		seen     = map[string]bool{}
	)
	addID := func(id int) {
		if _, ok := names[id]; ok {
			return
		}
		if _, ok := colors[id]; ok {
			return
		}
		order = append(order, id)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		section := strings.TrimSpace(key.Value)
		if seen[section] {
			return nil, configErr(key, "duplicate section %q", section)
		}
		seen[section] = true
		if isNull(val) {
			continue
		}

		switch section {
		case SectionProductCodes, SectionProductColors:
			entries, err := productEntries(val)
			if err != nil {
				return nil, err
			}
			for _, e := range entries {
				addID(e.id)
				if section == SectionProductCodes {
					names[e.id] = e.value
				} else {
					colors[e.id] = e.value
				}
			}
		case SectionDistrictProducts:
			entries, err := mappingEntries(val)
			if err != nil {
				return nil, err
			}
			for _, e := range entries {
				ids, err := productIDList(e.node)
				if err != nil {
					return nil, err
				}
				products[e.name] = ids
			}
		case SectionDistrictGroups:
			entries, err := mappingEntries(val)
			if err != nil {
				return nil, err
			}
			for _, e := range entries {
				districts, err := stringList(e.node)
				if err != nil {
					return nil, err
				}
				groups = append(groups, models.DistrictGroup{Name: e.name, Districts: districts})
			}
		case SectionGroupColors:
			entries, err := mappingEntries(val)
			if err != nil {
				return nil, err
			}
			for _, e := range entries {
				s, err := scalar(e.node)
				if err != nil {
					return nil, err
				}
				gcolors = append(gcolors, namedValue{name: e.name, value: s})
			}
		case SectionDistrictAcronyms:
			entries, err := mappingEntries(val)
			if err != nil {
				return nil, err
			}
			for _, e := range entries {
				s, err := scalar(e.node)
				if err != nil {
					return nil, err
				}
				acronyms[e.name] = s
			}
		default:
			return nil, configErr(key, "unknown section %q", section)
		}
	}

	for id, c := range colors {
		if !palette.Valid(c) {
			return nil, fmt.Errorf("%w: product %d: invalid color %q", ErrInvalidMapConfig, id, c)
		}
	}
	for _, gc := range gcolors {
		if !palette.Valid(gc.value) {
			return nil, fmt.Errorf("%w: group %q: invalid color %q", ErrInvalidMapConfig, gc.name, gc.value)
		}
	}

	list := make([]models.Product, 0, len(order))
	for _, id := range order {
		col, ok := colors[id]
		if !ok {
			col = palette.Generate(id)
		}
		list = append(list, models.Product{ID: id, Name: names[id], Color: col})
	}

	// Group colors attach to declared groups; colors for undeclared groups
	// become empty groups so they still show in the legend.
	index := make(map[string]int, len(groups))
	for i, g := range groups {
		index[g.Name] = i
	}
	for _, gc := range gcolors {
		if i, ok := index[gc.name]; ok {
			groups[i].Color = gc.value
			continue
		}
		index[gc.name] = len(groups)
		groups = append(groups, models.DistrictGroup{Name: gc.name, Districts: []string{}, Color: gc.value})
	}

	return models.NewMapConfig(list, products, groups, acronyms), nil
}

// MarshalMapConfig serializes cfg back to a YAML document that parses to an
// equivalent configuration. Products are written in id order, groups in
// declaration order.
func MarshalMapConfig(cfg *models.MapConfig) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	add := func(name string, node *yaml.Node) {
		root.Content = append(root.Content, strNode(name), node)
	}

	products := cfg.Products()
	codes := mapNode()
	colors := mapNode()
	for _, p := range products {
		if p.Name != "" {
			codes.Content = append(codes.Content, intNode(p.ID), strNode(p.Name))
		}
		colors.Content = append(colors.Content, intNode(p.ID), strNode(p.Color))
	}
	add(SectionProductCodes, codes)
	add(SectionProductColors, colors)

	dp := cfg.DistrictProducts()
	districts := make([]string, 0, len(dp))
	for d := range dp {
		districts = append(districts, d)
	}
	sort.Strings(districts)
	dpNode := mapNode()
	for _, d := range districts {
		seq := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, id := range dp[d] {
			seq.Content = append(seq.Content, intNode(id))
		}
		dpNode.Content = append(dpNode.Content, strNode(d), seq)
	}
	add(SectionDistrictProducts, dpNode)

	groups := mapNode()
	gcolors := mapNode()
	for _, g := range cfg.Groups() {
		seq := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, d := range g.Districts {
			seq.Content = append(seq.Content, strNode(d))
		}
		groups.Content = append(groups.Content, strNode(g.Name), seq)
		if g.Color != "" {
			gcolors.Content = append(gcolors.Content, strNode(g.Name), strNode(g.Color))
		}
	}
	add(SectionDistrictGroups, groups)
	add(SectionGroupColors, gcolors)

	acr := cfg.Acronyms()
	names := make([]string, 0, len(acr))
	for d := range acr {
		names = append(names, d)
	}
	sort.Strings(names)
	acrNode := mapNode()
	for _, d := range names {
		acrNode.Content = append(acrNode.Content, strNode(d), strNode(acr[d]))
	}
	add(SectionDistrictAcronyms, acrNode)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type productEntry struct {
	id    int
	value string
}

type namedValue struct {
	name  string
	value string
}

type namedNode struct {
	name string
	node *yaml.Node
}

func productEntries(n *yaml.Node) ([]productEntry, error) {
	if n.Kind != yaml.MappingNode {
		return nil, configErr(n, "expected a mapping of product ids")
	}
	seen := map[int]bool{}
	out := make([]productEntry, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		id, err := productID(n.Content[i])
		if err != nil {
			return nil, err
		}
		if seen[id] {
			return nil, configErr(n.Content[i], "duplicate product id %d", id)
		}
		seen[id] = true
		s, err := scalar(n.Content[i+1])
		if err != nil {
			return nil, err
		}
		out = append(out, productEntry{id: id, value: s})
	}
	return out, nil
}

func mappingEntries(n *yaml.Node) ([]namedNode, error) {
	if n.Kind != yaml.MappingNode {
		return nil, configErr(n, "expected a mapping")
	}
	seen := map[string]bool{}
	out := make([]namedNode, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		name, err := scalar(n.Content[i])
		if err != nil {
			return nil, err
		}
		if seen[name] {
			return nil, configErr(n.Content[i], "duplicate key %q", name)
		}
		seen[name] = true
		out = append(out, namedNode{name: name, node: n.Content[i+1]})
	}
	return out, nil
}

func productID(n *yaml.Node) (int, error) {
	if n.Kind != yaml.ScalarNode {
		return 0, configErr(n, "product id must be an integer")
	}
	id, err := strconv.Atoi(strings.TrimSpace(n.Value))
	if err != nil {
		return 0, configErr(n, "product id %q is not an integer", n.Value)
	}
	return id, nil
}

func productIDList(n *yaml.Node) ([]int, error) {
	if isNull(n) {
		return []int{}, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, configErr(n, "expected a list of product ids")
	}
	ids := make([]int, 0, len(n.Content))
	for _, item := range n.Content {
		id, err := productID(item)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func stringList(n *yaml.Node) ([]string, error) {
	if isNull(n) {
		return []string{}, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, configErr(n, "expected a list of district names")
	}
	out := make([]string, 0, len(n.Content))
	for _, item := range n.Content {
		s, err := scalar(item)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func scalar(n *yaml.Node) (string, error) {
	if n.Kind != yaml.ScalarNode {
		return "", configErr(n, "expected a scalar value")
	}
	return n.Value, nil
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null"
}

func configErr(n *yaml.Node, format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrInvalidMapConfig, n.Line, fmt.Sprintf(format, args...))
}

func mapNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode}
}

func strNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func intNode(i int) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(i)}
}
