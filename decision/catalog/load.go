package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"menu-cost/decision/discount"
)

//go:embed default_menu.yaml
var defaultMenu []byte

// Default returns the built-in reference menu
func Default() *Catalog {
	c, err := Load(bytes.NewReader(defaultMenu))
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded menu is invalid: %v", err))
	}
	return c
}

// LoadFile reads a catalog from a YAML file
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()

	c, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Load decodes a YAML catalog document. Mapping order in the document
// becomes definition order in the catalog
func Load(r io.Reader) (*Catalog, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	dishes := make([]Dish, 0, len(doc.Dishes.keys))
	for _, id := range doc.Dishes.keys {
		d := doc.Dishes.values[id]
		dish := Dish{ID: id, Name: d.Name}
		for _, name := range d.Ingredients.keys {
			dish.Ingredients = append(dish.Ingredients, IngredientQuantity{
				Name:     name,
				Quantity: d.Ingredients.values[name],
			})
		}
		dishes = append(dishes, dish)
	}

	courses := make([]Course, 0, len(doc.Courses.keys))
	for _, id := range doc.Courses.keys {
		co := doc.Courses.values[id]
		courses = append(courses, Course{
			ID:           id,
			Description:  co.Description,
			Dishes:       co.Dishes,
			DiscountRule: co.DiscountRule,
			Addons:       co.Addons,
		})
	}

	rules := make([]discount.Rule, 0, len(doc.DiscountRules.keys))
	for _, id := range doc.DiscountRules.keys {
		rule := doc.DiscountRules.values[id]
		rule.ID = id
		rules = append(rules, rule)
	}

	addons := make([]Addon, 0, len(doc.Addons.keys))
	for _, id := range doc.Addons.keys {
		a := doc.Addons.values[id]
		addons = append(addons, Addon{ID: id, Name: a.Name, Price: a.Price})
	}

	return New(dishes, courses, rules, addons)
}

type document struct {
	Courses       orderedMap[courseDoc]     `yaml:"courses"`
	Dishes        orderedMap[dishDoc]       `yaml:"dishes"`
	DiscountRules orderedMap[discount.Rule] `yaml:"discount_rules"`
	Addons        orderedMap[addonDoc]      `yaml:"addons"`
}

type courseDoc struct {
	Description  string   `yaml:"description"`
	Dishes       []string `yaml:"dishes"`
	DiscountRule string   `yaml:"discount_rule"`
	Addons       []string `yaml:"addons"`
}

type dishDoc struct {
	Name        string              `yaml:"name"`
	Ingredients orderedMap[float64] `yaml:"ingredients"`
}

type addonDoc struct {
	Name  string  `yaml:"name"`
	Price float64 `yaml:"price"`
}

// orderedMap decodes a YAML mapping while remembering key order
type orderedMap[T any] struct {
	keys   []string
	values map[string]T
}

func (m *orderedMap[T]) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	m.keys = make([]string, 0, len(node.Content)/2)
	m.values = make(map[string]T, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		key := keyNode.Value
		if _, dup := m.values[key]; dup {
			return fmt.Errorf("line %d: duplicate key %q", keyNode.Line, key)
		}
		var v T
		if err := valNode.Decode(&v); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		m.keys = append(m.keys, key)
		m.values[key] = v
	}
	return nil
}
