// Package catalog holds the menu definitions: dishes, courses, discount rules
// and add-on items. A Catalog is built once and never changes afterwards;
// every accessor hands out copies so callers cannot alter shared state
package catalog

import (
	"errors"
	"fmt"
	"sort"

	"menu-cost/decision/discount"
)

// IngredientQuantity is one line of a dish definition
// Quantity is in grams or pieces; the unit is implicit per ingredient
type IngredientQuantity struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
}

// Dish is a named preparation with fixed ingredient quantities
type Dish struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Ingredients []IngredientQuantity `json:"ingredients"`
}

// Course is an ordered bundle of dishes sold as a set
type Course struct {
	ID           string   `json:"id"`
	Description  string   `json:"description"`
	Dishes       []string `json:"dishes"`
	DiscountRule string   `json:"discount_rule"`
	Addons       []string `json:"addons"`
}

// Permits reports whether the course declares addonID as available
func (c Course) Permits(addonID string) bool {
	for _, id := range c.Addons {
		if id == addonID {
			return true
		}
	}
	return false
}

// Addon is a flat-priced item attachable to a course, e.g. a beverage
type Addon struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// ErrInvalidCatalog is returned when catalog data breaks a structural rule
var ErrInvalidCatalog = errors.New("invalid catalog")

// Catalog is the immutable menu definition set
type Catalog struct {
	dishes      map[string]Dish
	dishOrder   []string
	courses     map[string]Course
	courseOrder []string
	rules       map[string]discount.Rule
	addons      map[string]Addon
	addonOrder  []string
}

// New builds a catalog. Definition order of dishes, courses and add-ons is kept
// Courses may reference dishes, rules or add-ons that do not exist; the cost
// engine degrades on those and the consistency checker reports them
func New(dishes []Dish, courses []Course, rules []discount.Rule, addons []Addon) (*Catalog, error) {
	c := &Catalog{
		dishes:  make(map[string]Dish, len(dishes)),
		courses: make(map[string]Course, len(courses)),
		rules:   make(map[string]discount.Rule, len(rules)+1),
		addons:  make(map[string]Addon, len(addons)),
	}

	for _, d := range dishes {
		if d.ID == "" {
			return nil, fmt.Errorf("%w: dish with empty id", ErrInvalidCatalog)
		}
		if _, dup := c.dishes[d.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate dish %q", ErrInvalidCatalog, d.ID)
		}
		seen := make(map[string]bool, len(d.Ingredients))
		for _, ing := range d.Ingredients {
			if ing.Quantity <= 0 {
				return nil, fmt.Errorf("%w: dish %q: quantity of %q must be positive", ErrInvalidCatalog, d.ID, ing.Name)
			}
			if seen[ing.Name] {
				return nil, fmt.Errorf("%w: dish %q lists %q twice", ErrInvalidCatalog, d.ID, ing.Name)
			}
			seen[ing.Name] = true
		}
		c.dishes[d.ID] = cloneDish(d)
		c.dishOrder = append(c.dishOrder, d.ID)
	}

	for _, r := range rules {
		if _, dup := c.rules[r.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate discount rule %q", ErrInvalidCatalog, r.ID)
		}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
		}
		c.rules[r.ID] = r
	}
	if _, ok := c.rules[discount.NoneID]; !ok {
		c.rules[discount.NoneID] = discount.None()
	}

	for _, a := range addons {
		if _, dup := c.addons[a.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate add-on %q", ErrInvalidCatalog, a.ID)
		}
		if a.Price < 0 {
			return nil, fmt.Errorf("%w: add-on %q has negative price", ErrInvalidCatalog, a.ID)
		}
		c.addons[a.ID] = a
		c.addonOrder = append(c.addonOrder, a.ID)
	}

	for _, co := range courses {
		if co.ID == "" {
			return nil, fmt.Errorf("%w: course with empty id", ErrInvalidCatalog)
		}
		if _, dup := c.courses[co.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate course %q", ErrInvalidCatalog, co.ID)
		}
		if co.DiscountRule == "" {
			co.DiscountRule = discount.NoneID
		}
		c.courses[co.ID] = cloneCourse(co)
		c.courseOrder = append(c.courseOrder, co.ID)
	}

	return c, nil
}

// Dish returns the dish with the given id
func (c *Catalog) Dish(id string) (Dish, bool) {
	d, ok := c.dishes[id]
	if !ok {
		return Dish{}, false
	}
	return cloneDish(d), true
}

// Course returns the course with the given id
func (c *Catalog) Course(id string) (Course, bool) {
	co, ok := c.courses[id]
	if !ok {
		return Course{}, false
	}
	return cloneCourse(co), true
}

// Addon returns the add-on with the given id
func (c *Catalog) Addon(id string) (Addon, bool) {
	a, ok := c.addons[id]
	return a, ok
}

// Rule resolves a discount rule. Unknown ids resolve to the none rule and
// the second result is false
func (c *Catalog) Rule(id string) (discount.Rule, bool) {
	if r, ok := c.rules[id]; ok {
		return r, true
	}
	return c.rules[discount.NoneID], false
}

// HasRule reports whether id names a defined discount rule
func (c *Catalog) HasRule(id string) bool {
	_, ok := c.rules[id]
	return ok
}

// DishIDs returns dish ids in definition order
func (c *Catalog) DishIDs() []string { return append([]string(nil), c.dishOrder...) }

// CourseIDs returns course ids in definition order
func (c *Catalog) CourseIDs() []string { return append([]string(nil), c.courseOrder...) }

// AddonIDs returns add-on ids in definition order
func (c *Catalog) AddonIDs() []string { return append([]string(nil), c.addonOrder...) }

// RuleIDs returns the sorted discount rule ids
func (c *Catalog) RuleIDs() []string {
	ids := make([]string, 0, len(c.rules))
	for id := range c.rules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Ingredients returns the sorted set of ingredient names referenced by any dish
func (c *Catalog) Ingredients() []string {
	set := make(map[string]struct{})
	for _, d := range c.dishes {
		for _, ing := range d.Ingredients {
			set[ing.Name] = struct{}{}
		}
	}
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func cloneDish(d Dish) Dish {
	d.Ingredients = append([]IngredientQuantity(nil), d.Ingredients...)
	return d
}

func cloneCourse(c Course) Course {
	c.Dishes = append([]string(nil), c.Dishes...)
	c.Addons = append([]string(nil), c.Addons...)
	return c
}
