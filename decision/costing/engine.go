// Package costing provides the dish and course cost engine
// Combines catalog definitions, a price snapshot and discount rules into cost breakdowns
package costing

import (
	"menu-cost/decision/catalog"
	"menu-cost/decision/discount"
	"menu-cost/pkg/diag"
)

// PriceSource resolves ingredient unit prices
type PriceSource interface {
	Price(ingredient string) (float64, bool)
}

// StaticPrices is a PriceSource over a plain map
type StaticPrices map[string]float64

// Price implements PriceSource
func (p StaticPrices) Price(ingredient string) (float64, bool) {
	v, ok := p[ingredient]
	return v, ok
}

// Engine is the cost engine. It holds no mutable state and is safe for
// concurrent use against any number of snapshots
type Engine struct {
	catalog *catalog.Catalog
}

// NewEngine creates a cost engine over a catalog
func NewEngine(c *catalog.Catalog) *Engine {
	return &Engine{catalog: c}
}

// Catalog returns the catalog the engine computes against
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// IngredientLine explains the cost of one ingredient in a dish
type IngredientLine struct {
	Name       string   `json:"name"`
	Quantity   float64  `json:"quantity"`
	UnitPrice  *float64 `json:"unit_price"` // nil when the price is unknown
	PriceKnown bool     `json:"price_known"`
	Cost       float64  `json:"cost"`
}

// DishCost is the cost breakdown of a dish
type DishCost struct {
	DishID      string           `json:"dish_id"`
	Name        string           `json:"name"`
	Total       float64          `json:"total"`
	Ingredients []IngredientLine `json:"ingredients"`
}

// DishResult is the outcome of a dish lookup
// Found distinguishes an unknown dish from a genuinely zero-cost one
type DishResult struct {
	Found       bool      `json:"found"`
	Dish        DishCost  `json:"dish"`
	Diagnostics diag.List `json:"diagnostics"`
}

// AddonLine is a selected add-on on a course bill
type AddonLine struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// CourseCost contains the complete course breakdown
type CourseCost struct {
	CourseID    string           `json:"course_id"`
	Description string           `json:"description"`
	Dishes      []DishCost       `json:"dishes"`
	Subtotal    float64          `json:"subtotal"`
	Discount    discount.Outcome `json:"discount"`
	FoodTotal   float64          `json:"food_total"`
	Addons      []AddonLine      `json:"addons"`
	AddonsTotal float64          `json:"addons_total"`
	GrandTotal  float64          `json:"grand_total"`
}

// CourseResult is the outcome of a course computation
// Course is nil when Found is false
type CourseResult struct {
	Found       bool        `json:"found"`
	Course      *CourseCost `json:"course"`
	Diagnostics diag.List   `json:"diagnostics"`
}

// DishCost computes the cost of a single dish
// Ingredients without a price cost 0 and stay in the breakdown
func (e *Engine) DishCost(dishID string, prices PriceSource) DishResult {
	result := DishResult{
		Dish: DishCost{
			DishID:      dishID,
			Name:        dishID,
			Ingredients: make([]IngredientLine, 0),
		},
		Diagnostics: diag.List{},
	}

	dish, ok := e.catalog.Dish(dishID)
	if !ok {
		result.Diagnostics = append(result.Diagnostics, diag.NewDishNotFound(dishID))
		return result
	}

	result.Found = true
	result.Dish.Name = dish.Name

	var total float64
	for _, ing := range dish.Ingredients {
		line := IngredientLine{
			Name:     ing.Name,
			Quantity: ing.Quantity,
		}

		if unitPrice, ok := prices.Price(ing.Name); ok {
			p := unitPrice
			line.UnitPrice = &p
			line.PriceKnown = true
			line.Cost = ing.Quantity * unitPrice
			total += line.Cost
		} else {
			result.Diagnostics = append(result.Diagnostics, diag.NewPriceNotFound(ing.Name, dishID))
		}

		result.Dish.Ingredients = append(result.Dish.Ingredients, line)
	}

	result.Dish.Total = total
	return result
}

// CourseCost computes a course's dishes, discount and add-ons
// Add-ons are accepted only when the course declares them
func (e *Engine) CourseCost(courseID string, prices PriceSource, addons ...string) CourseResult {
	result := CourseResult{Diagnostics: diag.List{}}

	course, ok := e.catalog.Course(courseID)
	if !ok {
		result.Diagnostics.Add(diag.CodeCourseNotFound, diag.SeverityError, courseID,
			"course %q is not defined in the catalog", courseID)
		return result
	}

	cost := &CourseCost{
		CourseID:    course.ID,
		Description: course.Description,
		Dishes:      make([]DishCost, 0, len(course.Dishes)),
		Addons:      make([]AddonLine, 0, len(addons)),
	}

	for _, dishID := range course.Dishes {
		dr := e.DishCost(dishID, prices)
		result.Diagnostics = append(result.Diagnostics, dr.Diagnostics...)
		cost.Dishes = append(cost.Dishes, dr.Dish)
		cost.Subtotal += dr.Dish.Total
	}

	rule, known := e.catalog.Rule(course.DiscountRule)
	if !known {
		result.Diagnostics.Add(diag.CodeRuleFallback, diag.SeverityWarning, courseID,
			"discount rule %q not found, using %q", course.DiscountRule, rule.ID)
	}
	cost.Discount = discount.Apply(rule, cost.Subtotal)
	if !known {
		// the outcome names the rule the course asked for, with the none rule's terms
		cost.Discount.RuleID = course.DiscountRule
	}
	if rule.Type == discount.TypePercentage && !cost.Discount.Applied {
		result.Diagnostics.Add(diag.CodeDiscountNotMet, diag.SeverityInfo, courseID,
			"discount %q not applied: %s", rule.ID, rule.Condition)
	}
	cost.FoodTotal = cost.Subtotal - cost.Discount.Amount

	for _, addonID := range addons {
		addon, ok := e.catalog.Addon(addonID)
		if !ok {
			result.Diagnostics.Add(diag.CodeAddonNotFound, diag.SeverityWarning, addonID,
				"add-on %q is not defined, skipped", addonID)
			continue
		}
		if !course.Permits(addonID) {
			result.Diagnostics.Add(diag.CodeAddonNotPermitted, diag.SeverityWarning, addonID,
				"add-on %q is not offered with course %q, skipped", addonID, courseID)
			continue
		}
		cost.Addons = append(cost.Addons, AddonLine{ID: addon.ID, Name: addon.Name, Price: addon.Price})
		cost.AddonsTotal += addon.Price
	}

	cost.GrandTotal = cost.FoodTotal + cost.AddonsTotal

	result.Found = true
	result.Course = cost
	return result
}

// AllCourses computes every course in catalog order without add-ons
func (e *Engine) AllCourses(prices PriceSource) []CourseResult {
	ids := e.catalog.CourseIDs()
	results := make([]CourseResult, 0, len(ids))
	for _, id := range ids {
		results = append(results, e.CourseCost(id, prices))
	}
	return results
}
