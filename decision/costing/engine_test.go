package costing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"menu-cost/decision/catalog"
	"menu-cost/decision/discount"
	"menu-cost/pkg/diag"
)

func referencePrices() StaticPrices {
	return StaticPrices{
		"scallop":     25.5,
		"asparagus":   5.0,
		"truffle-oil": 15.0,
		"butter":      2.0,
		"potato":      1.5,
		"fresh-cream": 3.5,
		"garlic":      2.0,
		"duck":        30.0,
		"berries":     7.0,
		"sugar":       0.8,
		"flour":       0.5,
		"caviar":      50.0,
		"foie-gras":   60.0,
		"lamb":        45.0,
		"rosemary":    3.0,
		"chocolate":   8.0,
	}
}

func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(
		[]catalog.Dish{
			{ID: "ab", Name: "A and B", Ingredients: []catalog.IngredientQuantity{{Name: "A", Quantity: 80}, {Name: "B", Quantity: 30}}},
			{ID: "c", Name: "C only", Ingredients: []catalog.IngredientQuantity{{Name: "C", Quantity: 6000}}},
			{ID: "small", Name: "Small", Ingredients: []catalog.IngredientQuantity{{Name: "B", Quantity: 10}}},
		},
		[]catalog.Course{
			{ID: "big", Description: "crosses the threshold", Dishes: []string{"ab", "c"}, DiscountRule: "standard", Addons: []string{"TEA"}},
			{ID: "tiny", Description: "below the threshold", Dishes: []string{"small"}, DiscountRule: "standard"},
			{ID: "flat", Description: "fixed discount", Dishes: []string{"small"}, DiscountRule: "premium"},
			{ID: "ghosts", Description: "broken references", Dishes: []string{"ab", "missing-dish"}, DiscountRule: "vip"},
		},
		[]discount.Rule{
			{ID: "standard", Type: discount.TypePercentage, Value: 5, Condition: "subtotal of 5000 or more"},
			{ID: "premium", Type: discount.TypeFixed, Value: 500, Condition: "always applied"},
		},
		[]catalog.Addon{
			{ID: "TEA", Name: "Tea", Price: 300},
			{ID: "SAKE", Name: "Sake", Price: 900},
		},
	)
	require.NoError(t, err)
	return c
}

func TestDishCostExample(t *testing.T) {
	engine := NewEngine(newTestCatalog(t))

	res := engine.DishCost("ab", StaticPrices{"A": 25.0, "B": 5.0})

	require.True(t, res.Found)
	assert.Empty(t, res.Diagnostics)
	assert.Equal(t, 2150.0, res.Dish.Total)
	require.Len(t, res.Dish.Ingredients, 2)

	a, b := res.Dish.Ingredients[0], res.Dish.Ingredients[1]
	assert.Equal(t, "A", a.Name)
	assert.Equal(t, 80.0, a.Quantity)
	require.NotNil(t, a.UnitPrice)
	assert.Equal(t, 25.0, *a.UnitPrice)
	assert.Equal(t, 2000.0, a.Cost)
	assert.Equal(t, "B", b.Name)
	assert.Equal(t, 150.0, b.Cost)
}

func TestDishCostMissingPrice(t *testing.T) {
	engine := NewEngine(catalog.Default())
	prices := referencePrices()
	delete(prices, "butter")

	res := engine.DishCost("starter-a", prices)

	require.True(t, res.Found)
	assert.Equal(t, 2265.0, res.Dish.Total)
	require.Len(t, res.Dish.Ingredients, 4)
	butter := res.Dish.Ingredients[3]
	assert.Equal(t, "butter", butter.Name)
	assert.False(t, butter.PriceKnown)
	assert.Nil(t, butter.UnitPrice)
	assert.Zero(t, butter.Cost)

	missing := res.Diagnostics.WithCode(diag.CodePriceNotFound)
	require.Len(t, missing, 1)
	assert.Equal(t, "butter", missing[0].Subject)
	assert.Contains(t, missing[0].Message, res.Dish.DishID)
}

func TestDishCostUnknownDish(t *testing.T) {
	engine := NewEngine(catalog.Default())

	res := engine.DishCost("nonexistent", referencePrices())

	assert.False(t, res.Found)
	assert.Zero(t, res.Dish.Total)
	assert.NotNil(t, res.Dish.Ingredients)
	assert.Empty(t, res.Dish.Ingredients)
	assert.Len(t, res.Diagnostics.WithCode(diag.CodeDishNotFound), 1)
}

func TestDishTotalsMatchLineSum(t *testing.T) {
	c := catalog.Default()
	engine := NewEngine(c)
	prices := referencePrices()
	delete(prices, "sugar")

	for _, id := range c.DishIDs() {
		dish, _ := c.Dish(id)
		res := engine.DishCost(id, prices)

		var want float64
		for _, ing := range dish.Ingredients {
			if p, ok := prices[ing.Name]; ok {
				want += ing.Quantity * p
			}
		}
		assert.Equal(t, want, res.Dish.Total, id)
		assert.Len(t, res.Dish.Ingredients, len(dish.Ingredients), id)
	}
}

func TestCourseCostPercentageApplied(t *testing.T) {
	engine := NewEngine(catalog.Default())

	res := engine.CourseCost("course-a", referencePrices())

	require.True(t, res.Found)
	course := res.Course
	assert.Equal(t, "course-a", course.CourseID)
	assert.InDelta(t, 8190.0, course.Subtotal, 1e-9)
	assert.True(t, course.Discount.Applied)
	assert.InDelta(t, 409.5, course.Discount.Amount, 1e-9)
	assert.InDelta(t, 7780.5, course.FoodTotal, 1e-9)
	assert.Equal(t, course.FoodTotal, course.GrandTotal)

	require.Len(t, course.Dishes, 4)
	assert.Equal(t, "starter-a", course.Dishes[0].DishID)
	assert.Equal(t, 2285.0, course.Dishes[0].Total)
}

func TestCourseCostFixedDiscount(t *testing.T) {
	engine := NewEngine(catalog.Default())

	res := engine.CourseCost("course-b", referencePrices())

	require.True(t, res.Found)
	assert.InDelta(t, 15124.0, res.Course.Subtotal, 1e-9)
	assert.True(t, res.Course.Discount.Applied)
	assert.Equal(t, 500.0, res.Course.Discount.Amount)
	assert.InDelta(t, 14624.0, res.Course.FoodTotal, 1e-9)
}

func TestCourseCostExampleThreshold(t *testing.T) {
	engine := NewEngine(newTestCatalog(t))
	prices := StaticPrices{"A": 25.0, "B": 5.0, "C": 1.0}

	res := engine.CourseCost("big", prices)
	require.True(t, res.Found)
	assert.Equal(t, 8150.0, res.Course.Subtotal)
	assert.InDelta(t, 407.5, res.Course.Discount.Amount, 1e-9)
	assert.InDelta(t, 7742.5, res.Course.FoodTotal, 1e-9)

	res = engine.CourseCost("tiny", prices)
	require.True(t, res.Found)
	assert.Equal(t, 50.0, res.Course.Subtotal)
	assert.False(t, res.Course.Discount.Applied)
	assert.Zero(t, res.Course.Discount.Amount)
	assert.Equal(t, "subtotal of 5000 or more", res.Course.Discount.Condition)
	assert.Equal(t, 50.0, res.Course.FoodTotal)
	assert.Len(t, res.Diagnostics.WithCode(diag.CodeDiscountNotMet), 1)

	res = engine.CourseCost("flat", prices)
	require.True(t, res.Found)
	assert.True(t, res.Course.Discount.Applied)
	assert.Equal(t, -450.0, res.Course.FoodTotal, "fixed discounts ignore the subtotal")
}

func TestCourseCostSubtotalFollowsDishOrder(t *testing.T) {
	c := catalog.Default()
	engine := NewEngine(c)
	prices := referencePrices()

	for _, id := range c.CourseIDs() {
		course, _ := c.Course(id)
		res := engine.CourseCost(id, prices)
		require.True(t, res.Found)

		var sum float64
		for i, dishID := range course.Dishes {
			assert.Equal(t, dishID, res.Course.Dishes[i].DishID)
			sum += engine.DishCost(dishID, prices).Dish.Total
		}
		assert.Equal(t, sum, res.Course.Subtotal)
		assert.Equal(t, res.Course.Subtotal-res.Course.Discount.Amount, res.Course.FoodTotal)
		assert.Equal(t, res.Course.FoodTotal+res.Course.AddonsTotal, res.Course.GrandTotal)
	}
}

func TestCourseCostAddons(t *testing.T) {
	engine := NewEngine(newTestCatalog(t))
	prices := StaticPrices{"A": 25.0, "B": 5.0, "C": 1.0}

	res := engine.CourseCost("big", prices, "TEA", "COFFEE", "SAKE", "TEA")

	require.True(t, res.Found)
	require.Len(t, res.Course.Addons, 2)
	assert.Equal(t, "TEA", res.Course.Addons[0].ID)
	assert.Equal(t, 600.0, res.Course.AddonsTotal)
	assert.InDelta(t, 7742.5+600, res.Course.GrandTotal, 1e-9)

	assert.Len(t, res.Diagnostics.WithCode(diag.CodeAddonNotFound), 1)
	notPermitted := res.Diagnostics.WithCode(diag.CodeAddonNotPermitted)
	require.Len(t, notPermitted, 1)
	assert.Equal(t, "SAKE", notPermitted[0].Subject)
}

func TestCourseCostUnknownCourse(t *testing.T) {
	engine := NewEngine(catalog.Default())

	res := engine.CourseCost("course-z", referencePrices())

	assert.False(t, res.Found)
	assert.Nil(t, res.Course)
	assert.Len(t, res.Diagnostics.WithCode(diag.CodeCourseNotFound), 1)
}

func TestCourseCostBrokenReferences(t *testing.T) {
	engine := NewEngine(newTestCatalog(t))

	res := engine.CourseCost("ghosts", StaticPrices{"A": 25.0, "B": 5.0})

	require.True(t, res.Found)
	require.Len(t, res.Course.Dishes, 2)
	assert.Equal(t, "missing-dish", res.Course.Dishes[1].Name)
	assert.Zero(t, res.Course.Dishes[1].Total)
	assert.Equal(t, 2150.0, res.Course.Subtotal)
	assert.Equal(t, "vip", res.Course.Discount.RuleID)
	assert.Equal(t, discount.TypeNone, res.Course.Discount.Type)
	assert.Equal(t, discount.None().Condition, res.Course.Discount.Condition)
	assert.False(t, res.Course.Discount.Applied)
	assert.Len(t, res.Diagnostics.WithCode(diag.CodeDishNotFound), 1)
	assert.Len(t, res.Diagnostics.WithCode(diag.CodeRuleFallback), 1)
}

func TestAllCourses(t *testing.T) {
	engine := NewEngine(catalog.Default())

	results := engine.AllCourses(referencePrices())

	require.Len(t, results, 2)
	assert.Equal(t, "course-a", results[0].Course.CourseID)
	assert.Equal(t, "course-b", results[1].Course.CourseID)
}

func TestEngineDoesNotMutateSnapshot(t *testing.T) {
	engine := NewEngine(catalog.Default())
	prices := referencePrices()
	before := len(prices)

	engine.CourseCost("course-a", prices, "BEER")

	assert.Len(t, prices, before)
	assert.Equal(t, 25.5, prices["scallop"])
}
