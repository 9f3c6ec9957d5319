package models

import "fmt"

type Category string

const (
	CategoryFood     Category = "food"
	CategoryExercise Category = "exercise"
	CategoryWater    Category = "water"
	CategorySleep    Category = "sleep"
	CategoryMood     Category = "mood"
)

var allCategories = []Category{
	CategoryFood,
	CategoryExercise,
	CategoryWater,
	CategorySleep,
	CategoryMood,
}

// AllCategories returns the five categories in their fixed export order.
func AllCategories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

// Table is the name used for the category both in the archive payload
// and as the warehouse table name.
func (c Category) Table() string {
	return string(c) + "_entries"
}

func (c Category) Valid() bool {
	for _, known := range allCategories {
		if c == known {
			return true
		}
	}
	return false
}

func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}
