package model

import (
	"database/sql/driver"
	"fmt"
)

// Category groups tasks by area of life. The set is closed; rows store
// the symbolic name.
type Category string

const (
	CategoryHealth   Category = "health"
	CategoryFitness  Category = "fitness"
	CategoryStudy    Category = "study"
	CategoryWork     Category = "work"
	CategoryPersonal Category = "personal"
	CategoryHabits   Category = "habits"
	CategoryOther    Category = "other"
)

// Categories lists all categories in display order.
func Categories() []Category {
	return []Category{
		CategoryHealth,
		CategoryFitness,
		CategoryStudy,
		CategoryWork,
		CategoryPersonal,
		CategoryHabits,
		CategoryOther,
	}
}

// ParseCategory decodes a stored category symbol, strictly.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryHealth, CategoryFitness, CategoryStudy, CategoryWork,
		CategoryPersonal, CategoryHabits, CategoryOther:
		return Category(s), nil
	}
	return "", &DecodeError{Field: "category", Value: s}
}

func (c Category) String() string { return string(c) }

// Scan implements sql.Scanner with the same strict decoding as Status.
func (c *Category) Scan(value any) error {
	raw, err := scanString(value)
	if err != nil {
		return fmt.Errorf("scan category: %w", err)
	}
	parsed, err := ParseCategory(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Value implements driver.Valuer.
func (c Category) Value() (driver.Value, error) {
	return string(c), nil
}
