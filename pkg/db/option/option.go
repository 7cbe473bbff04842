// Package option provides composable query modifiers for the generic store.
package option

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

type Operator string

const (
	EQ  Operator = "="
	GT  Operator = ">"
	GTE Operator = ">="
	LT  Operator = "<"
	LTE Operator = "<="
)

type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type queryOptionFunc func(*gorm.DB) *gorm.DB

func (f queryOptionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// ApplyOperator adds a comparison condition against a single column.
func ApplyOperator(cond Condition) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		field := strings.TrimSpace(cond.Field)
		if field == "" {
			return db
		}
		return db.Where(fmt.Sprintf("%s %s ?", field, cond.Operator), cond.Value)
	})
}

// WithIn adds an IN condition.
func WithIn(field string, values any) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		field = strings.TrimSpace(field)
		if field == "" {
			return db
		}
		return db.Where(fmt.Sprintf("%s IN ?", field), values)
	})
}

// WithLimit caps the result size when limit is positive.
func WithLimit(limit int) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	})
}

type QuerySortBy struct {
	Field string
	Desc  bool
	Allow map[string]bool
}

// WithSortBy orders by an allow-listed column; unknown fields are ignored.
func WithSortBy(sort QuerySortBy) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		field := strings.TrimSpace(sort.Field)
		if field == "" || (sort.Allow != nil && !sort.Allow[field]) {
			return db
		}
		direction := "ASC"
		if sort.Desc {
			direction = "DESC"
		}
		return db.Order(fmt.Sprintf("%s %s", field, direction))
	})
}
