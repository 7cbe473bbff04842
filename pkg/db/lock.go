package db

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WithRowLock appends FOR UPDATE on dialects that support it. SQLite
// serializes writers on its own, so the clause is skipped there.
func WithRowLock(tx *gorm.DB) *gorm.DB {
	switch tx.Dialector.Name() {
	case "postgres", "mysql":
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
