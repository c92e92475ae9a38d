package models

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// Migrations returns the versioned schema migrations in apply order
func Migrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		{
			ID: "001_search_cache",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&SearchCache{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("search_cache")
			},
		},
		{
			ID: "002_search_metrics",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&SearchMetric{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("search_metrics")
			},
		},
	}
}
