package db

import (
	"log"

	"gorm.io/gorm"
)

// runMigrations performs database migrations
func runMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(&User{}, &Category{}, &Product{}, &Variant{}); err != nil {
		return err
	}

	// Handle products saved before category tracking was added
	return migrateUncategorizedProducts(db)
}

// migrateUncategorizedProducts assigns a placeholder category to products without one
func migrateUncategorizedProducts(db *gorm.DB) error {
	result := db.Model(&Product{}).Where("category = '' OR category IS NULL").Update("category", "Unknown")
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected > 0 {
		log.Printf("Migrated %d uncategorized products to category 'Unknown'", result.RowsAffected)
	}

	return nil
}
