package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Vargock/Mahaon-Parser/internal/db"
)

// CatalogStore persists scraped catalog data behind gorm. It implements
// parser.Store and backs the browse/export read paths.
type CatalogStore struct {
	db *gorm.DB
}

// New creates a new catalog store
func New(dbConn *gorm.DB) *CatalogStore {
	return &CatalogStore{db: dbConn}
}

// UpsertProduct inserts or updates a product keyed by source_url and returns
// the row ID. Duplicate upserts are idempotent.
func (s *CatalogStore) UpsertProduct(ctx context.Context, product *db.Product) (uint, error) {
	if product.SourceURL == "" {
		return 0, fmt.Errorf("product source URL cannot be empty")
	}
	if product.Name == "" {
		return 0, fmt.Errorf("product name cannot be empty")
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "source_url"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"category", "name", "price", "composition", "skein_weight",
			"skein_length", "package_weight", "image_url", "last_updated", "updated_at",
		}),
	}).Create(product).Error
	if err != nil {
		return 0, err
	}

	// MySQL does not report the row ID on the update path of an upsert.
	if product.ID == 0 {
		var existing db.Product
		if err := s.db.WithContext(ctx).Select("id").Where("source_url = ?", product.SourceURL).First(&existing).Error; err != nil {
			return 0, err
		}
		product.ID = existing.ID
	}

	return product.ID, nil
}

// UpsertVariants inserts or updates the variants of a product, keyed by
// (product_id, article_number, variant_name)
func (s *CatalogStore) UpsertVariants(ctx context.Context, productID uint, variants []db.Variant) error {
	if len(variants) == 0 {
		return nil
	}

	for i := range variants {
		variants[i].ProductID = productID
	}

	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "product_id"}, {Name: "article_number"}, {Name: "variant_name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"is_available", "image_url", "last_updated", "updated_at",
		}),
	}).Create(&variants).Error
}

// SaveCategories upserts discovered categories keyed by name
func (s *CatalogStore) SaveCategories(ctx context.Context, categories []db.Category) error {
	if len(categories) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"url"}),
	}).Create(&categories).Error
}

// Categories returns all known categories ordered by name
func (s *CatalogStore) Categories(ctx context.Context) ([]db.Category, error) {
	var categories []db.Category
	err := s.db.WithContext(ctx).Order("name").Find(&categories).Error
	return categories, err
}

// ListProducts returns products, optionally filtered by category.
// An empty filter or "all" returns everything.
func (s *CatalogStore) ListProducts(ctx context.Context, category string) ([]db.Product, error) {
	query := s.db.WithContext(ctx).Model(&db.Product{})
	if category != "" && category != "all" {
		query = query.Where("category = ?", category)
	}

	var products []db.Product
	err := query.Order("category, name").Find(&products).Error
	return products, err
}

// ListVariants returns variants, optionally filtered by the category of
// their product, ordered numerically by article number with a lexical
// tiebreak for non-numeric articles
func (s *CatalogStore) ListVariants(ctx context.Context, category string) ([]db.Variant, error) {
	query := s.db.WithContext(ctx).Model(&db.Variant{})
	if category != "" && category != "all" {
		query = query.
			Joins("JOIN products ON products.id = variants.product_id").
			Where("products.category = ?", category)
	}

	var variants []db.Variant
	err := query.Order("variants.product_id, CAST(variants.article_number AS DECIMAL(12,3)), variants.article_number").Find(&variants).Error
	return variants, err
}

// GetUserByUsername retrieves a user by username
func (s *CatalogStore) GetUserByUsername(username string) (*db.User, error) {
	var user db.User
	if err := s.db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
