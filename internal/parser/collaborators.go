package parser

import (
	"context"

	"github.com/Vargock/Mahaon-Parser/internal/db"
)

// Extractor yields catalog data from the source site. Calls may fail
// individually; the orchestrator decides which failures are fatal.
type Extractor interface {
	// Categories discovers the catalog sections on the site front page.
	Categories(ctx context.Context) ([]db.Category, error)

	// ListProductURLs walks the paginated listing starting at catalogURL and
	// returns the product page URLs it finds, bounded by limits.
	ListProductURLs(ctx context.Context, catalogURL string, limits Limits) ([]string, error)

	// FetchProduct fetches and extracts a single product page with its variants.
	FetchProduct(ctx context.Context, productURL string) (*db.Product, []db.Variant, error)
}

// Store persists extracted records. Store failures are fatal to the
// current job.
type Store interface {
	// UpsertProduct inserts or updates a product keyed by its source URL and
	// returns the row ID.
	UpsertProduct(ctx context.Context, product *db.Product) (uint, error)

	// UpsertVariants inserts or updates the variants of a product, keyed by
	// (product_id, article_number, variant_name).
	UpsertVariants(ctx context.Context, productID uint, variants []db.Variant) error
}
