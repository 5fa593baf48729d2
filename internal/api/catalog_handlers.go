package api

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Vargock/Mahaon-Parser/internal/catalog"
	"github.com/Vargock/Mahaon-Parser/internal/store"
)

// CategoriesHandler lists catalog categories. It tries a live scrape of the
// site front page first and refreshes the stored set; when the site is
// unreachable it falls back to what the store already knows.
func CategoriesHandler(catalogStore *store.CatalogStore, extractor *catalog.Extractor) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		categories, err := extractor.Categories(ctx)
		if err != nil {
			log.Printf("Live category discovery failed, falling back to store: %v", err)
			stored, storeErr := catalogStore.Categories(ctx)
			if storeErr != nil {
				log.Printf("Failed to list stored categories: %v", storeErr)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"categories": stored, "source": "store"})
			return
		}

		if err := catalogStore.SaveCategories(ctx, categories); err != nil {
			log.Printf("Failed to save discovered categories: %v", err)
		}

		c.JSON(http.StatusOK, gin.H{"categories": categories, "source": "live"})
	}
}

// ListProductsHandler lists stored products, optionally filtered by category
func ListProductsHandler(catalogStore *store.CatalogStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		category := strings.TrimSpace(c.Query("category"))

		products, err := catalogStore.ListProducts(c.Request.Context(), category)
		if err != nil {
			log.Printf("Failed to list products: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"category": category,
			"count":    len(products),
			"products": products,
		})
	}
}

// ListVariantsHandler lists stored variants, optionally filtered by the
// category of their product
func ListVariantsHandler(catalogStore *store.CatalogStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		category := strings.TrimSpace(c.Query("category"))

		variants, err := catalogStore.ListVariants(c.Request.Context(), category)
		if err != nil {
			log.Printf("Failed to list variants: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"category": category,
			"count":    len(variants),
			"variants": variants,
		})
	}
}
