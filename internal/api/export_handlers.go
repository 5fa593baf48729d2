package api

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Vargock/Mahaon-Parser/internal/export"
	"github.com/Vargock/Mahaon-Parser/internal/store"
)

// ExportHandler streams the products or variants relation as a CSV
// attachment, optionally filtered by category
func ExportHandler(catalogStore *store.CatalogStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		table := c.Query("table")
		category := strings.TrimSpace(c.Query("category"))

		var projection export.Table
		switch table {
		case "products":
			products, err := catalogStore.ListProducts(c.Request.Context(), category)
			if err != nil {
				log.Printf("Failed to load products for export: %v", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
				return
			}
			projection = export.Products(products)

		case "variants":
			variants, err := catalogStore.ListVariants(c.Request.Context(), category)
			if err != nil {
				log.Printf("Failed to load variants for export: %v", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
				return
			}
			projection = export.Variants(variants)

		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter 'table' must be 'products' or 'variants'"})
			return
		}

		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", table))
		c.Header("Content-Type", "text/csv")
		if err := projection.WriteCSV(c.Writer); err != nil {
			log.Printf("Failed to write CSV export: %v", err)
		}
	}
}
