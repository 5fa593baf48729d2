package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/Vargock/Mahaon-Parser/internal/db"
)

// Table is a row/column projection of a stored relation, ready for tabular
// serialization
type Table struct {
	Columns []string
	Rows    [][]string
}

// Products projects the products relation
func Products(products []db.Product) Table {
	t := Table{
		Columns: []string{
			"id", "category", "name", "price", "composition",
			"skein_weight", "skein_length", "package_weight",
			"image_url", "source_url", "last_updated",
		},
	}

	for _, p := range products {
		t.Rows = append(t.Rows, []string{
			strconv.FormatUint(uint64(p.ID), 10),
			p.Category,
			p.Name,
			p.Price,
			p.Composition,
			p.SkeinWeight,
			p.SkeinLength,
			p.PackageWeight,
			p.ImageURL,
			p.SourceURL,
			formatTime(p.LastUpdated),
		})
	}

	return t
}

// Variants projects the variants relation. Availability is exported as a
// boolean column, not free text.
func Variants(variants []db.Variant) Table {
	t := Table{
		Columns: []string{
			"id", "product_id", "article_number", "variant_name",
			"is_available", "image_url", "last_updated",
		},
	}

	for _, v := range variants {
		t.Rows = append(t.Rows, []string{
			strconv.FormatUint(uint64(v.ID), 10),
			strconv.FormatUint(uint64(v.ProductID), 10),
			v.ArticleNumber,
			v.VariantName,
			strconv.FormatBool(v.IsAvailable),
			v.ImageURL,
			formatTime(v.LastUpdated),
		})
	}

	return t
}

// WriteCSV serializes the table as CSV with a header row
func (t Table) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(t.Columns); err != nil {
		return err
	}
	for _, row := range t.Rows {
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}
