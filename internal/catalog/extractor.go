package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Vargock/Mahaon-Parser/internal/db"
	"github.com/Vargock/Mahaon-Parser/internal/parser"
)

// Config holds extractor configuration
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// DefaultConfig returns default extractor configuration
func DefaultConfig() *Config {
	baseURL := os.Getenv("CATALOG_BASE_URL")
	if baseURL == "" {
		baseURL = "https://nsk-mahaon.ru"
	}

	return &Config{
		BaseURL:   baseURL,
		Timeout:   30 * time.Second,
		UserAgent: "Mahaon-Parser/1.0",
	}
}

// Extractor scrapes the source site with goquery. It implements
// parser.Extractor.
type Extractor struct {
	client    *http.Client
	baseURL   *url.URL
	userAgent string
}

// NewExtractor creates a new catalog extractor
func NewExtractor(config *Config) (*Extractor, error) {
	if config == nil {
		config = DefaultConfig()
	}

	baseURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", config.BaseURL, err)
	}

	client := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Extractor{
		client:    client,
		baseURL:   baseURL,
		userAgent: config.UserAgent,
	}, nil
}

// Categories discovers catalog sections from the site front page menu
func (e *Extractor) Categories(ctx context.Context) ([]db.Category, error) {
	doc, err := e.fetchDocument(ctx, e.baseURL.String())
	if err != nil {
		return nil, err
	}

	var categories []db.Category
	doc.Find("div#block-block-4 ul.catalog-menu > li").Each(func(i int, sel *goquery.Selection) {
		if sel.HasClass("hide") {
			return
		}
		link := sel.Find("a[href]").First()
		href, exists := link.Attr("href")
		if !exists || href == "" {
			return
		}
		name := strings.TrimSpace(link.Text())
		if name == "" {
			return
		}
		categories = append(categories, db.Category{
			Name: name,
			URL:  e.resolveURL(href),
		})
	})

	if len(categories) == 0 {
		return nil, fmt.Errorf("no categories found on %s", e.baseURL)
	}
	return categories, nil
}

// ListProductURLs walks the paginated category listing and collects product
// page URLs, deduplicated, bounded by limits
func (e *Extractor) ListProductURLs(ctx context.Context, catalogURL string, limits parser.Limits) ([]string, error) {
	var productURLs []string
	seen := make(map[string]bool)
	pageURL := catalogURL
	pageCount := 0

	for pageURL != "" {
		if limits.MaxPages > 0 && pageCount >= limits.MaxPages {
			break
		}

		doc, err := e.fetchDocument(ctx, pageURL)
		if err != nil {
			if pageCount == 0 {
				return nil, fmt.Errorf("failed to fetch catalog page %s: %w", pageURL, err)
			}
			// Later pages failing truncates the listing rather than losing
			// the URLs already collected.
			return productURLs, nil
		}

		table := doc.Find("table.views-table").First()
		if table.Length() == 0 {
			table = doc.Find("table").First()
		}
		if table.Length() == 0 {
			if pageCount == 0 {
				return nil, fmt.Errorf("no listing table found on %s", pageURL)
			}
			break
		}

		done := false
		table.Find("tbody tr").EachWithBreak(func(i int, row *goquery.Selection) bool {
			link := row.Find("td.views-field-title a[href]").First()
			href, exists := link.Attr("href")
			if !exists || href == "" {
				return true
			}

			productURL := e.resolveURL(href)
			if seen[productURL] {
				return true
			}
			seen[productURL] = true
			productURLs = append(productURLs, productURL)

			if limits.MaxProducts > 0 && len(productURLs) >= limits.MaxProducts {
				done = true
				return false
			}
			return true
		})
		if done {
			return productURLs, nil
		}

		pageCount++
		pageURL = e.nextPageURL(doc)
	}

	return productURLs, nil
}

// FetchProduct fetches one product page and extracts the product record with
// its variants
func (e *Extractor) FetchProduct(ctx context.Context, productURL string) (*db.Product, []db.Variant, error) {
	doc, err := e.fetchDocument(ctx, productURL)
	if err != nil {
		return nil, nil, err
	}

	name := strings.TrimSpace(doc.Find("h1.page-title").First().Text())
	if name == "" {
		return nil, nil, fmt.Errorf("no product title found on %s", productURL)
	}

	now := time.Now()
	product := &db.Product{
		Name:          name,
		Price:         strings.TrimSpace(doc.Find("span.price").First().Text()),
		Composition:   e.extractLabeledField(doc, "Состав"),
		SkeinWeight:   e.extractLabeledField(doc, "Вес мотка"),
		SkeinLength:   e.extractLabeledField(doc, "Длина мотка"),
		PackageWeight: e.extractLabeledField(doc, "Вес упаковки"),
		ImageURL:      e.extractMainImage(doc),
		SourceURL:     productURL,
		LastUpdated:   now,
	}

	variants := e.extractVariants(doc, now)
	return product, variants, nil
}

// fetchDocument fetches a page and parses it with goquery
func (e *Extractor) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return doc, nil
}

// nextPageURL finds the pager-next link, or "" when pagination is exhausted
func (e *Extractor) nextPageURL(doc *goquery.Document) string {
	href, exists := doc.Find("li.pager-next a[href]").First().Attr("href")
	if !exists || href == "" {
		return ""
	}
	return e.resolveURL(href)
}

// extractLabeledField finds a product attribute by its field label. The site
// renders attributes either as label/item pairs or as inline labels followed
// by the value text.
func (e *Extractor) extractLabeledField(doc *goquery.Document, label string) string {
	value := "Не найдено"

	doc.Find("div.field").EachWithBreak(func(i int, field *goquery.Selection) bool {
		labelDiv := field.Find("div.field-label").First()
		if labelDiv.Length() > 0 && strings.Contains(labelDiv.Text(), label) {
			item := field.Find("div.field-item").First()
			if item.Length() > 0 {
				value = strings.TrimSpace(item.Text())
				return false
			}
		}

		inlineLabel := field.Find("div.field-label-inline-first").First()
		if inlineLabel.Length() > 0 && strings.Contains(inlineLabel.Text(), label) {
			parent := inlineLabel.Parent()
			full := strings.TrimSpace(parent.Text())
			value = strings.TrimSpace(strings.Replace(full, strings.TrimSpace(inlineLabel.Text()), "", 1))
			return false
		}

		return true
	})

	return value
}

// extractMainImage finds the main product photo URL
func (e *Extractor) extractMainImage(doc *goquery.Document) string {
	href, exists := doc.Find("div.field-field-yarn-foto a[href]").First().Attr("href")
	if !exists || href == "" {
		return ""
	}
	return e.resolveURL(href)
}

// extractVariants extracts the color/article samples of a product
func (e *Extractor) extractVariants(doc *goquery.Document, now time.Time) []db.Variant {
	var variants []db.Variant

	doc.Find("div#samples div.sample").Each(func(i int, sample *goquery.Selection) {
		articleNumber := strings.TrimSpace(sample.Find("span.sample-number").First().Text())
		variantName := strings.TrimSpace(sample.Find("span.sample-name").First().Text())
		if articleNumber == "" && variantName == "" {
			return
		}

		// A variant is purchasable when it has an add-to-cart link and no
		// explicit "(нет)" marker.
		available := sample.Find("div.add-cart-link").Length() > 0
		noExist := sample.Find("div.no-exist").First()
		if noExist.Length() > 0 && strings.TrimSpace(noExist.Text()) == "(нет)" {
			available = false
		}

		imageURL := ""
		if href, exists := sample.Find("div.sample-img a[href]").First().Attr("href"); exists && href != "" {
			imageURL = e.resolveURL(href)
		}

		variants = append(variants, db.Variant{
			ArticleNumber: articleNumber,
			VariantName:   variantName,
			IsAvailable:   available,
			ImageURL:      imageURL,
			LastUpdated:   now,
		})
	})

	return variants
}

// resolveURL resolves a possibly relative href against the site base URL
func (e *Extractor) resolveURL(href string) string {
	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}
	return e.baseURL.ResolveReference(parsed).String()
}
