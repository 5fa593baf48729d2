package db

import "time"

// Category represents a catalog section on the source site
type Category struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"uniqueIndex;not null;size:255" json:"name"`
	URL  string `gorm:"not null;size:768" json:"url"`
}

// Product represents a single yarn item scraped from the catalog
type Product struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Category      string    `gorm:"index;size:255" json:"category"`
	Name          string    `gorm:"not null;size:512" json:"name"`
	Price         string    `json:"price"`
	Composition   string    `json:"composition"`
	SkeinWeight   string    `json:"skein_weight"`
	SkeinLength   string    `json:"skein_length"`
	PackageWeight string    `json:"package_weight"`
	ImageURL      string    `gorm:"size:768" json:"image_url"`
	SourceURL     string    `gorm:"uniqueIndex;not null;size:768" json:"source_url"`
	LastUpdated   time.Time `json:"last_updated"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Variants      []Variant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"-"`
}

// Variant represents one color/article option of a product
type Variant struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ProductID     uint      `gorm:"index:idx_variant_natural,unique;not null" json:"product_id"`
	ArticleNumber string    `gorm:"index:idx_variant_natural,unique;size:100" json:"article_number"`
	VariantName   string    `gorm:"index:idx_variant_natural,unique;size:255" json:"variant_name"`
	IsAvailable   bool      `json:"is_available"`
	ImageURL      string    `gorm:"size:768" json:"image_url"`
	LastUpdated   time.Time `json:"last_updated"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// User represents an authenticated operator
type User struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username  string    `gorm:"uniqueIndex;not null;size:100" json:"username"`
	Password  string    `gorm:"not null;size:255" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
