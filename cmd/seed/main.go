package main

import (
	"flag"
	"log"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/Vargock/Mahaon-Parser/internal/db"
)

// SeedConfig holds seed configuration
type SeedConfig struct {
	Username string
	Password string
	Force    bool
}

// NewSeedConfig creates a new seed configuration
func NewSeedConfig() *SeedConfig {
	username := flag.String("username", "admin", "Operator username")
	password := flag.String("password", "adminpass", "Operator password")
	force := flag.Bool("force", false, "Force recreation of the operator user")

	flag.Parse()

	return &SeedConfig{
		Username: *username,
		Password: *password,
		Force:    *force,
	}
}

func main() {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	config := NewSeedConfig()

	if config.Username == "" {
		log.Fatal("Username cannot be empty")
	}
	if len(config.Password) < 6 {
		log.Fatal("Password must be at least 6 characters long")
	}

	log.Println("Starting database seeding...")

	dbConn, err := db.InitDB()
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Check if the operator user already exists
	var existingUser db.User
	err = dbConn.Where("username = ?", config.Username).First(&existingUser).Error
	if err == nil {
		if !config.Force {
			log.Printf("User '%s' already exists. Use -force flag to recreate.", config.Username)
			return
		}

		log.Printf("Recreating user '%s'...", config.Username)
		if err := dbConn.Delete(&existingUser).Error; err != nil {
			log.Fatalf("Failed to delete existing user: %v", err)
		}
	} else if err != gorm.ErrRecordNotFound {
		log.Fatalf("Database error checking existing user: %v", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(config.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	operator := db.User{
		Username: config.Username,
		Password: string(hashedPassword),
	}

	if err := dbConn.Create(&operator).Error; err != nil {
		log.Fatalf("Failed to create user: %v", err)
	}

	log.Printf("Successfully created operator user: %s (ID: %d)", operator.Username, operator.ID)
	log.Println("Database seeding completed successfully")
}
