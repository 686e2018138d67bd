package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"taskflow/internal/config"
	"taskflow/internal/db"
	"taskflow/internal/model"
	"taskflow/internal/repository"
)

// SeedCategoryData is one entry of the category list.
type SeedCategoryData struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

var defaultCategories = []SeedCategoryData{
	{Name: "Work", Description: "Professional tasks and projects", Color: "#3B82F6"},
	{Name: "Personal", Description: "Personal errands and chores", Color: "#10B981"},
	{Name: "Health", Description: "Exercise, appointments and wellbeing", Color: "#EF4444"},
	{Name: "Study", Description: "Courses, reading and learning", Color: "#8B5CF6"},
	{Name: "Finance", Description: "Bills, budgets and paperwork", Color: "#F59E0B"},
	{Name: "Home", Description: "Maintenance and household", Color: "#6B7280"},
}

func main() {
	log.Println("Starting seed script...")

	cfg := config.Load()

	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN, db.Options{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Connected to database")

	if err := db.Migrate(gormDB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	categories := defaultCategories
	if url := os.Getenv("SEED_CATEGORIES_URL"); url != "" {
		log.Printf("Fetching categories from: %s", url)
		categories, err = fetchCategories(url)
		if err != nil {
			log.Fatalf("Failed to fetch categories: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	created, updated, err := seedCategories(ctx, repository.NewCategoryRepository(gormDB), categories)
	if err != nil {
		log.Fatalf("Failed to seed categories: %v", err)
	}

	adminCreated, err := seedAdmin(ctx, repository.NewUserRepository(gormDB), cfg.SeedAdminEmail, cfg.SeedAdminPassword)
	if err != nil {
		log.Fatalf("Failed to seed admin: %v", err)
	}

	log.Printf("Seed completed successfully!")
	log.Printf("  - New categories created: %d", created)
	log.Printf("  - Existing categories updated: %d", updated)
	if adminCreated {
		log.Printf("  - Super admin created: %s", cfg.SeedAdminEmail)
	} else {
		log.Printf("  - Super admin already present: %s", cfg.SeedAdminEmail)
	}
}

// fetchCategories reads a JSON array of categories from url.
func fetchCategories(url string) ([]SeedCategoryData, error) {
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch categories: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("category source returned status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var categories []SeedCategoryData
	if err := json.Unmarshal(body, &categories); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return categories, nil
}

// seedCategories creates missing categories and refreshes the description and color of existing ones.
func seedCategories(ctx context.Context, repo repository.CategoryRepository, categories []SeedCategoryData) (created int, updated int, err error) {
	for _, item := range categories {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			log.Printf("Skipping category without a name")
			continue
		}
		color := item.Color
		if color == "" {
			color = model.DefaultCategoryColor
		}

		existing, err := repo.FindByName(ctx, name)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return created, updated, fmt.Errorf("error checking category %s: %w", name, err)
		}

		if existing != nil {
			existing.Description = item.Description
			existing.Color = color
			if err := repo.Update(ctx, existing); err != nil {
				return created, updated, fmt.Errorf("error updating category %s: %w", name, err)
			}
			updated++
			continue
		}

		if err := repo.Create(ctx, &model.Category{Name: name, Description: item.Description, Color: color}); err != nil {
			return created, updated, fmt.Errorf("error creating category %s: %w", name, err)
		}
		created++
	}
	return created, updated, nil
}

// seedAdmin makes sure a super admin exists. An existing account with the email
// is promoted and re-enabled; its password is left alone.
func seedAdmin(ctx context.Context, repo repository.UserRepository, email, password string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	existing, err := repo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("error checking admin %s: %w", email, err)
	}

	if existing != nil {
		if existing.Role == model.RoleSuperAdmin && existing.IsActive {
			return false, nil
		}
		existing.Role = model.RoleSuperAdmin
		existing.IsActive = true
		if err := repo.Update(ctx, existing); err != nil {
			return false, fmt.Errorf("error promoting admin %s: %w", email, err)
		}
		return false, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	admin := &model.User{
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    "Admin",
		Role:         model.RoleSuperAdmin,
		IsActive:     true,
	}
	if err := repo.Create(ctx, admin); err != nil {
		return false, fmt.Errorf("error creating admin %s: %w", email, err)
	}
	return true, nil
}
