package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"civictrack/backend/internal/authority"
	"civictrack/backend/internal/models"
	"civictrack/backend/internal/storage"

	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	storageSvc := storage.NewService(db, nil) // No redis needed for admin CLI

	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <command> [args]")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "create-authority":
		if len(os.Args) < 6 {
			fmt.Println("Usage: admin create-authority <name> <department> <email> <password> [area...]")
			os.Exit(1)
		}
		a, err := createAuthority(storageSvc, os.Args[2], os.Args[3], os.Args[4], os.Args[5], os.Args[6:])
		if err != nil {
			log.Fatalf("Error creating authority: %v", err)
		}
		fmt.Printf("Authority %s created with ID %s.\n", a.Name, a.ID)
	case "list-authorities":
		if err := listAuthorities(storageSvc); err != nil {
			log.Fatalf("Error listing authorities: %v", err)
		}
	case "prune-notifications":
		if len(os.Args) != 4 {
			fmt.Println("Usage: admin prune-notifications <user_id> <keep>")
			os.Exit(1)
		}
		keep, err := strconv.Atoi(os.Args[3])
		if err != nil {
			fmt.Println("Invalid keep count. Please provide an integer.")
			os.Exit(1)
		}
		removed, err := storageSvc.PruneNotifications(os.Args[2], keep)
		if err != nil {
			log.Fatalf("Error pruning notifications: %v", err)
		}
		fmt.Printf("Removed %d notifications for user %s.\n", removed, os.Args[2])
	default:
		fmt.Println("Unknown command")
		os.Exit(1)
	}
}

func createAuthority(s storage.Storage, name, department, email, password string, areas []string) (*models.Authority, error) {
	if !models.IsValidDepartment(models.Department(department)) {
		return nil, fmt.Errorf("unknown department %q", department)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	a := &models.Authority{
		Name:           name,
		Department:     models.Department(department),
		Email:          email,
		ServiceAreas:   pq.StringArray(areas),
		CredentialHash: string(hash),
	}
	if err := s.CreateAuthority(a); err != nil {
		return nil, err
	}
	return a, nil
}

func listAuthorities(s storage.Storage) error {
	authorities, err := s.ListAuthorities()
	if err != nil {
		return err
	}
	for _, a := range authorities {
		bound, err := s.ActiveComplaintsFor(a.ID)
		if err != nil {
			return err
		}
		fmt.Printf("%s  %-12s %-10s %s\n", a.ID, a.Department, authority.Derive(bound), a.Name)
	}
	return nil
}
