package integration

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/safar/farm-market/internal/models"
	"github.com/safar/farm-market/internal/store"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:14-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	host, err := postgres.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := postgres.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	if err := runMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			t.Logf("Failed to close database: %v", err)
		}
		if err := postgres.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return db, cleanup
}

func runMigrations(db *sql.DB) error {
	migrationDir := "../../migrations"
	files, err := os.ReadDir(migrationDir)
	if err != nil {
		return fmt.Errorf("read migration directory: %w", err)
	}

	var migrationFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".up.sql") {
			migrationFiles = append(migrationFiles, file.Name())
		}
	}

	sort.Strings(migrationFiles)

	for _, filename := range migrationFiles {
		filePath := filepath.Join(migrationDir, filename)
		content, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("read migration file %s: %w", filename, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("execute migration %s: %w", filename, err)
		}
	}

	return nil
}

func createFarmer(t *testing.T, db *sql.DB, email string) *models.User {
	t.Helper()
	farmer, err := store.CreateUser(context.Background(), db, store.CreateUserRequest{
		Email: email,
		Name:  "Farmer " + email,
		Role:  models.RoleFarmer,
		Phone: "555-0100",
	})
	if err != nil {
		t.Fatalf("Create farmer: %v", err)
	}
	return farmer
}

func createBuyer(t *testing.T, db *sql.DB, email string) *models.User {
	t.Helper()
	buyer, err := store.CreateUser(context.Background(), db, store.CreateUserRequest{
		Email:   email,
		Name:    "Buyer " + email,
		Role:    models.RoleBuyer,
		Address: "12 Market Road",
		Phone:   "555-0200",
	})
	if err != nil {
		t.Fatalf("Create buyer: %v", err)
	}
	return buyer
}

func createProduct(t *testing.T, db *sql.DB, farmerEmail, name string, price, qty decimal.Decimal) *models.Product {
	t.Helper()
	product, err := store.CreateProduct(context.Background(), db, farmerEmail, store.ProductInput{
		Name:         name,
		Description:  "fresh from the farm",
		Price:        price,
		QtyAvailable: qty,
	})
	if err != nil {
		t.Fatalf("Create product %s: %v", name, err)
	}
	return product
}

func orderLine(productID int64, qty int64) store.OrderItemRequest {
	return store.OrderItemRequest{ProductID: productID, Quantity: decimal.NewFromInt(qty)}
}
