package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/safar/farm-market/internal/store"
)

func TestCreateAndLookupUser(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	created, err := store.CreateUser(ctx, db, store.CreateUserRequest{
		Email:    "meera@example.com",
		Name:     "Meera",
		Role:     "FARMER",
		State:    "Punjab",
		District: "Ludhiana",
	})
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}

	byEmail, err := store.GetUserByEmail(ctx, db, "meera@example.com")
	if err != nil {
		t.Fatalf("Get by email: %v", err)
	}
	if byEmail.ID != created.ID {
		t.Errorf("Expected id %d, got %d", created.ID, byEmail.ID)
	}

	// email lookup is case-sensitive
	if _, err := store.GetUserByEmail(ctx, db, "MEERA@example.com"); !errors.Is(err, store.ErrUserNotFound) {
		t.Errorf("Expected not found for different case, got: %v", err)
	}

	// role is constrained
	_, err = store.CreateUser(ctx, db, store.CreateUserRequest{
		Email: "bad@example.com",
		Name:  "Bad",
		Role:  "ADMIN",
	})
	var valErr *store.ValidationError
	if !errors.As(err, &valErr) {
		t.Errorf("Expected validation error for unknown role, got: %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	createBuyer(t, db, "buyer@example.com")

	newName := "Renamed Buyer"
	newPhone := "555-9999"
	updated, err := store.UpdateProfile(ctx, db, "buyer@example.com", store.ProfileUpdate{
		Name:  &newName,
		Phone: &newPhone,
	})
	if err != nil {
		t.Fatalf("Update profile: %v", err)
	}

	if updated.Name != newName || updated.Phone != newPhone {
		t.Errorf("Profile not updated: %+v", updated)
	}
	// untouched fields keep their values
	if updated.Address != "12 Market Road" {
		t.Errorf("Address should be unchanged, got %q", updated.Address)
	}
	if updated.Role != "BUYER" {
		t.Errorf("Role must be immutable, got %s", updated.Role)
	}

	if _, err := store.UpdateProfile(ctx, db, "ghost@example.com", store.ProfileUpdate{}); !errors.Is(err, store.ErrUserNotFound) {
		t.Errorf("Expected not found for unknown email, got: %v", err)
	}
}
