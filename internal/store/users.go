package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/farm-market/internal/models"
)

const userColumns = "id, email, name, role, address, state, district, phone, created_at, updated_at, version"

type CreateUserRequest struct {
	Email    string
	Name     string
	Role     string
	Address  string
	State    string
	District string
	Phone    string
}

// ProfileUpdate carries the fields a user may change. Nil pointers mean "keep
// current value". Email and role are immutable.
type ProfileUpdate struct {
	Name     *string
	Address  *string
	State    *string
	District *string
	Phone    *string
}

func CreateUser(ctx context.Context, db *sql.DB, req CreateUserRequest) (*models.User, error) {
	if req.Role != models.RoleFarmer && req.Role != models.RoleBuyer {
		return nil, validationf("role must be %s or %s", models.RoleFarmer, models.RoleBuyer)
	}

	user := &models.User{}

	query := `
		INSERT INTO users (email, name, role, address, state, district, phone, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW(), 1)
		RETURNING ` + userColumns

	err := db.QueryRowContext(ctx, query,
		req.Email, req.Name, req.Role, req.Address, req.State, req.District, req.Phone,
	).Scan(userFields(user)...)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

func GetUser(ctx context.Context, db *sql.DB, id int64) (*models.User, error) {
	return getUser(ctx, db, "id = $1", id)
}

func GetUserByEmail(ctx context.Context, db *sql.DB, email string) (*models.User, error) {
	return getUser(ctx, db, "email = $1", email)
}

// querier lets store functions run against either *sql.DB or *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func getUser(ctx context.Context, q querier, where string, arg any) (*models.User, error) {
	user := &models.User{}

	query := "SELECT " + userColumns + " FROM users WHERE " + where

	err := q.QueryRowContext(ctx, query, arg).Scan(userFields(user)...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

func UpdateProfile(ctx context.Context, db *sql.DB, email string, upd ProfileUpdate) (*models.User, error) {
	user, err := GetUserByEmail(ctx, db, email)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil && *upd.Name != "" {
		user.Name = *upd.Name
	}
	if upd.Address != nil {
		user.Address = *upd.Address
	}
	if upd.State != nil {
		user.State = *upd.State
	}
	if upd.District != nil {
		user.District = *upd.District
	}
	if upd.Phone != nil {
		user.Phone = *upd.Phone
	}

	query := `
		UPDATE users
		SET name = $1, address = $2, state = $3, district = $4, phone = $5,
		    updated_at = NOW(), version = version + 1
		WHERE id = $6
		RETURNING ` + userColumns

	updated := &models.User{}
	err = db.QueryRowContext(ctx, query,
		user.Name, user.Address, user.State, user.District, user.Phone, user.ID,
	).Scan(userFields(updated)...)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	return updated, nil
}

func userFields(u *models.User) []any {
	return []any{
		&u.ID,
		&u.Email,
		&u.Name,
		&u.Role,
		&u.Address,
		&u.State,
		&u.District,
		&u.Phone,
		&u.CreatedAt,
		&u.UpdatedAt,
		&u.Version,
	}
}
