package stores

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/safetylearn/safetylearn-web/internal/database"
	"github.com/safetylearn/safetylearn-web/internal/models"
)

// ProfileStore persists the users table.
type ProfileStore struct {
	db *database.DB
}

func NewProfileStore(db *database.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

// GetByID retrieves a profile by identity id.
func (s *ProfileStore) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	query := `SELECT id, name, age, age_group, avatar, created_at, updated_at FROM users WHERE id = ?`

	err := s.db.GetContext(ctx, &profile, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return &profile, nil
}

// CreateIfAbsent inserts the profile unless a row with the same id already
// exists, then returns the stored row. The conditional insert keeps lazy
// default creation idempotent even when two assemblies race.
func (s *ProfileStore) CreateIfAbsent(ctx context.Context, profile models.Profile) (*models.Profile, error) {
	now := time.Now()
	query := `
		INSERT OR IGNORE INTO users (id, name, age, age_group, avatar, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, profile.ID, profile.Name, profile.Age, profile.AgeGroup, profile.Avatar, now, now); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	return s.GetByID(ctx, profile.ID)
}

// Update applies a partial update; nil fields are left untouched.
func (s *ProfileStore) Update(ctx context.Context, id string, update models.ProfileUpdate) error {
	if update.IsEmpty() {
		return nil
	}

	set := ""
	args := []interface{}{}
	appendSet := func(col string, val interface{}) {
		if set != "" {
			set += ", "
		}
		set += col + " = ?"
		args = append(args, val)
	}

	if update.Name != nil {
		appendSet("name", *update.Name)
	}
	if update.Age != nil {
		appendSet("age", *update.Age)
	}
	if update.AgeGroup != nil {
		appendSet("age_group", *update.AgeGroup)
	}
	if update.Avatar != nil {
		appendSet("avatar", *update.Avatar)
	}
	appendSet("updated_at", time.Now())

	args = append(args, id)
	result, err := s.db.ExecContext(ctx, `UPDATE users SET `+set+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
