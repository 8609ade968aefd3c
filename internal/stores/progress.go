package stores

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/safetylearn/safetylearn-web/internal/database"
	"github.com/safetylearn/safetylearn-web/internal/models"
)

// ProgressStore persists the user_progress table. The completed lesson set
// lives in a JSON array column.
type ProgressStore struct {
	db *database.DB
}

func NewProgressStore(db *database.DB) *ProgressStore {
	return &ProgressStore{db: db}
}

type progressRow struct {
	UserID                string `db:"user_id"`
	CurrentLevel          int    `db:"current_level"`
	TotalLessonsCompleted int    `db:"total_lessons_completed"`
	StreakDays            int    `db:"streak_days"`
	TotalPoints           int    `db:"total_points"`
	CompletedLessonIDs    string `db:"completed_lesson_ids"`
	LastActivityDate      string `db:"last_activity_date"`
}

func (r progressRow) toModel() (*models.Progress, error) {
	ids := []string{}
	if r.CompletedLessonIDs != "" {
		if err := json.Unmarshal([]byte(r.CompletedLessonIDs), &ids); err != nil {
			return nil, fmt.Errorf("failed to decode completed lesson ids: %w", err)
		}
	}
	return &models.Progress{
		UserID:                r.UserID,
		CurrentLevel:          r.CurrentLevel,
		TotalLessonsCompleted: r.TotalLessonsCompleted,
		StreakDays:            r.StreakDays,
		TotalPoints:           r.TotalPoints,
		CompletedLessonIDs:    ids,
		LastActivityDate:      r.LastActivityDate,
	}, nil
}

// GetByUserID retrieves the progress row for an identity.
func (s *ProgressStore) GetByUserID(ctx context.Context, userID string) (*models.Progress, error) {
	var row progressRow
	query := `SELECT user_id, current_level, total_lessons_completed, streak_days, total_points, completed_lesson_ids, last_activity_date
			  FROM user_progress WHERE user_id = ?`

	err := s.db.GetContext(ctx, &row, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}

	return row.toModel()
}

// CreateIfAbsent inserts the progress row unless one already exists, then
// returns the stored row.
func (s *ProgressStore) CreateIfAbsent(ctx context.Context, progress models.Progress) (*models.Progress, error) {
	ids, err := json.Marshal(progress.CompletedLessonIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode completed lesson ids: %w", err)
	}

	query := `
		INSERT OR IGNORE INTO user_progress (user_id, current_level, total_lessons_completed, streak_days, total_points, completed_lesson_ids, last_activity_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query,
		progress.UserID, progress.CurrentLevel, progress.TotalLessonsCompleted,
		progress.StreakDays, progress.TotalPoints, string(ids), progress.LastActivityDate); err != nil {
		return nil, fmt.Errorf("failed to create progress: %w", err)
	}

	return s.GetByUserID(ctx, progress.UserID)
}

// Update replaces the counters and completed set for an identity in one
// statement, so a failed write leaves the prior state visible.
func (s *ProgressStore) Update(ctx context.Context, progress models.Progress) error {
	ids, err := json.Marshal(progress.CompletedLessonIDs)
	if err != nil {
		return fmt.Errorf("failed to encode completed lesson ids: %w", err)
	}

	query := `
		UPDATE user_progress
		SET current_level = ?, total_lessons_completed = ?, streak_days = ?, total_points = ?, completed_lesson_ids = ?, last_activity_date = ?
		WHERE user_id = ?
	`
	result, err := s.db.ExecContext(ctx, query,
		progress.CurrentLevel, progress.TotalLessonsCompleted, progress.StreakDays,
		progress.TotalPoints, string(ids), progress.LastActivityDate, progress.UserID)
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
