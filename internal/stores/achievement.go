package stores

import (
	"context"
	"fmt"
	"time"

	"github.com/safetylearn/safetylearn-web/internal/database"
	"github.com/safetylearn/safetylearn-web/internal/models"
)

// AchievementStore persists the achievement catalog and per-user unlocks.
type AchievementStore struct {
	db *database.DB
}

func NewAchievementStore(db *database.DB) *AchievementStore {
	return &AchievementStore{db: db}
}

// GetCatalog returns all catalog achievements keyed by id.
func (s *AchievementStore) GetCatalog(ctx context.Context) (map[string]models.Achievement, error) {
	var rows []models.Achievement
	query := `SELECT id, title, description, icon, category, created_at FROM achievements`

	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to get achievement catalog: %w", err)
	}

	catalog := make(map[string]models.Achievement, len(rows))
	for _, a := range rows {
		catalog[a.ID] = a
	}
	return catalog, nil
}

// GetUnlocksByUserID returns all unlock rows for an identity.
func (s *AchievementStore) GetUnlocksByUserID(ctx context.Context, userID string) ([]models.AchievementUnlock, error) {
	var unlocks []models.AchievementUnlock
	query := `SELECT user_id, achievement_id, unlocked_at FROM user_achievements WHERE user_id = ? ORDER BY unlocked_at`

	if err := s.db.SelectContext(ctx, &unlocks, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get achievement unlocks: %w", err)
	}
	return unlocks, nil
}

// Unlock inserts an unlock row, ignoring the conflict when the achievement
// is already unlocked. Returns true when a new row was written.
func (s *AchievementStore) Unlock(ctx context.Context, userID, achievementID string) (bool, error) {
	query := `
		INSERT INTO user_achievements (user_id, achievement_id, unlocked_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, achievement_id) DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, query, userID, achievementID, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to unlock achievement: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, nil
	}
	return n > 0, nil
}

// Seed inserts catalog achievements that are not present yet.
func (s *AchievementStore) Seed(ctx context.Context, achievements []models.Achievement) error {
	for _, achievement := range achievements {
		query := `
			INSERT OR IGNORE INTO achievements (id, title, description, icon, category, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`
		_, err := s.db.ExecContext(ctx, query, achievement.ID, achievement.Title,
			achievement.Description, achievement.Icon, achievement.Category, time.Now())
		if err != nil {
			return fmt.Errorf("failed to seed achievement %s: %w", achievement.ID, err)
		}
	}

	return nil
}
