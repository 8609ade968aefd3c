package models

import (
	"time"
)

type Achievement struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Icon        string    `json:"icon" db:"icon"`
	Category    string    `json:"category" db:"category"` // progress, streak, completion, mastery
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// AchievementUnlock is one append-only unlock row, unique per
// (user, achievement); duplicate inserts are ignored.
type AchievementUnlock struct {
	UserID        string    `json:"user_id" db:"user_id"`
	AchievementID string    `json:"achievement_id" db:"achievement_id"`
	UnlockedAt    time.Time `json:"unlocked_at" db:"unlocked_at"`
}

// UnlockedAchievement is an unlock row joined with its catalog metadata,
// as it appears inside the assembled user.
type UnlockedAchievement struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Category    string    `json:"category"`
	UnlockedAt  time.Time `json:"unlocked_at"`
}
