package models

import (
	"strings"
	"time"
)

// AgeGroup buckets users into the three curriculum tiers.
type AgeGroup string

const (
	AgeGroupYoung AgeGroup = "5-10"
	AgeGroupMid   AgeGroup = "11-15"
	AgeGroupTeen  AgeGroup = "16-19"
)

// AgeGroupForAge maps an age to its curriculum bucket. Ages outside the
// supported 5-19 range fall back to the middle bucket.
func AgeGroupForAge(age int) AgeGroup {
	switch {
	case age >= 5 && age <= 10:
		return AgeGroupYoung
	case age >= 11 && age <= 15:
		return AgeGroupMid
	case age >= 16 && age <= 19:
		return AgeGroupTeen
	default:
		return AgeGroupMid
	}
}

// IsValid reports whether the group is one of the three known buckets.
func (g AgeGroup) IsValid() bool {
	switch g {
	case AgeGroupYoung, AgeGroupMid, AgeGroupTeen:
		return true
	}
	return false
}

// Profile holds the mutable user-facing attributes, one row per identity.
// The id always equals the identity id and never changes.
type Profile struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Age       int       `json:"age" db:"age"`
	AgeGroup  AgeGroup  `json:"age_group" db:"age_group"`
	Avatar    string    `json:"avatar" db:"avatar"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// AuthUser is the assembled view returned to clients: profile, progress
// and unlocked achievements joined together with the identity email.
// It is recomputed on every read and never persisted as its own row.
type AuthUser struct {
	ID           string              `json:"id"`
	Email        string              `json:"email"`
	Name         string              `json:"name"`
	Age          int                 `json:"age"`
	AgeGroup     AgeGroup            `json:"age_group"`
	Avatar       string              `json:"avatar"`
	Progress     ProgressSummary     `json:"progress"`
	Achievements []UnlockedAchievement `json:"achievements"`
	CreatedAt    time.Time           `json:"created_at"`
}

// ProgressSummary is the progress slice of the assembled user.
type ProgressSummary struct {
	CurrentLevel          int      `json:"current_level"`
	TotalLessonsCompleted int      `json:"total_lessons_completed"`
	StreakDays            int      `json:"streak_days"`
	TotalPoints           int      `json:"total_points"`
	CompletedTopics       []string `json:"completed_topics"`
}

// SignUpRequest carries the fields needed to create an account.
type SignUpRequest struct {
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=6"`
	Name     string   `json:"name" validate:"required,min=1,max=50"`
	Age      int      `json:"age" validate:"required,min=5,max=19"`
	AgeGroup AgeGroup `json:"age_group"`
}

// SignInRequest represents a login attempt
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ProfileUpdate is a partial profile update; nil fields are left untouched.
type ProfileUpdate struct {
	Name     *string   `json:"name,omitempty"`
	Age      *int      `json:"age,omitempty"`
	AgeGroup *AgeGroup `json:"age_group,omitempty"`
	Avatar   *string   `json:"avatar,omitempty"`
}

// IsEmpty reports whether the update carries no fields at all.
func (u ProfileUpdate) IsEmpty() bool {
	return u.Name == nil && u.Age == nil && u.AgeGroup == nil && u.Avatar == nil
}

// NameFromEmail derives the default display name from an email local-part.
func NameFromEmail(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return "User"
}
