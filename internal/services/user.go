// Package services holds the profile/progress synchronizer: it turns a bare
// identity into the fully assembled user, lazily repairing missing
// aggregates, and applies progress-affecting mutations.
//
// Mutations against different aggregates (a profile update racing a lesson
// completion) are independent writes with no cross-aggregate transaction;
// each aggregate write is atomic on its own.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/safetylearn/safetylearn-web/internal/identity"
	"github.com/safetylearn/safetylearn-web/internal/logger"
	"github.com/safetylearn/safetylearn-web/internal/models"
	"github.com/safetylearn/safetylearn-web/internal/stores"
)

// ErrProgressMissing is returned when a mutation finds no progress row and
// cannot proceed.
var ErrProgressMissing = errors.New("failed to fetch progress")

const (
	defaultAge      = 12
	activityDateFmt = "2006-01-02"
)

// ProfileStore is the profile persistence needed by the synchronizer.
type ProfileStore interface {
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	CreateIfAbsent(ctx context.Context, profile models.Profile) (*models.Profile, error)
	Update(ctx context.Context, id string, update models.ProfileUpdate) error
}

// ProgressStore is the progress persistence needed by the synchronizer.
type ProgressStore interface {
	GetByUserID(ctx context.Context, userID string) (*models.Progress, error)
	CreateIfAbsent(ctx context.Context, progress models.Progress) (*models.Progress, error)
	Update(ctx context.Context, progress models.Progress) error
}

// UserService assembles users from the three aggregates and applies
// profile and progress mutations.
type UserService struct {
	profiles     ProfileStore
	progress     ProgressStore
	achievements *AchievementService
	notifier     Notifier
	logger       *logger.Log
	now          func() time.Time
}

func NewUserService(profiles ProfileStore, progress ProgressStore, achievements *AchievementService, notifier Notifier) *UserService {
	return &UserService{
		profiles:     profiles,
		progress:     progress,
		achievements: achievements,
		notifier:     notifier,
		logger:       logger.New(),
		now:          time.Now,
	}
}

// Assemble builds the complete user for a validated identity. Missing
// profile and progress rows are created with defaults seeded from the
// identity metadata; a failed creation aborts the assembly.
func (s *UserService) Assemble(ctx context.Context, ident *identity.Identity) (*models.AuthUser, error) {
	profile, err := s.profiles.GetByID(ctx, ident.ID)
	if errors.Is(err, stores.ErrNotFound) {
		s.logger.Infof("profile missing for %s, creating from identity metadata", ident.ID)
		profile, err = s.profiles.CreateIfAbsent(ctx, s.defaultProfile(ident))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	progress, err := s.progress.GetByUserID(ctx, ident.ID)
	if errors.Is(err, stores.ErrNotFound) {
		s.logger.Infof("progress missing for %s, creating defaults", ident.ID)
		progress, err = s.progress.CreateIfAbsent(ctx, models.DefaultProgress(ident.ID, s.today()))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}

	unlocked, err := s.unlockedAchievements(ctx, ident.ID)
	if err != nil {
		return nil, err
	}

	return &models.AuthUser{
		ID:       profile.ID,
		Email:    ident.Email,
		Name:     profile.Name,
		Age:      profile.Age,
		AgeGroup: profile.AgeGroup,
		Avatar:   profile.Avatar,
		Progress: models.ProgressSummary{
			CurrentLevel:          progress.CurrentLevel,
			TotalLessonsCompleted: progress.TotalLessonsCompleted,
			StreakDays:            progress.StreakDays,
			TotalPoints:           progress.TotalPoints,
			CompletedTopics:       progress.CompletedLessonIDs,
		},
		Achievements: unlocked,
		CreatedAt:    profile.CreatedAt,
	}, nil
}

// UpdateProfile writes only the provided fields; the id is immutable.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) error {
	if err := s.profiles.Update(ctx, userID, update); err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

// CompleteLesson records a lesson completion. Re-submitting an
// already-completed lesson id succeeds without changing any state.
func (s *UserService) CompleteLesson(ctx context.Context, userID, lessonID string) error {
	progress, err := s.progress.GetByUserID(ctx, userID)
	if errors.Is(err, stores.ErrNotFound) {
		return ErrProgressMissing
	}
	if err != nil {
		return fmt.Errorf("failed to fetch progress: %w", err)
	}

	if progress.HasCompleted(lessonID) {
		s.logger.Debugf("lesson %s already completed by %s", lessonID, userID)
		return nil
	}

	previousLevel := progress.CurrentLevel

	updated := *progress
	updated.CompletedLessonIDs = append(append([]string{}, progress.CompletedLessonIDs...), lessonID)
	updated.TotalLessonsCompleted = len(updated.CompletedLessonIDs)
	updated.CurrentLevel = models.LevelForLessons(updated.TotalLessonsCompleted)
	updated.TotalPoints = progress.TotalPoints + models.PointsPerLesson
	updated.LastActivityDate = s.today()

	if err := s.progress.Update(ctx, updated); err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}

	if s.notifier != nil && updated.CurrentLevel > previousLevel {
		s.notifier.LevelUp(userID, updated.CurrentLevel)
	}

	// Threshold misses here do not undo the completed lesson.
	if _, err := s.achievements.EvaluateThresholds(ctx, userID, updated.TotalLessonsCompleted, updated.TotalPoints); err != nil {
		s.logger.WithError(err).Warn("achievement evaluation failed")
	}

	return nil
}

func (s *UserService) defaultProfile(ident *identity.Identity) models.Profile {
	name := ident.Name
	if name == "" {
		name = models.NameFromEmail(ident.Email)
	}

	age := ident.Age
	if age == 0 {
		age = defaultAge
	}

	ageGroup := models.AgeGroup(ident.AgeGroup)
	if !ageGroup.IsValid() {
		ageGroup = models.AgeGroupMid
	}

	return models.Profile{
		ID:       ident.ID,
		Name:     name,
		Age:      age,
		AgeGroup: ageGroup,
	}
}

// unlockedAchievements joins unlock rows with catalog metadata. Rows whose
// achievement id is missing from the catalog are skipped, never fatal.
func (s *UserService) unlockedAchievements(ctx context.Context, userID string) ([]models.UnlockedAchievement, error) {
	unlocks, err := s.achievements.store.GetUnlocksByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load achievements: %w", err)
	}

	catalog, err := s.achievements.store.GetCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load achievement catalog: %w", err)
	}

	unlocked := make([]models.UnlockedAchievement, 0, len(unlocks))
	for _, unlock := range unlocks {
		meta, ok := catalog[unlock.AchievementID]
		if !ok {
			s.logger.Warnf("skipping unlock %s with no catalog entry", unlock.AchievementID)
			continue
		}
		unlocked = append(unlocked, models.UnlockedAchievement{
			ID:          meta.ID,
			Title:       meta.Title,
			Description: meta.Description,
			Icon:        meta.Icon,
			Category:    meta.Category,
			UnlockedAt:  unlock.UnlockedAt,
		})
	}

	return unlocked, nil
}

func (s *UserService) today() string {
	return s.now().Format(activityDateFmt)
}
