package services

import (
	"context"
	"fmt"

	"github.com/safetylearn/safetylearn-web/internal/logger"
	"github.com/safetylearn/safetylearn-web/internal/models"
)

// Achievement ids awarded by progress thresholds.
const (
	AchievementFirstLesson    = "first-lesson"
	AchievementQuizMaster     = "quiz-master"
	AchievementSafetyScholar  = "safety-scholar"
	AchievementPointCollector = "point-collector"
)

// Unlock thresholds.
const (
	quizMasterLessons    = 5
	safetyScholarLessons = 25
	pointCollectorPoints = 1000
)

// AchievementStore is the unlock/catalog persistence needed by the service.
type AchievementStore interface {
	GetCatalog(ctx context.Context) (map[string]models.Achievement, error)
	GetUnlocksByUserID(ctx context.Context, userID string) ([]models.AchievementUnlock, error)
	Unlock(ctx context.Context, userID, achievementID string) (bool, error)
	Seed(ctx context.Context, achievements []models.Achievement) error
}

// Notifier receives unlock and level-up events for connected clients.
type Notifier interface {
	AchievementUnlocked(userID string, achievement models.Achievement)
	LevelUp(userID string, level int)
}

// AchievementService owns the static catalog and the threshold evaluation
// that runs after every non-no-op lesson completion.
type AchievementService struct {
	store    AchievementStore
	notifier Notifier
	logger   *logger.Log
}

func NewAchievementService(store AchievementStore, notifier Notifier) *AchievementService {
	return &AchievementService{
		store:    store,
		notifier: notifier,
		logger:   logger.New(),
	}
}

// DefaultCatalog returns the built-in achievement catalog.
func DefaultCatalog() []models.Achievement {
	return []models.Achievement{
		{ID: AchievementFirstLesson, Title: "First Lesson", Description: "Complete your first safety lesson", Icon: "Star", Category: "progress"},
		{ID: AchievementQuizMaster, Title: "Quiz Master", Description: "Complete 5 safety lessons", Icon: "Trophy", Category: "completion"},
		{ID: AchievementSafetyScholar, Title: "Safety Scholar", Description: "Complete 25 safety lessons", Icon: "GraduationCap", Category: "mastery"},
		{ID: AchievementPointCollector, Title: "Point Collector", Description: "Earn 1000 safety points", Icon: "Award", Category: "progress"},
	}
}

// Catalog returns the persisted achievement catalog.
func (s *AchievementService) Catalog(ctx context.Context) (map[string]models.Achievement, error) {
	return s.store.GetCatalog(ctx)
}

// SeedDefaults inserts any catalog achievements that are not present yet.
func (s *AchievementService) SeedDefaults(ctx context.Context) error {
	return s.store.Seed(ctx, DefaultCatalog())
}

// qualifying returns the achievement ids earned at the given counters.
func qualifying(lessonsCompleted, totalPoints int) []string {
	var ids []string
	if lessonsCompleted == 1 {
		ids = append(ids, AchievementFirstLesson)
	}
	if lessonsCompleted >= quizMasterLessons {
		ids = append(ids, AchievementQuizMaster)
	}
	if lessonsCompleted >= safetyScholarLessons {
		ids = append(ids, AchievementSafetyScholar)
	}
	if totalPoints >= pointCollectorPoints {
		ids = append(ids, AchievementPointCollector)
	}
	return ids
}

// EvaluateThresholds upserts every achievement the counters qualify for,
// ignoring ones already unlocked, and returns the newly unlocked set.
func (s *AchievementService) EvaluateThresholds(ctx context.Context, userID string, lessonsCompleted, totalPoints int) ([]models.Achievement, error) {
	due := qualifying(lessonsCompleted, totalPoints)
	if len(due) == 0 {
		return nil, nil
	}

	catalog, err := s.store.GetCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load achievement catalog: %w", err)
	}

	var unlocked []models.Achievement
	for _, id := range due {
		isNew, err := s.store.Unlock(ctx, userID, id)
		if err != nil {
			return unlocked, fmt.Errorf("failed to unlock achievement %s: %w", id, err)
		}
		if !isNew {
			continue
		}

		achievement, ok := catalog[id]
		if !ok {
			// Unlock row exists without catalog metadata; nothing to announce.
			s.logger.Warnf("unlocked achievement %s has no catalog entry", id)
			continue
		}

		unlocked = append(unlocked, achievement)
		if s.notifier != nil {
			s.notifier.AchievementUnlocked(userID, achievement)
		}
	}

	return unlocked, nil
}
