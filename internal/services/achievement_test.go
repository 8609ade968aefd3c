package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQualifying(t *testing.T) {
	tests := []struct {
		name    string
		lessons int
		points  int
		want    []string
	}{
		{name: "nothing yet", lessons: 0, points: 0, want: nil},
		{name: "first lesson", lessons: 1, points: 100, want: []string{AchievementFirstLesson}},
		{name: "second lesson earns nothing new", lessons: 2, points: 200, want: nil},
		{name: "five lessons", lessons: 5, points: 500, want: []string{AchievementQuizMaster}},
		{name: "ten lessons hit a thousand points", lessons: 10, points: 1000, want: []string{AchievementQuizMaster, AchievementPointCollector}},
		{name: "twenty five lessons", lessons: 25, points: 2500, want: []string{AchievementQuizMaster, AchievementSafetyScholar, AchievementPointCollector}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, qualifying(tt.lessons, tt.points))
		})
	}
}

func TestEvaluateThresholds_UnlocksOnlyNew(t *testing.T) {
	store := newMemAchievements()
	notifier := &recordingNotifier{}
	s := NewAchievementService(store, notifier)
	ctx := context.Background()

	unlocked, err := s.EvaluateThresholds(ctx, "u1", 1, 100)
	require.NoError(t, err)
	require.Len(t, unlocked, 1)
	assert.Equal(t, AchievementFirstLesson, unlocked[0].ID)

	// Re-evaluating the same counters unlocks nothing further.
	unlocked, err = s.EvaluateThresholds(ctx, "u1", 1, 100)
	require.NoError(t, err)
	assert.Empty(t, unlocked)
	assert.Equal(t, []string{AchievementFirstLesson}, notifier.unlocked)
}

func TestEvaluateThresholds_NoQualifiers(t *testing.T) {
	store := newMemAchievements()
	s := NewAchievementService(store, nil)

	unlocked, err := s.EvaluateThresholds(context.Background(), "u1", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, unlocked)
}

func TestEvaluateThresholds_SkipsUnlocksMissingFromCatalog(t *testing.T) {
	store := newMemAchievements()
	delete(store.catalog, AchievementQuizMaster)
	notifier := &recordingNotifier{}
	s := NewAchievementService(store, notifier)

	unlocked, err := s.EvaluateThresholds(context.Background(), "u1", 5, 500)
	require.NoError(t, err)
	assert.Empty(t, unlocked, "an unlock without catalog metadata is not announced")
	assert.Empty(t, notifier.unlocked)

	// The unlock row itself still exists.
	rows, err := store.GetUnlocksByUserID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestDefaultCatalog(t *testing.T) {
	catalog := DefaultCatalog()
	require.Len(t, catalog, 4)

	ids := make(map[string]bool)
	for _, a := range catalog {
		ids[a.ID] = true
		assert.NotEmpty(t, a.Title)
		assert.NotEmpty(t, a.Description)
		assert.NotEmpty(t, a.Category)
	}
	assert.True(t, ids[AchievementFirstLesson])
	assert.True(t, ids[AchievementQuizMaster])
	assert.True(t, ids[AchievementSafetyScholar])
	assert.True(t, ids[AchievementPointCollector])
}
