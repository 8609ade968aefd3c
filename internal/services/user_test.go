package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safetylearn/safetylearn-web/internal/identity"
	"github.com/safetylearn/safetylearn-web/internal/models"
	"github.com/safetylearn/safetylearn-web/internal/stores"
)

type memProfiles struct {
	mu       sync.Mutex
	rows     map[string]models.Profile
	getErr   error
	creates  int
}

func newMemProfiles() *memProfiles {
	return &memProfiles{rows: make(map[string]models.Profile)}
}

func (m *memProfiles) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	row, ok := m.rows[id]
	if !ok {
		return nil, stores.ErrNotFound
	}
	return &row, nil
}

func (m *memProfiles) CreateIfAbsent(ctx context.Context, profile models.Profile) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if existing, ok := m.rows[profile.ID]; ok {
		return &existing, nil
	}
	profile.CreatedAt = time.Now()
	profile.UpdatedAt = profile.CreatedAt
	m.rows[profile.ID] = profile
	return &profile, nil
}

func (m *memProfiles) Update(ctx context.Context, id string, update models.ProfileUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return stores.ErrNotFound
	}
	if update.Name != nil {
		row.Name = *update.Name
	}
	if update.Age != nil {
		row.Age = *update.Age
	}
	if update.AgeGroup != nil {
		row.AgeGroup = *update.AgeGroup
	}
	if update.Avatar != nil {
		row.Avatar = *update.Avatar
	}
	m.rows[id] = row
	return nil
}

type memProgress struct {
	mu      sync.Mutex
	rows    map[string]models.Progress
	creates int
	updates int
}

func newMemProgress() *memProgress {
	return &memProgress{rows: make(map[string]models.Progress)}
}

func (m *memProgress) GetByUserID(ctx context.Context, userID string) (*models.Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[userID]
	if !ok {
		return nil, stores.ErrNotFound
	}
	return &row, nil
}

func (m *memProgress) CreateIfAbsent(ctx context.Context, progress models.Progress) (*models.Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if existing, ok := m.rows[progress.UserID]; ok {
		return &existing, nil
	}
	m.rows[progress.UserID] = progress
	return &progress, nil
}

func (m *memProgress) Update(ctx context.Context, progress models.Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	m.rows[progress.UserID] = progress
	return nil
}

type memAchievements struct {
	mu      sync.Mutex
	catalog map[string]models.Achievement
	unlocks map[string]map[string]time.Time
}

func newMemAchievements() *memAchievements {
	m := &memAchievements{
		catalog: make(map[string]models.Achievement),
		unlocks: make(map[string]map[string]time.Time),
	}
	for _, a := range DefaultCatalog() {
		m.catalog[a.ID] = a
	}
	return m
}

func (m *memAchievements) GetCatalog(ctx context.Context) (map[string]models.Achievement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]models.Achievement, len(m.catalog))
	for id, a := range m.catalog {
		out[id] = a
	}
	return out, nil
}

func (m *memAchievements) GetUnlocksByUserID(ctx context.Context, userID string) ([]models.AchievementUnlock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AchievementUnlock
	for id, at := range m.unlocks[userID] {
		out = append(out, models.AchievementUnlock{UserID: userID, AchievementID: id, UnlockedAt: at})
	}
	return out, nil
}

func (m *memAchievements) Unlock(ctx context.Context, userID, achievementID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unlocks[userID] == nil {
		m.unlocks[userID] = make(map[string]time.Time)
	}
	if _, ok := m.unlocks[userID][achievementID]; ok {
		return false, nil
	}
	m.unlocks[userID][achievementID] = time.Now()
	return true, nil
}

func (m *memAchievements) Seed(ctx context.Context, achievements []models.Achievement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range achievements {
		if _, ok := m.catalog[a.ID]; !ok {
			m.catalog[a.ID] = a
		}
	}
	return nil
}

type recordingNotifier struct {
	mu        sync.Mutex
	unlocked  []string
	levels    []int
}

func (n *recordingNotifier) AchievementUnlocked(userID string, achievement models.Achievement) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.unlocked = append(n.unlocked, achievement.ID)
}

func (n *recordingNotifier) LevelUp(userID string, level int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.levels = append(n.levels, level)
}

type fixture struct {
	profiles *memProfiles
	progress *memProgress
	unlocks  *memAchievements
	notifier *recordingNotifier
	service  *UserService
}

func newFixture() *fixture {
	profiles := newMemProfiles()
	progress := newMemProgress()
	unlocks := newMemAchievements()
	notifier := &recordingNotifier{}
	achievements := NewAchievementService(unlocks, notifier)
	return &fixture{
		profiles: profiles,
		progress: progress,
		unlocks:  unlocks,
		notifier: notifier,
		service:  NewUserService(profiles, progress, achievements, notifier),
	}
}

func (f *fixture) seedProgress(p models.Progress) {
	f.progress.rows[p.UserID] = p
}

func TestAssemble_CreatesMissingAggregatesWithDefaults(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	user, err := f.service.Assemble(ctx, &identity.Identity{ID: "u1", Email: "zoe@example.com"})
	require.NoError(t, err)

	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "zoe@example.com", user.Email)
	assert.Equal(t, "zoe", user.Name, "default name comes from the email local part")
	assert.Equal(t, 12, user.Age)
	assert.Equal(t, models.AgeGroupMid, user.AgeGroup)

	assert.Equal(t, 1, user.Progress.CurrentLevel)
	assert.Equal(t, 0, user.Progress.TotalLessonsCompleted)
	assert.Equal(t, 1, user.Progress.StreakDays)
	assert.Equal(t, 0, user.Progress.TotalPoints)
	assert.Empty(t, user.Progress.CompletedTopics)
	assert.Empty(t, user.Achievements)
}

func TestAssemble_SeedsProfileFromIdentityMetadata(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	user, err := f.service.Assemble(ctx, &identity.Identity{
		ID:       "u1",
		Email:    "zoe@example.com",
		Name:     "Zoe",
		Age:      7,
		AgeGroup: "5-10",
	})
	require.NoError(t, err)

	assert.Equal(t, "Zoe", user.Name)
	assert.Equal(t, 7, user.Age)
	assert.Equal(t, models.AgeGroupYoung, user.AgeGroup)
}

func TestAssemble_IsIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	ident := &identity.Identity{ID: "u1", Email: "zoe@example.com", Name: "Zoe", Age: 7}

	first, err := f.service.Assemble(ctx, ident)
	require.NoError(t, err)
	second, err := f.service.Assemble(ctx, ident)
	require.NoError(t, err)

	assert.Equal(t, first.Name, second.Name)
	assert.Len(t, f.profiles.rows, 1)
	assert.Len(t, f.progress.rows, 1)
}

func TestAssemble_ProfileLoadFailureAborts(t *testing.T) {
	f := newFixture()
	f.profiles.getErr = errors.New("disk failure")

	_, err := f.service.Assemble(context.Background(), &identity.Identity{ID: "u1", Email: "zoe@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load profile")
}

func TestCompleteLesson_FirstLesson(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seedProgress(models.DefaultProgress("u1", "2026-08-29"))

	require.NoError(t, f.service.CompleteLesson(ctx, "u1", "stranger-danger"))

	got := f.progress.rows["u1"]
	assert.Equal(t, 1, got.TotalLessonsCompleted)
	assert.Equal(t, 1, got.CurrentLevel)
	assert.Equal(t, 100, got.TotalPoints)
	assert.Equal(t, []string{"stranger-danger"}, got.CompletedLessonIDs)
	assert.NotEmpty(t, got.LastActivityDate)

	assert.Equal(t, []string{AchievementFirstLesson}, f.notifier.unlocked)
	assert.Empty(t, f.notifier.levels, "one lesson does not level up")
}

func TestCompleteLesson_RepeatIsNoOp(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seedProgress(models.DefaultProgress("u1", "2026-08-29"))

	require.NoError(t, f.service.CompleteLesson(ctx, "u1", "stranger-danger"))
	require.NoError(t, f.service.CompleteLesson(ctx, "u1", "stranger-danger"))

	got := f.progress.rows["u1"]
	assert.Equal(t, 1, got.TotalLessonsCompleted)
	assert.Equal(t, 100, got.TotalPoints)
	assert.Equal(t, 1, f.progress.updates, "the repeat must not write")
	assert.Equal(t, []string{AchievementFirstLesson}, f.notifier.unlocked)
}

func TestCompleteLesson_RepeatStaysNoOpUnderConcurrentProfileUpdates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.service.Assemble(ctx, &identity.Identity{ID: "u1", Email: "zoe@example.com"})
	require.NoError(t, err)

	require.NoError(t, f.service.CompleteLesson(ctx, "u1", "stranger-danger"))

	// Re-completions race profile updates; the two aggregates write
	// independently, so neither mutation may corrupt the other.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.service.CompleteLesson(ctx, "u1", "stranger-danger"))
		}()
		go func() {
			defer wg.Done()
			name := "Zoey"
			age := 14
			assert.NoError(t, f.service.UpdateProfile(ctx, "u1", models.ProfileUpdate{Name: &name, Age: &age}))
		}()
	}
	wg.Wait()

	row := f.profiles.rows["u1"]
	assert.Equal(t, "Zoey", row.Name)
	assert.Equal(t, 14, row.Age)

	got := f.progress.rows["u1"]
	assert.Equal(t, 1, got.TotalLessonsCompleted)
	assert.Equal(t, 100, got.TotalPoints)
	assert.Equal(t, []string{"stranger-danger"}, got.CompletedLessonIDs)
	assert.Equal(t, 1, f.progress.updates, "the repeats must not write")
	assert.Equal(t, []string{AchievementFirstLesson}, f.notifier.unlocked, "no double award")
}

func TestCompleteLesson_ThirdLessonLevelsUp(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seedProgress(models.Progress{
		UserID:                "u1",
		CurrentLevel:          1,
		TotalLessonsCompleted: 2,
		StreakDays:            1,
		TotalPoints:           200,
		CompletedLessonIDs:    []string{"stranger-danger", "saying-no"},
		LastActivityDate:      "2026-08-28",
	})

	require.NoError(t, f.service.CompleteLesson(ctx, "u1", "safe-adults"))

	got := f.progress.rows["u1"]
	assert.Equal(t, 3, got.TotalLessonsCompleted)
	assert.Equal(t, 2, got.CurrentLevel)
	assert.Equal(t, 300, got.TotalPoints)
	assert.Equal(t, []int{2}, f.notifier.levels)
}

func TestCompleteLesson_FifthLessonUnlocksQuizMaster(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seedProgress(models.DefaultProgress("u1", "2026-08-29"))

	ids := []string{"stranger-danger", "saying-no", "safe-adults", "bullying", "online-safety"}
	for _, id := range ids {
		require.NoError(t, f.service.CompleteLesson(ctx, "u1", id))
	}

	got := f.progress.rows["u1"]
	assert.Equal(t, 5, got.TotalLessonsCompleted)
	assert.Equal(t, 2, got.CurrentLevel)
	assert.Equal(t, 500, got.TotalPoints)

	assert.Contains(t, f.notifier.unlocked, AchievementFirstLesson)
	assert.Contains(t, f.notifier.unlocked, AchievementQuizMaster)
	assert.NotContains(t, f.notifier.unlocked, AchievementSafetyScholar)
	assert.NotContains(t, f.notifier.unlocked, AchievementPointCollector)
}

func TestCompleteLesson_TenLessonsEarnPointCollector(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seedProgress(models.DefaultProgress("u1", "2026-08-29"))

	for i := 0; i < 10; i++ {
		require.NoError(t, f.service.CompleteLesson(ctx, "u1", string(rune('a'+i))))
	}

	got := f.progress.rows["u1"]
	assert.Equal(t, 1000, got.TotalPoints)
	assert.Equal(t, 4, got.CurrentLevel)
	assert.Contains(t, f.notifier.unlocked, AchievementPointCollector)
}

func TestCompleteLesson_MissingProgress(t *testing.T) {
	f := newFixture()

	err := f.service.CompleteLesson(context.Background(), "ghost", "stranger-danger")
	assert.ErrorIs(t, err, ErrProgressMissing)
}

func TestCompleteLesson_LevelInvariantHolds(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seedProgress(models.DefaultProgress("u1", "2026-08-29"))

	for i := 0; i < 7; i++ {
		require.NoError(t, f.service.CompleteLesson(ctx, "u1", string(rune('a'+i))))
		got := f.progress.rows["u1"]
		assert.Equal(t, got.TotalLessonsCompleted/3+1, got.CurrentLevel)
	}
}

func TestUpdateProfile_AppliesPartialUpdate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.service.Assemble(ctx, &identity.Identity{ID: "u1", Email: "zoe@example.com", Name: "Zoe", Age: 7, AgeGroup: "5-10"})
	require.NoError(t, err)

	name := "Zoey"
	age := 11
	group := models.AgeGroupMid
	require.NoError(t, f.service.UpdateProfile(ctx, "u1", models.ProfileUpdate{Name: &name, Age: &age, AgeGroup: &group}))

	row := f.profiles.rows["u1"]
	assert.Equal(t, "Zoey", row.Name)
	assert.Equal(t, 11, row.Age)
	assert.Equal(t, models.AgeGroupMid, row.AgeGroup)
	assert.Empty(t, row.Avatar, "fields not in the update stay put")
}

func TestUpdateProfile_UnknownUser(t *testing.T) {
	f := newFixture()

	name := "Nobody"
	err := f.service.UpdateProfile(context.Background(), "ghost", models.ProfileUpdate{Name: &name})
	require.Error(t, err)
}

func TestAssemble_JoinsUnlockedAchievements(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seedProgress(models.DefaultProgress("u1", "2026-08-29"))
	require.NoError(t, f.service.CompleteLesson(ctx, "u1", "stranger-danger"))

	user, err := f.service.Assemble(ctx, &identity.Identity{ID: "u1", Email: "zoe@example.com"})
	require.NoError(t, err)

	require.Len(t, user.Achievements, 1)
	assert.Equal(t, AchievementFirstLesson, user.Achievements[0].ID)
	assert.Equal(t, "First Lesson", user.Achievements[0].Title)
	assert.False(t, user.Achievements[0].UnlockedAt.IsZero())
}

func TestAssemble_SkipsUnlocksWithoutCatalogEntry(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seedProgress(models.DefaultProgress("u1", "2026-08-29"))
	_, err := f.unlocks.Unlock(ctx, "u1", "retired-achievement")
	require.NoError(t, err)

	user, err := f.service.Assemble(ctx, &identity.Identity{ID: "u1", Email: "zoe@example.com"})
	require.NoError(t, err)
	assert.Empty(t, user.Achievements)
}
