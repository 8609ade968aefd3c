package models

// Progress holds the cumulative learning counters for one identity.
// CompletedLessonIDs is persisted as a JSON array column.
type Progress struct {
	UserID                string   `json:"user_id" db:"user_id"`
	CurrentLevel          int      `json:"current_level" db:"current_level"`
	TotalLessonsCompleted int      `json:"total_lessons_completed" db:"total_lessons_completed"`
	StreakDays            int      `json:"streak_days" db:"streak_days"`
	TotalPoints           int      `json:"total_points" db:"total_points"`
	CompletedLessonIDs    []string `json:"completed_lesson_ids" db:"-"`
	LastActivityDate      string   `json:"last_activity_date" db:"last_activity_date"`
}

// PointsPerLesson is awarded once per newly completed lesson.
const PointsPerLesson = 100

// LessonsPerLevel controls how the level is derived from the completion count.
const LessonsPerLevel = 3

// LevelForLessons derives the current level from the completion count.
// The invariant currentLevel == floor(total/3)+1 holds after every completion.
func LevelForLessons(totalCompleted int) int {
	return totalCompleted/LessonsPerLevel + 1
}

// DefaultProgress returns the lazily-created initial progress row.
func DefaultProgress(userID, today string) Progress {
	return Progress{
		UserID:                userID,
		CurrentLevel:          1,
		TotalLessonsCompleted: 0,
		StreakDays:            1,
		TotalPoints:           0,
		CompletedLessonIDs:    []string{},
		LastActivityDate:      today,
	}
}

// HasCompleted reports whether the lesson id is already in the completed set.
func (p *Progress) HasCompleted(lessonID string) bool {
	for _, id := range p.CompletedLessonIDs {
		if id == lessonID {
			return true
		}
	}
	return false
}
