// Package lessons holds the static safety curriculum, bucketed by age
// group. The catalog is the source of lesson ids accepted by the
// completion endpoint; completion state itself lives with user progress.
package lessons

import (
	"github.com/safetylearn/safetylearn-web/internal/models"
)

type Lesson struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	AgeGroup    models.AgeGroup `json:"age_group"`
	Topic       string          `json:"topic"`
	Duration    int             `json:"duration"` // minutes
}

var catalog = []Lesson{
	// Ages 5-10
	{ID: "stranger-danger", Title: "Stranger Danger", Description: "Learn why we stay close to trusted grown-ups and what to do if a stranger talks to you", AgeGroup: models.AgeGroupYoung, Topic: "stranger danger", Duration: 10},
	{ID: "good-touch-bad-touch", Title: "Good Touch, Bad Touch", Description: "Understand body safety and which touches are okay", AgeGroup: models.AgeGroupYoung, Topic: "good touch bad touch", Duration: 10},
	{ID: "saying-no", Title: "It's Okay to Say No", Description: "Practice saying no when something feels wrong or uncomfortable", AgeGroup: models.AgeGroupYoung, Topic: "saying no", Duration: 8},
	{ID: "safe-adults", Title: "My Safe Adults", Description: "Find the trusted grown-ups you can always talk to", AgeGroup: models.AgeGroupYoung, Topic: "safe adults", Duration: 8},

	// Ages 11-15
	{ID: "bullying", Title: "Standing Up to Bullying", Description: "Recognize bullying and learn how to respond and get help", AgeGroup: models.AgeGroupMid, Topic: "bullying", Duration: 15},
	{ID: "online-safety", Title: "Staying Safe Online", Description: "Protect your personal information and spot unsafe situations on the internet", AgeGroup: models.AgeGroupMid, Topic: "online safety", Duration: 15},
	{ID: "body-boundaries", Title: "Body Boundaries", Description: "Understand personal space, consent and appropriate touch", AgeGroup: models.AgeGroupMid, Topic: "body boundaries", Duration: 12},
	{ID: "emergencies", Title: "Handling Emergencies", Description: "Know what to do and who to call when something goes wrong", AgeGroup: models.AgeGroupMid, Topic: "emergencies", Duration: 12},

	// Ages 16-19
	{ID: "consent", Title: "Understanding Consent", Description: "Consent in all contexts: respecting boundaries and saying no", AgeGroup: models.AgeGroupTeen, Topic: "consent", Duration: 20},
	{ID: "digital-abuse", Title: "Recognizing Digital Abuse", Description: "Spot online harassment, cyberstalking and digital manipulation", AgeGroup: models.AgeGroupTeen, Topic: "digital abuse", Duration: 20},
	{ID: "reporting-abuse", Title: "Reporting Abuse", Description: "How and where to report abuse and get help", AgeGroup: models.AgeGroupTeen, Topic: "reporting abuse", Duration: 15},
	{ID: "emotional-boundaries", Title: "Emotional Boundaries", Description: "Set healthy emotional limits and protect your mental health", AgeGroup: models.AgeGroupTeen, Topic: "emotional boundaries", Duration: 15},
}

// All returns the full catalog.
func All() []Lesson {
	out := make([]Lesson, len(catalog))
	copy(out, catalog)
	return out
}

// ForAgeGroup returns the lessons for one curriculum bucket.
func ForAgeGroup(group models.AgeGroup) []Lesson {
	var out []Lesson
	for _, lesson := range catalog {
		if lesson.AgeGroup == group {
			out = append(out, lesson)
		}
	}
	return out
}

// ByID looks a lesson up by id.
func ByID(id string) (Lesson, bool) {
	for _, lesson := range catalog {
		if lesson.ID == id {
			return lesson, true
		}
	}
	return Lesson{}, false
}

// CountByAgeGroup returns per-bucket lesson counts.
func CountByAgeGroup() map[models.AgeGroup]int {
	counts := make(map[models.AgeGroup]int)
	for _, lesson := range catalog {
		counts[lesson.AgeGroup]++
	}
	return counts
}
