package llm

import (
	"fmt"
	"strings"

	"github.com/schollz/closestmatch"
)

// topicTiers is the per-age topic policy: the assistant only discusses
// these subjects and redirects everything else. The tiers follow the
// system prompts below, which split the teen years into 13-15 and 16-19.
var topicTiers = []struct {
	minAge, maxAge int
	topics         []string
}{
	{5, 8, []string{"stranger danger", "good touch bad touch", "saying no", "safe adults"}},
	{9, 12, []string{"bullying", "online safety", "body boundaries", "emergencies"}},
	{13, 15, []string{"peer pressure", "toxic friendships", "confidence", "self-worth"}},
	{16, 19, []string{"consent", "digital abuse", "reporting abuse", "emotional boundaries"}},
}

func tierFor(age int) int {
	for i, tier := range topicTiers {
		if age >= tier.minAge && age <= tier.maxAge {
			return i
		}
	}
	return -1
}

// AllowedTopics returns the topic policy for an age, empty outside 5-19.
func AllowedTopics(age int) []string {
	i := tierFor(age)
	if i < 0 {
		return nil
	}
	return topicTiers[i].topics
}

// SystemPrompt returns the age-appropriate assistant instructions. Ages
// outside the supported range get a guardian-referral prompt.
func SystemPrompt(age int) string {
	switch {
	case age >= 5 && age <= 8:
		return `You are a friendly AI safety assistant for young children (ages 5-8). You MUST ONLY discuss these safety topics: stranger danger, good touch/bad touch, saying no, and safe adults.

Your responses should be:
- Simple and easy to understand with basic vocabulary
- Very short (1-2 sentences maximum)
- Encouraging, with phrases like "Great question!" or "You're being so smart!"
- Always emphasize telling a trusted adult when something feels wrong
- Positive and reassuring, never scary or detailed

If asked about anything else, politely redirect the conversation back to these four topics only.`
	case age >= 9 && age <= 12:
		return `You are a helpful AI safety assistant for children (ages 9-12). You MUST ONLY discuss these safety topics: bullying, online safety, body boundaries, and emergencies.

Your responses should be:
- Clear and informative but age-appropriate
- Practical tips they can remember and use
- Concise (2-3 sentences)
- Always remind them to talk to trusted adults about concerns

If asked about anything else, politely redirect the conversation back to these four topics only.`
	case age >= 13 && age <= 15:
		return `You are a knowledgeable AI safety assistant for teenagers (ages 13-15). You MUST ONLY discuss these safety topics: peer pressure, toxic friendships, confidence, and self-worth.

Your responses should be:
- Comprehensive and detailed but focused on these topics
- Respectful of their growing independence while providing guidance
- Actionable advice and strategies
- Mature but supportive language

If asked about anything else, politely redirect the conversation back to these four topics only.`
	case age >= 16 && age <= 19:
		return `You are an expert AI safety assistant for young adults (ages 16-19). You MUST ONLY discuss these safety topics: consent, digital abuse, reporting abuse, and emotional boundaries.

Your responses should be:
- Detailed and comprehensive within these topic areas
- Practical, real-world safety strategies
- Include resources and next steps when appropriate
- Professional but friendly language

If asked about anything else, politely redirect the conversation back to these four topics only.`
	default:
		return fmt.Sprintf(`You are a safety assistant, but the user's age (%d) is outside the supported range of 5-19 years. Please ask them to verify their age or contact a parent/guardian for assistance.`, age)
	}
}

// TopicGuard classifies a free-form message against a tier's allowed
// topic phrases, so the handler can name the nearest permitted topic in a
// redirect hint.
type TopicGuard struct {
	matchers []*closestmatch.ClosestMatch
}

// NewTopicGuard builds a fuzzy matcher per age tier.
func NewTopicGuard() *TopicGuard {
	matchers := make([]*closestmatch.ClosestMatch, len(topicTiers))
	for i, tier := range topicTiers {
		matchers[i] = closestmatch.New(tier.topics, []int{2, 3})
	}
	return &TopicGuard{matchers: matchers}
}

// NearestTopic returns the closest allowed topic for the message and
// whether the message looks on-topic (shares at least one word with it).
func (g *TopicGuard) NearestTopic(age int, message string) (string, bool) {
	i := tierFor(age)
	if i < 0 {
		return "", false
	}

	topic := g.matchers[i].Closest(strings.ToLower(message))
	if topic == "" {
		return topicTiers[i].topics[0], false
	}

	for _, word := range strings.Fields(topic) {
		if strings.Contains(strings.ToLower(message), word) {
			return topic, true
		}
	}
	return topic, false
}
