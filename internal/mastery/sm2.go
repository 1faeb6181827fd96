package mastery

import (
	"math"
	"time"

	"github.com/learnloop/backend/internal/models"
)

const (
	// MinEasiness is the SM-2 floor for the easiness factor.
	MinEasiness = 1.3

	// InitialEasiness seeds a freshly created topic state.
	InitialEasiness = 2.5

	// MasteryAlpha is the exponential smoothing weight for mastery level.
	MasteryAlpha = 0.2
)

// QualityFor maps a topic outcome onto the SM-2 quality scale. Correct
// answers are a confident recall (5); incorrect ones a hard failure (2).
func QualityFor(correct bool) int {
	if correct {
		return 5
	}
	return 2
}

// NewTopicMastery returns the initial state for a topic a scope key has
// never been scored on.
func NewTopicMastery(topicID, scopeKey string) models.TopicMastery {
	return models.TopicMastery{
		TopicID:        topicID,
		ScopeKey:       scopeKey,
		EasinessFactor: InitialEasiness,
		IntervalDays:   1,
	}
}

// Advance applies one SM-2 review to the topic state and returns the
// updated copy. Pure: no clock reads, no store access.
//
// The easiness factor always follows the SM-2 formula, clamped at 1.3.
// Intervals follow the 1, 6, round(previous x EF') ladder on correct
// outcomes; any incorrect outcome resets the interval to one day.
func Advance(m models.TopicMastery, correct bool, now time.Time) models.TopicMastery {
	q := QualityFor(correct)

	ef := m.EasinessFactor + (0.1 - float64(5-q)*(0.08+float64(5-q)*0.02))
	if ef < MinEasiness {
		ef = MinEasiness
	}

	interval := 1
	if correct {
		switch m.Attempts {
		case 0:
			interval = 1
		case 1:
			interval = 6
		default:
			interval = int(math.Round(float64(m.IntervalDays) * ef))
			if interval < 1 {
				interval = 1
			}
		}
	}

	outcome := 0.0
	if correct {
		outcome = 1.0
	}
	level := m.MasteryLevel*(1-MasteryAlpha) + outcome*MasteryAlpha
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}

	m.EasinessFactor = ef
	m.IntervalDays = interval
	m.MasteryLevel = level
	m.Attempts++
	if correct {
		m.CorrectCount++
	}
	m.LastReviewedAt = now
	m.NextReviewAt = now.Add(time.Duration(interval) * 24 * time.Hour)
	return m
}
