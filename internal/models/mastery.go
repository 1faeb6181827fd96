package models

import "time"

// TopicMastery is the per-(topic, scope key) spaced-repetition state.
// Created lazily on the first completed session touching the topic, mutated
// only by the mastery scheduler, never deleted.
type TopicMastery struct {
	TopicID        string    `json:"topic_id"`
	ScopeKey       string    `json:"scope_key"`
	MasteryLevel   float64   `json:"mastery_level"` // [0,1]
	Attempts       int       `json:"attempts"`
	CorrectCount   int       `json:"correct_count"`
	EasinessFactor float64   `json:"easiness_factor"` // >= 1.3
	IntervalDays   int       `json:"interval_days"`   // >= 1
	LastReviewedAt time.Time `json:"last_reviewed_at"`
	NextReviewAt   time.Time `json:"next_review_at"`

	// Version counts applied updates; the store rejects writes whose
	// expected version no longer matches the row.
	Version int `json:"-"`
}

// MasteryStatus buckets a mastery level for display.
type MasteryStatus string

const (
	StatusBeginner   MasteryStatus = "Beginner"
	StatusLearning   MasteryStatus = "Learning"
	StatusProficient MasteryStatus = "Proficient"
	StatusMastered   MasteryStatus = "Mastered"
)

func StatusForMastery(level float64) MasteryStatus {
	switch {
	case level >= 0.9:
		return StatusMastered
	case level >= 0.6:
		return StatusProficient
	case level >= 0.3:
		return StatusLearning
	default:
		return StatusBeginner
	}
}

// TopicMasteryView joins mastery state with its catalog entry.
type TopicMasteryView struct {
	TopicMastery
	TopicName string        `json:"topic_name"`
	Category  string        `json:"category,omitempty"`
	Status    MasteryStatus `json:"status"`
}
