package models

import "time"

// ── Overall Stats ────────────────────────────────────────

type QuizStats struct {
	Completed int     `json:"completed"`
	AvgScore  float64 `json:"avg_score"` // percentage, completed sessions only
	Recent    int     `json:"recent"`    // completed within the window
}

type QuestionStats struct {
	Total    int     `json:"total"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"` // percentage
}

type TopicTally struct {
	Beginner   int `json:"beginner"`
	Learning   int `json:"learning"`
	Proficient int `json:"proficient"`
	Mastered   int `json:"mastered"`
}

type OverallStats struct {
	Quizzes      QuizStats     `json:"quizzes"`
	Questions    QuestionStats `json:"questions"`
	Topics       TopicTally    `json:"topics"`
	StreakDays   int           `json:"streak_days"`
	LastActivity *time.Time    `json:"last_activity,omitempty"`
	PeriodDays   int           `json:"period_days"`
}

// ── Topic Performance ────────────────────────────────────

type TopicPerformance struct {
	TopicID      string        `json:"topic_id"`
	Name         string        `json:"name"`
	Category     string        `json:"category,omitempty"`
	MasteryLevel float64       `json:"mastery_level"`
	Attempts     int           `json:"attempts"`
	CorrectCount int           `json:"correct_count"`
	Accuracy     float64       `json:"accuracy"` // percentage
	NextReviewAt time.Time     `json:"next_review_at"`
	Status       MasteryStatus `json:"status"`
}

// ── Quiz History ─────────────────────────────────────────

type QuizHistoryEntry struct {
	SessionID   string    `json:"session_id"`
	Title       string    `json:"title"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Score       int       `json:"score"`
	MaxScore    int       `json:"max_score"`
	Percentage  float64   `json:"percentage"`
	Passed      bool      `json:"passed"`
	TimeTaken   *int      `json:"time_taken,omitempty"`
}

// ── Recommendations ──────────────────────────────────────

type ReviewTopic struct {
	TopicID      string    `json:"topic_id"`
	Name         string    `json:"name"`
	MasteryLevel float64   `json:"mastery_level"`
	NextReviewAt time.Time `json:"next_review_at"`
}

type Recommendations struct {
	TopicsToReview      []ReviewTopic `json:"topics_to_review"`
	SuggestedDifficulty Difficulty    `json:"suggested_difficulty"`
	StudyTips           []string      `json:"study_tips"`
	ShouldPractice      bool          `json:"should_practice"`
}
