package models

import "time"

type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionAbandoned  SessionStatus = "abandoned"
)

// Terminal reports whether no further mutation of the session is permitted.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionAbandoned
}

type QuizSession struct {
	ID          string        `json:"id"`
	QuizID      string        `json:"quiz_id"`
	ScopeKey    string        `json:"scope_key"`
	Status      SessionStatus `json:"status"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Score       int           `json:"score"`
	MaxScore    int           `json:"max_score"`
	TimeTaken   *int          `json:"time_taken,omitempty"` // seconds
}

// QuestionResponse is one graded answer. Immutable once recorded; at most
// one per (session, question) pair.
type QuestionResponse struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	QuestionID string    `json:"question_id"`
	Answer     string    `json:"user_answer"`
	Correct    bool      `json:"is_correct"`
	TimeTaken  *int      `json:"time_taken,omitempty"` // seconds
	CreatedAt  time.Time `json:"timestamp"`
}

type StartSessionRequest struct {
	QuizID string `json:"quiz_id"`
}

type SubmitAnswerRequest struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"user_answer"`
	TimeTaken  *int   `json:"time_taken,omitempty"`
}

type SubmitAnswerResponse struct {
	Response      QuestionResponse `json:"response"`
	CorrectAnswer string           `json:"correct_answer"`
	Explanation   string           `json:"explanation"`
	PointsAwarded int              `json:"points_awarded"`
}

// QuizResults is the final tally returned on completion.
type QuizResults struct {
	Session    QuizSession        `json:"session"`
	Responses  []QuestionResponse `json:"responses"`
	Questions  []Question         `json:"questions"`
	Score      int                `json:"score"`
	MaxScore   int                `json:"max_score"`
	Percentage float64            `json:"percentage"`
	Passed     bool               `json:"passed"`
	TimeTaken  int                `json:"time_taken"`
}

// TopicOutcome is one (topic, correct/incorrect) pair derived from a
// session's responses. A topic is correct only if every response touching
// it in the session was correct.
type TopicOutcome struct {
	TopicID string
	Correct bool
}

// SessionCompletedEvent is emitted exactly once when a session completes.
// The mastery scheduler consumes it; session id doubles as the idempotency
// key.
type SessionCompletedEvent struct {
	SessionID     string
	ScopeKey      string
	TopicOutcomes []TopicOutcome
}
