package models

import "time"

type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionShortAnswer    QuestionType = "short_answer"
)

var ValidQuestionTypes = map[QuestionType]bool{
	QuestionMultipleChoice: true,
	QuestionTrueFalse:      true,
	QuestionShortAnswer:    true,
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	DifficultyMixed  Difficulty = "mixed"
)

var ValidDifficulties = map[Difficulty]bool{
	DifficultyEasy:   true,
	DifficultyMedium: true,
	DifficultyHard:   true,
	DifficultyMixed:  true,
}

// PointsForDifficulty returns the difficulty-weighted point value of a question.
func PointsForDifficulty(d Difficulty) int {
	switch d {
	case DifficultyMedium:
		return 2
	case DifficultyHard:
		return 3
	default:
		return 1
	}
}

type Quiz struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Difficulty    Difficulty `json:"difficulty"`
	QuestionCount int       `json:"question_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// QuizDetail is a quiz with its ordered questions. Immutable once imported.
type QuizDetail struct {
	Quiz
	Questions []Question `json:"questions"`
}

type Question struct {
	ID            string       `json:"id"`
	QuizID        string       `json:"quiz_id"`
	Type          QuestionType `json:"question_type"`
	Prompt        string       `json:"question_text"`
	Difficulty    Difficulty   `json:"difficulty"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correct_answer,omitempty"`
	Explanation   string       `json:"explanation,omitempty"`
	Points        int          `json:"points"`
	TopicID       *string      `json:"topic_id,omitempty"`
}

// Stripped returns the question without answer data, for serving to learners.
func (q Question) Stripped() Question {
	q.CorrectAnswer = ""
	q.Explanation = ""
	return q
}

// Topic is a TopicCatalog entry referenced by questions.
type Topic struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// ── Import Types ─────────────────────────────────────────

// ImportQuizRequest is an externally materialized quiz bundle. The content
// pipeline that writes questions (an LLM) is outside this service; we only
// validate and persist the structured records.
type ImportQuizRequest struct {
	Title       string                  `json:"title"`
	Description string                  `json:"description"`
	Difficulty  Difficulty              `json:"difficulty"`
	Questions   []ImportQuestionRequest `json:"questions"`
}

type ImportQuestionRequest struct {
	Type          QuestionType `json:"question_type"`
	Prompt        string       `json:"question_text"`
	Difficulty    Difficulty   `json:"difficulty"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correct_answer"`
	Explanation   string       `json:"explanation"`
	Topic         string       `json:"topic,omitempty"`
	TopicCategory string       `json:"topic_category,omitempty"`
}

type QuizListResponse struct {
	Quizzes []Quiz `json:"quizzes"`
	Total   int    `json:"total"`
}
