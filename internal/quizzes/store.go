package quizzes

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/learnloop/backend/internal/models"
)

// Store is the persistence contract the session manager depends on. The
// postgres implementation below is the production one; tests use an
// in-memory implementation.
type Store interface {
	CreateQuiz(quiz *models.QuizDetail) error
	GetQuiz(quizID string) (*models.Quiz, error)
	GetQuizWithQuestions(quizID string) (*models.QuizDetail, error)
	ListQuizzes(limit, offset int) ([]models.Quiz, int, error)
	UpsertTopic(name, category string) (string, error)

	CreateSession(session *models.QuizSession) error
	GetSession(sessionID string) (*models.QuizSession, error)

	// RecordResponse persists the response and adds scoreDelta to the
	// session's running score in one transaction. Returns
	// models.ErrDuplicateAnswer if the question was already answered.
	RecordResponse(resp *models.QuestionResponse, scoreDelta int) error
	GetResponses(sessionID string) ([]models.QuestionResponse, error)

	// CompleteSession and AbandonSession transition the session to a
	// terminal status. They only touch rows still in_progress, so a lost
	// race surfaces as models.ErrInvalidState.
	CompleteSession(sessionID string, score, maxScore, timeTaken int, completedAt time.Time) error
	AbandonSession(sessionID string) error
}

type SQLStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// ── Quiz Bundles ─────────────────────────────────────────

func (s *SQLStore) CreateQuiz(quiz *models.QuizDetail) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin create quiz: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO quizzes (id, title, description, difficulty, question_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		quiz.ID, quiz.Title, quiz.Description, quiz.Difficulty, quiz.QuestionCount, quiz.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert quiz: %w", err)
	}

	for i, q := range quiz.Questions {
		var options sql.NullString
		if q.Options != nil {
			encoded, err := json.Marshal(q.Options)
			if err != nil {
				return fmt.Errorf("encode options: %w", err)
			}
			options = sql.NullString{String: string(encoded), Valid: true}
		}
		_, err = tx.Exec(
			`INSERT INTO questions
			    (id, quiz_id, position, question_type, question_text, difficulty,
			     options, correct_answer, explanation, points, topic_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			q.ID, quiz.ID, i, q.Type, q.Prompt, q.Difficulty,
			options, q.CorrectAnswer, q.Explanation, q.Points, q.TopicID,
		)
		if err != nil {
			return fmt.Errorf("insert question %d: %w", i+1, err)
		}
	}

	return tx.Commit()
}

func (s *SQLStore) GetQuiz(quizID string) (*models.Quiz, error) {
	var quiz models.Quiz
	err := s.db.QueryRow(
		`SELECT id, title, COALESCE(description, ''), difficulty, question_count, created_at
		 FROM quizzes WHERE id = $1`,
		quizID,
	).Scan(&quiz.ID, &quiz.Title, &quiz.Description, &quiz.Difficulty,
		&quiz.QuestionCount, &quiz.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("quiz %s: %w", quizID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get quiz: %w", err)
	}
	return &quiz, nil
}

func (s *SQLStore) GetQuizWithQuestions(quizID string) (*models.QuizDetail, error) {
	quiz, err := s.GetQuiz(quizID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT id, quiz_id, question_type, question_text, difficulty,
		        options, correct_answer, explanation, points, topic_id
		 FROM questions WHERE quiz_id = $1
		 ORDER BY position`,
		quizID,
	)
	if err != nil {
		return nil, fmt.Errorf("get quiz questions: %w", err)
	}
	defer rows.Close()

	detail := &models.QuizDetail{Quiz: *quiz}
	for rows.Next() {
		var q models.Question
		var options sql.NullString
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Type, &q.Prompt, &q.Difficulty,
			&options, &q.CorrectAnswer, &q.Explanation, &q.Points, &q.TopicID); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if options.Valid {
			if err := json.Unmarshal([]byte(options.String), &q.Options); err != nil {
				return nil, fmt.Errorf("decode options: %w", err)
			}
		}
		detail.Questions = append(detail.Questions, q)
	}
	return detail, rows.Err()
}

func (s *SQLStore) ListQuizzes(limit, offset int) ([]models.Quiz, int, error) {
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM quizzes`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count quizzes: %w", err)
	}

	rows, err := s.db.Query(
		`SELECT id, title, COALESCE(description, ''), difficulty, question_count, created_at
		 FROM quizzes ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	var quizzes []models.Quiz
	for rows.Next() {
		var q models.Quiz
		if err := rows.Scan(&q.ID, &q.Title, &q.Description, &q.Difficulty,
			&q.QuestionCount, &q.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan quiz: %w", err)
		}
		quizzes = append(quizzes, q)
	}
	return quizzes, total, rows.Err()
}

func (s *SQLStore) UpsertTopic(name, category string) (string, error) {
	id := uuid.NewString()
	err := s.db.QueryRow(
		`INSERT INTO topics (id, name, category) VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO UPDATE SET category = COALESCE(NULLIF(EXCLUDED.category, ''), topics.category)
		 RETURNING id`,
		id, name, category,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upsert topic: %w", err)
	}
	return id, nil
}

// ── Sessions ─────────────────────────────────────────────

func (s *SQLStore) CreateSession(session *models.QuizSession) error {
	_, err := s.db.Exec(
		`INSERT INTO quiz_sessions (id, quiz_id, scope_key, status, started_at, score, max_score)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		session.ID, session.QuizID, session.ScopeKey, session.Status,
		session.StartedAt, session.Score, session.MaxScore,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *SQLStore) GetSession(sessionID string) (*models.QuizSession, error) {
	var sess models.QuizSession
	err := s.db.QueryRow(
		`SELECT id, quiz_id, scope_key, status, started_at, completed_at, score, max_score, time_taken
		 FROM quiz_sessions WHERE id = $1`,
		sessionID,
	).Scan(&sess.ID, &sess.QuizID, &sess.ScopeKey, &sess.Status,
		&sess.StartedAt, &sess.CompletedAt, &sess.Score, &sess.MaxScore, &sess.TimeTaken)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s: %w", sessionID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &sess, nil
}

func (s *SQLStore) RecordResponse(resp *models.QuestionResponse, scoreDelta int) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin record response: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO quiz_responses (id, session_id, question_id, user_answer, is_correct, time_taken, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		resp.ID, resp.SessionID, resp.QuestionID, resp.Answer, resp.Correct, resp.TimeTaken, resp.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return fmt.Errorf("question %s: %w", resp.QuestionID, models.ErrDuplicateAnswer)
		}
		return fmt.Errorf("insert response: %w", err)
	}

	if scoreDelta != 0 {
		_, err = tx.Exec(
			`UPDATE quiz_sessions SET score = score + $1 WHERE id = $2`,
			scoreDelta, resp.SessionID,
		)
		if err != nil {
			return fmt.Errorf("update running score: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLStore) GetResponses(sessionID string) ([]models.QuestionResponse, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, question_id, user_answer, is_correct, time_taken, created_at
		 FROM quiz_responses WHERE session_id = $1
		 ORDER BY created_at`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("get responses: %w", err)
	}
	defer rows.Close()

	var responses []models.QuestionResponse
	for rows.Next() {
		var r models.QuestionResponse
		if err := rows.Scan(&r.ID, &r.SessionID, &r.QuestionID, &r.Answer,
			&r.Correct, &r.TimeTaken, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		responses = append(responses, r)
	}
	return responses, rows.Err()
}

func (s *SQLStore) CompleteSession(sessionID string, score, maxScore, timeTaken int, completedAt time.Time) error {
	res, err := s.db.Exec(
		`UPDATE quiz_sessions
		 SET status = $1, score = $2, max_score = $3, time_taken = $4, completed_at = $5
		 WHERE id = $6 AND status = $7`,
		models.SessionCompleted, score, maxScore, timeTaken, completedAt,
		sessionID, models.SessionInProgress,
	)
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	return requireTransition(res, sessionID)
}

func (s *SQLStore) AbandonSession(sessionID string) error {
	res, err := s.db.Exec(
		`UPDATE quiz_sessions SET status = $1 WHERE id = $2 AND status = $3`,
		models.SessionAbandoned, sessionID, models.SessionInProgress,
	)
	if err != nil {
		return fmt.Errorf("abandon session: %w", err)
	}
	return requireTransition(res, sessionID)
}

func requireTransition(res sql.Result, sessionID string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("session %s is terminal: %w", sessionID, models.ErrInvalidState)
	}
	return nil
}
