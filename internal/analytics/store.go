package analytics

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/learnloop/backend/internal/models"
)

// Store is the read-side contract: aggregate queries over session, response,
// and mastery history for one scope key. Nothing here mutates state.
type Store interface {
	// SessionStats returns completed-session counts and the average score
	// percentage over completed sessions only; abandoned sessions are
	// excluded from score-based statistics. recent counts completions at
	// or after cutoff.
	SessionStats(scopeKey string, cutoff time.Time) (completed int, avgScore float64, recent int, err error)

	// ResponseStats counts graded responses recorded at or after cutoff,
	// including those from later-abandoned sessions.
	ResponseStats(scopeKey string, cutoff time.Time) (total, correct int, err error)

	// MasteryLevels returns every tracked mastery level for the scope key.
	MasteryLevels(scopeKey string) ([]float64, error)

	// ActivityDates returns timestamps of session completions and response
	// recordings since the given time, for streak derivation.
	ActivityDates(scopeKey string, since time.Time) ([]time.Time, error)

	LastActivity(scopeKey string) (*time.Time, error)

	QuizHistory(scopeKey string, limit int) ([]models.QuizHistoryEntry, error)

	// TopicPerformance lists per-topic mastery with catalog names, weakest
	// topics first.
	TopicPerformance(scopeKey string, limit int) ([]models.TopicPerformance, error)
}

type SQLStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) SessionStats(scopeKey string, cutoff time.Time) (int, float64, int, error) {
	// SUM and AVG over zero rows are NULL; an empty history must come back
	// as zeros, not a scan error.
	var completed int
	var avgScore sql.NullFloat64
	var recent sql.NullInt64
	err := s.db.QueryRow(
		`SELECT COUNT(*),
		        AVG(CASE WHEN max_score > 0 THEN score * 100.0 / max_score END),
		        COALESCE(SUM(CASE WHEN completed_at >= $2 THEN 1 ELSE 0 END), 0)
		 FROM quiz_sessions
		 WHERE scope_key = $1 AND status = 'completed'`,
		scopeKey, cutoff,
	).Scan(&completed, &avgScore, &recent)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("session stats: %w", err)
	}
	return completed, avgScore.Float64, int(recent.Int64), nil
}

func (s *SQLStore) ResponseStats(scopeKey string, cutoff time.Time) (int, int, error) {
	var total int
	var correct sql.NullInt64
	err := s.db.QueryRow(
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN qr.is_correct THEN 1 ELSE 0 END), 0)
		 FROM quiz_responses qr
		 JOIN quiz_sessions qs ON qr.session_id = qs.id
		 WHERE qs.scope_key = $1 AND qr.created_at >= $2`,
		scopeKey, cutoff,
	).Scan(&total, &correct)
	if err != nil {
		return 0, 0, fmt.Errorf("response stats: %w", err)
	}
	return total, int(correct.Int64), nil
}

func (s *SQLStore) MasteryLevels(scopeKey string) ([]float64, error) {
	rows, err := s.db.Query(
		`SELECT mastery_level FROM topic_mastery WHERE scope_key = $1`,
		scopeKey,
	)
	if err != nil {
		return nil, fmt.Errorf("mastery levels: %w", err)
	}
	defer rows.Close()

	var levels []float64
	for rows.Next() {
		var level float64
		if err := rows.Scan(&level); err != nil {
			return nil, fmt.Errorf("scan mastery level: %w", err)
		}
		levels = append(levels, level)
	}
	return levels, rows.Err()
}

func (s *SQLStore) ActivityDates(scopeKey string, since time.Time) ([]time.Time, error) {
	rows, err := s.db.Query(
		`SELECT completed_at FROM quiz_sessions
		 WHERE scope_key = $1 AND completed_at IS NOT NULL AND completed_at >= $2
		 UNION ALL
		 SELECT qr.created_at FROM quiz_responses qr
		 JOIN quiz_sessions qs ON qr.session_id = qs.id
		 WHERE qs.scope_key = $1 AND qr.created_at >= $2`,
		scopeKey, since,
	)
	if err != nil {
		return nil, fmt.Errorf("activity dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var ts time.Time
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("scan activity date: %w", err)
		}
		dates = append(dates, ts)
	}
	return dates, rows.Err()
}

func (s *SQLStore) LastActivity(scopeKey string) (*time.Time, error) {
	var last sql.NullTime
	err := s.db.QueryRow(
		`SELECT MAX(completed_at) FROM quiz_sessions
		 WHERE scope_key = $1 AND completed_at IS NOT NULL`,
		scopeKey,
	).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("last activity: %w", err)
	}
	if !last.Valid {
		return nil, nil
	}
	return &last.Time, nil
}

func (s *SQLStore) QuizHistory(scopeKey string, limit int) ([]models.QuizHistoryEntry, error) {
	rows, err := s.db.Query(
		`SELECT qs.id, q.title, qs.started_at, qs.completed_at,
		        qs.score, qs.max_score, qs.time_taken
		 FROM quiz_sessions qs
		 JOIN quizzes q ON qs.quiz_id = q.id
		 WHERE qs.scope_key = $1 AND qs.status = 'completed'
		 ORDER BY qs.completed_at DESC
		 LIMIT $2`,
		scopeKey, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("quiz history: %w", err)
	}
	defer rows.Close()

	var entries []models.QuizHistoryEntry
	for rows.Next() {
		var e models.QuizHistoryEntry
		if err := rows.Scan(&e.SessionID, &e.Title, &e.StartedAt, &e.CompletedAt,
			&e.Score, &e.MaxScore, &e.TimeTaken); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		if e.MaxScore > 0 {
			e.Percentage = float64(e.Score) * 100.0 / float64(e.MaxScore)
		}
		e.Passed = e.Percentage >= 60
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLStore) TopicPerformance(scopeKey string, limit int) ([]models.TopicPerformance, error) {
	rows, err := s.db.Query(
		`SELECT tm.topic_id, t.name, COALESCE(t.category, ''),
		        tm.mastery_level, tm.attempts, tm.correct_count, tm.next_review_at
		 FROM topic_mastery tm
		 JOIN topics t ON tm.topic_id = t.id
		 WHERE tm.scope_key = $1
		 ORDER BY tm.mastery_level ASC
		 LIMIT $2`,
		scopeKey, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("topic performance: %w", err)
	}
	defer rows.Close()

	var topics []models.TopicPerformance
	for rows.Next() {
		var tp models.TopicPerformance
		if err := rows.Scan(&tp.TopicID, &tp.Name, &tp.Category,
			&tp.MasteryLevel, &tp.Attempts, &tp.CorrectCount, &tp.NextReviewAt); err != nil {
			return nil, fmt.Errorf("scan topic performance: %w", err)
		}
		if tp.Attempts > 0 {
			tp.Accuracy = float64(tp.CorrectCount) * 100.0 / float64(tp.Attempts)
		}
		tp.Status = models.StatusForMastery(tp.MasteryLevel)
		topics = append(topics, tp)
	}
	return topics, rows.Err()
}
