package mastery

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/learnloop/backend/internal/models"
)

// Store is the persistence contract of the scheduler. Updates use optimistic
// concurrency: writes carry the version the caller read, and a mismatch
// surfaces as models.ErrConflict so the service can retry.
type Store interface {
	// ClaimSession records a session id in the processed set. It returns
	// false when the session was already applied, making reprocessing a
	// no-op.
	ClaimSession(sessionID string) (bool, error)

	GetMastery(topicID, scopeKey string) (*models.TopicMastery, error)

	// CreateMastery inserts the first state for a (topic, scope) key.
	// A concurrent create surfaces as models.ErrConflict.
	CreateMastery(m *models.TopicMastery) error

	// UpdateMastery writes m only if the stored version still equals
	// expectedVersion, bumping the version on success.
	UpdateMastery(m *models.TopicMastery, expectedVersion int) error

	GetDueTopics(scopeKey string, now time.Time, limit int) ([]models.TopicMasteryView, error)
	GetAllMastery(scopeKey string, limit int) ([]models.TopicMasteryView, error)
}

type SQLStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) ClaimSession(sessionID string) (bool, error) {
	res, err := s.db.Exec(
		`INSERT INTO mastery_applied_sessions (session_id) VALUES ($1)
		 ON CONFLICT (session_id) DO NOTHING`,
		sessionID,
	)
	if err != nil {
		return false, fmt.Errorf("claim session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim session rows: %w", err)
	}
	return affected > 0, nil
}

func (s *SQLStore) GetMastery(topicID, scopeKey string) (*models.TopicMastery, error) {
	var m models.TopicMastery
	err := s.db.QueryRow(
		`SELECT topic_id, scope_key, mastery_level, attempts, correct_count,
		        easiness_factor, interval_days, last_reviewed_at, next_review_at, version
		 FROM topic_mastery WHERE topic_id = $1 AND scope_key = $2`,
		topicID, scopeKey,
	).Scan(&m.TopicID, &m.ScopeKey, &m.MasteryLevel, &m.Attempts, &m.CorrectCount,
		&m.EasinessFactor, &m.IntervalDays, &m.LastReviewedAt, &m.NextReviewAt, &m.Version)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("mastery for topic %s: %w", topicID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get mastery: %w", err)
	}
	return &m, nil
}

func (s *SQLStore) CreateMastery(m *models.TopicMastery) error {
	res, err := s.db.Exec(
		`INSERT INTO topic_mastery
		    (topic_id, scope_key, mastery_level, attempts, correct_count,
		     easiness_factor, interval_days, last_reviewed_at, next_review_at, version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1)
		 ON CONFLICT (topic_id, scope_key) DO NOTHING`,
		m.TopicID, m.ScopeKey, m.MasteryLevel, m.Attempts, m.CorrectCount,
		m.EasinessFactor, m.IntervalDays, m.LastReviewedAt, m.NextReviewAt,
	)
	if err != nil {
		return fmt.Errorf("create mastery: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create mastery rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("mastery for topic %s already created: %w", m.TopicID, models.ErrConflict)
	}
	m.Version = 1
	return nil
}

func (s *SQLStore) UpdateMastery(m *models.TopicMastery, expectedVersion int) error {
	res, err := s.db.Exec(
		`UPDATE topic_mastery
		 SET mastery_level = $1, attempts = $2, correct_count = $3,
		     easiness_factor = $4, interval_days = $5,
		     last_reviewed_at = $6, next_review_at = $7, version = version + 1
		 WHERE topic_id = $8 AND scope_key = $9 AND version = $10`,
		m.MasteryLevel, m.Attempts, m.CorrectCount,
		m.EasinessFactor, m.IntervalDays,
		m.LastReviewedAt, m.NextReviewAt,
		m.TopicID, m.ScopeKey, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update mastery: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update mastery rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("mastery for topic %s changed underneath: %w", m.TopicID, models.ErrConflict)
	}
	m.Version = expectedVersion + 1
	return nil
}

func (s *SQLStore) GetDueTopics(scopeKey string, now time.Time, limit int) ([]models.TopicMasteryView, error) {
	rows, err := s.db.Query(
		`SELECT tm.topic_id, tm.scope_key, tm.mastery_level, tm.attempts, tm.correct_count,
		        tm.easiness_factor, tm.interval_days, tm.last_reviewed_at, tm.next_review_at,
		        t.name, COALESCE(t.category, '')
		 FROM topic_mastery tm
		 JOIN topics t ON tm.topic_id = t.id
		 WHERE tm.scope_key = $1 AND tm.next_review_at <= $2
		 ORDER BY tm.next_review_at ASC, tm.mastery_level ASC
		 LIMIT $3`,
		scopeKey, now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("get due topics: %w", err)
	}
	return scanMasteryViews(rows)
}

func (s *SQLStore) GetAllMastery(scopeKey string, limit int) ([]models.TopicMasteryView, error) {
	rows, err := s.db.Query(
		`SELECT tm.topic_id, tm.scope_key, tm.mastery_level, tm.attempts, tm.correct_count,
		        tm.easiness_factor, tm.interval_days, tm.last_reviewed_at, tm.next_review_at,
		        t.name, COALESCE(t.category, '')
		 FROM topic_mastery tm
		 JOIN topics t ON tm.topic_id = t.id
		 WHERE tm.scope_key = $1
		 ORDER BY tm.mastery_level DESC
		 LIMIT $2`,
		scopeKey, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("get all mastery: %w", err)
	}
	return scanMasteryViews(rows)
}

func scanMasteryViews(rows *sql.Rows) ([]models.TopicMasteryView, error) {
	defer rows.Close()

	var views []models.TopicMasteryView
	for rows.Next() {
		var v models.TopicMasteryView
		if err := rows.Scan(&v.TopicID, &v.ScopeKey, &v.MasteryLevel, &v.Attempts, &v.CorrectCount,
			&v.EasinessFactor, &v.IntervalDays, &v.LastReviewedAt, &v.NextReviewAt,
			&v.TopicName, &v.Category); err != nil {
			return nil, fmt.Errorf("scan mastery: %w", err)
		}
		v.Status = models.StatusForMastery(v.MasteryLevel)
		views = append(views, v)
	}
	return views, rows.Err()
}
