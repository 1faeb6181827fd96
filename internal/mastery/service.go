package mastery

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/learnloop/backend/internal/models"
)

// maxUpdateRetries bounds the transparent retries on a lost mastery update
// before the conflict is surfaced.
const maxUpdateRetries = 3

type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// ApplyCompletion consumes a session completion event and applies one SM-2
// update per distinct topic the session touched. The session id is the
// idempotency key: reapplying an already-processed session is a no-op, so
// redelivery never double-counts.
func (s *Service) ApplyCompletion(event models.SessionCompletedEvent) error {
	claimed, err := s.store.ClaimSession(event.SessionID)
	if err != nil {
		return err
	}
	if !claimed {
		log.Printf("[mastery] session %s already applied, skipping", event.SessionID)
		return nil
	}

	for _, outcome := range event.TopicOutcomes {
		if err := s.applyOutcome(outcome.TopicID, event.ScopeKey, outcome.Correct); err != nil {
			return fmt.Errorf("topic %s: %w", outcome.TopicID, err)
		}
	}

	log.Printf("[mastery] applied session %s: %d topics updated", event.SessionID, len(event.TopicOutcomes))
	return nil
}

// applyOutcome advances one topic's state with compare-and-swap retries.
// Two sessions completing concurrently may race on the same key; the loser
// rereads and reapplies so neither update is lost.
func (s *Service) applyOutcome(topicID, scopeKey string, correct bool) error {
	now := s.now().UTC()

	var lastErr error
	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		current, err := s.store.GetMastery(topicID, scopeKey)
		if errors.Is(err, models.ErrNotFound) {
			fresh := Advance(NewTopicMastery(topicID, scopeKey), correct, now)
			if err := s.store.CreateMastery(&fresh); err != nil {
				if errors.Is(err, models.ErrConflict) {
					lastErr = err
					continue // another update created the row, reread
				}
				return err
			}
			return nil
		}
		if err != nil {
			return err
		}

		updated := Advance(*current, correct, now)
		if err := s.store.UpdateMastery(&updated, current.Version); err != nil {
			if errors.Is(err, models.ErrConflict) {
				lastErr = err
				continue
			}
			return err
		}
		return nil
	}

	return fmt.Errorf("update lost after %d attempts: %w", maxUpdateRetries, lastErr)
}

// GetDueTopics returns topics whose next review time has passed, most
// overdue first. An empty due queue is a normal result.
func (s *Service) GetDueTopics(scopeKey string, limit int) ([]models.TopicMasteryView, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	due, err := s.store.GetDueTopics(scopeKey, s.now().UTC(), limit)
	if err != nil {
		return nil, err
	}
	if due == nil {
		due = []models.TopicMasteryView{}
	}
	return due, nil
}

// GetAllMastery lists every tracked topic for the scope key, strongest first.
func (s *Service) GetAllMastery(scopeKey string, limit int) ([]models.TopicMasteryView, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	all, err := s.store.GetAllMastery(scopeKey, limit)
	if err != nil {
		return nil, err
	}
	if all == nil {
		all = []models.TopicMasteryView{}
	}
	return all, nil
}
