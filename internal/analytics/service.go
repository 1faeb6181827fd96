package analytics

import (
	"math"
	"time"

	"github.com/learnloop/backend/internal/models"
)

// DefaultWindowDays is the lookback window when the caller does not name one.
const DefaultWindowDays = 30

// DueTopicsProvider is the slice of the mastery scheduler the aggregator
// needs for recommendations.
type DueTopicsProvider interface {
	GetDueTopics(scopeKey string, limit int) ([]models.TopicMasteryView, error)
}

// Service derives statistics, streaks, and recommendations on demand from
// recorded history. It is read-only: nothing here is incrementally
// maintained or cached.
type Service struct {
	store Store
	due   DueTopicsProvider
	now   func() time.Time
}

func NewService(store Store, due DueTopicsProvider) *Service {
	return &Service{store: store, due: due, now: time.Now}
}

func (s *Service) GetOverallStats(scopeKey string, days int) (*models.OverallStats, error) {
	if days <= 0 {
		days = DefaultWindowDays
	}
	now := s.now().UTC()
	cutoff := now.AddDate(0, 0, -days)

	completed, avgScore, recent, err := s.store.SessionStats(scopeKey, cutoff)
	if err != nil {
		return nil, err
	}

	total, correct, err := s.store.ResponseStats(scopeKey, cutoff)
	if err != nil {
		return nil, err
	}
	accuracy := 0.0
	if total > 0 {
		accuracy = float64(correct) * 100.0 / float64(total)
	}

	levels, err := s.store.MasteryLevels(scopeKey)
	if err != nil {
		return nil, err
	}
	tally := tallyLevels(levels)

	streak, err := s.streak(scopeKey, now)
	if err != nil {
		return nil, err
	}

	last, err := s.store.LastActivity(scopeKey)
	if err != nil {
		return nil, err
	}

	return &models.OverallStats{
		Quizzes: models.QuizStats{
			Completed: completed,
			AvgScore:  round1(avgScore),
			Recent:    recent,
		},
		Questions: models.QuestionStats{
			Total:    total,
			Correct:  correct,
			Accuracy: round1(accuracy),
		},
		Topics:       tally,
		StreakDays:   streak,
		LastActivity: last,
		PeriodDays:   days,
	}, nil
}

func (s *Service) GetTopicPerformance(scopeKey string, limit int) ([]models.TopicPerformance, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	topics, err := s.store.TopicPerformance(scopeKey, limit)
	if err != nil {
		return nil, err
	}
	if topics == nil {
		topics = []models.TopicPerformance{}
	}
	return topics, nil
}

func (s *Service) GetQuizHistory(scopeKey string, limit int) ([]models.QuizHistoryEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	entries, err := s.store.QuizHistory(scopeKey, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.QuizHistoryEntry{}
	}
	return entries, nil
}

func (s *Service) GetRecommendations(scopeKey string) (*models.Recommendations, error) {
	// Recommendation thresholds key on the recent week, not the default
	// window.
	stats, err := s.GetOverallStats(scopeKey, 7)
	if err != nil {
		return nil, err
	}

	dueViews, err := s.due.GetDueTopics(scopeKey, 5)
	if err != nil {
		return nil, err
	}

	topicsToReview := make([]models.ReviewTopic, 0, len(dueViews))
	for _, v := range dueViews {
		topicsToReview = append(topicsToReview, models.ReviewTopic{
			TopicID:      v.TopicID,
			Name:         v.TopicName,
			MasteryLevel: v.MasteryLevel,
			NextReviewAt: v.NextReviewAt,
		})
	}

	return &models.Recommendations{
		TopicsToReview:      topicsToReview,
		SuggestedDifficulty: SuggestedDifficulty(stats.Quizzes.AvgScore),
		StudyTips:           StudyTips(stats.Questions.Accuracy, stats.StreakDays, stats.Topics.Beginner),
		ShouldPractice:      len(topicsToReview) > 0 || stats.StreakDays == 0,
	}, nil
}

// streak derives the learning streak from session completions and recorded
// responses. Activity older than the longest plausible streak window is
// irrelevant, so the query is bounded.
func (s *Service) streak(scopeKey string, now time.Time) (int, error) {
	since := now.AddDate(0, 0, -366)
	activity, err := s.store.ActivityDates(scopeKey, since)
	if err != nil {
		return 0, err
	}
	return StreakDays(activity, now), nil
}

func tallyLevels(levels []float64) models.TopicTally {
	var tally models.TopicTally
	for _, level := range levels {
		switch models.StatusForMastery(level) {
		case models.StatusMastered:
			tally.Mastered++
		case models.StatusProficient:
			tally.Proficient++
		case models.StatusLearning:
			tally.Learning++
		default:
			tally.Beginner++
		}
	}
	return tally
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
