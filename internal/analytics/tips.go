package analytics

import (
	"fmt"

	"github.com/learnloop/backend/internal/models"
)

// SuggestedDifficulty picks a quiz difficulty from the recent average score
// percentage: strong learners get pushed harder.
func SuggestedDifficulty(avgScore float64) models.Difficulty {
	switch {
	case avgScore >= 85:
		return models.DifficultyHard
	case avgScore >= 70:
		return models.DifficultyMedium
	default:
		return models.DifficultyEasy
	}
}

// StudyTips applies a fixed rule table keyed on accuracy, streak, and
// struggling-topic count. An empty input set still yields one generic tip.
func StudyTips(accuracy float64, streakDays, strugglingTopics int) []string {
	var tips []string

	if accuracy >= 90 {
		tips = append(tips, "Excellent accuracy! Consider trying harder difficulty quizzes.")
	} else if accuracy < 60 {
		tips = append(tips, "Focus on understanding concepts before taking quizzes. Review explanations carefully.")
	}

	if streakDays == 0 {
		tips = append(tips, "Start building a study streak! Consistent daily practice improves retention.")
	} else if streakDays >= 7 {
		tips = append(tips, fmt.Sprintf("Amazing %d-day streak! Keep up the consistent learning.", streakDays))
	}

	if strugglingTopics > 0 {
		tips = append(tips, fmt.Sprintf("Review your %d struggling topic(s) with focused practice.", strugglingTopics))
	}

	if len(tips) == 0 {
		tips = append(tips, "Keep learning consistently and review topics regularly for best results.")
	}

	return tips
}
