package mastery

import (
	"math"
	"testing"
	"time"

	"github.com/learnloop/backend/internal/models"
)

var reviewTime = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestQualityFor(t *testing.T) {
	if q := QualityFor(true); q != 5 {
		t.Errorf("QualityFor(true) = %d, want 5", q)
	}
	if q := QualityFor(false); q != 2 {
		t.Errorf("QualityFor(false) = %d, want 2", q)
	}
}

func TestAdvanceEasinessFactor(t *testing.T) {
	fresh := NewTopicMastery("topic", "learner")

	// Correct: EF' = 2.5 + (0.1 - 0*(0.08 + 0*0.02)) = 2.6
	after := Advance(fresh, true, reviewTime)
	if !almostEqual(after.EasinessFactor, 2.6) {
		t.Errorf("EF after correct = %v, want 2.6", after.EasinessFactor)
	}

	// Incorrect: EF' = 2.5 + (0.1 - 3*(0.08 + 3*0.02)) = 2.5 - 0.32 = 2.18
	after = Advance(fresh, false, reviewTime)
	if !almostEqual(after.EasinessFactor, 2.18) {
		t.Errorf("EF after incorrect = %v, want 2.18", after.EasinessFactor)
	}
}

func TestAdvanceEasinessFloor(t *testing.T) {
	m := NewTopicMastery("topic", "learner")
	m.EasinessFactor = 1.35

	after := Advance(m, false, reviewTime)
	if after.EasinessFactor != MinEasiness {
		t.Errorf("EF = %v, want floor %v", after.EasinessFactor, MinEasiness)
	}

	// Repeated failures stay at the floor.
	after = Advance(after, false, reviewTime)
	if after.EasinessFactor != MinEasiness {
		t.Errorf("EF after second failure = %v, want floor %v", after.EasinessFactor, MinEasiness)
	}
}

func TestAdvanceIntervalLadder(t *testing.T) {
	m := NewTopicMastery("topic", "learner")

	// First correct review: 1 day.
	m = Advance(m, true, reviewTime)
	if m.IntervalDays != 1 {
		t.Fatalf("interval after 1st review = %d, want 1", m.IntervalDays)
	}
	if want := reviewTime.Add(24 * time.Hour); !m.NextReviewAt.Equal(want) {
		t.Errorf("next review = %v, want %v", m.NextReviewAt, want)
	}

	// Second correct review: 6 days.
	m = Advance(m, true, reviewTime)
	if m.IntervalDays != 6 {
		t.Fatalf("interval after 2nd review = %d, want 6", m.IntervalDays)
	}

	// Third correct review: round(6 * EF'). EF is 2.6 after the first
	// correct, 2.7 after the second, 2.8 going into this one.
	m = Advance(m, true, reviewTime)
	if want := int(math.Round(6 * 2.8)); m.IntervalDays != want {
		t.Errorf("interval after 3rd review = %d, want %d", m.IntervalDays, want)
	}
}

func TestAdvanceIncorrectResetsInterval(t *testing.T) {
	m := NewTopicMastery("topic", "learner")
	m = Advance(m, true, reviewTime)
	m = Advance(m, true, reviewTime)
	m = Advance(m, true, reviewTime)
	if m.IntervalDays < 6 {
		t.Fatalf("setup: interval = %d, want a grown interval", m.IntervalDays)
	}

	m = Advance(m, false, reviewTime)
	if m.IntervalDays != 1 {
		t.Errorf("interval after failure = %d, want 1", m.IntervalDays)
	}
}

func TestAdvanceMasterySmoothing(t *testing.T) {
	m := NewTopicMastery("topic", "learner")

	// First correct outcome: 0*(0.8) + 1*(0.2) = 0.2
	m = Advance(m, true, reviewTime)
	if !almostEqual(m.MasteryLevel, 0.2) {
		t.Errorf("mastery after 1 correct = %v, want 0.2", m.MasteryLevel)
	}

	// Second: 0.2*0.8 + 0.2 = 0.36
	m = Advance(m, true, reviewTime)
	if !almostEqual(m.MasteryLevel, 0.36) {
		t.Errorf("mastery after 2 correct = %v, want 0.36", m.MasteryLevel)
	}

	// An incorrect outcome decays toward zero: 0.36*0.8 = 0.288
	m = Advance(m, false, reviewTime)
	if !almostEqual(m.MasteryLevel, 0.288) {
		t.Errorf("mastery after miss = %v, want 0.288", m.MasteryLevel)
	}
}

func TestAdvanceMasteryStaysBounded(t *testing.T) {
	m := NewTopicMastery("topic", "learner")
	for i := 0; i < 100; i++ {
		m = Advance(m, true, reviewTime)
		if m.MasteryLevel < 0 || m.MasteryLevel > 1 {
			t.Fatalf("mastery %v out of [0,1] after %d reviews", m.MasteryLevel, i+1)
		}
	}
	for i := 0; i < 100; i++ {
		m = Advance(m, false, reviewTime)
		if m.MasteryLevel < 0 || m.MasteryLevel > 1 {
			t.Fatalf("mastery %v out of [0,1] after %d misses", m.MasteryLevel, i+1)
		}
	}
	if m.EasinessFactor < MinEasiness {
		t.Errorf("EF %v fell below floor", m.EasinessFactor)
	}
}

func TestAdvanceCounters(t *testing.T) {
	m := NewTopicMastery("topic", "learner")
	m = Advance(m, true, reviewTime)
	m = Advance(m, false, reviewTime)
	m = Advance(m, true, reviewTime)

	if m.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", m.Attempts)
	}
	if m.CorrectCount != 2 {
		t.Errorf("correct count = %d, want 2", m.CorrectCount)
	}
	if !m.LastReviewedAt.Equal(reviewTime) {
		t.Errorf("last reviewed = %v, want %v", m.LastReviewedAt, reviewTime)
	}
}

func TestStatusForMastery(t *testing.T) {
	tests := []struct {
		level float64
		want  models.MasteryStatus
	}{
		{0, models.StatusBeginner},
		{0.29, models.StatusBeginner},
		{0.3, models.StatusLearning},
		{0.59, models.StatusLearning},
		{0.6, models.StatusProficient},
		{0.89, models.StatusProficient},
		{0.9, models.StatusMastered},
		{1, models.StatusMastered},
	}
	for _, tt := range tests {
		if got := models.StatusForMastery(tt.level); got != tt.want {
			t.Errorf("StatusForMastery(%v) = %s, want %s", tt.level, got, tt.want)
		}
	}
}
