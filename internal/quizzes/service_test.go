package quizzes

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/learnloop/backend/internal/models"
)

// memStore is an in-memory Store for exercising the session lifecycle
// without a database.
type memStore struct {
	quizzes   map[string]*models.QuizDetail
	sessions  map[string]*models.QuizSession
	responses map[string][]models.QuestionResponse
	topics    map[string]string // name -> id
}

func newMemStore() *memStore {
	return &memStore{
		quizzes:   make(map[string]*models.QuizDetail),
		sessions:  make(map[string]*models.QuizSession),
		responses: make(map[string][]models.QuestionResponse),
		topics:    make(map[string]string),
	}
}

func (m *memStore) CreateQuiz(quiz *models.QuizDetail) error {
	copied := *quiz
	m.quizzes[quiz.ID] = &copied
	return nil
}

func (m *memStore) GetQuiz(quizID string) (*models.Quiz, error) {
	detail, ok := m.quizzes[quizID]
	if !ok {
		return nil, fmt.Errorf("quiz %s: %w", quizID, models.ErrNotFound)
	}
	q := detail.Quiz
	return &q, nil
}

func (m *memStore) GetQuizWithQuestions(quizID string) (*models.QuizDetail, error) {
	detail, ok := m.quizzes[quizID]
	if !ok {
		return nil, fmt.Errorf("quiz %s: %w", quizID, models.ErrNotFound)
	}
	copied := *detail
	return &copied, nil
}

func (m *memStore) ListQuizzes(limit, offset int) ([]models.Quiz, int, error) {
	var out []models.Quiz
	for _, d := range m.quizzes {
		out = append(out, d.Quiz)
	}
	return out, len(out), nil
}

func (m *memStore) UpsertTopic(name, category string) (string, error) {
	if id, ok := m.topics[name]; ok {
		return id, nil
	}
	id := uuid.NewString()
	m.topics[name] = id
	return id, nil
}

func (m *memStore) CreateSession(session *models.QuizSession) error {
	copied := *session
	m.sessions[session.ID] = &copied
	return nil
}

func (m *memStore) GetSession(sessionID string) (*models.QuizSession, error) {
	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, models.ErrNotFound)
	}
	copied := *sess
	return &copied, nil
}

func (m *memStore) RecordResponse(resp *models.QuestionResponse, scoreDelta int) error {
	for _, r := range m.responses[resp.SessionID] {
		if r.QuestionID == resp.QuestionID {
			return fmt.Errorf("question %s: %w", resp.QuestionID, models.ErrDuplicateAnswer)
		}
	}
	m.responses[resp.SessionID] = append(m.responses[resp.SessionID], *resp)
	m.sessions[resp.SessionID].Score += scoreDelta
	return nil
}

func (m *memStore) GetResponses(sessionID string) ([]models.QuestionResponse, error) {
	return append([]models.QuestionResponse(nil), m.responses[sessionID]...), nil
}

func (m *memStore) CompleteSession(sessionID string, score, maxScore, timeTaken int, completedAt time.Time) error {
	sess := m.sessions[sessionID]
	if sess.Status != models.SessionInProgress {
		return fmt.Errorf("session %s is terminal: %w", sessionID, models.ErrInvalidState)
	}
	sess.Status = models.SessionCompleted
	sess.Score = score
	sess.MaxScore = maxScore
	sess.TimeTaken = &timeTaken
	sess.CompletedAt = &completedAt
	return nil
}

func (m *memStore) AbandonSession(sessionID string) error {
	sess := m.sessions[sessionID]
	if sess.Status != models.SessionInProgress {
		return fmt.Errorf("session %s is terminal: %w", sessionID, models.ErrInvalidState)
	}
	sess.Status = models.SessionAbandoned
	return nil
}

type captureHandler struct {
	events []models.SessionCompletedEvent
	err    error
}

func (c *captureHandler) ApplyCompletion(event models.SessionCompletedEvent) error {
	c.events = append(c.events, event)
	return c.err
}

func newTestService(store Store) *Service {
	return &Service{
		store:        store,
		minQuestions: 1,
		maxQuestions: 50,
		now:          func() time.Time { return time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC) },
	}
}

// fiveQuestionQuiz imports a quiz of five medium (2-point) true/false
// questions, all with canonical answer "true", each tagged with a topic.
func fiveQuestionQuiz(t *testing.T, svc *Service) *models.QuizDetail {
	t.Helper()
	req := models.ImportQuizRequest{
		Title:      "Cell Biology Review",
		Difficulty: models.DifficultyMedium,
	}
	for i := 0; i < 5; i++ {
		req.Questions = append(req.Questions, models.ImportQuestionRequest{
			Type:          models.QuestionTrueFalse,
			Prompt:        fmt.Sprintf("Statement %d is true.", i+1),
			Difficulty:    models.DifficultyMedium,
			CorrectAnswer: "true",
			Topic:         fmt.Sprintf("topic-%d", i%2),
		})
	}
	detail, err := svc.ImportQuiz(req)
	if err != nil {
		t.Fatalf("ImportQuiz: %v", err)
	}
	return detail
}

func TestImportQuizValidation(t *testing.T) {
	svc := newTestService(newMemStore())

	tests := []struct {
		name string
		req  models.ImportQuizRequest
	}{
		{"missing title", models.ImportQuizRequest{
			Difficulty: models.DifficultyEasy,
			Questions:  []models.ImportQuestionRequest{{Type: models.QuestionShortAnswer, Prompt: "q", Difficulty: models.DifficultyEasy, CorrectAnswer: "a"}},
		}},
		{"bad difficulty", models.ImportQuizRequest{
			Title:      "t",
			Difficulty: "impossible",
			Questions:  []models.ImportQuestionRequest{{Type: models.QuestionShortAnswer, Prompt: "q", Difficulty: models.DifficultyEasy, CorrectAnswer: "a"}},
		}},
		{"no questions", models.ImportQuizRequest{
			Title:      "t",
			Difficulty: models.DifficultyEasy,
		}},
		{"bad question type", models.ImportQuizRequest{
			Title:      "t",
			Difficulty: models.DifficultyEasy,
			Questions:  []models.ImportQuestionRequest{{Type: "essay", Prompt: "q", Difficulty: models.DifficultyEasy, CorrectAnswer: "a"}},
		}},
		{"mc with one option", models.ImportQuizRequest{
			Title:      "t",
			Difficulty: models.DifficultyEasy,
			Questions: []models.ImportQuestionRequest{{
				Type: models.QuestionMultipleChoice, Prompt: "q", Difficulty: models.DifficultyEasy,
				Options: []string{"A) only"}, CorrectAnswer: "A",
			}},
		}},
		{"tf with non-boolean answer", models.ImportQuizRequest{
			Title:      "t",
			Difficulty: models.DifficultyEasy,
			Questions: []models.ImportQuestionRequest{{
				Type: models.QuestionTrueFalse, Prompt: "q", Difficulty: models.DifficultyEasy,
				CorrectAnswer: "perhaps",
			}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ImportQuiz(tt.req)
			if !errors.Is(err, models.ErrValidation) {
				t.Errorf("ImportQuiz error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestImportQuizAssignsDifficultyPoints(t *testing.T) {
	svc := newTestService(newMemStore())
	detail, err := svc.ImportQuiz(models.ImportQuizRequest{
		Title:      "Point Weights",
		Difficulty: models.DifficultyMixed,
		Questions: []models.ImportQuestionRequest{
			{Type: models.QuestionShortAnswer, Prompt: "e", Difficulty: models.DifficultyEasy, CorrectAnswer: "a"},
			{Type: models.QuestionShortAnswer, Prompt: "m", Difficulty: models.DifficultyMedium, CorrectAnswer: "a"},
			{Type: models.QuestionShortAnswer, Prompt: "h", Difficulty: models.DifficultyHard, CorrectAnswer: "a"},
		},
	})
	if err != nil {
		t.Fatalf("ImportQuiz: %v", err)
	}
	want := []int{1, 2, 3}
	for i, q := range detail.Questions {
		if q.Points != want[i] {
			t.Errorf("question %d points = %d, want %d", i, q.Points, want[i])
		}
	}
}

func TestGetQuizStripsAnswers(t *testing.T) {
	svc := newTestService(newMemStore())
	detail := fiveQuestionQuiz(t, svc)

	stripped, err := svc.GetQuiz(detail.ID, false)
	if err != nil {
		t.Fatalf("GetQuiz: %v", err)
	}
	for i, q := range stripped.Questions {
		if q.CorrectAnswer != "" || q.Explanation != "" {
			t.Errorf("question %d leaked answer data", i)
		}
	}

	full, err := svc.GetQuiz(detail.ID, true)
	if err != nil {
		t.Fatalf("GetQuiz with answers: %v", err)
	}
	if full.Questions[0].CorrectAnswer == "" {
		t.Error("includeAnswers dropped the correct answer")
	}
}

func TestSessionScoring(t *testing.T) {
	svc := newTestService(newMemStore())
	detail := fiveQuestionQuiz(t, svc)

	session, err := svc.StartSession(detail.ID, "learner-1")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if session.MaxScore != 10 {
		t.Fatalf("max score = %d, want 10", session.MaxScore)
	}
	if session.Status != models.SessionInProgress {
		t.Fatalf("status = %s, want in_progress", session.Status)
	}

	// 4 correct out of 5 questions, each worth 2 points.
	for i, q := range detail.Questions {
		answer := "true"
		if i == 4 {
			answer = "false"
		}
		resp, err := svc.SubmitAnswer(session.ID, q.ID, answer, nil)
		if err != nil {
			t.Fatalf("SubmitAnswer %d: %v", i, err)
		}
		if i < 4 && resp.PointsAwarded != 2 {
			t.Errorf("question %d awarded %d points, want 2", i, resp.PointsAwarded)
		}
		if i == 4 && resp.PointsAwarded != 0 {
			t.Errorf("incorrect answer awarded %d points, want 0", resp.PointsAwarded)
		}
	}

	results, err := svc.CompleteSession(session.ID)
	if err != nil {
		t.Fatalf("CompleteSession: %v", err)
	}
	if results.Score != 8 || results.MaxScore != 10 {
		t.Errorf("score = %d/%d, want 8/10", results.Score, results.MaxScore)
	}
	if results.Percentage != 80.0 {
		t.Errorf("percentage = %v, want 80", results.Percentage)
	}
	if !results.Passed {
		t.Error("80%% should pass at the 60%% threshold")
	}
}

func TestUnansweredQuestionsScoreZero(t *testing.T) {
	svc := newTestService(newMemStore())
	detail := fiveQuestionQuiz(t, svc)

	session, _ := svc.StartSession(detail.ID, "learner-1")
	if _, err := svc.SubmitAnswer(session.ID, detail.Questions[0].ID, "true", nil); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}

	results, err := svc.CompleteSession(session.ID)
	if err != nil {
		t.Fatalf("CompleteSession: %v", err)
	}
	if results.Score != 2 {
		t.Errorf("score = %d, want 2 (four unanswered questions score zero)", results.Score)
	}
	if results.Score > results.MaxScore {
		t.Errorf("score %d exceeds max score %d", results.Score, results.MaxScore)
	}
	if results.Passed {
		t.Error("20%% should not pass")
	}
}

func TestDuplicateAnswerRejected(t *testing.T) {
	svc := newTestService(newMemStore())
	detail := fiveQuestionQuiz(t, svc)

	session, _ := svc.StartSession(detail.ID, "learner-1")
	q := detail.Questions[0]
	if _, err := svc.SubmitAnswer(session.ID, q.ID, "true", nil); err != nil {
		t.Fatalf("first SubmitAnswer: %v", err)
	}
	_, err := svc.SubmitAnswer(session.ID, q.ID, "false", nil)
	if !errors.Is(err, models.ErrDuplicateAnswer) {
		t.Fatalf("second SubmitAnswer error = %v, want ErrDuplicateAnswer", err)
	}

	// The rejected resubmission must not disturb the score.
	results, err := svc.CompleteSession(session.ID)
	if err != nil {
		t.Fatalf("CompleteSession: %v", err)
	}
	if results.Score != 2 {
		t.Errorf("score = %d, want 2 after rejected resubmission", results.Score)
	}
}

func TestSubmitAfterCompleteRejected(t *testing.T) {
	svc := newTestService(newMemStore())
	detail := fiveQuestionQuiz(t, svc)

	session, _ := svc.StartSession(detail.ID, "learner-1")
	if _, err := svc.CompleteSession(session.ID); err != nil {
		t.Fatalf("CompleteSession: %v", err)
	}

	_, err := svc.SubmitAnswer(session.ID, detail.Questions[0].ID, "true", nil)
	if !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("SubmitAnswer after complete error = %v, want ErrInvalidState", err)
	}
	if _, err := svc.CompleteSession(session.ID); !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("double CompleteSession error = %v, want ErrInvalidState", err)
	}
}

func TestAbandonIsTerminal(t *testing.T) {
	svc := newTestService(newMemStore())
	detail := fiveQuestionQuiz(t, svc)

	session, _ := svc.StartSession(detail.ID, "learner-1")
	if _, err := svc.SubmitAnswer(session.ID, detail.Questions[0].ID, "true", nil); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}

	abandoned, err := svc.AbandonSession(session.ID)
	if err != nil {
		t.Fatalf("AbandonSession: %v", err)
	}
	if abandoned.Status != models.SessionAbandoned {
		t.Errorf("status = %s, want abandoned", abandoned.Status)
	}

	if _, err := svc.AbandonSession(session.ID); !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("repeat AbandonSession error = %v, want ErrInvalidState", err)
	}
	if _, err := svc.CompleteSession(session.ID); !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("CompleteSession after abandon error = %v, want ErrInvalidState", err)
	}
	if _, err := svc.SubmitAnswer(session.ID, detail.Questions[1].ID, "true", nil); !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("SubmitAnswer after abandon error = %v, want ErrInvalidState", err)
	}
}

func TestCompletionEventTopicOutcomes(t *testing.T) {
	svc := newTestService(newMemStore())
	handler := &captureHandler{}
	svc.SetCompletionHandler(handler)

	detail := fiveQuestionQuiz(t, svc)
	session, _ := svc.StartSession(detail.ID, "learner-1")

	// Questions alternate topic-0, topic-1. Answer question 0 (topic-0)
	// wrong and the rest right: topic-0 must come out incorrect even
	// though question 2 and 4 on topic-0 were correct.
	for i, q := range detail.Questions {
		answer := "true"
		if i == 0 {
			answer = "false"
		}
		if _, err := svc.SubmitAnswer(session.ID, q.ID, answer, nil); err != nil {
			t.Fatalf("SubmitAnswer %d: %v", i, err)
		}
	}
	if _, err := svc.CompleteSession(session.ID); err != nil {
		t.Fatalf("CompleteSession: %v", err)
	}

	if len(handler.events) != 1 {
		t.Fatalf("got %d completion events, want 1", len(handler.events))
	}
	event := handler.events[0]
	if event.SessionID != session.ID || event.ScopeKey != "learner-1" {
		t.Errorf("event identity = (%s, %s), want (%s, learner-1)", event.SessionID, event.ScopeKey, session.ID)
	}
	if len(event.TopicOutcomes) != 2 {
		t.Fatalf("got %d topic outcomes, want 2", len(event.TopicOutcomes))
	}

	topic0 := *detail.Questions[0].TopicID
	for _, outcome := range event.TopicOutcomes {
		if outcome.TopicID == topic0 && outcome.Correct {
			t.Error("topic with a wrong response reported as correct")
		}
		if outcome.TopicID != topic0 && !outcome.Correct {
			t.Error("all-correct topic reported as incorrect")
		}
	}
}

func TestNoCompletionEventOnAbandon(t *testing.T) {
	svc := newTestService(newMemStore())
	handler := &captureHandler{}
	svc.SetCompletionHandler(handler)

	detail := fiveQuestionQuiz(t, svc)
	session, _ := svc.StartSession(detail.ID, "learner-1")
	if _, err := svc.AbandonSession(session.ID); err != nil {
		t.Fatalf("AbandonSession: %v", err)
	}
	if len(handler.events) != 0 {
		t.Errorf("abandon emitted %d completion events, want 0", len(handler.events))
	}
}

func TestCompleteSessionSurfacesMasteryConflict(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	handler := &captureHandler{err: fmt.Errorf("update lost after 3 attempts: %w", models.ErrConflict)}
	svc.SetCompletionHandler(handler)

	detail := fiveQuestionQuiz(t, svc)
	session, _ := svc.StartSession(detail.ID, "learner-1")
	if _, err := svc.SubmitAnswer(session.ID, detail.Questions[0].ID, "true", nil); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}

	_, err := svc.CompleteSession(session.ID)
	if !errors.Is(err, models.ErrConflict) {
		t.Fatalf("CompleteSession error = %v, want ErrConflict", err)
	}

	// The status transition stays committed even though the mastery update
	// was lost.
	stored, getErr := store.GetSession(session.ID)
	if getErr != nil {
		t.Fatalf("GetSession: %v", getErr)
	}
	if stored.Status != models.SessionCompleted {
		t.Errorf("status = %s, want completed despite failed mastery update", stored.Status)
	}
}

func TestGetResultsRequiresCompletion(t *testing.T) {
	svc := newTestService(newMemStore())
	detail := fiveQuestionQuiz(t, svc)
	session, _ := svc.StartSession(detail.ID, "learner-1")

	if _, err := svc.GetResults(session.ID); !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("GetResults while in progress error = %v, want ErrInvalidState", err)
	}

	if _, err := svc.CompleteSession(session.ID); err != nil {
		t.Fatalf("CompleteSession: %v", err)
	}
	results, err := svc.GetResults(session.ID)
	if err != nil {
		t.Fatalf("GetResults: %v", err)
	}
	if results.Session.Status != models.SessionCompleted {
		t.Errorf("results status = %s, want completed", results.Session.Status)
	}
}

func TestSubmitAnswerUnknownQuestion(t *testing.T) {
	svc := newTestService(newMemStore())
	detail := fiveQuestionQuiz(t, svc)
	session, _ := svc.StartSession(detail.ID, "learner-1")

	_, err := svc.SubmitAnswer(session.ID, "no-such-question", "true", nil)
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("SubmitAnswer unknown question error = %v, want ErrNotFound", err)
	}
}
