package quizzes

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/learnloop/backend/internal/models"
)

// PassingThreshold is the percentage at or above which a session is passed.
const PassingThreshold = 60.0

// CompletionHandler consumes the single completion event a session emits.
// The mastery scheduler implements it.
type CompletionHandler interface {
	ApplyCompletion(event models.SessionCompletedEvent) error
}

type Service struct {
	store        Store
	completion   CompletionHandler
	minQuestions int
	maxQuestions int
	now          func() time.Time
}

func NewService(store Store) *Service {
	minQuestions := 1
	if v := os.Getenv("QUIZ_MIN_QUESTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			minQuestions = n
		}
	}
	maxQuestions := 50
	if v := os.Getenv("QUIZ_MAX_QUESTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= minQuestions {
			maxQuestions = n
		}
	}

	return &Service{
		store:        store,
		minQuestions: minQuestions,
		maxQuestions: maxQuestions,
		now:          time.Now,
	}
}

// SetCompletionHandler injects the mastery scheduler for completion events.
func (s *Service) SetCompletionHandler(h CompletionHandler) {
	s.completion = h
}

// ── Quiz Bundle Import ───────────────────────────────────

// ImportQuiz materializes an externally produced quiz bundle. The bundle is
// immutable once created.
func (s *Service) ImportQuiz(req models.ImportQuizRequest) (*models.QuizDetail, error) {
	if err := s.validateImport(req); err != nil {
		return nil, err
	}

	quizID := uuid.NewString()
	detail := &models.QuizDetail{
		Quiz: models.Quiz{
			ID:            quizID,
			Title:         req.Title,
			Description:   req.Description,
			Difficulty:    req.Difficulty,
			QuestionCount: len(req.Questions),
			CreatedAt:     s.now().UTC(),
		},
	}

	topicIDs := make(map[string]string)
	for _, iq := range req.Questions {
		q := models.Question{
			ID:            uuid.NewString(),
			QuizID:        quizID,
			Type:          iq.Type,
			Prompt:        iq.Prompt,
			Difficulty:    iq.Difficulty,
			Options:       iq.Options,
			CorrectAnswer: iq.CorrectAnswer,
			Explanation:   iq.Explanation,
			Points:        models.PointsForDifficulty(iq.Difficulty),
		}
		if iq.Topic != "" {
			id, ok := topicIDs[iq.Topic]
			if !ok {
				var err error
				id, err = s.store.UpsertTopic(iq.Topic, iq.TopicCategory)
				if err != nil {
					return nil, fmt.Errorf("register topic %q: %w", iq.Topic, err)
				}
				topicIDs[iq.Topic] = id
			}
			q.TopicID = &id
		}
		detail.Questions = append(detail.Questions, q)
	}

	if err := s.store.CreateQuiz(detail); err != nil {
		return nil, err
	}

	log.Printf("[quizzes] imported quiz %s with %d questions", quizID, len(detail.Questions))
	return detail, nil
}

func (s *Service) validateImport(req models.ImportQuizRequest) error {
	if req.Title == "" {
		return fmt.Errorf("title is required: %w", models.ErrValidation)
	}
	if !models.ValidDifficulties[req.Difficulty] {
		return fmt.Errorf("invalid difficulty %q: %w", req.Difficulty, models.ErrValidation)
	}
	if len(req.Questions) < s.minQuestions || len(req.Questions) > s.maxQuestions {
		return fmt.Errorf("question count %d outside bounds [%d, %d]: %w",
			len(req.Questions), s.minQuestions, s.maxQuestions, models.ErrValidation)
	}

	for i, q := range req.Questions {
		if !models.ValidQuestionTypes[q.Type] {
			return fmt.Errorf("question %d: invalid type %q: %w", i+1, q.Type, models.ErrValidation)
		}
		if q.Prompt == "" || q.CorrectAnswer == "" {
			return fmt.Errorf("question %d: text and correct answer are required: %w", i+1, models.ErrValidation)
		}
		switch q.Difficulty {
		case models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard:
		default:
			return fmt.Errorf("question %d: invalid difficulty %q: %w", i+1, q.Difficulty, models.ErrValidation)
		}
		switch q.Type {
		case models.QuestionMultipleChoice:
			if len(q.Options) < 2 {
				return fmt.Errorf("question %d: multiple choice needs at least 2 options: %w", i+1, models.ErrValidation)
			}
			if selectedLetter(q.CorrectAnswer) == 0 {
				return fmt.Errorf("question %d: correct answer must name an option: %w", i+1, models.ErrValidation)
			}
		case models.QuestionTrueFalse:
			if _, ok := parseBool(q.CorrectAnswer); !ok {
				return fmt.Errorf("question %d: correct answer must be a boolean: %w", i+1, models.ErrValidation)
			}
		}
	}
	return nil
}

// ── Quiz Access ──────────────────────────────────────────

func (s *Service) GetQuiz(quizID string, includeAnswers bool) (*models.QuizDetail, error) {
	detail, err := s.store.GetQuizWithQuestions(quizID)
	if err != nil {
		return nil, err
	}
	if !includeAnswers {
		// Strip into a fresh slice; the store owns the one it returned.
		stripped := make([]models.Question, len(detail.Questions))
		for i, q := range detail.Questions {
			stripped[i] = q.Stripped()
		}
		detail.Questions = stripped
	}
	return detail, nil
}

func (s *Service) ListQuizzes(limit, offset int) (*models.QuizListResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	quizzes, total, err := s.store.ListQuizzes(limit, offset)
	if err != nil {
		return nil, err
	}
	if quizzes == nil {
		quizzes = []models.Quiz{}
	}
	return &models.QuizListResponse{Quizzes: quizzes, Total: total}, nil
}

// ── Session Lifecycle ────────────────────────────────────

// StartSession creates a new in_progress attempt. Multiple concurrent
// sessions per (quiz, scope key) are permitted; each is independent.
func (s *Service) StartSession(quizID, scopeKey string) (*models.QuizSession, error) {
	detail, err := s.store.GetQuizWithQuestions(quizID)
	if err != nil {
		return nil, err
	}

	maxScore := 0
	for _, q := range detail.Questions {
		maxScore += q.Points
	}

	session := &models.QuizSession{
		ID:        uuid.NewString(),
		QuizID:    quizID,
		ScopeKey:  scopeKey,
		Status:    models.SessionInProgress,
		StartedAt: s.now().UTC(),
		MaxScore:  maxScore,
	}
	if err := s.store.CreateSession(session); err != nil {
		return nil, err
	}

	log.Printf("[quizzes] started session %s for quiz %s", session.ID, quizID)
	return session, nil
}

func (s *Service) SubmitAnswer(sessionID, questionID, answer string, timeTaken *int) (*models.SubmitAnswerResponse, error) {
	session, err := s.store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status.Terminal() {
		return nil, fmt.Errorf("session %s is %s: %w", sessionID, session.Status, models.ErrInvalidState)
	}

	detail, err := s.store.GetQuizWithQuestions(session.QuizID)
	if err != nil {
		return nil, err
	}
	question, err := findQuestion(detail.Questions, questionID)
	if err != nil {
		return nil, err
	}

	correct, points := Evaluate(*question, answer)

	resp := &models.QuestionResponse{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		QuestionID: questionID,
		Answer:     answer,
		Correct:    correct,
		TimeTaken:  timeTaken,
		CreatedAt:  s.now().UTC(),
	}
	// The unique (session, question) constraint makes the duplicate check
	// race-free; a rejected submit leaves the score untouched.
	if err := s.store.RecordResponse(resp, points); err != nil {
		return nil, err
	}

	return &models.SubmitAnswerResponse{
		Response:      *resp,
		CorrectAnswer: question.CorrectAnswer,
		Explanation:   question.Explanation,
		PointsAwarded: points,
	}, nil
}

// CompleteSession tallies the final score, transitions the session to its
// terminal completed state, and emits exactly one completion event. Any
// question never answered scores zero.
func (s *Service) CompleteSession(sessionID string) (*models.QuizResults, error) {
	session, err := s.store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status.Terminal() {
		return nil, fmt.Errorf("session %s is %s: %w", sessionID, session.Status, models.ErrInvalidState)
	}

	detail, err := s.store.GetQuizWithQuestions(session.QuizID)
	if err != nil {
		return nil, err
	}
	responses, err := s.store.GetResponses(sessionID)
	if err != nil {
		return nil, err
	}

	points := make(map[string]int, len(detail.Questions))
	maxScore := 0
	for _, q := range detail.Questions {
		points[q.ID] = q.Points
		maxScore += q.Points
	}

	score := 0
	for _, r := range responses {
		if r.Correct {
			score += points[r.QuestionID]
		}
	}

	now := s.now().UTC()
	timeTaken := int(now.Sub(session.StartedAt).Seconds())
	if err := s.store.CompleteSession(sessionID, score, maxScore, timeTaken, now); err != nil {
		return nil, err
	}

	percentage := 0.0
	if maxScore > 0 {
		percentage = float64(score) * 100.0 / float64(maxScore)
	}

	// The session transition above stays committed either way; a failed
	// mastery update is reported, not swallowed.
	if err := s.emitCompletion(session, detail.Questions, responses); err != nil {
		return nil, fmt.Errorf("apply mastery update for session %s: %w", sessionID, err)
	}

	session.Status = models.SessionCompleted
	session.Score = score
	session.MaxScore = maxScore
	session.CompletedAt = &now
	session.TimeTaken = &timeTaken

	if responses == nil {
		responses = []models.QuestionResponse{}
	}
	return &models.QuizResults{
		Session:    *session,
		Responses:  responses,
		Questions:  detail.Questions,
		Score:      score,
		MaxScore:   maxScore,
		Percentage: percentage,
		Passed:     percentage >= PassingThreshold,
		TimeTaken:  timeTaken,
	}, nil
}

// AbandonSession is the only cancellation path. It is terminal: abandoning
// an already-terminal session is an error, not a silent success. No
// completion event is emitted and recorded responses stay queryable.
func (s *Service) AbandonSession(sessionID string) (*models.QuizSession, error) {
	session, err := s.store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status.Terminal() {
		return nil, fmt.Errorf("session %s is %s: %w", sessionID, session.Status, models.ErrInvalidState)
	}
	if err := s.store.AbandonSession(sessionID); err != nil {
		return nil, err
	}

	log.Printf("[quizzes] abandoned session %s", sessionID)
	session.Status = models.SessionAbandoned
	return session, nil
}

// GetResults re-reads the stored results of a completed session.
func (s *Service) GetResults(sessionID string) (*models.QuizResults, error) {
	session, err := s.store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionCompleted {
		return nil, fmt.Errorf("session %s is %s, not completed: %w", sessionID, session.Status, models.ErrInvalidState)
	}

	detail, err := s.store.GetQuizWithQuestions(session.QuizID)
	if err != nil {
		return nil, err
	}
	responses, err := s.store.GetResponses(sessionID)
	if err != nil {
		return nil, err
	}
	if responses == nil {
		responses = []models.QuestionResponse{}
	}

	percentage := 0.0
	if session.MaxScore > 0 {
		percentage = float64(session.Score) * 100.0 / float64(session.MaxScore)
	}
	timeTaken := 0
	if session.TimeTaken != nil {
		timeTaken = *session.TimeTaken
	}

	return &models.QuizResults{
		Session:    *session,
		Responses:  responses,
		Questions:  detail.Questions,
		Score:      session.Score,
		MaxScore:   session.MaxScore,
		Percentage: percentage,
		Passed:     percentage >= PassingThreshold,
		TimeTaken:  timeTaken,
	}, nil
}

// emitCompletion derives per-topic outcomes from the session's responses and
// hands them to the mastery scheduler. A topic counts as correct only if
// every response touching it was correct.
func (s *Service) emitCompletion(session *models.QuizSession, questions []models.Question, responses []models.QuestionResponse) error {
	if s.completion == nil {
		return nil
	}

	topicByQuestion := make(map[string]string)
	for _, q := range questions {
		if q.TopicID != nil {
			topicByQuestion[q.ID] = *q.TopicID
		}
	}

	outcomes := make(map[string]bool)
	for _, r := range responses {
		topicID, ok := topicByQuestion[r.QuestionID]
		if !ok {
			continue
		}
		prior, seen := outcomes[topicID]
		if !seen {
			outcomes[topicID] = r.Correct
		} else {
			outcomes[topicID] = prior && r.Correct
		}
	}

	event := models.SessionCompletedEvent{
		SessionID: session.ID,
		ScopeKey:  session.ScopeKey,
	}
	for topicID, correct := range outcomes {
		event.TopicOutcomes = append(event.TopicOutcomes, models.TopicOutcome{
			TopicID: topicID,
			Correct: correct,
		})
	}
	sort.Slice(event.TopicOutcomes, func(i, j int) bool {
		return event.TopicOutcomes[i].TopicID < event.TopicOutcomes[j].TopicID
	})

	if err := s.completion.ApplyCompletion(event); err != nil {
		log.Printf("WARN: mastery update failed for session %s: %v", session.ID, err)
		return err
	}
	return nil
}

func findQuestion(questions []models.Question, questionID string) (*models.Question, error) {
	for i := range questions {
		if questions[i].ID == questionID {
			return &questions[i], nil
		}
	}
	return nil, fmt.Errorf("question %s: %w", questionID, models.ErrNotFound)
}
