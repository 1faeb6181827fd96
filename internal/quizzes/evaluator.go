package quizzes

import (
	"strings"

	"github.com/learnloop/backend/internal/models"
)

// Evaluate grades a submitted answer against a question. It is a pure
// function with no session state so each variant can be tested directly.
// Points are all-or-nothing: the full question value on a correct answer,
// zero otherwise.
func Evaluate(q models.Question, answer string) (correct bool, points int) {
	switch q.Type {
	case models.QuestionMultipleChoice:
		correct = evaluateMultipleChoice(q.CorrectAnswer, answer)
	case models.QuestionTrueFalse:
		correct = evaluateTrueFalse(q.CorrectAnswer, answer)
	case models.QuestionShortAnswer:
		correct = normalizeShortAnswer(answer) == normalizeShortAnswer(q.CorrectAnswer)
	}
	if correct {
		points = q.Points
	}
	return correct, points
}

// evaluateMultipleChoice compares the selected option identifier, ignoring
// case and decoration: "B)", "b.", and "b" all select option B.
func evaluateMultipleChoice(canonical, answer string) bool {
	want := selectedLetter(canonical)
	got := selectedLetter(answer)
	return want != 0 && got == want
}

// selectedLetter extracts the first alphabetic rune, lowercased.
func selectedLetter(s string) rune {
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if r >= 'a' && r <= 'z' {
			return r
		}
	}
	return 0
}

func evaluateTrueFalse(canonical, answer string) bool {
	want, ok := parseBool(canonical)
	if !ok {
		// Malformed canonical answer; fall back to normalized string match.
		return normalizeShortAnswer(answer) == normalizeShortAnswer(canonical)
	}
	got, ok := parseBool(answer)
	return ok && got == want
}

// parseBool accepts the common textual representations of a boolean.
func parseBool(s string) (value, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1":
		return true, true
	case "false", "f", "no", "n", "0":
		return false, true
	}
	return false, false
}

// normalizeShortAnswer trims, case-folds, and collapses interior whitespace.
// Semantic matching is deliberately not attempted.
func normalizeShortAnswer(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
