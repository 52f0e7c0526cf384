package service

import (
	"context"
	"fmt"
	"strings"

	"mockmaster/internal/domain"

	"go.uber.org/zap"
)

// TutorService runs open-ended follow-up conversations grounded in one
// stored question record.
type TutorService struct {
	repo     domain.QuestionRepository
	analyzer domain.Analyzer
	logger   *zap.Logger
}

func NewTutorService(repo domain.QuestionRepository, analyzer domain.Analyzer, logger *zap.Logger) *TutorService {
	return &TutorService{repo: repo, analyzer: analyzer, logger: logger}
}

// Ask forwards the user's question together with the record's content and
// the prior conversation, and returns the model's answer.
func (s *TutorService) Ask(ctx context.Context, recordID int64, history []domain.ChatMessage, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", domain.NewInvalidInputError("message cannot be empty")
	}

	rec, err := s.repo.GetByID(ctx, recordID)
	if err != nil {
		return "", err
	}

	grounded := append(groundingHistory(rec), history...)

	answer, err := s.analyzer.FollowUp(ctx, grounded, message)
	if err != nil {
		s.logger.Warn("Follow-up question failed",
			zap.Int64("record_id", recordID), zap.Error(err))
		return "", err
	}
	return answer, nil
}

// groundingHistory seeds the conversation with the record's content so the
// model answers about this question rather than in the abstract.
func groundingHistory(rec *domain.QuestionRecord) []domain.ChatMessage {
	correct := ""
	if rec.CorrectIndex >= 0 && rec.CorrectIndex < len(rec.Options) {
		correct = rec.Options[rec.CorrectIndex]
	}
	context := fmt.Sprintf(
		"Context: The user is asking about a mock question.\nQuestion: %s\nOptions: %s\nCorrect Answer: %s\nExplanation: %s",
		rec.Question, strings.Join(rec.Options, ", "), correct, rec.Explanation)

	return []domain.ChatMessage{
		{Role: "user", Content: context},
		{Role: "model", Content: "Understood. I am ready to help with this question."},
	}
}
