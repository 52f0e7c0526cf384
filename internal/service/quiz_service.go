// Package service holds the application services above the Record Store,
// including the timed quiz session engine.
package service

import (
	"context"
	"math/rand"
	"sort"

	"mockmaster/internal/domain"

	"go.uber.org/zap"
)

// SecondsPerQuestion sets the session duration: one minute per sampled
// question.
const SecondsPerQuestion = 60

// SubjectAll disables the subject filter when starting a session.
const SubjectAll = "All"

// QuizService samples stored records into ephemeral quiz sessions.
type QuizService struct {
	repo   domain.QuestionRepository
	logger *zap.Logger
}

func NewQuizService(repo domain.QuestionRepository, logger *zap.Logger) *QuizService {
	return &QuizService{repo: repo, logger: logger}
}

// Subjects returns the distinct subjects across completed records, sorted,
// for the session setup screen.
func (s *QuizService) Subjects(ctx context.Context) ([]string, error) {
	records, err := s.repo.List(ctx, false)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var subjects []string
	for _, rec := range records {
		if rec.Status != domain.StatusDone {
			continue
		}
		if _, ok := seen[rec.Subject]; ok {
			continue
		}
		seen[rec.Subject] = struct{}{}
		subjects = append(subjects, rec.Subject)
	}
	sort.Strings(subjects)
	return subjects, nil
}

// StartSession samples up to count completed records for the given subject
// (SubjectAll disables the filter) uniformly at random without replacement
// and returns a running session. An empty pool is an error; no session
// starts.
func (s *QuizService) StartSession(ctx context.Context, subject string, count int) (*Session, error) {
	if count <= 0 {
		return nil, domain.NewInvalidInputError("question count must be positive")
	}

	records, err := s.repo.List(ctx, false)
	if err != nil {
		return nil, err
	}

	pool := make([]*domain.QuestionRecord, 0, len(records))
	for _, rec := range records {
		if rec.Status != domain.StatusDone {
			continue
		}
		if subject != SubjectAll && subject != "" && rec.Subject != subject {
			continue
		}
		pool = append(pool, rec)
	}

	if len(pool) == 0 {
		return nil, domain.NewInvalidInputError("No questions available for this selection.")
	}

	rand.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	if count < len(pool) {
		pool = pool[:count]
	}

	s.logger.Info("Quiz session started",
		zap.String("subject", subject),
		zap.Int("requested", count),
		zap.Int("sampled", len(pool)))

	return newSession(pool), nil
}
