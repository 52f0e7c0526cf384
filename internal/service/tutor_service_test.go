package service

import (
	"context"
	"testing"

	"mockmaster/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingAnalyzer captures the follow-up call for inspection.
type recordingAnalyzer struct {
	history []domain.ChatMessage
	message string
	answer  string
	err     error
}

func (a *recordingAnalyzer) Analyze(ctx context.Context, images [][]byte) (*domain.AnalysisResult, error) {
	return nil, domain.NewInternalError("not implemented", nil)
}

func (a *recordingAnalyzer) FollowUp(ctx context.Context, history []domain.ChatMessage, message string) (string, error) {
	a.history = history
	a.message = message
	return a.answer, a.err
}

func TestAskGroundsConversationInRecord(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id, err := store.Save(ctx, &domain.QuestionRecord{
		Question:     "What is the capital of France?",
		Options:      []string{"Berlin", "Paris", "Rome"},
		CorrectIndex: 1,
		Explanation:  "Paris has been the capital since 987.",
		Subject:      "Geography",
		Topic:        "Europe",
		Status:       domain.StatusDone,
	})
	require.NoError(t, err)

	analyzer := &recordingAnalyzer{answer: "It is Paris."}
	svc := NewTutorService(store, analyzer, zap.NewNop())

	prior := []domain.ChatMessage{
		{Role: "user", Content: "Why not Berlin?"},
		{Role: "model", Content: "Berlin is the capital of Germany."},
	}
	answer, err := svc.Ask(ctx, id, prior, "Can you elaborate?")
	require.NoError(t, err)
	assert.Equal(t, "It is Paris.", answer)
	assert.Equal(t, "Can you elaborate?", analyzer.message)

	// Grounding turns precede the prior conversation.
	require.Len(t, analyzer.history, 4)
	assert.Equal(t, "user", analyzer.history[0].Role)
	assert.Contains(t, analyzer.history[0].Content, "What is the capital of France?")
	assert.Contains(t, analyzer.history[0].Content, "Correct Answer: Paris")
	assert.Contains(t, analyzer.history[0].Content, "Paris has been the capital since 987.")
	assert.Equal(t, "model", analyzer.history[1].Role)
	assert.Equal(t, prior[0], analyzer.history[2])
	assert.Equal(t, prior[1], analyzer.history[3])
}

func TestAskRejectsEmptyMessage(t *testing.T) {
	store := openTestStore(t)
	svc := NewTutorService(store, &recordingAnalyzer{}, zap.NewNop())

	_, err := svc.Ask(context.Background(), 1, nil, "   ")
	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.ErrInvalidInput))
}

func TestAskMissingRecord(t *testing.T) {
	store := openTestStore(t)
	svc := NewTutorService(store, &recordingAnalyzer{}, zap.NewNop())

	_, err := svc.Ask(context.Background(), 999, nil, "help")
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
}

func TestAskHandlesRecordWithoutResolvedAnswer(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	// A still-processing record has no options and correctIndex -1; the
	// grounding must not panic on it.
	id, err := store.Save(ctx, domain.NewPlaceholder([][]byte{{0x01}}))
	require.NoError(t, err)

	analyzer := &recordingAnalyzer{answer: "ok"}
	svc := NewTutorService(store, analyzer, zap.NewNop())

	_, err = svc.Ask(ctx, id, nil, "what is this?")
	require.NoError(t, err)
	assert.Contains(t, analyzer.history[0].Content, "Correct Answer: \n")
}
