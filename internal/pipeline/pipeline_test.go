package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"mockmaster/internal/config"
	"mockmaster/internal/domain"
	"mockmaster/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestStore(t *testing.T) *repository.Store {
	t.Helper()
	store, err := repository.Open(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// scriptedAnalyzer returns the queued errors in order, then succeeds with
// result. A nil queue entry means immediate success.
type scriptedAnalyzer struct {
	mu      sync.Mutex
	errs    []error
	result  *domain.AnalysisResult
	calls   int
	release chan struct{}
}

func (a *scriptedAnalyzer) Analyze(ctx context.Context, images [][]byte) (*domain.AnalysisResult, error) {
	if a.release != nil {
		<-a.release
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if len(a.errs) > 0 {
		err := a.errs[0]
		a.errs = a.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return a.result, nil
}

func (a *scriptedAnalyzer) FollowUp(ctx context.Context, history []domain.ChatMessage, message string) (string, error) {
	return "", domain.NewInternalError("not implemented", nil)
}

func (a *scriptedAnalyzer) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func goodResult() *domain.AnalysisResult {
	return &domain.AnalysisResult{
		Question:     "What is 2+2?",
		Options:      []string{"3", "4", "5"},
		CorrectIndex: 1,
		Explanation:  "Basic addition.",
		Subject:      "Maths",
		Topic:        "Arithmetic",
	}
}

// fastRetries keeps backoff at test scale.
func fastRetries() config.PipelineConfig {
	return config.PipelineConfig{
		MaxRetries:      3,
		InitialDelay:    2 * time.Millisecond,
		AnalysisTimeout: time.Second,
		MaxConcurrent:   4,
	}
}

func TestSubmitReturnsPlaceholderImmediately(t *testing.T) {
	store := openTestStore(t)
	analyzer := &scriptedAnalyzer{result: goodResult(), release: make(chan struct{})}
	p := New(store, analyzer, fastRetries(), zap.NewNop())

	id, err := p.Submit(context.Background(), [][]byte{{0x01}})
	require.NoError(t, err)

	// The analyzer is still blocked; the placeholder must already be
	// visible.
	rec, err := store.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, rec.Status)
	assert.Equal(t, -1, rec.CorrectIndex)
	assert.Empty(t, rec.Options)
	assert.Equal(t, [][]byte{{0x01}}, rec.Images)

	close(analyzer.release)
	p.Wait()
}

func TestSubmitRejectsEmptyImages(t *testing.T) {
	store := openTestStore(t)
	p := New(store, &scriptedAnalyzer{result: goodResult()}, fastRetries(), zap.NewNop())

	_, err := p.Submit(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.ErrInvalidInput))

	records, listErr := store.List(context.Background(), false)
	require.NoError(t, listErr)
	assert.Empty(t, records, "no placeholder may be created for a rejected submit")
}

func TestJobCompletesWithAnalysisResult(t *testing.T) {
	store := openTestStore(t)
	analyzer := &scriptedAnalyzer{result: goodResult()}
	p := New(store, analyzer, fastRetries(), zap.NewNop())

	id, err := p.Submit(context.Background(), [][]byte{{0x01}})
	require.NoError(t, err)
	p.Wait()

	rec, err := store.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, rec.Status)
	assert.Equal(t, "What is 2+2?", rec.Question)
	assert.Equal(t, []string{"3", "4", "5"}, rec.Options)
	assert.Equal(t, 1, rec.CorrectIndex)
	assert.Equal(t, "Maths", rec.Subject)
	assert.Equal(t, 1, analyzer.callCount())
}

func TestRateLimitRetriesThenSucceeds(t *testing.T) {
	store := openTestStore(t)
	analyzer := &scriptedAnalyzer{
		errs: []error{
			domain.NewRateLimitedError(nil),
			domain.NewRateLimitedError(nil),
		},
		result: goodResult(),
	}
	p := New(store, analyzer, fastRetries(), zap.NewNop())

	id, err := p.Submit(context.Background(), [][]byte{{0x01}})
	require.NoError(t, err)
	p.Wait()

	rec, err := store.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, rec.Status)
	assert.Equal(t, 3, analyzer.callCount(), "two rate-limited attempts plus the success")
}

func TestRateLimitExhaustsRetries(t *testing.T) {
	store := openTestStore(t)
	analyzer := &scriptedAnalyzer{
		errs: []error{
			domain.NewRateLimitedError(nil),
			domain.NewRateLimitedError(nil),
			domain.NewRateLimitedError(nil),
			domain.NewRateLimitedError(nil),
		},
		// Unreachable; the queue above covers every allowed attempt.
		result: goodResult(),
	}
	p := New(store, analyzer, fastRetries(), zap.NewNop())

	id, err := p.Submit(context.Background(), [][]byte{{0x01}})
	require.NoError(t, err)
	p.Wait()

	rec, err := store.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, rec.Status)
	assert.Equal(t, 4, analyzer.callCount(), "initial attempt plus MaxRetries retries")
}

func TestPermanentFailureDoesNotRetry(t *testing.T) {
	store := openTestStore(t)
	analyzer := &scriptedAnalyzer{
		errs:   []error{domain.NewAnalysisError("model returned garbage", nil)},
		result: goodResult(),
	}
	p := New(store, analyzer, fastRetries(), zap.NewNop())

	id, err := p.Submit(context.Background(), [][]byte{{0x01}})
	require.NoError(t, err)
	p.Wait()

	rec, err := store.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, rec.Status)
	assert.Contains(t, rec.Explanation, "model returned garbage")
	assert.Equal(t, 1, analyzer.callCount())
}

func TestDeletedRecordDropsResult(t *testing.T) {
	store := openTestStore(t)
	analyzer := &scriptedAnalyzer{result: goodResult(), release: make(chan struct{})}
	p := New(store, analyzer, fastRetries(), zap.NewNop())

	id, err := p.Submit(context.Background(), [][]byte{{0x01}})
	require.NoError(t, err)

	// Delete the record while the job is still blocked in the analyzer.
	require.NoError(t, store.Delete(context.Background(), id))

	close(analyzer.release)
	p.Wait()

	_, err = store.GetByID(context.Background(), id)
	assert.True(t, domain.IsNotFound(err), "result must not resurrect a deleted record")
}

func TestJobsRunIndependently(t *testing.T) {
	store := openTestStore(t)

	// First job always rate limited, second clean. Both share one analyzer
	// but the per-job errors are keyed off the image payload.
	analyzer := &payloadAnalyzer{
		byMarker: map[byte]*scriptedAnalyzer{
			0x01: {errs: []error{
				domain.NewRateLimitedError(nil),
				domain.NewRateLimitedError(nil),
				domain.NewRateLimitedError(nil),
				domain.NewRateLimitedError(nil),
			}, result: goodResult()},
			0x02: {result: goodResult()},
		},
	}
	p := New(store, analyzer, fastRetries(), zap.NewNop())

	ctx := context.Background()
	slowID, err := p.Submit(ctx, [][]byte{{0x01}})
	require.NoError(t, err)
	fastID, err := p.Submit(ctx, [][]byte{{0x02}})
	require.NoError(t, err)
	p.Wait()

	slow, err := store.GetByID(ctx, slowID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, slow.Status)

	fast, err := store.GetByID(ctx, fastID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, fast.Status, "a rate-limited job must not fail its neighbors")
}

// payloadAnalyzer routes each call to a scripted analyzer chosen by the
// first byte of the first image.
type payloadAnalyzer struct {
	byMarker map[byte]*scriptedAnalyzer
}

func (a *payloadAnalyzer) Analyze(ctx context.Context, images [][]byte) (*domain.AnalysisResult, error) {
	return a.byMarker[images[0][0]].Analyze(ctx, images)
}

func (a *payloadAnalyzer) FollowUp(ctx context.Context, history []domain.ChatMessage, message string) (string, error) {
	return "", domain.NewInternalError("not implemented", nil)
}
