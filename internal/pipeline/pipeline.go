// Package pipeline decouples "user submits images" from "analysis
// completes": a placeholder record is inserted synchronously, the external
// analysis call runs in the background, and the store eventually reflects a
// terminal done or error status for every job.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mockmaster/internal/config"
	"mockmaster/internal/domain"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Pipeline runs analysis jobs. Jobs are independent: no job blocks or
// serializes behind another, and no two jobs ever target the same record id.
//
// There is no resumable queue across restarts: a record left in processing
// state by a crash stays processing until the user deletes or re-submits
// it. This is an accepted constraint of the design.
type Pipeline struct {
	repo     domain.QuestionRepository
	analyzer domain.Analyzer
	cfg      config.PipelineConfig
	sem      *semaphore.Weighted
	logger   *zap.Logger
	wg       sync.WaitGroup
}

func New(repo domain.QuestionRepository, analyzer domain.Analyzer, cfg config.PipelineConfig, logger *zap.Logger) *Pipeline {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 5 * time.Second
	}
	if cfg.AnalysisTimeout <= 0 {
		cfg.AnalysisTimeout = 60 * time.Second
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	return &Pipeline{
		repo:     repo,
		analyzer: analyzer,
		cfg:      cfg,
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		logger:   logger,
	}
}

// Submit creates the placeholder record and schedules the analysis job. It
// returns the new record id immediately and never waits on the analyzer.
func (p *Pipeline) Submit(ctx context.Context, images [][]byte) (int64, error) {
	if len(images) == 0 {
		return 0, domain.NewInvalidInputError("at least one image is required")
	}

	id, err := p.repo.Save(ctx, domain.NewPlaceholder(images))
	if err != nil {
		return 0, err
	}

	p.logger.Info("Analysis job submitted",
		zap.Int64("record_id", id),
		zap.Int("images", len(images)))

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		// Jobs outlive the submitting call; they are not cancellable once
		// started and run to a terminal state.
		p.runJob(context.Background(), id, images)
	}()

	return id, nil
}

// Wait blocks until every in-flight job has reached a terminal state.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// retryState makes the backoff inspectable instead of hiding it in
// recursive closures: attempts remaining and the next delay, doubled after
// each rate-limited attempt.
type retryState struct {
	attemptsRemaining int
	delay             time.Duration
}

func (p *Pipeline) runJob(ctx context.Context, id int64, images [][]byte) {
	state := retryState{
		attemptsRemaining: p.cfg.MaxRetries,
		delay:             p.cfg.InitialDelay,
	}

	for {
		result, err := p.analyze(ctx, images)
		if err == nil {
			p.complete(ctx, id, result)
			return
		}

		if domain.IsRateLimited(err) && state.attemptsRemaining > 0 {
			p.logger.Warn("Analysis rate limited, backing off",
				zap.Int64("record_id", id),
				zap.Duration("delay", state.delay),
				zap.Int("attempts_remaining", state.attemptsRemaining))

			p.setRetryStatus(ctx, id, state)

			select {
			case <-time.After(state.delay):
			case <-ctx.Done():
				p.fail(ctx, id, ctx.Err())
				return
			}

			state.attemptsRemaining--
			state.delay *= 2
			continue
		}

		p.fail(ctx, id, err)
		return
	}
}

func (p *Pipeline) analyze(ctx context.Context, images [][]byte) (*domain.AnalysisResult, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, domain.NewInternalError("failed to acquire analysis slot", err)
	}
	defer p.sem.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.AnalysisTimeout)
	defer cancel()

	return p.analyzer.Analyze(callCtx, images)
}

func (p *Pipeline) complete(ctx context.Context, id int64, result *domain.AnalysisResult) {
	status := domain.StatusDone
	err := p.repo.Update(ctx, id, domain.QuestionUpdate{
		Question:     &result.Question,
		Options:      &result.Options,
		CorrectIndex: &result.CorrectIndex,
		Explanation:  &result.Explanation,
		Subject:      &result.Subject,
		Topic:        &result.Topic,
		Status:       &status,
	})
	if err != nil {
		if domain.IsNotFound(err) {
			// Record deleted while the job was in flight; the result is
			// dropped rather than resurrecting the id.
			p.logger.Warn("Record deleted mid-analysis, dropping result",
				zap.Int64("record_id", id))
			return
		}
		p.logger.Error("Failed to store analysis result",
			zap.Int64("record_id", id), zap.Error(err))
		return
	}

	p.logger.Info("Analysis job completed", zap.Int64("record_id", id))
}

func (p *Pipeline) fail(ctx context.Context, id int64, cause error) {
	status := domain.StatusError
	explanation := cause.Error()
	err := p.repo.Update(ctx, id, domain.QuestionUpdate{
		Status:      &status,
		Explanation: &explanation,
	})
	if err != nil {
		if domain.IsNotFound(err) {
			p.logger.Warn("Record deleted mid-analysis, dropping error",
				zap.Int64("record_id", id))
			return
		}
		p.logger.Error("Failed to mark record as errored",
			zap.Int64("record_id", id), zap.Error(err))
		return
	}

	p.logger.Info("Analysis job failed",
		zap.Int64("record_id", id), zap.String("cause", cause.Error()))
}

// setRetryStatus updates the placeholder text so the dashboard can show the
// pending retry. Best effort; a deleted record just drops the update.
func (p *Pipeline) setRetryStatus(ctx context.Context, id int64, state retryState) {
	text := fmt.Sprintf("Rate limited. Retrying in %s (%d attempts left)...",
		state.delay, state.attemptsRemaining)
	if err := p.repo.Update(ctx, id, domain.QuestionUpdate{Question: &text}); err != nil && !domain.IsNotFound(err) {
		p.logger.Warn("Failed to update retry status text",
			zap.Int64("record_id", id), zap.Error(err))
	}
}
