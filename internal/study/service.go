// Package study composes storage with the scheduler, streak and progress
// packages into the operations a learner performs: reviewing a card,
// fetching the study queue and reading a progress report.
package study

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/barprep/internal/domain"
	"github.com/conorfennell/barprep/internal/progress"
	"github.com/conorfennell/barprep/internal/scheduler"
	"github.com/conorfennell/barprep/internal/streak"
)

// ErrInvalidRequest is returned when a request fails validation.
var ErrInvalidRequest = errors.New("invalid request")

// Store is the subset of storage used by the service.
type Store interface {
	ScheduledCards(ctx context.Context, userID string) ([]domain.ScheduledCard, error)
	ScheduledCard(ctx context.Context, userID, hash string) (domain.ScheduledCard, error)
	RecordReview(ctx context.Context, card domain.ScheduledCard, entry domain.ReviewLog) (domain.ScheduledCard, error)
	ReviewLogs(ctx context.Context, userID string) ([]domain.ReviewLog, error)
	ReviewTimestamps(ctx context.Context, userID string) ([]time.Time, error)
}

// Service runs study operations for any user.
type Service struct {
	store     Store
	scheduler *scheduler.Scheduler
	analyzer  *progress.Analyzer
	logger    *slog.Logger
	validate  *validator.Validate
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the function used to read the current time.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a study service. Nil scheduler or analyzer use the
// package defaults.
func NewService(store Store, sched *scheduler.Scheduler, analyzer *progress.Analyzer, opts ...Option) *Service {
	if sched == nil {
		sched = scheduler.New(nil)
	}
	if analyzer == nil {
		analyzer = progress.NewAnalyzer()
	}
	s := &Service{
		store:     store,
		scheduler: sched,
		analyzer:  analyzer,
		logger:    slog.Default(),
		validate:  validator.New(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type reviewRequest struct {
	UserID  string `validate:"required"`
	Hash    string `validate:"required,hexadecimal,len=64"`
	Quality int    `validate:"gte=0,lte=5"`
}

type userRequest struct {
	UserID string `validate:"required"`
	Limit  int    `validate:"gte=0"`
}

func (s *Service) check(req any) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

// Review grades userID's recall of the card with the given hash. The new
// state and the review log are written together; if another review of the
// same card was saved since it was loaded, storage.ErrConflict is returned
// and nothing is written.
func (s *Service) Review(ctx context.Context, userID, hash string, quality domain.Quality) (domain.ScheduledCard, error) {
	if err := s.check(reviewRequest{UserID: userID, Hash: hash, Quality: int(quality)}); err != nil {
		return domain.ScheduledCard{}, err
	}

	card, err := s.store.ScheduledCard(ctx, userID, hash)
	if err != nil {
		return domain.ScheduledCard{}, fmt.Errorf("failed to load card for review: %w", err)
	}

	now := s.now()
	updated, err := s.scheduler.UpdateCard(card, quality, now)
	if err != nil {
		return domain.ScheduledCard{}, err
	}

	saved, err := s.store.RecordReview(ctx, updated, domain.NewReviewLog(updated, quality, now))
	if err != nil {
		s.logger.Warn("review not saved", "user", userID, "card", hash, "error", err)
		return domain.ScheduledCard{}, fmt.Errorf("failed to record review: %w", err)
	}

	s.logger.Debug("card reviewed",
		"user", userID,
		"card", hash,
		"quality", quality,
		"interval", saved.State.Interval,
		"easiness", saved.State.EasinessFactor,
	)
	return saved, nil
}

// Queue returns userID's due cards in study order. A limit of zero
// returns every due card.
func (s *Service) Queue(ctx context.Context, userID string, limit int) ([]domain.ScheduledCard, error) {
	if err := s.check(userRequest{UserID: userID, Limit: limit}); err != nil {
		return nil, err
	}

	cards, err := s.store.ScheduledCards(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cards: %w", err)
	}

	now := s.now()
	queue := s.scheduler.Prioritize(s.scheduler.DueCards(cards, now), now)
	if limit > 0 && len(queue) > limit {
		queue = queue[:limit]
	}
	return queue, nil
}

// Report is a snapshot of a user's progress.
type Report struct {
	GeneratedAt     time.Time
	Statistics      scheduler.Statistics
	Streak          streak.Streak
	Subjects        []progress.SubjectStats
	WeakSubjects    []progress.WeakSubject
	Recommendations []progress.Recommendation

	// Readiness and DaysUntilExam are set only when an exam date is given.
	Readiness     *progress.Readiness
	DaysUntilExam int
}

// Report builds userID's progress report. A zero examDate skips the
// readiness estimate.
func (s *Service) Report(ctx context.Context, userID string, examDate time.Time) (Report, error) {
	if err := s.check(userRequest{UserID: userID}); err != nil {
		return Report{}, err
	}

	cards, err := s.store.ScheduledCards(ctx, userID)
	if err != nil {
		return Report{}, fmt.Errorf("failed to load cards: %w", err)
	}
	logs, err := s.store.ReviewLogs(ctx, userID)
	if err != nil {
		return Report{}, fmt.Errorf("failed to load review history: %w", err)
	}
	times, err := s.store.ReviewTimestamps(ctx, userID)
	if err != nil {
		return Report{}, fmt.Errorf("failed to load review history: %w", err)
	}

	now := s.now()
	r := Report{
		GeneratedAt: now,
		Statistics:  s.scheduler.Statistics(cards, now),
		Streak:      streak.Calculate(times, now),
		Subjects:    progress.SubjectAccuracy(logs),
	}
	r.WeakSubjects = s.analyzer.WeakSubjects(r.Subjects)
	r.Recommendations = s.analyzer.Recommendations(r.Statistics, r.WeakSubjects)

	if !examDate.IsZero() {
		r.DaysUntilExam = DaysUntil(now, examDate)
		readiness := progress.PredictReadiness(r.Statistics, r.DaysUntilExam)
		r.Readiness = &readiness
	}
	return r, nil
}

// DaysUntil counts calendar days from now to date in now's location.
// Past dates give a negative count.
func DaysUntil(now, date time.Time) int {
	loc := now.Location()
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	y, m, d = date.In(loc).Date()
	target := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return int(math.Round(target.Sub(today).Hours() / 24))
}
