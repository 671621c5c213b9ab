// Package service wires the reputation, matching and ranking engine to its
// collaborators and runs the ingestion pipeline behind the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/okian/rapport/internal/adapters/guard"
	eventqueue "github.com/okian/rapport/internal/adapters/mq/queue"
	workerpool "github.com/okian/rapport/internal/adapters/mq/worker"
	"github.com/okian/rapport/internal/adapters/repository"
	"github.com/okian/rapport/internal/domain/dedupe"
	"github.com/okian/rapport/internal/domain/matching"
	"github.com/okian/rapport/internal/domain/model"
	"github.com/okian/rapport/internal/domain/ranking"
	"github.com/okian/rapport/internal/domain/reputation"
	"github.com/okian/rapport/pkg/logger"
)

const (
	defaultProfile            = "counselor"
	defaultRefreshConcurrency = 8
	defaultOpportunityLimit   = 10
	defaultMaxOpportunities   = 100
	weightSumTolerance        = 0.01
)

// Service implements the API dependencies for the engine.
type Service struct {
	mu sync.RWMutex

	// Collaborators
	ledger  repository.Ledger
	catalog repository.Catalog
	events  *guard.Ledger
	lookups *guard.Catalog

	// Engine
	calc      *reputation.Calculator
	matcher   *matching.Matcher
	ranker    *ranking.Ranker
	standings *repository.StandingsStore

	// Ingestion
	deduper    dedupe.Deduper
	eventQueue *eventqueue.InMemoryQueue
	workerPool *workerpool.Pool

	// Configuration
	workerCount        int
	queueSize          int
	dedupeSize         int
	profiles           map[string]matching.Weights
	defaultProfile     string
	minScore           float64
	opportunityLimit   int
	maxOpportunities   int
	segmentGate        bool
	eventPoints        map[model.EventKind]int64
	guardOpts          []guard.Option
	refreshSchedule    string
	refreshConcurrency int
	now                func() time.Time

	// State
	started   atomic.Bool
	runCtx    context.Context
	cancelRun context.CancelFunc
	scheduler *cron.Cron

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of ingestion workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the event queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many event ids the intake remembers.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLedger sets the event ledger. Defaults to an in-memory ledger.
func WithLedger(l repository.Ledger) Option {
	return func(s *Service) {
		if l != nil {
			s.ledger = l
		}
	}
}

// WithCatalog sets the profile and opportunity catalog. Defaults to an
// in-memory catalog.
func WithCatalog(c repository.Catalog) Option {
	return func(s *Service) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithCalculator sets the reputation calculator.
func WithCalculator(c *reputation.Calculator) Option {
	return func(s *Service) {
		if c != nil {
			s.calc = c
		}
	}
}

// WithProfiles sets the named weight profiles and the one used by default.
func WithProfiles(profiles map[string]matching.Weights, defaultName string) Option {
	return func(s *Service) {
		if len(profiles) == 0 {
			return
		}
		s.profiles = make(map[string]matching.Weights, len(profiles))
		for name, w := range profiles {
			s.profiles[name] = w.Clone()
		}
		if defaultName != "" {
			s.defaultProfile = defaultName
		}
	}
}

// WithMinScore sets the overall score a candidate must exceed to be shortlisted.
func WithMinScore(score float64) Option {
	return func(s *Service) {
		s.minScore = score
	}
}

// WithOpportunityLimits sets the default and the largest ranking limit.
func WithOpportunityLimits(defaultLimit, maxLimit int) Option {
	return func(s *Service) {
		if defaultLimit > 0 && maxLimit >= defaultLimit {
			s.opportunityLimit = defaultLimit
			s.maxOpportunities = maxLimit
		}
	}
}

// WithSegmentGate hides opportunities aimed at segments the requester is not in.
func WithSegmentGate(enabled bool) Option {
	return func(s *Service) {
		s.segmentGate = enabled
	}
}

// WithEventPoints sets the value given to zero-valued events per kind.
func WithEventPoints(points map[model.EventKind]int64) Option {
	return func(s *Service) {
		s.eventPoints = make(map[model.EventKind]int64, len(points))
		for k, v := range points {
			s.eventPoints[k] = v
		}
	}
}

// WithGuardOptions configures retries and breakers around collaborator reads.
func WithGuardOptions(opts ...guard.Option) Option {
	return func(s *Service) {
		s.guardOpts = append(s.guardOpts, opts...)
	}
}

// WithRefreshSchedule sets the cron spec of the standings refresher.
// Empty disables it.
func WithRefreshSchedule(spec string) Option {
	return func(s *Service) {
		s.refreshSchedule = spec
	}
}

// WithRefreshConcurrency bounds parallel reputation computations.
func WithRefreshConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.refreshConcurrency = n
		}
	}
}

// WithClock sets the time source. Reputation, matching and ranking all read it.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU(),
		queueSize:   10_000,
		dedupeSize:  50_000,
		profiles: map[string]matching.Weights{
			defaultProfile: matching.DefaultWeights(),
			"mentor":       matching.MentorWeights(),
		},
		defaultProfile:     defaultProfile,
		minScore:           30,
		opportunityLimit:   defaultOpportunityLimit,
		maxOpportunities:   defaultMaxOpportunities,
		eventPoints:        map[model.EventKind]int64{},
		refreshConcurrency: defaultRefreshConcurrency,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start validates the configuration, builds the engine and starts the
// workers and the standings refresher. Standings are rebuilt from the ledger
// before Start returns.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started.Load() {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}
	if err := s.validate(ctx); err != nil {
		return err
	}

	if s.calc == nil {
		calc, err := reputation.NewCalculator()
		if err != nil {
			return err
		}
		s.calc = calc
	}
	if s.ledger == nil {
		s.ledger = repository.NewMemoryLedger()
	}
	if s.catalog == nil {
		s.catalog = repository.NewMemoryCatalog()
	}
	if len(s.calc.RankLabels()) < len(s.calc.Ladder()) {
		s.logger.Warn(ctx, "fewer rank labels than levels; top levels share the last label",
			logger.Int("labels", len(s.calc.RankLabels())),
			logger.Int("levels", len(s.calc.Ladder())))
	}

	guardOpts := append([]guard.Option{guard.WithLogger(s.logger.Named("guard"))}, s.guardOpts...)
	s.events = guard.NewLedger(s.ledger, guardOpts...)
	s.lookups = guard.NewCatalog(s.catalog, guardOpts...)

	s.matcher = matching.NewMatcher(
		matching.WithWeights(s.profiles[s.defaultProfile]),
		matching.WithMinScore(s.minScore),
		matching.WithClock(s.now),
	)
	s.ranker = ranking.NewRanker(
		ranking.WithDefaultLimit(s.opportunityLimit),
		ranking.WithSegmentGate(s.segmentGate),
		ranking.WithClock(s.now),
	)
	s.standings = repository.NewStandingsStore()
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.eventQueue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))

	// workers outlive the caller's context so Stop can drain the queue
	s.runCtx, s.cancelRun = context.WithCancel(context.WithoutCancel(ctx))
	s.workerPool = workerpool.NewPool(s.workerCount, s.eventQueue, s.ledger, s,
		workerpool.WithLogger(s.logger.Named("worker")),
		workerpool.WithOnProcessed(s.processed))
	s.workerPool.Start(s.runCtx)
	s.started.Store(true)

	if n, err := s.refreshAll(ctx); err != nil {
		s.logger.Warn(ctx, "initial standings rebuild incomplete", logger.Error(err))
	} else {
		s.logger.Info(ctx, "standings rebuilt", logger.Int("subjects", n))
	}

	if s.refreshSchedule != "" {
		s.scheduler = cron.New(cron.WithLogger(cronLogger{s.logger.Named("cron")}))
		if _, err := s.scheduler.AddFunc(s.refreshSchedule, s.refreshJob); err != nil {
			s.started.Store(false)
			_ = s.workerPool.Shutdown(ctx)
			s.cancelRun()
			return fmt.Errorf("standings refresh schedule %q: %w", s.refreshSchedule, err)
		}
		s.scheduler.Start()
	}

	s.logger.Info(ctx, "rapport service started",
		logger.Int("workers", s.workerPool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("defaultProfile", s.defaultProfile),
		logger.String("refresh", s.refreshSchedule),
	)
	return nil
}

func (s *Service) validate(ctx context.Context) error {
	if _, ok := s.profiles[s.defaultProfile]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProfile, s.defaultProfile)
	}
	for _, name := range s.Profiles() {
		w := s.profiles[name]
		if err := matching.ValidateWeights(w); err != nil {
			return fmt.Errorf("profile %s: %w", name, err)
		}
		if sum := w.Sum(); math.Abs(sum-1) > weightSumTolerance {
			s.logger.Warn(ctx, "profile weights do not sum to 1",
				logger.String("profile", name), logger.Float64("sum", sum))
		}
	}
	return nil
}

// Stop closes the queue, lets the workers drain it and releases the ledger.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started.Load() {
		return nil
	}
	s.logger.Info(ctx, "stopping rapport service...")

	if s.scheduler != nil {
		<-s.scheduler.Stop().Done()
	}
	var firstErr error
	if err := s.workerPool.Shutdown(ctx); err != nil {
		firstErr = err
	}
	s.cancelRun()
	if err := s.ledger.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close ledger: %w", err)
	}

	s.started.Store(false)
	s.logger.Info(ctx, "rapport service stopped")
	return firstErr
}

// Profiles lists the configured weight profile names.
func (s *Service) Profiles() []string {
	out := make([]string, 0, len(s.profiles))
	for name := range s.profiles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Stats is a point-in-time view of the service for monitoring.
type Stats struct {
	Started        bool                      `json:"started"`
	Workers        int                       `json:"workers"`
	ActiveWorkers  int                       `json:"active_workers"`
	QueueLength    int                       `json:"queue_length"`
	QueueCapacity  int                       `json:"queue_capacity"`
	DedupeEntries  int64                     `json:"dedupe_entries"`
	RankedSubjects int                       `json:"ranked_subjects"`
	Profiles       []string                  `json:"profiles"`
	DefaultProfile string                    `json:"default_profile"`
	Breakers       map[string]string         `json:"breakers,omitempty"`
	Catalog        *repository.CatalogCounts `json:"catalog,omitempty"`
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		Started:        s.started.Load(),
		Workers:        s.workerCount,
		QueueCapacity:  s.queueSize,
		Profiles:       s.Profiles(),
		DefaultProfile: s.defaultProfile,
	}
	if !st.Started {
		return st
	}
	s.workerPool.ObserveMetrics()
	st.Workers = s.workerPool.Size()
	st.ActiveWorkers = s.workerPool.Active()
	st.QueueLength = s.eventQueue.Len()
	st.DedupeEntries = s.deduper.Size()
	st.RankedSubjects = s.standings.Count(ctx)
	st.Breakers = map[string]string{
		s.events.Guard().Name():  s.events.Guard().State().String(),
		s.lookups.Guard().Name(): s.lookups.Guard().State().String(),
	}
	if counter, ok := s.catalog.(interface {
		Counts() repository.CatalogCounts
	}); ok {
		counts := counter.Counts()
		st.Catalog = &counts
	}
	return st
}

// processed forgets the id of an event the ledger did not take so that a
// retry is ingested instead of reported as a duplicate.
func (s *Service) processed(ev model.ContributionEvent, err error) {
	if errors.Is(err, workerpool.ErrAppend) {
		s.deduper.Unrecord(s.runCtx, ev.EventID)
	}
}

func (s *Service) running() bool {
	return s.started.Load()
}

// cronLogger routes scheduler logs through the service logger.
type cronLogger struct {
	l logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(context.Background(), msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(context.Background(), msg, append(kvFields(keysAndValues), logger.Error(err))...)
}

func kvFields(kv []interface{}) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, logger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}
