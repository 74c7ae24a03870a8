package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"claimintake/internal/submission/metrics"
	"claimintake/pkg/platform/sentinel"
)

// Service is the single entry point enforcing business rules around the
// Store and Cache. It is constructed with explicit dependencies so tests
// can substitute doubles.
type Service struct {
	store        Store
	cache        Cache
	metrics      *metrics.Metrics
	logger       *slog.Logger
	defaultLimit int

	// now is swapped in tests to pin time-sensitive behavior.
	now func() time.Time
}

// NewService wires a Service. Store and cache are required; metrics may be
// nil when the caller does not expose Prometheus.
func NewService(store Store, cache Cache, m *metrics.Metrics, logger *slog.Logger, defaultLimit int) (*Service, error) {
	if store == nil {
		return nil, errors.New("submission store is required")
	}
	if cache == nil {
		return nil, errors.New("query cache is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if defaultLimit < 1 {
		defaultLimit = 10
	}
	return &Service{
		store:        store,
		cache:        cache,
		metrics:      m,
		logger:       logger,
		defaultLimit: defaultLimit,
		now:          time.Now,
	}, nil
}

// Submit validates and persists one claim form.
//
// The duplicate pre-check here is racy by construction; the store's atomic
// check-and-insert is the correctness guarantee, and a losing race is
// reported the same way as a pre-check hit.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (Receipt, error) {
	sub, verr := ParseAndValidate(req, s.now())
	if verr != nil {
		s.metrics.RecordRejected("validation")
		return Receipt{}, verr
	}

	if _, err := s.store.FindByEmail(ctx, sub.Email); err == nil {
		s.metrics.RecordRejected("duplicate")
		return Receipt{}, &DuplicateEmailError{Email: sub.Email}
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.WarnContext(ctx, "duplicate pre-check failed, deferring to store constraint",
			"error", err.Error(),
		)
	}

	// Invalidate before the write completes so no reader can observe a
	// cache hit that predates the new record.
	s.cache.InvalidateAll(ctx)

	created, err := s.store.Create(ctx, sub)
	if err != nil {
		var vErr *ValidationError
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			s.metrics.RecordRejected("duplicate")
			return Receipt{}, &DuplicateEmailError{Email: sub.Email}
		case errors.As(err, &vErr):
			s.metrics.RecordRejected("validation")
			return Receipt{}, vErr
		default:
			return Receipt{}, fmt.Errorf("create submission: %w", err)
		}
	}

	s.metrics.RecordCreated()
	s.logger.InfoContext(ctx, "submission created",
		"id", created.ID,
		"diagnosis_type", string(created.DiagnosisType),
	)

	return Receipt{
		ID:          created.ID,
		FirstName:   created.FirstName,
		LastName:    created.LastName,
		Email:       created.Email,
		SubmittedAt: created.CreatedAt,
	}, nil
}

// List returns one page of submissions. Only the default unfiltered
// first-page query is served from (and written to) the list cache; any
// search or filter bypasses it on both read and write.
func (s *Service) List(ctx context.Context, q ListQuery) (PagedResult, error) {
	q = q.WithDefaults(s.defaultLimit)

	cacheable := !q.Filtered() &&
		q.Page == 1 &&
		q.SortBy == defaultSortBy &&
		q.SortOrder == defaultSortOrder

	if cacheable {
		if cached, ok := s.cache.GetList(ctx); ok && cached.Pagination.ItemsPerPage == q.Limit {
			s.metrics.RecordCacheHit("list")
			cached.Cached = true
			return cached, nil
		}
		s.metrics.RecordCacheMiss("list")
	}

	rows, total, err := s.store.FindPage(ctx, q)
	if err != nil {
		return PagedResult{}, fmt.Errorf("list submissions: %w", err)
	}

	result := PagedResult{
		Submissions: rows,
		Pagination:  paginate(q.Page, q.Limit, total),
		Filters:     q.Filters(),
	}

	if cacheable {
		s.cache.SetList(ctx, result)
	}
	return result, nil
}

// GetByID returns one submission for the admin detail view.
func (s *Service) GetByID(ctx context.Context, id int64) (Submission, error) {
	sub, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Submission{}, &NotFoundError{ID: id}
		}
		return Submission{}, fmt.Errorf("find submission %d: %w", id, err)
	}
	return sub, nil
}

// Statistics computes the aggregate snapshot, serving from the stats cache
// within its TTL. The total count is mandatory; if any secondary
// aggregation fails, the call degrades to a total-only snapshot with an
// error marker rather than failing a read-only endpoint.
func (s *Service) Statistics(ctx context.Context) (StatsSnapshot, error) {
	if cached, ok := s.cache.GetStats(ctx); ok {
		s.metrics.RecordCacheHit("stats")
		cached.Cached = true
		return cached, nil
	}
	s.metrics.RecordCacheMiss("stats")

	total, err := s.store.Count(ctx)
	if err != nil {
		return StatsSnapshot{}, fmt.Errorf("count submissions: %w", err)
	}

	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var (
		diagnosis []DiagnosisCount
		monthly   []MonthCount
		thisWeek  int
		today     int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		diagnosis, err = s.store.CountByDiagnosis(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		monthly, err = s.store.CountByMonth(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		thisWeek, err = s.store.CountSince(gctx, now.Add(-7*24*time.Hour))
		return err
	})
	g.Go(func() error {
		var err error
		today, err = s.store.CountSince(gctx, midnight)
		return err
	})

	if err := g.Wait(); err != nil {
		aggErr := &AggregationError{Err: err}
		s.metrics.RecordStatsDegraded()
		s.logger.ErrorContext(ctx, "statistics degraded to total-only snapshot",
			"error", err.Error(),
		)
		// Degraded snapshots are not cached; the next call retries the
		// full aggregation.
		return StatsSnapshot{
			TotalSubmissions: total,
			DiagnosisStats:   []DiagnosisCount{},
			MonthlyStats:     []MonthCount{},
			Degraded:         true,
			Error:            aggErr.Error(),
		}, nil
	}

	snapshot := StatsSnapshot{
		TotalSubmissions: total,
		DiagnosisStats:   diagnosis,
		MonthlyStats:     monthly,
		ThisWeek:         thisWeek,
		Today:            today,
	}

	// Month buckets are keyed in UTC, so the current-month lookup must be
	// too, or a non-UTC deployment misattributes the count near midnight
	// on the month boundary.
	currentMonth := now.UTC().Format("2006-01")
	for _, bucket := range monthly {
		if bucket.Month == currentMonth {
			snapshot.ThisMonth = bucket.Count
			break
		}
	}
	if len(monthly) > 0 {
		snapshot.AveragePerMonth = int(math.Round(float64(total) / float64(len(monthly))))
	}
	if len(diagnosis) > 0 {
		top := diagnosis[0].DiagnosisType
		snapshot.TopDiagnosis = &top
	}

	s.cache.SetStats(ctx, snapshot)
	return snapshot, nil
}

func paginate(page, limit, total int) Pagination {
	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Pagination{
		CurrentPage:  page,
		TotalPages:   totalPages,
		TotalItems:   total,
		ItemsPerPage: limit,
		HasNextPage:  page < totalPages,
		HasPrevPage:  page > 1,
	}
}
