package submission

import (
	"context"
	"time"
)

// Store is the persistence contract for submissions. It is interface-driven
// so the service can run against the in-memory implementation in tests and
// PostgreSQL in deployment without rewiring business code.
//
// Create is the sole serialization point between concurrent submissions:
// implementations must make the email-uniqueness check atomic with the
// insert and report a losing race as sentinel.ErrConflict. The service's
// own duplicate pre-check is a latency optimization only.
type Store interface {
	// Create persists a new submission, assigning its ID. A zero CreatedAt
	// is stamped at insert time; a pre-set value is kept as-is.
	Create(ctx context.Context, sub Submission) (Submission, error)

	// FindByID returns one submission or sentinel.ErrNotFound.
	FindByID(ctx context.Context, id int64) (Submission, error)

	// FindByEmail looks up a submission by normalized email, or
	// sentinel.ErrNotFound.
	FindByEmail(ctx context.Context, email string) (Submission, error)

	// FindPage returns one page of submissions matching the query plus the
	// total match count. Sorting is stable with ID as the tie-break.
	FindPage(ctx context.Context, q ListQuery) ([]Submission, int, error)

	// Count returns the total number of submissions.
	Count(ctx context.Context) (int, error)

	// CountSince counts submissions created at or after the given instant.
	CountSince(ctx context.Context, since time.Time) (int, error)

	// CountByDiagnosis returns grouped counts ordered descending by count.
	CountByDiagnosis(ctx context.Context) ([]DiagnosisCount, error)

	// CountByMonth groups createdAt by calendar year-month ("YYYY-MM"),
	// ordered descending by month, limited to the most recent 12 buckets.
	CountByMonth(ctx context.Context) ([]MonthCount, error)
}

// Cache memoizes the two expensive read paths with independent TTLs.
// Implementations are best-effort: a broken cache degrades to misses and
// never fails a request.
type Cache interface {
	// GetList returns the cached unfiltered first page, or a miss when the
	// entry is absent or its TTL elapsed.
	GetList(ctx context.Context) (PagedResult, bool)

	// SetList overwrites the list entry and resets its timestamp.
	SetList(ctx context.Context, result PagedResult)

	// GetStats returns the cached statistics snapshot, or a miss.
	GetStats(ctx context.Context) (StatsSnapshot, bool)

	// SetStats overwrites the stats entry and resets its timestamp.
	SetStats(ctx context.Context, snapshot StatsSnapshot)

	// InvalidateAll clears both entries. Called synchronously before every
	// store write so no reader observes a hit reflecting stale data.
	InvalidateAll(ctx context.Context)
}
