package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"claimintake/internal/submission"
	"claimintake/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
}

// newSubmission builds a valid record; CreatedAt stays zero so the store
// stamps it unless a test backdates explicitly.
func newSubmission(email string) submission.Submission {
	dob, _ := submission.ParseDate("1970-01-01")
	diagnosed, _ := submission.ParseDate("2023-05-01")
	return submission.Submission{
		FirstName:       "Jane",
		LastName:        "Doe",
		Phone:           "+14155551234",
		Email:           email,
		DateOfBirth:     dob,
		JobTitle:        "Welder",
		DateOfDiagnosis: diagnosed,
		DiagnosisType:   submission.DiagnosisPleural,
		Captcha:         true,
	}
}

func (s *InMemoryStoreSuite) mustCreate(sub submission.Submission) submission.Submission {
	created, err := s.store.Create(context.Background(), sub)
	s.Require().NoError(err)
	return created
}

// =============================================================================
// Create
// =============================================================================

func (s *InMemoryStoreSuite) TestCreate() {
	ctx := context.Background()

	s.Run("assigns monotonic ids and stamps createdAt", func() {
		first := s.mustCreate(newSubmission("first@example.com"))
		second := s.mustCreate(newSubmission("second@example.com"))

		s.Equal(int64(1), first.ID)
		s.Equal(int64(2), second.ID)
		s.False(first.CreatedAt.IsZero())
	})

	s.Run("normalizes before persisting", func() {
		sub := newSubmission("  MiXed@Case.COM ")
		sub.FirstName = "  Padded  "
		created := s.mustCreate(sub)

		s.Equal("mixed@case.com", created.Email)
		s.Equal("Padded", created.FirstName)
	})

	s.Run("rejects duplicate email differing only in case and whitespace", func() {
		s.mustCreate(newSubmission("unique@example.com"))

		_, err := s.store.Create(ctx, newSubmission("  UNIQUE@example.com "))
		s.Require().Error(err)
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("rejects constraint violations with ValidationError", func() {
		sub := newSubmission("invalid@example.com")
		sub.DiagnosisType = "lung"

		_, err := s.store.Create(ctx, sub)
		var verr *submission.ValidationError
		s.Require().ErrorAs(err, &verr)
		s.Len(verr.Violations, 1)
		s.Equal("diagnosisType", verr.Violations[0].Field)
	})
}

// =============================================================================
// Lookups
// =============================================================================

func (s *InMemoryStoreSuite) TestFindByID() {
	created := s.mustCreate(newSubmission("find@example.com"))

	found, err := s.store.FindByID(context.Background(), created.ID)
	s.Require().NoError(err)
	s.Equal(created.Email, found.Email)

	_, err = s.store.FindByID(context.Background(), 999)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestFindByEmail() {
	s.mustCreate(newSubmission("lookup@example.com"))

	found, err := s.store.FindByEmail(context.Background(), " LOOKUP@example.com ")
	s.Require().NoError(err)
	s.Equal("lookup@example.com", found.Email)

	_, err = s.store.FindByEmail(context.Background(), "missing@example.com")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// =============================================================================
// FindPage
// =============================================================================

func (s *InMemoryStoreSuite) seedPage() {
	welder := newSubmission("welder@example.com")
	welder.JobTitle = "Welder"

	plumber := newSubmission("plumber@example.com")
	plumber.FirstName = "Paul"
	plumber.JobTitle = "Plumber"
	plumber.DiagnosisType = submission.DiagnosisPeritoneal

	miner := newSubmission("miner@example.com")
	miner.LastName = "Minerson"
	miner.JobTitle = "Miner"
	miner.DiagnosisType = submission.DiagnosisPeritoneal

	s.mustCreate(welder)
	s.mustCreate(plumber)
	s.mustCreate(miner)
}

func (s *InMemoryStoreSuite) TestFindPage() {
	ctx := context.Background()
	s.seedPage()

	s.Run("search matches job title case-insensitively", func() {
		rows, total, err := s.store.FindPage(ctx, submission.ListQuery{Search: "WELD"})
		s.Require().NoError(err)
		s.Equal(1, total)
		s.Equal("welder@example.com", rows[0].Email)
	})

	s.Run("search ORs across name and email fields", func() {
		rows, total, err := s.store.FindPage(ctx, submission.ListQuery{Search: "miner"})
		s.Require().NoError(err)
		s.Equal(1, total)
		s.Equal("Minerson", rows[0].LastName)

		_, total, err = s.store.FindPage(ctx, submission.ListQuery{Search: "example.com"})
		s.Require().NoError(err)
		s.Equal(3, total)
	})

	s.Run("filters by diagnosis type", func() {
		_, total, err := s.store.FindPage(ctx, submission.ListQuery{
			DiagnosisType: submission.DiagnosisPeritoneal,
		})
		s.Require().NoError(err)
		s.Equal(2, total)
	})

	s.Run("sorts ascending with stable id tie-break", func() {
		rows, _, err := s.store.FindPage(ctx, submission.ListQuery{
			SortBy:    "createdAt",
			SortOrder: "ASC",
		})
		s.Require().NoError(err)
		s.Require().Len(rows, 3)
		s.Less(rows[0].ID, rows[1].ID)
		s.Less(rows[1].ID, rows[2].ID)
	})

	s.Run("paginates with offset", func() {
		rows, total, err := s.store.FindPage(ctx, submission.ListQuery{
			Page:      2,
			Limit:     2,
			SortBy:    "createdAt",
			SortOrder: "ASC",
		})
		s.Require().NoError(err)
		s.Equal(3, total)
		s.Len(rows, 1)
	})

	s.Run("page past the end returns empty slice with total", func() {
		rows, total, err := s.store.FindPage(ctx, submission.ListQuery{Page: 9})
		s.Require().NoError(err)
		s.Equal(3, total)
		s.Empty(rows)
	})

	s.Run("caps limit at 100", func() {
		rows, _, err := s.store.FindPage(ctx, submission.ListQuery{Limit: 1000})
		s.Require().NoError(err)
		s.LessOrEqual(len(rows), submission.MaxPageSize)
	})
}

func (s *InMemoryStoreSuite) TestFindPageDateRange() {
	ctx := context.Background()

	old := newSubmission("old@example.com")
	old.CreatedAt = time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	recent := newSubmission("recent@example.com")
	recent.CreatedAt = time.Date(2026, time.June, 15, 23, 30, 0, 0, time.UTC)
	s.mustCreate(old)
	s.mustCreate(recent)

	from, _ := submission.ParseDate("2026-06-01")
	to, _ := submission.ParseDate("2026-06-15")

	rows, total, err := s.store.FindPage(ctx, submission.ListQuery{DateFrom: &from, DateTo: &to})
	s.Require().NoError(err)
	s.Equal(1, total, "range is inclusive of the whole end date")
	s.Equal("recent@example.com", rows[0].Email)

	before, _ := submission.ParseDate("2026-06-14")
	_, total, err = s.store.FindPage(ctx, submission.ListQuery{DateFrom: &from, DateTo: &before})
	s.Require().NoError(err)
	s.Equal(0, total)
}

// =============================================================================
// Aggregations
// =============================================================================

func (s *InMemoryStoreSuite) TestCounts() {
	ctx := context.Background()

	old := newSubmission("old@example.com")
	old.CreatedAt = time.Now().UTC().Add(-30 * 24 * time.Hour)
	s.mustCreate(old)
	s.mustCreate(newSubmission("fresh@example.com"))

	total, err := s.store.Count(ctx)
	s.Require().NoError(err)
	s.Equal(2, total)

	recent, err := s.store.CountSince(ctx, time.Now().UTC().Add(-7*24*time.Hour))
	s.Require().NoError(err)
	s.Equal(1, recent)
}

func (s *InMemoryStoreSuite) TestCountByDiagnosis() {
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		sub := newSubmission(fmt.Sprintf("pleural%d@example.com", i))
		s.mustCreate(sub)
	}
	peritoneal := newSubmission("peritoneal@example.com")
	peritoneal.DiagnosisType = submission.DiagnosisPeritoneal
	s.mustCreate(peritoneal)

	buckets, err := s.store.CountByDiagnosis(ctx)
	s.Require().NoError(err)
	s.Require().Len(buckets, 2)
	s.Equal(submission.DiagnosisPleural, buckets[0].DiagnosisType, "ordered descending by count")
	s.Equal(3, buckets[0].Count)
	s.Equal(1, buckets[1].Count)
}

func (s *InMemoryStoreSuite) TestCountByMonth() {
	ctx := context.Background()

	// 14 distinct months; only the most recent 12 buckets should remain.
	base := time.Date(2026, time.August, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 14; i++ {
		sub := newSubmission(fmt.Sprintf("month%d@example.com", i))
		sub.CreatedAt = base.AddDate(0, -i, 0)
		s.mustCreate(sub)
	}

	buckets, err := s.store.CountByMonth(ctx)
	s.Require().NoError(err)
	s.Require().Len(buckets, 12)
	s.Equal("2026-08", buckets[0].Month, "ordered descending by month")
	s.Equal(1, buckets[0].Count)
	s.Equal("2025-09", buckets[11].Month)

	var seenOld bool
	for _, b := range buckets {
		if b.Month == "2025-07" || b.Month == "2025-08" {
			seenOld = true
		}
	}
	s.False(seenOld, "months beyond the 12 most recent are dropped")
}

// TestConcurrentCreateSameEmail verifies the uniqueness check is atomic
// with the insert: exactly one of many racing writers wins.
func (s *InMemoryStoreSuite) TestConcurrentCreateSameEmail() {
	ctx := context.Background()
	const goroutines = 20

	results := make(chan error, goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			_, err := s.store.Create(ctx, newSubmission("race@example.com"))
			results <- err
		}()
	}

	var wins, conflicts int
	for i := 0; i < goroutines; i++ {
		if err := <-results; err == nil {
			wins++
		} else if errors.Is(err, sentinel.ErrConflict) {
			conflicts++
		}
	}
	s.Equal(1, wins)
	s.Equal(goroutines-1, conflicts)
}
