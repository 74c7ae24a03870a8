package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"claimintake/internal/submission"
	"claimintake/pkg/platform/sentinel"
)

// InMemoryStore keeps submissions in process memory. It backs unit tests
// and local development; production uses PostgresStore. Both honor the
// same contract, including atomic email uniqueness on Create.
type InMemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	subs    []submission.Submission
	byEmail map[string]int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		nextID:  1,
		byEmail: make(map[string]int64),
	}
}

func (s *InMemoryStore) Create(_ context.Context, sub submission.Submission) (submission.Submission, error) {
	sub.Normalize()
	if violations := submission.ValidateRecord(sub); len(violations) > 0 {
		return submission.Submission{}, &submission.ValidationError{Violations: violations}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Uniqueness check and insert share the write lock, so two concurrent
	// submissions with the same email cannot both succeed.
	if _, exists := s.byEmail[sub.Email]; exists {
		return submission.Submission{}, fmt.Errorf("email %s: %w", sub.Email, sentinel.ErrConflict)
	}

	sub.ID = s.nextID
	s.nextID++
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}

	s.subs = append(s.subs, sub)
	s.byEmail[sub.Email] = sub.ID
	return sub, nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id int64) (submission.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subs {
		if sub.ID == id {
			return sub, nil
		}
	}
	return submission.Submission{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (submission.Submission, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return submission.Submission{}, sentinel.ErrNotFound
	}
	for _, sub := range s.subs {
		if sub.ID == id {
			return sub, nil
		}
	}
	return submission.Submission{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) FindPage(_ context.Context, q submission.ListQuery) ([]submission.Submission, int, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 10
	}
	if q.Limit > submission.MaxPageSize {
		q.Limit = submission.MaxPageSize
	}

	s.mu.RLock()
	matched := make([]submission.Submission, 0, len(s.subs))
	for _, sub := range s.subs {
		if matches(sub, q) {
			matched = append(matched, sub)
		}
	}
	s.mu.RUnlock()

	sortSubmissions(matched, q.SortBy, q.SortOrder)

	total := len(matched)
	offset := (q.Page - 1) * q.Limit
	if offset >= total {
		return []submission.Submission{}, total, nil
	}
	end := offset + q.Limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs), nil
}

func (s *InMemoryStore) CountSince(_ context.Context, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, sub := range s.subs {
		if !sub.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) CountByDiagnosis(_ context.Context) ([]submission.DiagnosisCount, error) {
	s.mu.RLock()
	counts := make(map[submission.DiagnosisType]int)
	for _, sub := range s.subs {
		counts[sub.DiagnosisType]++
	}
	s.mu.RUnlock()

	result := make([]submission.DiagnosisCount, 0, len(counts))
	for diagnosis, count := range counts {
		result = append(result, submission.DiagnosisCount{DiagnosisType: diagnosis, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].DiagnosisType < result[j].DiagnosisType
	})
	return result, nil
}

func (s *InMemoryStore) CountByMonth(_ context.Context) ([]submission.MonthCount, error) {
	s.mu.RLock()
	counts := make(map[string]int)
	for _, sub := range s.subs {
		counts[sub.CreatedAt.UTC().Format("2006-01")]++
	}
	s.mu.RUnlock()

	result := make([]submission.MonthCount, 0, len(counts))
	for month, count := range counts {
		result = append(result, submission.MonthCount{Month: month, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Month > result[j].Month
	})
	if len(result) > 12 {
		result = result[:12]
	}
	return result, nil
}

func matches(sub submission.Submission, q submission.ListQuery) bool {
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(sub.FirstName), needle) &&
			!strings.Contains(strings.ToLower(sub.LastName), needle) &&
			!strings.Contains(strings.ToLower(sub.Email), needle) &&
			!strings.Contains(strings.ToLower(sub.JobTitle), needle) {
			return false
		}
	}
	if q.DiagnosisType != "" && sub.DiagnosisType != q.DiagnosisType {
		return false
	}
	if q.DateFrom != nil && sub.CreatedAt.Before(q.DateFrom.Time) {
		return false
	}
	// DateTo is inclusive of the whole end date.
	if q.DateTo != nil && !sub.CreatedAt.Before(q.DateTo.AddDate(0, 0, 1)) {
		return false
	}
	return true
}

func sortSubmissions(subs []submission.Submission, sortBy, sortOrder string) {
	less := func(a, b submission.Submission) bool {
		switch sortBy {
		case "firstName":
			return a.FirstName < b.FirstName
		case "lastName":
			return a.LastName < b.LastName
		case "email":
			return a.Email < b.Email
		case "jobTitle":
			return a.JobTitle < b.JobTitle
		case "dateOfDiagnosis":
			return a.DateOfDiagnosis.Before(b.DateOfDiagnosis.Time)
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	descending := strings.EqualFold(sortOrder, "DESC")
	// Stable sort with the slice already in ID order gives a deterministic
	// ID tie-break, matching the SQL ORDER BY ..., id.
	sort.SliceStable(subs, func(i, j int) bool {
		if descending {
			return less(subs[j], subs[i])
		}
		return less(subs[i], subs[j])
	})
}
