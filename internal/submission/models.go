package submission

import (
	"fmt"
	"strings"
	"time"
)

// MaxPageSize caps list queries regardless of what the caller asks for.
const MaxPageSize = 100

// DiagnosisType classifies the claimant's condition.
type DiagnosisType string

const (
	DiagnosisPleural     DiagnosisType = "pleural"
	DiagnosisPeritoneal  DiagnosisType = "peritoneal"
	DiagnosisPericardial DiagnosisType = "pericardial"
	DiagnosisTesticular  DiagnosisType = "testicular"
)

// DiagnosisTypes lists every accepted value, in display order.
var DiagnosisTypes = []DiagnosisType{
	DiagnosisPleural,
	DiagnosisPeritoneal,
	DiagnosisPericardial,
	DiagnosisTesticular,
}

// Valid reports whether d is one of the accepted diagnosis types.
func (d DiagnosisType) Valid() bool {
	switch d {
	case DiagnosisPleural, DiagnosisPeritoneal, DiagnosisPericardial, DiagnosisTesticular:
		return true
	}
	return false
}

// Date is a calendar date without a time component, serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string into a Date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

// DateOf truncates t to its calendar date in UTC.
func DateOf(t time.Time) Date {
	return Date{time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	parsed, err := ParseDate(s)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", s, err)
	}
	*d = parsed
	return nil
}

// Submission is one claimant's form entry, the sole persisted entity.
// Records are created once and never updated or deleted through the
// public contract.
type Submission struct {
	ID              int64         `json:"id"`
	FirstName       string        `json:"firstName"`
	LastName        string        `json:"lastName"`
	Phone           string        `json:"phone"`
	Email           string        `json:"email"`
	DateOfBirth     Date          `json:"dateOfBirth"`
	JobTitle        string        `json:"jobTitle"`
	DateOfDiagnosis Date          `json:"dateOfDiagnosis"`
	DiagnosisType   DiagnosisType `json:"diagnosisType"`
	Story           string        `json:"story,omitempty"`
	Captcha         bool          `json:"captcha"`
	CreatedAt       time.Time     `json:"createdAt"`
}

// Normalize trims all string fields and lowercases the email. Applied at
// intake and again at the storage boundary so no denormalized value can
// reach the table through any path.
func (s *Submission) Normalize() {
	s.FirstName = strings.TrimSpace(s.FirstName)
	s.LastName = strings.TrimSpace(s.LastName)
	s.Phone = strings.TrimSpace(s.Phone)
	s.Email = strings.ToLower(strings.TrimSpace(s.Email))
	s.JobTitle = strings.TrimSpace(s.JobTitle)
	s.Story = strings.TrimSpace(s.Story)
}

// SubmitRequest is the inbound form payload. Dates arrive as strings so
// malformed values surface as field violations instead of decode failures.
type SubmitRequest struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Phone           string `json:"phone"`
	Email           string `json:"email"`
	DateOfBirth     string `json:"dateOfBirth"`
	JobTitle        string `json:"jobTitle"`
	DateOfDiagnosis string `json:"dateOfDiagnosis"`
	DiagnosisType   string `json:"diagnosisType"`
	Story           string `json:"story"`
	Captcha         bool   `json:"captcha"`
}

// Receipt is returned to the claimant after a successful submission.
type Receipt struct {
	ID          int64     `json:"id"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	Email       string    `json:"email"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// ListQuery carries pagination, search, sort, and filter parameters for
// listing submissions.
type ListQuery struct {
	Page          int
	Limit         int
	Search        string
	SortBy        string
	SortOrder     string
	DiagnosisType DiagnosisType
	DateFrom      *Date
	DateTo        *Date
}

const (
	defaultSortBy    = "createdAt"
	defaultSortOrder = "DESC"
)

// sortFields whitelists sortable columns; anything else falls back to the
// default sort rather than erroring, matching the lenient query contract.
var sortFields = map[string]bool{
	"createdAt":       true,
	"firstName":       true,
	"lastName":        true,
	"email":           true,
	"jobTitle":        true,
	"dateOfDiagnosis": true,
}

// WithDefaults fills in missing parameters and clamps the page size.
func (q ListQuery) WithDefaults(defaultLimit int) ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = defaultLimit
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	if !sortFields[q.SortBy] {
		q.SortBy = defaultSortBy
	}
	q.SortOrder = strings.ToUpper(q.SortOrder)
	if q.SortOrder != "ASC" && q.SortOrder != "DESC" {
		q.SortOrder = defaultSortOrder
	}
	return q
}

// Filtered reports whether any search or filter predicate is present.
// Filtered queries bypass the list cache entirely.
func (q ListQuery) Filtered() bool {
	return q.Search != "" || q.DiagnosisType != "" || q.DateFrom != nil || q.DateTo != nil
}

// Filters echoes the applied predicates back in list responses.
func (q ListQuery) Filters() ListFilters {
	return ListFilters{
		Search:        q.Search,
		DiagnosisType: q.DiagnosisType,
		DateFrom:      q.DateFrom,
		DateTo:        q.DateTo,
	}
}

// ListFilters is the filter echo embedded in a PagedResult.
type ListFilters struct {
	Search        string        `json:"search,omitempty"`
	DiagnosisType DiagnosisType `json:"diagnosisType,omitempty"`
	DateFrom      *Date         `json:"dateFrom,omitempty"`
	DateTo        *Date         `json:"dateTo,omitempty"`
}

// Pagination describes the window a PagedResult covers.
type Pagination struct {
	CurrentPage  int  `json:"currentPage"`
	TotalPages   int  `json:"totalPages"`
	TotalItems   int  `json:"totalItems"`
	ItemsPerPage int  `json:"itemsPerPage"`
	HasNextPage  bool `json:"hasNextPage"`
	HasPrevPage  bool `json:"hasPrevPage"`
}

// PagedResult is one page of submissions plus its metadata.
type PagedResult struct {
	Submissions []Submission `json:"submissions"`
	Pagination  Pagination   `json:"pagination"`
	Filters     ListFilters  `json:"filters"`
	Cached      bool         `json:"cached"`
}

// DiagnosisCount is one bucket of the per-diagnosis aggregation.
type DiagnosisCount struct {
	DiagnosisType DiagnosisType `json:"diagnosisType"`
	Count         int           `json:"count"`
}

// MonthCount is one bucket of the monthly aggregation, keyed "YYYY-MM".
type MonthCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// StatsSnapshot is the aggregate view served by the statistics endpoint.
type StatsSnapshot struct {
	TotalSubmissions int              `json:"totalSubmissions"`
	DiagnosisStats   []DiagnosisCount `json:"diagnosisStats"`
	MonthlyStats     []MonthCount     `json:"monthlyStats"`
	ThisMonth        int              `json:"thisMonth"`
	ThisWeek         int              `json:"thisWeek"`
	Today            int              `json:"today"`
	AveragePerMonth  int              `json:"averagePerMonth"`
	TopDiagnosis     *DiagnosisType   `json:"topDiagnosis"`
	Cached           bool             `json:"cached"`
	Degraded         bool             `json:"degraded,omitempty"`
	Error            string           `json:"error,omitempty"`
}
