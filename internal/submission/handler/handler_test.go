package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"claimintake/internal/submission"
	"claimintake/internal/submission/cache"
	"claimintake/internal/submission/store"
	"claimintake/pkg/testutil"
)

type submitResponse struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Data    submission.Receipt `json:"data"`
}

type listResponse struct {
	Success bool                   `json:"success"`
	Data    submission.PagedResult `json:"data"`
}

type statsResponse struct {
	Success bool                     `json:"success"`
	Data    submission.StatsSnapshot `json:"data"`
}

type detailResponse struct {
	Success bool                  `json:"success"`
	Data    submission.Submission `json:"data"`
}

type errResponse struct {
	Success bool                        `json:"success"`
	Message string                      `json:"message"`
	Errors  []submission.FieldViolation `json:"errors"`
}

type HandlerSuite struct {
	suite.Suite
	router http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service, err := submission.NewService(
		store.NewInMemoryStore(),
		cache.NewMemoryCache(5*time.Minute, 2*time.Minute),
		nil,
		logger,
		10,
	)
	s.Require().NoError(err)

	r := chi.NewRouter()
	New(service, logger).Register(r)
	s.router = r
}

func validPayload(email string) map[string]any {
	return map[string]any{
		"firstName":       "Jane",
		"lastName":        "Doe",
		"phone":           "+14155551234",
		"email":           email,
		"dateOfBirth":     "1970-01-01",
		"jobTitle":        "Welder",
		"dateOfDiagnosis": "2023-05-01",
		"diagnosisType":   "pleural",
		"captcha":         true,
	}
}

func (s *HandlerSuite) submit(email string) submission.Receipt {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/form", validPayload(email))
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	return testutil.UnmarshalResponse[submitResponse](s.T(), rr).Data
}

func (s *HandlerSuite) TestSubmitCreated() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/form", validPayload("Jane.Doe@EX.com"))
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	body := testutil.UnmarshalResponse[submitResponse](s.T(), rr)
	s.True(body.Success)
	s.Equal("Form submitted successfully", body.Message)
	s.Equal("jane.doe@ex.com", body.Data.Email)
	s.NotZero(body.Data.ID)
}

func (s *HandlerSuite) TestSubmitValidationFailure() {
	payload := validPayload("bad@example.com")
	payload["diagnosisType"] = "lung"
	payload["captcha"] = false

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/form", payload)
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	body := testutil.UnmarshalResponse[errResponse](s.T(), rr)
	s.False(body.Success)
	s.Equal("Validation failed", body.Message)

	fields := make([]string, 0, len(body.Errors))
	for _, violation := range body.Errors {
		fields = append(fields, violation.Field)
	}
	s.Contains(fields, "diagnosisType")
	s.Contains(fields, "captcha")
}

func (s *HandlerSuite) TestSubmitDuplicateEmail() {
	s.submit("dup@example.com")

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/form", validPayload("DUP@example.com"))
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusConflict)
	body := testutil.UnmarshalResponse[errResponse](s.T(), rr)
	s.Equal("A submission with this email already exists", body.Message)
}

func (s *HandlerSuite) TestSubmitMalformedBody() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/form", nil)
	req.Body = http.NoBody
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
}

func (s *HandlerSuite) TestSubmitRejectsNonJSONContentType() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/form", validPayload("ct@example.com"))
	req.Header.Set("Content-Type", "text/plain")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusUnsupportedMediaType)
}

func (s *HandlerSuite) TestListSubmissions() {
	receipt := s.submit("list@example.com")

	req := testutil.NewRequest(s.T(), http.MethodGet, "/api/form?page=1&limit=10")
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	body := testutil.UnmarshalResponse[listResponse](s.T(), rr)
	s.True(body.Success)
	require.Len(s.T(), body.Data.Submissions, 1)
	s.Equal(receipt.ID, body.Data.Submissions[0].ID)
	s.Equal(1, body.Data.Pagination.TotalItems)
	s.False(body.Data.Cached)
}

func (s *HandlerSuite) TestListWithSearchAndFilters() {
	s.submit("searchable@example.com")

	req := testutil.NewRequest(s.T(), http.MethodGet, "/api/form?search=welder&diagnosisType=pleural")
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	body := testutil.UnmarshalResponse[listResponse](s.T(), rr)
	require.Len(s.T(), body.Data.Submissions, 1)
	s.Equal("welder", body.Data.Filters.Search)
	s.Equal(submission.DiagnosisPleural, body.Data.Filters.DiagnosisType)
}

func (s *HandlerSuite) TestListRejectsBadParams() {
	for _, path := range []string{
		"/api/form?page=abc",
		"/api/form?limit=abc",
		"/api/form?dateFrom=31-08-2026",
		"/api/form?diagnosisType=lung",
	} {
		req := testutil.NewRequest(s.T(), http.MethodGet, path)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	}
}

func (s *HandlerSuite) TestStats() {
	s.submit("stats@example.com")

	req := testutil.NewRequest(s.T(), http.MethodGet, "/api/form/stats")
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	body := testutil.UnmarshalResponse[statsResponse](s.T(), rr)
	s.True(body.Success)
	s.Equal(1, body.Data.TotalSubmissions)
	s.False(body.Data.Cached)

	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/api/form/stats"))
	body = testutil.UnmarshalResponse[statsResponse](s.T(), rr)
	s.True(body.Data.Cached, "second call within TTL serves the cached snapshot")
}

func (s *HandlerSuite) TestGetByID() {
	receipt := s.submit("detail@example.com")

	req := testutil.NewRequest(s.T(), http.MethodGet, "/api/form/1")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	body := testutil.UnmarshalResponse[detailResponse](s.T(), rr)
	s.Equal(receipt.ID, body.Data.ID)

	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/api/form/999"))
	testutil.AssertStatus(s.T(), rr, http.StatusNotFound)

	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/api/form/abc"))
	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
}
