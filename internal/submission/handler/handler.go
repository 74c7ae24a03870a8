package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"claimintake/internal/platform/middleware"
	"claimintake/internal/submission"
	"claimintake/pkg/platform/httputil"
)

// Service defines the submission operations the HTTP layer depends on.
type Service interface {
	Submit(ctx context.Context, req submission.SubmitRequest) (submission.Receipt, error)
	List(ctx context.Context, q submission.ListQuery) (submission.PagedResult, error)
	GetByID(ctx context.Context, id int64) (submission.Submission, error)
	Statistics(ctx context.Context) (submission.StatsSnapshot, error)
}

// Handler handles the claim form endpoints. It delegates to the service
// without embedding business logic so transport concerns stay isolated.
type Handler struct {
	logger  *slog.Logger
	service Service
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
	}
}

// Register mounts the form routes on the given router.
func (h *Handler) Register(r chi.Router) {
	formRouter := chi.NewRouter()
	formRouter.Use(middleware.ContentTypeJSON)
	formRouter.Post("/", h.handleSubmit)
	formRouter.Get("/", h.handleList)
	formRouter.Get("/stats", h.handleStats)
	formRouter.Get("/{id}", h.handleGetByID)

	r.Mount("/api/form", formRouter)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var req submission.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid submit request body",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteJSON(w, http.StatusBadRequest, errorResponse{
			Message: "Invalid request body",
		})
		return
	}

	receipt, err := h.service.Submit(ctx, req)
	if err != nil {
		var (
			validationErr *submission.ValidationError
			duplicateErr  *submission.DuplicateEmailError
		)
		switch {
		case errors.As(err, &validationErr):
			h.logger.WarnContext(ctx, "submission rejected",
				"request_id", requestID,
				"violations", len(validationErr.Violations),
			)
			httputil.WriteJSON(w, http.StatusBadRequest, errorResponse{
				Message: "Validation failed",
				Errors:  validationErr.Violations,
			})
		case errors.As(err, &duplicateErr):
			httputil.WriteJSON(w, http.StatusConflict, errorResponse{
				Message: "A submission with this email already exists",
			})
		default:
			h.logger.ErrorContext(ctx, "failed to create submission",
				"request_id", requestID,
				"error", err.Error(),
			)
			httputil.WriteJSON(w, http.StatusInternalServerError, errorResponse{
				Message: "Internal server error",
			})
		}
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, successResponse{
		Success: true,
		Message: "Form submitted successfully",
		Data:    receipt,
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q, err := parseListQuery(r)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, errorResponse{
			Message: err.Error(),
		})
		return
	}

	result, err := h.service.List(ctx, q)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list submissions",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteJSON(w, http.StatusInternalServerError, errorResponse{
			Message: "Internal server error",
		})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, successResponse{
		Success: true,
		Data:    result,
	})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snapshot, err := h.service.Statistics(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to compute statistics",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteJSON(w, http.StatusInternalServerError, errorResponse{
			Message: "Internal server error",
		})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, successResponse{
		Success: true,
		Data:    snapshot,
	})
}

func (h *Handler) handleGetByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, errorResponse{
			Message: "Invalid submission id",
		})
		return
	}

	sub, err := h.service.GetByID(ctx, id)
	if err != nil {
		var notFoundErr *submission.NotFoundError
		if errors.As(err, &notFoundErr) {
			httputil.WriteJSON(w, http.StatusNotFound, errorResponse{
				Message: "Submission not found",
			})
			return
		}
		h.logger.ErrorContext(ctx, "failed to fetch submission",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteJSON(w, http.StatusInternalServerError, errorResponse{
			Message: "Internal server error",
		})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, successResponse{
		Success: true,
		Data:    sub,
	})
}

func parseListQuery(r *http.Request) (submission.ListQuery, error) {
	params := r.URL.Query()

	q := submission.ListQuery{
		Search:        strings.TrimSpace(params.Get("search")),
		SortBy:        params.Get("sortBy"),
		SortOrder:     params.Get("sortOrder"),
		DiagnosisType: submission.DiagnosisType(strings.TrimSpace(params.Get("diagnosisType"))),
	}

	if raw := params.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return submission.ListQuery{}, errors.New("page must be an integer")
		}
		q.Page = page
	}
	if raw := params.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return submission.ListQuery{}, errors.New("limit must be an integer")
		}
		q.Limit = limit
	}
	if q.DiagnosisType != "" && !q.DiagnosisType.Valid() {
		return submission.ListQuery{}, errors.New("diagnosisType must be one of pleural, peritoneal, pericardial, testicular")
	}
	if raw := params.Get("dateFrom"); raw != "" {
		from, err := submission.ParseDate(raw)
		if err != nil {
			return submission.ListQuery{}, errors.New("dateFrom must be a YYYY-MM-DD date")
		}
		q.DateFrom = &from
	}
	if raw := params.Get("dateTo"); raw != "" {
		to, err := submission.ParseDate(raw)
		if err != nil {
			return submission.ListQuery{}, errors.New("dateTo must be a YYYY-MM-DD date")
		}
		q.DateTo = &to
	}
	return q, nil
}
