package handler

import "claimintake/internal/submission"

// Envelope shapes match the public API contract: every response carries
// success, 4xx failures carry a human-readable message, and validation
// failures list per-field errors.

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type errorResponse struct {
	Success bool                        `json:"success"`
	Message string                      `json:"message"`
	Errors  []submission.FieldViolation `json:"errors,omitempty"`
}
