package submission

import "fmt"

// Domain error taxonomy. Storage sentinels never cross the service
// boundary; they are translated into one of these types so the HTTP
// layer can map them without knowing which store is in use.

// FieldViolation names one validation rule a field broke.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every violated rule at once so a claimant can
// fix the whole form in one pass instead of discovering errors serially.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %d field(s) invalid", len(e.Violations))
}

// DuplicateEmailError rejects a second submission for an email that
// already exists, regardless of how long ago the first one was made.
type DuplicateEmailError struct {
	Email string
}

func (e *DuplicateEmailError) Error() string {
	return fmt.Sprintf("submission with email %s already exists", e.Email)
}

// NotFoundError is a single-record lookup miss.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("submission %d not found", e.ID)
}

// AggregationError marks a statistics snapshot that could only be
// partially computed. The service degrades instead of failing the call.
type AggregationError struct {
	Err error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("statistics aggregation incomplete: %v", e.Err)
}

func (e *AggregationError) Unwrap() error {
	return e.Err
}
