package submission

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// Validation limits from the form contract.
const (
	maxNameLen     = 50
	maxJobTitleLen = 100
	maxStoryLen    = 2000
	minAge         = 18
	maxAge         = 120
)

var (
	// International dialing pattern: optional leading +, no leading zero,
	// at most 16 digits.
	phonePattern = regexp.MustCompile(`^\+?[1-9][0-9]{0,15}$`)

	// Plausible address, not full RFC 5322. The mailbox is never verified
	// here; deliverability is the outreach team's problem.
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

// ParseAndValidate normalizes the raw form payload and checks every field,
// accumulating all violations rather than failing fast. On success it
// returns the submission ready for persistence (ID and CreatedAt unset).
func ParseAndValidate(req SubmitRequest, now time.Time) (Submission, *ValidationError) {
	sub := Submission{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Phone:         req.Phone,
		Email:         req.Email,
		JobTitle:      req.JobTitle,
		DiagnosisType: DiagnosisType(strings.TrimSpace(req.DiagnosisType)),
		Story:         req.Story,
		Captcha:       req.Captcha,
	}
	sub.Normalize()

	var violations []FieldViolation
	add := func(field, message string) {
		violations = append(violations, FieldViolation{Field: field, Message: message})
	}

	today := DateOf(now)

	checkName(&violations, "firstName", "First name", sub.FirstName)
	checkName(&violations, "lastName", "Last name", sub.LastName)

	switch {
	case sub.Phone == "":
		add("phone", "Phone number is required")
	case !phonePattern.MatchString(sub.Phone):
		add("phone", "Please enter a valid phone number")
	}

	switch {
	case sub.Email == "":
		add("email", "Email is required")
	case !emailPattern.MatchString(sub.Email):
		add("email", "Please enter a valid email address")
	}

	switch {
	case strings.TrimSpace(req.DateOfBirth) == "":
		add("dateOfBirth", "Date of birth is required")
	default:
		dob, err := ParseDate(strings.TrimSpace(req.DateOfBirth))
		if err != nil {
			add("dateOfBirth", "Please enter a valid date of birth")
			break
		}
		sub.DateOfBirth = dob
		if age := yearsBetween(dob, today); age < minAge || age > maxAge {
			add("dateOfBirth", "Claimant must be between 18 and 120 years old")
		}
	}

	switch {
	case sub.JobTitle == "":
		add("jobTitle", "Job title is required")
	case utf8.RuneCountInString(sub.JobTitle) > maxJobTitleLen:
		add("jobTitle", "Job title must be between 1 and 100 characters")
	}

	switch {
	case strings.TrimSpace(req.DateOfDiagnosis) == "":
		add("dateOfDiagnosis", "Date of diagnosis is required")
	default:
		diag, err := ParseDate(strings.TrimSpace(req.DateOfDiagnosis))
		if err != nil {
			add("dateOfDiagnosis", "Please enter a valid date of diagnosis")
			break
		}
		sub.DateOfDiagnosis = diag
		if diag.After(today.Time) {
			add("dateOfDiagnosis", "Date of diagnosis cannot be in the future")
		}
	}

	switch {
	case sub.DiagnosisType == "":
		add("diagnosisType", "Diagnosis type is required")
	case !sub.DiagnosisType.Valid():
		add("diagnosisType", "Please select a valid diagnosis type")
	}

	if utf8.RuneCountInString(sub.Story) > maxStoryLen {
		add("story", "Story must not exceed 2000 characters")
	}

	if !sub.Captcha {
		add("captcha", "Please verify you are a person")
	}

	if len(violations) > 0 {
		return Submission{}, &ValidationError{Violations: violations}
	}
	return sub, nil
}

// ValidateRecord re-checks the schema-level constraints on an already
// normalized submission. Stores call this before persisting so a record
// that bypasses the intake path still cannot violate the table contract.
func ValidateRecord(sub Submission) []FieldViolation {
	var violations []FieldViolation
	add := func(field, message string) {
		violations = append(violations, FieldViolation{Field: field, Message: message})
	}

	checkName(&violations, "firstName", "First name", sub.FirstName)
	checkName(&violations, "lastName", "Last name", sub.LastName)
	if sub.Phone == "" {
		add("phone", "Phone number is required")
	}
	switch {
	case sub.Email == "":
		add("email", "Email is required")
	case !emailPattern.MatchString(sub.Email):
		add("email", "Please enter a valid email address")
	}
	if sub.DateOfBirth.IsZero() {
		add("dateOfBirth", "Date of birth is required")
	}
	switch {
	case sub.JobTitle == "":
		add("jobTitle", "Job title is required")
	case utf8.RuneCountInString(sub.JobTitle) > maxJobTitleLen:
		add("jobTitle", "Job title must be between 1 and 100 characters")
	}
	if sub.DateOfDiagnosis.IsZero() {
		add("dateOfDiagnosis", "Date of diagnosis is required")
	}
	if !sub.DiagnosisType.Valid() {
		add("diagnosisType", "Please select a valid diagnosis type")
	}
	if utf8.RuneCountInString(sub.Story) > maxStoryLen {
		add("story", "Story must not exceed 2000 characters")
	}
	return violations
}

// Length limits count characters, not bytes, so multibyte names are not
// penalized for their encoding.
func checkName(violations *[]FieldViolation, field, label, value string) {
	switch {
	case value == "":
		*violations = append(*violations, FieldViolation{Field: field, Message: label + " is required"})
	case utf8.RuneCountInString(value) > maxNameLen:
		*violations = append(*violations, FieldViolation{Field: field, Message: label + " must be between 1 and 50 characters"})
	}
}

// yearsBetween computes whole years from dob to today, counting the
// birthday itself as already reached.
func yearsBetween(dob, today Date) int {
	years := today.Year() - dob.Year()
	if dob.AddDate(years, 0, 0).After(today.Time) {
		years--
	}
	return years
}
