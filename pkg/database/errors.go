package database

import (
	"strings"

	"github.com/lib/pq"
	"github.com/pillbox/pillbox-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error or has no specific mapping.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return errors.Conflict(formatConstraintMessage(pqErr))

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	// Invalid text representation for TIME / INTEGER input (22007, 22P02)
	case "22007", "22P02":
		return errors.BadRequest("invalid value format")

	default:
		return nil
	}
}

// mapCheckConstraint maps CHECK constraint names on the medications table
// to field-level validation messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "total_pills"):
		return errors.Validation(map[string]string{
			"total": "must not be negative",
		})

	case strings.Contains(constraint, "pills_per_intake"):
		return errors.Validation(map[string]string{
			"per_intake": "must be at least 1",
		})

	case strings.Contains(constraint, "doses_per_day"), strings.Contains(constraint, "schedule"):
		return errors.Validation(map[string]string{
			"times_per_day": "second dose time must be set only for twice daily schedules",
		})

	case strings.Contains(constraint, "box_id"):
		return errors.Validation(map[string]string{
			"box_id": "must be a positive box number",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// formatConstraintMessage creates a user-friendly message for unique constraint violations.
func formatConstraintMessage(pqErr *pq.Error) string {
	if strings.Contains(pqErr.Constraint, "pkey") || strings.Contains(pqErr.Constraint, "box_id") {
		return "box is already occupied"
	}
	return "a record with these values already exists"
}
