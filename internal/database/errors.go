package database

import (
	"errors"
	"log/slog"

	"gorm.io/gorm"
)

const GenericDBMessage = "A database error occurred. Please try again."

// Humanize turns a database error into text that is safe to show a user.
// Unknown errors are logged and reported generically.
func Humanize(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return "This record already exists. Please use a different value."
	case errors.Is(err, gorm.ErrRecordNotFound):
		return "The record you're trying to access doesn't exist."
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return "Invalid reference. Please check your input."
	case errors.Is(err, gorm.ErrInvalidValueOfLength):
		return "Invalid relationship. Please check your input."
	default:
		slog.Error("database error", "err", err)
		return GenericDBMessage
	}
}
