package validation

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/username/hamyon/backend/src/models"
)

// ErrValidationFailed is the sentinel wrapped by every validation error.
var ErrValidationFailed = fmt.Errorf("validation failed")

const (
	DefaultMaxStringLength = 255
	MaxNoteLength          = 1024
	MaxCategoryIDLength    = 100
)

// ValidateStringNotEmpty checks if a string is not empty after trimming.
func ValidateStringNotEmpty(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateStringMaxLength checks if a string's UTF-8 character count is within max bounds.
func ValidateStringMaxLength(s string, maxLength int, fieldName string) error {
	if utf8.RuneCountInString(s) > maxLength {
		return fmt.Errorf("%w: %s exceeds maximum length of %d characters", ErrValidationFailed, fieldName, maxLength)
	}
	return nil
}

// ValidateAmountPositive rejects zero and negative monetary amounts.
func ValidateAmountPositive(amount float64, fieldName string) error {
	if amount <= 0 {
		return fmt.Errorf("%w: %s must be positive, got %v", ErrValidationFailed, fieldName, amount)
	}
	return nil
}

// ValidateCurrencyCode rejects any code outside the closed supported set.
// This is the command-boundary check; inside the ledger algorithms FX
// resolution is total and never fails on a currency code.
func ValidateCurrencyCode(code string) error {
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("%w: currency code cannot be empty", ErrValidationFailed)
	}
	if !models.Currency(code).IsValid() {
		return fmt.Errorf("%w: unsupported currency code %q", ErrValidationFailed, code)
	}
	return nil
}

// ValidateDateRange checks that a period window is ordered.
func ValidateDateRange(start, end time.Time, fieldName string) error {
	if end.Before(start) {
		return fmt.Errorf("%w: %s end date is before its start date", ErrValidationFailed, fieldName)
	}
	return nil
}
