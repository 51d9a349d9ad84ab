package validation

import (
	"errors"
	"testing"
	"time"
)

func TestValidateStringNotEmpty(t *testing.T) {
	if err := ValidateStringNotEmpty("Wallet", "name"); err != nil {
		t.Errorf("expected nil for non-empty string, got %v", err)
	}
	for _, s := range []string{"", "   ", "\t\n"} {
		if err := ValidateStringNotEmpty(s, "name"); !errors.Is(err, ErrValidationFailed) {
			t.Errorf("ValidateStringNotEmpty(%q) expected ErrValidationFailed, got %v", s, err)
		}
	}
}

func TestValidateAmountPositive(t *testing.T) {
	tests := []struct {
		amount float64
		valid  bool
	}{
		{100, true},
		{0.01, true},
		{0, false},
		{-1, false},
	}
	for _, tt := range tests {
		err := ValidateAmountPositive(tt.amount, "amount")
		if tt.valid && err != nil {
			t.Errorf("ValidateAmountPositive(%v) = %v, expected nil", tt.amount, err)
		}
		if !tt.valid && !errors.Is(err, ErrValidationFailed) {
			t.Errorf("ValidateAmountPositive(%v) expected ErrValidationFailed, got %v", tt.amount, err)
		}
	}
}

func TestValidateCurrencyCode(t *testing.T) {
	for _, code := range []string{"UZS", "USD", "EUR", "GBP", "TRY", "SAR", "AED", "USDT", "RUB"} {
		if err := ValidateCurrencyCode(code); err != nil {
			t.Errorf("ValidateCurrencyCode(%q) = %v, expected nil", code, err)
		}
	}
	for _, code := range []string{"", "  ", "usd", "XYZ", "US"} {
		if err := ValidateCurrencyCode(code); !errors.Is(err, ErrValidationFailed) {
			t.Errorf("ValidateCurrencyCode(%q) expected ErrValidationFailed, got %v", code, err)
		}
	}
}

func TestValidateDateRange(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := ValidateDateRange(start, start.AddDate(0, 1, 0), "period"); err != nil {
		t.Errorf("ordered range rejected: %v", err)
	}
	if err := ValidateDateRange(start, start, "period"); err != nil {
		t.Errorf("zero-length range rejected: %v", err)
	}
	if err := ValidateDateRange(start, start.AddDate(0, 0, -1), "period"); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("inverted range expected ErrValidationFailed, got %v", err)
	}
}

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		expected string
	}{
		{"plain text untouched", "Lunch at cafe", "Lunch at cafe"},
		{"html stripped", "<script>alert(1)</script>lunch", "lunch"},
		{"tags removed keeping text", "<b>groceries</b>", "groceries"},
		{"trimmed", "  note  ", "note"},
		{"control chars dropped", "a\x00b\x07c", "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeText(tt.in); got != tt.expected {
				t.Errorf("SanitizeText(%q) = %q, expected %q", tt.in, got, tt.expected)
			}
		})
	}
}
