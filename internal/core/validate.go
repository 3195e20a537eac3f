package core

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// FieldError describes one failing input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every failing field of a request, not just the first.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation error"
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "validation error: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: msg})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// ValidateInput checks a raw create payload and returns the normalized input.
// All three fields are required.
func ValidateInput(raw map[string]any) (CreditInput, error) {
	verr := &ValidationError{}
	var in CreditInput

	if date, ok := validateDate(raw, verr, true); ok {
		in.Date = date
	}
	if desc, ok := validateDescription(raw, verr, true); ok {
		in.Description = desc
	}
	if amount, ok := validateAmount(raw, verr, true); ok {
		in.Amount = amount
	}

	if err := verr.orNil(); err != nil {
		return CreditInput{}, err
	}
	return in, nil
}

// ValidatePatch checks a raw partial-update payload. Absent fields stay nil;
// present ones follow the same rules as ValidateInput.
func ValidatePatch(raw map[string]any) (CreditPatch, error) {
	verr := &ValidationError{}
	var p CreditPatch

	if date, ok := validateDate(raw, verr, false); ok {
		p.Date = &date
	}
	if desc, ok := validateDescription(raw, verr, false); ok {
		p.Description = &desc
	}
	if amount, ok := validateAmount(raw, verr, false); ok {
		p.Amount = &amount
	}

	if err := verr.orNil(); err != nil {
		return CreditPatch{}, err
	}
	return p, nil
}

func validateDate(raw map[string]any, verr *ValidationError, required bool) (string, bool) {
	v, present := raw["date"]
	if !present {
		if required {
			verr.add("date", "Date is required")
		}
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		verr.add("date", "Date must be a string")
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		verr.add("date", "Date is required")
		return "", false
	}
	if _, err := time.Parse(DateLayout, s); err != nil {
		verr.add("date", "Date must be formatted as YYYY-MM-DD")
		return "", false
	}
	return s, true
}

func validateDescription(raw map[string]any, verr *ValidationError, required bool) (string, bool) {
	v, present := raw["description"]
	if !present {
		if required {
			verr.add("description", "Description is required")
		}
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		verr.add("description", "Description must be a string")
		return "", false
	}
	s = SanitizeText(s)
	if s == "" {
		verr.add("description", "Description is required")
		return "", false
	}
	if utf8.RuneCountInString(s) > MaxDescriptionLength {
		verr.add("description", "Description too long (max 200 characters)")
		return "", false
	}
	return s, true
}

func validateAmount(raw map[string]any, verr *ValidationError, required bool) (Money, bool) {
	v, present := raw["amount"]
	if !present {
		if required {
			verr.add("amount", "Amount is required")
		}
		return Money{}, false
	}
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case json.Number:
		s = val.String()
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	default:
		verr.add("amount", "Amount must be a string or number")
		return Money{}, false
	}
	if strings.TrimSpace(s) == "" {
		verr.add("amount", "Amount is required")
		return Money{}, false
	}
	m, err := ParseMoney(s)
	if err != nil {
		verr.add("amount", "Amount must be a positive number")
		return Money{}, false
	}
	return m, true
}

// SanitizeText trims whitespace and drops control characters other than tab and newlines.
func SanitizeText(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
