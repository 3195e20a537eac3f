package core

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// DateLayout is the only accepted shape for a credit date.
const DateLayout = "2006-01-02"

const MaxDescriptionLength = 200

type (
	// Credit is a single store-credit ledger entry.
	Credit struct {
		ID          int64     `json:"id"`
		Date        string    `json:"date"`
		Description string    `json:"description"`
		Amount      Money     `json:"amount"`
		CreatedAt   time.Time `json:"createdAt"`
	}

	// CreditInput is a validated create request.
	CreditInput struct {
		Date        string
		Description string
		Amount      Money
	}

	// CreditPatch is a validated partial update. Nil fields are left untouched.
	CreditPatch struct {
		Date        *string
		Description *string
		Amount      *Money
	}
)

// Apply returns c with the patch fields replaced. ID and CreatedAt never change.
func (p CreditPatch) Apply(c Credit) Credit {
	if p.Date != nil {
		c.Date = *p.Date
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.Amount != nil {
		c.Amount = *p.Amount
	}
	return c
}

// IsEmpty reports whether the patch carries no field at all.
func (p CreditPatch) IsEmpty() bool {
	return p.Date == nil && p.Description == nil && p.Amount == nil
}

// MonthKey selects which credit field partitions month-scoped queries.
type MonthKey string

const (
	// MonthByDate partitions on the user-entered date string.
	MonthByDate MonthKey = "date"
	// MonthByCreatedAt partitions on the insertion timestamp (UTC).
	MonthByCreatedAt MonthKey = "created_at"
)

func (k MonthKey) IsValid() bool {
	switch k {
	case MonthByDate, MonthByCreatedAt:
		return true
	default:
		return false
	}
}

func (k MonthKey) String() string {
	return string(k)
}

// MonthQuery identifies one calendar month.
type MonthQuery struct {
	Year  int
	Month int
	Key   MonthKey
}

func (q MonthQuery) Validate() error {
	if q.Month < 1 || q.Month > 12 {
		return fmt.Errorf("%w: month must be between 1 and 12", ErrInvalidArgument)
	}
	if q.Year < 1 || q.Year > 9999 {
		return fmt.Errorf("%w: year must be between 1 and 9999", ErrInvalidArgument)
	}
	if q.Key != "" && !q.Key.IsValid() {
		return fmt.Errorf("%w: unknown month key %q", ErrInvalidArgument, q.Key)
	}
	return nil
}

// Prefix returns the "YYYY-MM" prefix shared by every date in the month.
func (q MonthQuery) Prefix() string {
	return fmt.Sprintf("%04d-%02d", q.Year, q.Month)
}

// PartitionKey returns the configured key, defaulting to MonthByDate.
func (q MonthQuery) PartitionKey() MonthKey {
	if q.Key == "" {
		return MonthByDate
	}
	return q.Key
}

// Contains reports whether the credit falls within the month under the query's key.
func (q MonthQuery) Contains(c Credit) bool {
	prefix := q.Prefix()
	if q.PartitionKey() == MonthByCreatedAt {
		return c.CreatedAt.UTC().Format("2006-01") == prefix
	}
	return len(c.Date) >= len(prefix)+1 && c.Date[:len(prefix)] == prefix && c.Date[len(prefix)] == '-'
}

// CacheKey is a stable string identifying the query.
func (q MonthQuery) CacheKey() string {
	return q.Prefix() + ":" + string(q.PartitionKey())
}

// MonthOf returns the month containing a YYYY-MM-DD date.
func MonthOf(date string, key MonthKey) (MonthQuery, bool) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return MonthQuery{}, false
	}
	return MonthQuery{Year: t.Year(), Month: int(t.Month()), Key: key}, true
}

// ParseID parses a path or query id. Non-numeric and non-positive ids are invalid arguments.
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid credit ID", ErrInvalidArgument)
	}
	return id, nil
}

var (
	ErrNotFound        = errors.New("credit not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnauthorized    = errors.New("not authenticated")
)
