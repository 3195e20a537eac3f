package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MonthSummary is a compact overview of one calendar month of credits.
type MonthSummary struct {
	Year      int   `json:"year"`
	Month     int   `json:"month"`
	Total     Money `json:"total"`
	Count     int   `json:"count"`
	Average   Money `json:"average"`
	ItemCount int   `json:"itemCount"`
}

// Comparison sets the ledger total of a month against the total the store reports.
type Comparison struct {
	MonthSummary
	StoreTotal Money `json:"storeTotal"`
	// Difference is ledger total minus store total; positive means the store owes more.
	Difference Money `json:"difference"`
	Reconciled bool  `json:"reconciled"`
}

// Summarize aggregates the credits of a month. The average is rounded half-up
// to whole cents.
func Summarize(q MonthQuery, credits []Credit) MonthSummary {
	s := MonthSummary{Year: q.Year, Month: q.Month, Count: len(credits)}
	total := decimal.Zero
	for _, c := range credits {
		total = total.Add(c.Amount.Decimal())
		s.ItemCount += CountItems(c.Description)
	}
	s.Total = moneyOf(total)
	if s.Count > 0 {
		s.Average = moneyOf(total.Div(decimal.NewFromInt(int64(s.Count))).Round(2))
	}
	return s
}

func moneyOf(d decimal.Decimal) Money {
	return Money{Cents: d.Shift(2).IntPart()}
}

// Compare builds a Comparison from a summary and the store-reported total.
func Compare(s MonthSummary, storeTotal Money) Comparison {
	diff := s.Total.Sub(storeTotal)
	return Comparison{
		MonthSummary: s,
		StoreTotal:   storeTotal,
		Difference:   diff,
		Reconciled:   diff.Cents == 0,
	}
}

// CountItems counts the comma-separated, non-empty items of a description.
// "Milk, eggs, , bread" has three items.
func CountItems(description string) int {
	n := 0
	for _, item := range strings.Split(description, ",") {
		if strings.TrimSpace(item) != "" {
			n++
		}
	}
	return n
}
