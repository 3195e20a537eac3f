package core

import "testing"

func TestSummarize(t *testing.T) {
	q := MonthQuery{Year: 2025, Month: 6}
	credits := []Credit{
		{Description: "Milk, eggs", Amount: Money{Cents: 1000}},
		{Description: "Bread, , butter ,", Amount: Money{Cents: 501}},
		{Description: "Cheese", Amount: Money{Cents: 250}},
	}
	s := Summarize(q, credits)
	if s.Total.Cents != 1751 || s.Count != 3 || s.ItemCount != 5 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	// 1751 / 3 = 583.67 -> 584
	if s.Average.Cents != 584 {
		t.Fatalf("average = %d, want 584", s.Average.Cents)
	}

	empty := Summarize(q, nil)
	if empty.Total.Cents != 0 || empty.Average.Cents != 0 || empty.Count != 0 {
		t.Fatalf("unexpected empty summary: %+v", empty)
	}
}

func TestCompare(t *testing.T) {
	s := MonthSummary{Total: Money{Cents: 4500}}
	c := Compare(s, Money{Cents: 4850})
	if c.Difference.Cents != -350 || c.Reconciled {
		t.Fatalf("unexpected comparison: %+v", c)
	}
	if !Compare(s, Money{Cents: 4500}).Reconciled {
		t.Fatalf("equal totals should reconcile")
	}
}

func TestSummarizeAtAmountBound(t *testing.T) {
	q := MonthQuery{Year: 2025, Month: 6}
	top, err := ParseMoney("9999999999.99")
	if err != nil {
		t.Fatalf("largest amount rejected: %v", err)
	}

	tests := []struct {
		copies  int
		total   string
		average string
	}{
		{copies: 1, total: "9999999999.99", average: "9999999999.99"},
		{copies: 2, total: "19999999999.98", average: "9999999999.99"},
		{copies: 1000, total: "9999999999990.00", average: "9999999999.99"},
	}
	for _, tt := range tests {
		credits := make([]Credit, tt.copies)
		for i := range credits {
			credits[i] = Credit{Description: "TV", Amount: top}
		}
		s := Summarize(q, credits)
		if s.Total.String() != tt.total || s.Average.String() != tt.average {
			t.Errorf("%d credits: total=%s average=%s, want %s and %s",
				tt.copies, s.Total, s.Average, tt.total, tt.average)
		}
	}
}

func TestSummarizeAverageRoundsHalfUp(t *testing.T) {
	q := MonthQuery{Year: 2025, Month: 6}
	// 5 cents over 2 credits is 2.5 cents.
	s := Summarize(q, []Credit{
		{Description: "a", Amount: Money{Cents: 2}},
		{Description: "b", Amount: Money{Cents: 3}},
	})
	if s.Average.Cents != 3 {
		t.Fatalf("average = %d, want 3", s.Average.Cents)
	}
}
