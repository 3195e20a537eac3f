// Package sheets mirrors ledger history into a spreadsheet. It sits outside the
// request path: the sync worker feeds it from credit events.
package sheets

import (
	"context"
	"strconv"
	"time"
)

// HistoryHeader is the first row of every history sheet.
var HistoryHeader = []any{"Timestamp", "Event", "ID", "Date", "Description", "Amount"}

// HistoryRow is one line of the CRUD history. Date, Description and Amount are
// empty for deletions.
type HistoryRow struct {
	Timestamp   time.Time
	Event       string
	ID          int64
	Date        string
	Description string
	Amount      string
}

// Values renders the row in HistoryHeader order.
func (r HistoryRow) Values() []any {
	return []any{
		r.Timestamp.UTC().Format(time.RFC3339),
		r.Event,
		strconv.FormatInt(r.ID, 10),
		r.Date,
		r.Description,
		r.Amount,
	}
}

type HistoryWriter interface {
	AppendHistory(ctx context.Context, row HistoryRow) (rowRef string, err error)
}
