package ledger

import (
	"sort"

	"creditledger/internal/core"
)

// SortCredits orders credits by date descending, ties broken by id descending.
func SortCredits(credits []core.Credit) {
	sort.SliceStable(credits, func(i, j int) bool {
		if credits[i].Date != credits[j].Date {
			return credits[i].Date > credits[j].Date
		}
		return credits[i].ID > credits[j].ID
	})
}
