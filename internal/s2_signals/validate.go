package s2_signals

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/wonny/momentum-lab/internal/contracts"
)

// TableWarning is a non-fatal signal table issue
type TableWarning struct {
	Date    time.Time `json:"date"`
	Symbol  string    `json:"symbol"`
	Message string    `json:"message"`
}

// ValidateTable checks the per-date ranking invariants.
// maxDepth <= 0 disables the row-count check.
func ValidateTable(table *contracts.SignalTable, maxDepth int) ([]TableWarning, error) {
	warnings := make([]TableWarning, 0)
	if table == nil {
		return warnings, nil
	}

	groups := table.ByDate()
	dates := make([]time.Time, 0, len(groups))
	for d := range groups {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	for _, d := range dates {
		rows := groups[d]

		if maxDepth > 0 && len(rows) > maxDepth {
			return warnings, &contracts.DuplicateRankError{
				Date:   d,
				Rank:   len(rows),
				Reason: fmt.Sprintf("%d rows exceed depth %d", len(rows), maxDepth),
			}
		}

		symbols := make(map[string]bool, len(rows))
		for i, row := range rows {
			if row.Rank != i+1 {
				reason := "ranks are not dense"
				if i > 0 && rows[i-1].Rank == row.Rank {
					reason = "duplicate rank"
				}
				return warnings, &contracts.DuplicateRankError{Date: d, Symbol: row.Symbol, Rank: row.Rank, Reason: reason}
			}
			if symbols[row.Symbol] {
				return warnings, &contracts.DuplicateRankError{Date: d, Symbol: row.Symbol, Rank: row.Rank, Reason: "duplicate symbol"}
			}
			symbols[row.Symbol] = true

			for _, h := range table.Horizons {
				hs, ok := row.Horizons[h]
				if !ok || math.IsNaN(hs.ZScore) {
					warnings = append(warnings, TableWarning{
						Date:    d,
						Symbol:  row.Symbol,
						Message: fmt.Sprintf("missing %dm score", int(h)),
					})
				}
			}
		}
	}

	return warnings, nil
}
