package report

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/wonny/momentum-lab/internal/contracts"
)

// SignalHeader is the persisted signal table layout
var SignalHeader = []string{
	"date", "rank", "symbol", "composite_score",
	"score_12m", "score_6m", "score_3m",
	"mom_12m", "mom_6m", "mom_3m",
	"vol_12m", "vol_6m", "vol_3m",
}

func horizonColumn(prefix string, h contracts.Horizon) string {
	return prefix + "_" + strconv.Itoa(int(h)) + "m"
}

// WriteSignals writes the table ordered by (date, rank).
// Cells of disabled horizons are left empty.
func WriteSignals(w io.Writer, t *contracts.SignalTable) error {
	sorted := &contracts.SignalTable{Horizons: t.Horizons, Rows: append([]contracts.SignalRow(nil), t.Rows...)}
	sorted.Sort()

	rows := make([][]string, 0, len(sorted.Rows))
	for _, r := range sorted.Rows {
		row := []string{
			r.Date.Format(contracts.DateLayout),
			strconv.Itoa(r.Rank),
			r.Symbol,
			formatFloat(r.CompositeScore),
		}
		scores := make([]string, 0, 9)
		for _, field := range []func(contracts.HorizonScore) float64{
			func(h contracts.HorizonScore) float64 { return h.ZScore },
			func(h contracts.HorizonScore) float64 { return h.Momentum },
			func(h contracts.HorizonScore) float64 { return h.Volatility },
		} {
			for _, h := range contracts.AllHorizons {
				hs, ok := r.Horizons[h]
				if !ok || !sorted.HasHorizon(h) {
					scores = append(scores, "")
					continue
				}
				scores = append(scores, formatFloat(field(hs)))
			}
		}
		rows = append(rows, append(row, scores...))
	}
	return writeCSV(w, SignalHeader, rows)
}

// WriteSignalsFile writes the table to path
func WriteSignalsFile(path string, t *contracts.SignalTable) error {
	return writeFile(path, func(w io.Writer) error { return WriteSignals(w, t) })
}

// ReadSignals parses a signal table. A horizon counts as enabled when any row
// carries its score. The raw score is not persisted, so HorizonScore.Score is 0.
func ReadSignals(r io.Reader) (*contracts.SignalTable, error) {
	tbl, err := readCSV(r, "date", "rank", "symbol", "composite_score")
	if err != nil {
		return nil, err
	}

	enabled := make(map[contracts.Horizon]bool)
	out := &contracts.SignalTable{Rows: make([]contracts.SignalRow, 0, len(tbl.records))}

	for i, record := range tbl.records {
		line := i + 2
		date, err := time.Parse(contracts.DateLayout, tbl.cell(record, "date"))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid date: %w", line, err)
		}
		rank, err := strconv.Atoi(tbl.cell(record, "rank"))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid rank: %w", line, err)
		}
		composite, err := tbl.float(record, "composite_score", line)
		if err != nil {
			return nil, err
		}

		row := contracts.SignalRow{
			Date:           date,
			Rank:           rank,
			Symbol:         tbl.cell(record, "symbol"),
			CompositeScore: composite,
			Horizons:       make(map[contracts.Horizon]contracts.HorizonScore),
		}
		for _, h := range contracts.AllHorizons {
			if tbl.cell(record, horizonColumn("score", h)) == "" {
				continue
			}
			var hs contracts.HorizonScore
			if hs.ZScore, err = tbl.float(record, horizonColumn("score", h), line); err != nil {
				return nil, err
			}
			if v := tbl.cell(record, horizonColumn("mom", h)); v != "" {
				if hs.Momentum, err = tbl.float(record, horizonColumn("mom", h), line); err != nil {
					return nil, err
				}
			}
			if v := tbl.cell(record, horizonColumn("vol", h)); v != "" {
				if hs.Volatility, err = tbl.float(record, horizonColumn("vol", h), line); err != nil {
					return nil, err
				}
			}
			row.Horizons[h] = hs
			enabled[h] = true
		}
		out.Rows = append(out.Rows, row)
	}

	for _, h := range contracts.AllHorizons {
		if enabled[h] {
			out.Horizons = append(out.Horizons, h)
		}
	}
	out.Sort()
	return out, nil
}

// ReadSignalsFile reads a signal table from path
func ReadSignalsFile(path string) (*contracts.SignalTable, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open signals: %w", err)
	}
	defer file.Close()

	return ReadSignals(file)
}
