package s0_data

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/wonny/momentum-lab/internal/contracts"
	"github.com/wonny/momentum-lab/pkg/logger"
)

// BarWriter persists one symbol's bars
type BarWriter interface {
	SaveBars(ctx context.Context, symbol string, bars []contracts.DatedBar) error
}

// ImportReport summarizes a CSV → store copy
type ImportReport struct {
	Symbols  int      `json:"symbols"`
	Bars     int      `json:"bars"`
	Missing  []string `json:"missing"`
	Empty    []string `json:"empty"`
	Failed   []string `json:"failed"`
	LastErr  string   `json:"last_error,omitempty"`
	Imported []string `json:"imported"`
}

// ImportCSV copies the given symbols (every CSV symbol when nil) from src into dst.
// A failing symbol is recorded and the copy continues; context cancellation stops it.
func ImportCSV(ctx context.Context, src *CSVStore, dst BarWriter, symbols []string, log *logger.Logger) (*ImportReport, error) {
	if symbols == nil {
		all, err := src.Symbols(ctx)
		if err != nil {
			return nil, err
		}
		symbols = all
	}

	log = log.Component("csv_import")
	report := &ImportReport{
		Missing:  make([]string, 0),
		Empty:    make([]string, 0),
		Failed:   make([]string, 0),
		Imported: make([]string, 0, len(symbols)),
	}

	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		bars, err := ReadBars(src.Path(symbol))
		switch {
		case errors.Is(err, os.ErrNotExist):
			report.Missing = append(report.Missing, symbol)
			continue
		case err != nil:
			report.Failed = append(report.Failed, symbol)
			report.LastErr = fmt.Sprintf("%s: %v", symbol, err)
			log.WithError(err).WithField("symbol", symbol).Warn("Failed to read price file")
			continue
		case len(bars) == 0:
			report.Empty = append(report.Empty, symbol)
			continue
		}

		if err := dst.SaveBars(ctx, symbol, bars); err != nil {
			report.Failed = append(report.Failed, symbol)
			report.LastErr = fmt.Sprintf("%s: %v", symbol, err)
			log.WithError(err).WithField("symbol", symbol).Warn("Failed to save prices")
			continue
		}
		report.Imported = append(report.Imported, symbol)
		report.Symbols++
		report.Bars += len(bars)
	}

	log.WithFields(map[string]interface{}{
		"symbols": report.Symbols,
		"bars":    report.Bars,
		"missing": len(report.Missing),
		"failed":  len(report.Failed),
	}).Info("CSV import finished")
	return report, nil
}
