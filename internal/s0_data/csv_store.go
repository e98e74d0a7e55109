package s0_data

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/momentum-lab/internal/contracts"
	"github.com/wonny/momentum-lab/pkg/logger"
)

// LoadReport lists what a panel load could not satisfy
type LoadReport struct {
	Requested int      `json:"requested"`
	Loaded    int      `json:"loaded"`
	Missing   []string `json:"missing"`
	Empty     []string `json:"empty"`
}

// CSVStore reads one OHLC file per symbol from a directory
// ⭐ SSOT: CSV 가격 데이터 로딩은 여기서만
type CSVStore struct {
	dir       string
	frequency string
	logger    *logger.Logger
}

// NewCSVStore creates a store over <dir>/<SYMBOL>_<frequency>.csv files
func NewCSVStore(dir, frequency string, log *logger.Logger) *CSVStore {
	if frequency == "" {
		frequency = "day"
	}
	return &CSVStore{dir: dir, frequency: frequency, logger: log.Component("csv_store")}
}

func (s *CSVStore) suffix() string {
	return "_" + s.frequency + ".csv"
}

// Path returns the file path of a symbol
func (s *CSVStore) Path(symbol string) string {
	return filepath.Join(s.dir, symbol+s.suffix())
}

// Symbols lists every symbol with a file for the store's frequency
func (s *CSVStore) Symbols(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list price directory: %w", err)
	}

	symbols := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), s.suffix()) {
			continue
		}
		symbols = append(symbols, strings.TrimSuffix(e.Name(), s.suffix()))
	}
	sort.Strings(symbols)
	return symbols, nil
}

// LoadPanel implements contracts.PriceStore
func (s *CSVStore) LoadPanel(ctx context.Context, symbols []string) (*contracts.PricePanel, error) {
	panel, report, err := s.LoadPanelWithReport(ctx, symbols)
	if err != nil {
		return nil, err
	}
	if len(report.Missing) > 0 || len(report.Empty) > 0 {
		s.logger.WithFields(map[string]interface{}{
			"requested": report.Requested,
			"loaded":    report.Loaded,
			"missing":   len(report.Missing),
			"empty":     len(report.Empty),
		}).Warn("Some symbols have no price data")
	}
	return panel, nil
}

// LoadPanelWithReport loads the panel and reports missing or empty files.
// A nil symbol list loads every available symbol.
func (s *CSVStore) LoadPanelWithReport(ctx context.Context, symbols []string) (*contracts.PricePanel, *LoadReport, error) {
	if symbols == nil {
		all, err := s.Symbols(ctx)
		if err != nil {
			return nil, nil, err
		}
		symbols = all
	}

	report := &LoadReport{Requested: len(symbols), Missing: make([]string, 0), Empty: make([]string, 0)}
	series := make(map[string][]contracts.DatedBar, len(symbols))

	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		bars, err := ReadBars(s.Path(symbol))
		if errors.Is(err, os.ErrNotExist) {
			report.Missing = append(report.Missing, symbol)
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("symbol %s: %w", symbol, err)
		}
		if len(bars) == 0 {
			report.Empty = append(report.Empty, symbol)
			continue
		}
		series[symbol] = bars
	}
	report.Loaded = len(series)

	if len(series) == 0 {
		return nil, report, contracts.ErrEmptyPanel
	}

	panel, err := contracts.NewPricePanel(series)
	if err != nil {
		return nil, report, err
	}

	s.logger.WithFields(map[string]interface{}{
		"symbols": report.Loaded,
		"dates":   panel.Len(),
	}).Debug("Price panel loaded")

	return panel, report, nil
}

// ReadBars reads a date,open,high,low,close[,volume] file sorted by date.
// Column order follows the header; extra columns are ignored.
func ReadBars(path string) ([]contracts.DatedBar, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return parseBars(file)
}

func parseBars(r io.Reader) ([]contracts.DatedBar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols, err := columnIndex(header, "date", "open", "high", "low", "close")
	if err != nil {
		return nil, err
	}
	width := 0
	for _, name := range []string{"date", "open", "high", "low", "close"} {
		if cols[name] >= width {
			width = cols[name] + 1
		}
	}

	bars := make([]contracts.DatedBar, 0, 256)
	seen := make(map[time.Time]struct{})
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(record) < width {
			return nil, fmt.Errorf("line %d: expected at least %d fields, got %d", line, width, len(record))
		}

		date, err := ParseDate(record[cols["date"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if _, dup := seen[date]; dup {
			return nil, fmt.Errorf("line %d: duplicate date %s", line, date.Format(contracts.DateLayout))
		}
		seen[date] = struct{}{}

		var vals [4]float64
		for i, name := range []string{"open", "high", "low", "close"} {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[cols[name]]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid %s: %w", line, name, err)
			}
			vals[i] = v
		}

		bars = append(bars, contracts.DatedBar{
			Date: date,
			Bar:  contracts.Bar{Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3]},
		})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

// columnIndex maps required lower-case column names to their positions
func columnIndex(header []string, required ...string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	return cols, nil
}

// ParseDate parses YYYY-MM-DD, tolerating a time suffix
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(contracts.DateLayout) {
		s = s[:len(contracts.DateLayout)]
	}
	d, err := time.Parse(contracts.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return d, nil
}

// WriteBars writes bars in the layout ReadBars accepts
func WriteBars(path string, bars []contracts.DatedBar) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"date", "open", "high", "low", "close"}); err != nil {
		return err
	}
	for _, b := range bars {
		row := []string{
			b.Date.Format(contracts.DateLayout),
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
