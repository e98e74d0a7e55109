package s0_data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/wonny/momentum-lab/internal/contracts"
)

// LoadUniverse reads the Symbol column of a universe file.
// Duplicates and blanks are dropped; the result is sorted.
func LoadUniverse(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open universe: %w", err)
	}
	defer file.Close()

	return parseUniverse(file)
}

func parseUniverse(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read universe header: %w", err)
	}
	cols, err := columnIndex(header, "symbol")
	if err != nil {
		return nil, err
	}
	col := cols["symbol"]

	seen := make(map[string]struct{})
	symbols := make([]string, 0, 512)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if col >= len(record) {
			continue
		}
		s := strings.TrimSpace(record[col])
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		symbols = append(symbols, s)
	}

	sort.Strings(symbols)
	return symbols, nil
}

// SampleUniverse draws size symbols with a seeded shuffle. The same seed and
// input always yield the same sorted sample; size <= 0 or >= len returns all.
func SampleUniverse(symbols []string, size int, seed int64) []string {
	all := append([]string(nil), symbols...)
	sort.Strings(all)
	if size <= 0 || size >= len(all) {
		return all
	}

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })

	sample := all[:size]
	sort.Strings(sample)
	return sample
}

// LoadBenchmark reads a date,close file (close may be named after the index).
// The first non-date numeric column is used.
func LoadBenchmark(path string) (*contracts.Series, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open benchmark: %w", err)
	}
	defer file.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return parseBenchmark(file, name)
}

func parseBenchmark(r io.Reader, name string) (*contracts.Series, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read benchmark header: %w", err)
	}
	cols, err := columnIndex(header, "date")
	if err != nil {
		return nil, err
	}

	valueCol := -1
	if c, ok := cols["close"]; ok {
		valueCol = c
	} else {
		for i, h := range header {
			if i != cols["date"] && strings.TrimSpace(h) != "" {
				valueCol = i
				break
			}
		}
	}
	if valueCol < 0 {
		return nil, fmt.Errorf("benchmark has no value column")
	}

	byDate := make(map[string]float64)
	series := &contracts.Series{Name: strings.ToUpper(name)}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if valueCol >= len(record) || cols["date"] >= len(record) || strings.TrimSpace(record[valueCol]) == "" {
			continue
		}
		date, err := ParseDate(record[cols["date"]])
		if err != nil {
			return nil, err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(record[valueCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("benchmark %s: %w", date.Format(contracts.DateLayout), err)
		}
		key := date.Format(contracts.DateLayout)
		if _, dup := byDate[key]; dup {
			return nil, fmt.Errorf("benchmark: duplicate date %s", key)
		}
		byDate[key] = v
		series.Dates = append(series.Dates, date)
		series.Values = append(series.Values, v)
	}

	idx := make([]int, len(series.Dates))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return series.Dates[idx[a]].Before(series.Dates[idx[b]]) })
	sorted := &contracts.Series{Name: series.Name}
	for _, i := range idx {
		sorted.Dates = append(sorted.Dates, series.Dates[i])
		sorted.Values = append(sorted.Values, series.Values[i])
	}
	return sorted, nil
}
