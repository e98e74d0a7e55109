package s0_data

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/momentum-lab/internal/contracts"
	"github.com/wonny/momentum-lab/pkg/logger"
)

type memoryWriter struct {
	saved map[string][]contracts.DatedBar
	fail  string
}

func (m *memoryWriter) SaveBars(ctx context.Context, symbol string, bars []contracts.DatedBar) error {
	if symbol == m.fail {
		return errors.New("connection reset")
	}
	if m.saved == nil {
		m.saved = make(map[string][]contracts.DatedBar)
	}
	m.saved[symbol] = bars
	return nil
}

func TestImportCSV(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "INFY_day.csv"),
		"date,open,high,low,close\n2024-01-02,9,10,8,9.5\n2024-01-03,10,11,9,10.5\n")
	writeFile(t, filepath.Join(dir, "TCS_day.csv"),
		"date,open,high,low,close\n2024-01-02,19,21,18,20\n")
	writeFile(t, filepath.Join(dir, "WIPRO_day.csv"),
		"date,open,high,low,close\n2024-01-02,5,6,4,5.5\n")
	writeFile(t, filepath.Join(dir, "EMPTY_day.csv"), "date,open,high,low,close\n")
	writeFile(t, filepath.Join(dir, "BAD_day.csv"), "date,close\n2024-01-02,1\n")

	src := NewCSVStore(dir, "day", logger.Nop())
	dst := &memoryWriter{fail: "WIPRO"}

	report, err := ImportCSV(context.Background(), src, dst, nil, logger.Nop())
	require.NoError(t, err)

	assert.Equal(t, []string{"INFY", "TCS"}, report.Imported)
	assert.Equal(t, 2, report.Symbols)
	assert.Equal(t, 3, report.Bars)
	assert.Equal(t, []string{"EMPTY"}, report.Empty)
	assert.ElementsMatch(t, []string{"BAD", "WIPRO"}, report.Failed)
	assert.Empty(t, report.Missing)

	require.Len(t, dst.saved["INFY"], 2)
	assert.Equal(t, 10.5, dst.saved["INFY"][1].Close)

	report, err = ImportCSV(context.Background(), src, &memoryWriter{}, []string{"TCS", "GONE"}, logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"GONE"}, report.Missing)
	assert.Equal(t, []string{"TCS"}, report.Imported)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ImportCSV(ctx, src, &memoryWriter{}, []string{"TCS"}, logger.Nop())
	assert.ErrorIs(t, err, context.Canceled)
}
