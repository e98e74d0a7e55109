package commands

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/wonny/momentum-lab/internal/audit"
	"github.com/wonny/momentum-lab/internal/experiment"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	boxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 2)

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	headerCellStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)
)

// PrintHeader prints a command title
func PrintHeader(title string) {
	fmt.Println()
	fmt.Println(titleStyle.Render(title))
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Println(successStyle.Render("✅ " + message))
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Println(warningStyle.Render("⚠️  " + message))
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Println(errorStyle.Render("❌ " + message))
}

// PrintKeyValues prints aligned key-value pairs inside a box
func PrintKeyValues(pairs [][2]string) {
	width := 0
	for _, p := range pairs {
		if len(p[0]) > width {
			width = len(p[0])
		}
	}

	lines := make([]string, 0, len(pairs))
	for _, p := range pairs {
		lines = append(lines, keyStyle.Render(fmt.Sprintf("%-*s", width, p[0]))+" : "+p[1])
	}
	fmt.Println(boxStyle.Render(strings.Join(lines, "\n")))
}

// PrintTable prints a column-aligned table
func PrintTable(columns []string, rows [][]string) {
	widths := make([]int, len(columns))
	for i, col := range columns {
		widths[i] = lipgloss.Width(col)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); i < len(widths) && w > widths[i] {
				widths[i] = w
			}
		}
	}

	cells := make([]string, len(columns))
	for i, col := range columns {
		cells[i] = headerCellStyle.Render(pad(col, widths[i]))
	}
	fmt.Println(strings.Join(cells, "  "))

	total := 0
	for _, w := range widths {
		total += w
	}
	fmt.Println(strings.Repeat("─", total+2*(len(widths)-1)))

	for _, row := range rows {
		for i := range cells {
			cells[i] = ""
			if i < len(row) {
				cells[i] = pad(row[i], widths[i])
			}
		}
		fmt.Println(strings.Join(cells, "  "))
	}
}

// PrintMetrics prints the headline metrics of a backtest
func PrintMetrics(r *audit.Report) {
	pairs := [][2]string{
		{"Period", fmt.Sprintf("%s ~ %s (%.2fy)", r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02"), r.Years)},
		{"Final Equity", fmt.Sprintf("%.2f", r.FinalEquity)},
		{"Total Return", pct(r.TotalReturn)},
		{"CAGR", pct(r.CAGR)},
		{"Volatility", pct(r.Volatility)},
		{"Sharpe", num(r.Sharpe)},
		{"Sortino", num(r.Sortino)},
		{"Max Drawdown", fmt.Sprintf("%s (%d days)", pct(r.Drawdown.Depth), r.Drawdown.DurationDays)},
		{"Turnover", fmt.Sprintf("%.2fx/yr", r.Turnover)},
		{"Cost Drag", pct(r.CostDrag)},
		{"Avg Holding", fmt.Sprintf("%.1f days", r.AvgHoldingDays)},
		{"Hit Rate", pct(r.HitRate)},
		{"Trades", fmt.Sprintf("%d (%.1f/week)", r.Frequency.Total, r.Frequency.PerWeek)},
	}
	if r.Benchmark != nil {
		pairs = append(pairs, [2]string{"Excess CAGR", pct(r.Benchmark.ExcessCAGR)})
	}
	PrintKeyValues(pairs)
}

// PrintSweepRows prints ranked sweep rows
func PrintSweepRows(rows []experiment.Row) {
	columns := []string{"#", "Trial", "Lookbacks", "TopN", "Buffer", "PnL", "Scenario", "CAGR", "MaxDD", "Sharpe", "Trades"}
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			fmt.Sprintf("%d", r.RankCAGR),
			r.TrialID,
			r.Lookbacks,
			fmt.Sprintf("%d", r.TopN),
			fmt.Sprintf("%d", r.ExitBuffer),
			r.PnLHold,
			r.Scenario,
			pct(r.CAGR),
			pct(r.MaxDrawdown),
			num(r.Sharpe),
			fmt.Sprintf("%d", r.Trades),
		})
	}
	PrintTable(columns, out)
}

func pad(s string, width int) string {
	if gap := width - lipgloss.Width(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}

func pct(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", v*100)
}

func num(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}
