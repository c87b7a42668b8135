package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"spending/internal/core"
)

var (
	colorBorder = lipgloss.Color("#575653")
	colorText   = lipgloss.Color("#FFFCF0")
	colorAccent = lipgloss.Color("#3AA99F")
	colorMuted  = lipgloss.Color("#6F6E69")
	colorRed    = lipgloss.Color("#D14D41")
	colorBlue   = lipgloss.Color("#4385BE")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorText).
			Align(lipgloss.Center)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent)

	valueStyle = lipgloss.NewStyle().
			Foreground(colorText)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorBorder)
)

// Table represents a bordered text table for CLI output.
type Table struct {
	Title   string
	Accent  lipgloss.Color
	Headers []string
	Rows    [][]string
}

// RenderTitle renders a centered title bar in a bordered box.
func RenderTitle(title string) string {
	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Width(55).
		Align(lipgloss.Center).
		Padding(0, 1)

	return border.Render(titleStyle.Render(title))
}

// RenderTable renders a bordered table. The first two columns are left aligned, the rest right aligned.
func RenderTable(t Table) string {
	numCols := len(t.Headers)
	if numCols == 0 {
		return ""
	}

	widths := make([]int, numCols)
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < numCols && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	var b strings.Builder
	if t.Title != "" {
		style := headerStyle
		if t.Accent != "" {
			style = style.Foreground(t.Accent)
		}
		b.WriteString("  " + style.Render(t.Title) + "\n")
	}

	rule := func(left, mid, right string) {
		b.WriteString(dimStyle.Render(left))
		for i, w := range widths {
			b.WriteString(dimStyle.Render(strings.Repeat("─", w+2)))
			if i < numCols-1 {
				b.WriteString(dimStyle.Render(mid))
			}
		}
		b.WriteString(dimStyle.Render(right) + "\n")
	}
	line := func(cells []string, style lipgloss.Style) {
		b.WriteString(dimStyle.Render("│"))
		for i := 0; i < numCols; i++ {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			pad := strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
			if i < 2 {
				b.WriteString(style.Render(" " + cell + pad + " "))
			} else {
				b.WriteString(style.Render(" " + pad + cell + " "))
			}
			if i < numCols-1 {
				b.WriteString(dimStyle.Render("│"))
			}
		}
		b.WriteString(dimStyle.Render("│") + "\n")
	}

	rule("╭", "┬", "╮")
	line(t.Headers, headerStyle)
	rule("├", "┼", "┤")
	if len(t.Rows) == 0 {
		line([]string{"", "No data"}, mutedStyle)
	}
	for _, row := range t.Rows {
		line(row, valueStyle)
	}
	rule("╰", "┴", "╯")

	return b.String()
}

// RankingTable builds the table for one side of the rankings.
func RankingTable(title string, accent lipgloss.Color, entries []core.Entry) Table {
	rows := make([][]string, 0, len(entries))
	for i, e := range entries {
		rows = append(rows, []string{fmt.Sprintf("%d", i+1), e.Name, FormatAmount(e.Total)})
	}
	return Table{
		Title:   title,
		Accent:  accent,
		Headers: []string{"#", "Name", "Total Spending"},
		Rows:    rows,
	}
}

// RenderReport renders both rankings and the load statistics of a report.
func RenderReport(rep core.Report) string {
	var b strings.Builder
	b.WriteString(RenderTitle("SPENDING  " + rep.Period.String()))
	b.WriteString("\n\n")
	b.WriteString(RenderTable(RankingTable(rep.Rankings.TopTitle(), colorRed, rep.Rankings.Top)))
	b.WriteString("\n")
	b.WriteString(RenderTable(RankingTable(rep.Rankings.BottomTitle(), colorBlue, rep.Rankings.Bottom)))
	b.WriteString("\n")

	stats := fmt.Sprintf("  %s records, %s agencies, %s skipped",
		humanize.Comma(int64(rep.Rankings.Rows)),
		humanize.Comma(int64(rep.Rankings.Groups)),
		humanize.Comma(int64(rep.Rankings.Dropped)))
	if rep.CacheHit {
		stats += ", cached data"
	}
	b.WriteString(mutedStyle.Render(stats) + "\n")
	if rep.ChartFile != "" {
		b.WriteString(mutedStyle.Render("  chart: "+rep.ChartFile) + "\n")
	}
	return b.String()
}

// FormatAmount formats a dollar total with thousands separators and cents.
func FormatAmount(v float64) string {
	if v < 0 {
		return "-$" + humanize.FormatFloat("#,###.##", -v)
	}
	return "$" + humanize.FormatFloat("#,###.##", v)
}
