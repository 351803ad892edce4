package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pankaj-dahiya-devops/fleetcost/internal/models"
)

// Column headers of the terminal cost table.
const (
	headerPeriod  = "PERIOD"
	headerProject = "PROJECT"
	headerCost    = "COST (AFTER CREDITS)"
)

const tableTitle = "Project Costs"

// tableStyles are bound to a renderer for the destination writer, so the
// color profile is detected from that writer rather than from os.Stdout.
type tableStyles struct {
	title, period, cost lipgloss.Style
}

func newTableStyles(w io.Writer) tableStyles {
	r := lipgloss.NewRenderer(w)
	return tableStyles{
		title:  r.NewStyle().Bold(true),
		period: r.NewStyle().Foreground(lipgloss.Color("6")),
		cost:   r.NewStyle().Foreground(lipgloss.Color("2")),
	}
}

// TableOptions controls how RenderCostTable styles its output.
type TableOptions struct {
	// Colored styles the title, period and cost columns. Default false (CI-safe).
	// Escape codes are only emitted when w is a color-capable terminal.
	Colored bool
}

// styled pads text to width (left- or right-aligned) and, when colored,
// applies style to the padded cell so columns stay aligned.
func styled(style lipgloss.Style, text string, width int, rightAlign, colored bool) string {
	var cell string
	if rightAlign {
		cell = fmt.Sprintf("%*s", width, text)
	} else {
		cell = fmt.Sprintf("%-*s", width, text)
	}
	if !colored {
		return cell
	}
	return style.Render(cell)
}

// RenderCostTable writes rows to w as a fixed-width table with columns
// PERIOD, PROJECT and COST (AFTER CREDITS). Rows must already be sorted by
// period; a dashed section break is written wherever the period changes so
// each month forms its own group. Costs are rounded to two decimals for
// display only.
func RenderCostTable(w io.Writer, rows []models.CostRow, opts TableOptions) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No cost data.")
		return
	}

	wPeriod := len(headerPeriod)
	wProject := len(headerProject)
	wCost := len(headerCost)
	for _, r := range rows {
		wPeriod = max(wPeriod, len(r.Period))
		wProject = max(wProject, len(r.Project))
		wCost = max(wCost, len(r.TotalString()))
	}

	st := newTableStyles(w)
	header := fmt.Sprintf("%-*s  %-*s  %*s", wPeriod, headerPeriod, wProject, headerProject, wCost, headerCost)

	fmt.Fprintln(w, styled(st.title, tableTitle, 0, false, opts.Colored))
	fmt.Fprintln(w)
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, strings.Repeat("=", len(header)))

	sectionBreak := strings.Repeat("-", len(header))
	lastPeriod := ""
	for i, r := range rows {
		if i > 0 && r.Period != lastPeriod {
			fmt.Fprintln(w, sectionBreak)
		}
		fmt.Fprintf(w, "%s  %-*s  %s\n",
			styled(st.period, r.Period, wPeriod, false, opts.Colored),
			wProject, r.Project,
			styled(st.cost, r.TotalString(), wCost, true, opts.Colored),
		)
		lastPeriod = r.Period
	}
}
