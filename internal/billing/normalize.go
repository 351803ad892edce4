package billing

import (
	"sort"

	"github.com/pankaj-dahiya-devops/fleetcost/internal/models"
)

// Normalize converts query results from every cluster into CostRows sorted
// by period, most recent first. The sort is stable, so rows sharing a period
// keep the order they were queried in. Rows without a project are dropped.
// Duplicate projects across clusters are kept as separate rows.
func Normalize(costs []models.ProjectMonthCost) []models.CostRow {
	rows := make([]models.CostRow, 0, len(costs))
	for _, c := range costs {
		if c.Project == "" {
			continue
		}
		rows = append(rows, models.CostRow{
			Period:           FormatPeriod(c.Month),
			Project:          c.Project,
			TotalWithCredits: c.Total,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Period > rows[j].Period
	})
	return rows
}
