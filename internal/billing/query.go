package billing

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math/big"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/pankaj-dahiya-devops/fleetcost/internal/models"
)

// costQueryTemplate sums cost plus all credit line items per invoice month
// and project. The only %s is the allow-listed table name; everything else
// is a bound parameter.
const costQueryTemplate = `
SELECT
  invoice.month AS month,
  project.id AS project,
  (SUM(CAST(cost AS NUMERIC))
    + SUM(IFNULL((SELECT SUM(CAST(c.amount AS NUMERIC))
                  FROM UNNEST(credits) AS c), 0)))
    AS total_with_credits
FROM ` + "`%s`" + `
WHERE invoice.month >= @start_month
  AND invoice.month <= @end_month
  AND project.id = @project
GROUP BY 1, 2
ORDER BY invoice.month ASC
`

// ---------------------------------------------------------------------------
// Narrow client interfaces
//
// *bigquery.RowIterator satisfies RowIterator. QueryRunner hides
// *bigquery.Client so tests can replace it with a stub.
// ---------------------------------------------------------------------------

// RowIterator yields query result rows one at a time. Next returns
// iterator.Done after the last row.
type RowIterator interface {
	Next(dst interface{}) error
}

// QueryRunner executes a parameterised query and returns its rows.
type QueryRunner interface {
	Query(ctx context.Context, sql string, params []bigquery.QueryParameter) (RowIterator, error)
}

// bigQueryRunner is the production QueryRunner.
type bigQueryRunner struct {
	client *bigquery.Client
}

// NewBigQueryRunner wraps client as a QueryRunner.
func NewBigQueryRunner(client *bigquery.Client) QueryRunner {
	return &bigQueryRunner{client: client}
}

// Query implements QueryRunner. It blocks until the job completes.
func (r *bigQueryRunner) Query(ctx context.Context, sql string, params []bigquery.QueryParameter) (RowIterator, error) {
	q := r.client.Query(sql)
	q.Parameters = params
	it, err := q.Read(ctx)
	if err != nil {
		return nil, err
	}
	return it, nil
}

// CostQuerier returns per-month, per-project net cost from a billing export.
type CostQuerier interface {
	MonthlyCosts(ctx context.Context, table, startMonth, endMonth, project string) iter.Seq2[models.ProjectMonthCost, error]
}

// BigQueryCostQuerier is the production CostQuerier.
type BigQueryCostQuerier struct {
	runner QueryRunner
}

// NewBigQueryCostQuerier returns a CostQuerier that runs its queries through runner.
func NewBigQueryCostQuerier(runner QueryRunner) *BigQueryCostQuerier {
	return &BigQueryCostQuerier{runner: runner}
}

// costResultRow mirrors the columns selected by costQueryTemplate.
type costResultRow struct {
	Month            string              `bigquery:"month"`
	Project          bigquery.NullString `bigquery:"project"`
	TotalWithCredits *big.Rat            `bigquery:"total_with_credits"`
}

// MonthlyCosts implements CostQuerier. startMonth and endMonth are inclusive
// and in YYYYMM form. The query runs when the sequence is first ranged over;
// rows are then read lazily. Rows with no project are skipped. The first
// error ends the sequence.
func (q *BigQueryCostQuerier) MonthlyCosts(
	ctx context.Context,
	table, startMonth, endMonth, project string,
) iter.Seq2[models.ProjectMonthCost, error] {
	return func(yield func(models.ProjectMonthCost, error) bool) {
		if err := ValidateTableName(table); err != nil {
			yield(models.ProjectMonthCost{}, err)
			return
		}

		sql := fmt.Sprintf(costQueryTemplate, table)
		params := []bigquery.QueryParameter{
			{Name: "start_month", Value: startMonth},
			{Name: "end_month", Value: endMonth},
			{Name: "project", Value: project},
		}

		it, err := q.runner.Query(ctx, sql, params)
		if err != nil {
			yield(models.ProjectMonthCost{}, fmt.Errorf("query %s: %w", table, err))
			return
		}

		for {
			var row costResultRow
			err := it.Next(&row)
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				yield(models.ProjectMonthCost{}, fmt.Errorf("read rows from %s: %w", table, err))
				return
			}
			// Costs not attributed to any project are always zero.
			if !row.Project.Valid || row.Project.StringVal == "" {
				continue
			}
			total := row.TotalWithCredits
			if total == nil {
				total = new(big.Rat)
			}
			if !yield(models.ProjectMonthCost{
				Month:   row.Month,
				Project: row.Project.StringVal,
				Total:   total,
			}, nil) {
				return
			}
		}
	}
}
