// Package billing builds and runs the BigQuery cost aggregation against a
// Cloud Billing export table and reshapes its results into CostRows.
package billing

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// ErrInvalidMonth is returned when a month flag is not formatted as YYYY-MM.
var ErrInvalidMonth = errors.New("invalid month")

var monthPattern = regexp.MustCompile(`^(\d{4})-(\d{2})$`)

// ValidateMonth checks that s is formatted as YYYY-MM and returns it in the
// YYYYMM form used by invoice.month in the billing export.
func ValidateMonth(s string) (string, error) {
	m := monthPattern.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("%w: %q should be formatted as YYYY-MM (eg: 2023-02)", ErrInvalidMonth, s)
	}
	return m[1] + m[2], nil
}

// DefaultMonthRange returns the default --start-month and --end-month values
// as YYYY-MM: twelve invoicing months ago through the current one, in UTC.
func DefaultMonthRange(now time.Time) (start, end string) {
	now = now.UTC()
	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return current.AddDate(0, -12, 0).Format("2006-01"), current.Format("2006-01")
}

// FormatPeriod converts an invoice month from YYYYMM to YYYY-MM.
// Values that are not six characters long are returned unchanged.
func FormatPeriod(month string) string {
	if len(month) != 6 {
		return month
	}
	return month[:4] + "-" + month[4:]
}
