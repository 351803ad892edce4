package models

import "math/big"

// ProjectMonthCost is one aggregated row of a billing export query: the net
// cost (gross cost plus credits) of a single project for a single invoice month.
type ProjectMonthCost struct {
	// Month is the invoice month in warehouse-native "YYYYMM" form.
	Month string

	// Project is the GCP project ID the cost is attributed to.
	Project string

	// Total is the exact NUMERIC sum of cost and credits.
	Total *big.Rat
}

// CostRow is a single line of the rendered cost table.
// Rows are produced by the normalizer and must not be modified by renderers.
type CostRow struct {
	// Period is the invoice month formatted as "YYYY-MM".
	Period string

	// Project is the GCP project ID.
	Project string

	// TotalWithCredits is the net cost for the period after credits.
	TotalWithCredits *big.Rat
}

// TotalFloat returns TotalWithCredits as a float64, treating nil as zero.
// Exactness is lost; use it only for display and spreadsheet cells.
func (r CostRow) TotalFloat() float64 {
	if r.TotalWithCredits == nil {
		return 0
	}
	f, _ := r.TotalWithCredits.Float64()
	return f
}

// TotalString returns TotalWithCredits rounded to two decimal places.
func (r CostRow) TotalString() string {
	if r.TotalWithCredits == nil {
		return "0.00"
	}
	return r.TotalWithCredits.FloatString(2)
}
