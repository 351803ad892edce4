package engine

import (
	"context"

	"github.com/pankaj-dahiya-devops/fleetcost/internal/models"
)

// CostTableOptions configures a single cost table run.
// It is the sole input to Engine.GenerateCostTable.
type CostTableOptions struct {
	// StartMonth is the first invoice month to include, as YYYYMM.
	StartMonth string

	// EndMonth is the last invoice month to include, as YYYYMM.
	EndMonth string
}

// Engine is the central orchestration interface.
// It walks the cluster fleet, queries each billing export and returns the
// combined, sorted cost rows. Rendering is left to the caller.
type Engine interface {
	GenerateCostTable(ctx context.Context, opts CostTableOptions) ([]models.CostRow, error)
}
