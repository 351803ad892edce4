package engine

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/pankaj-dahiya-devops/fleetcost/internal/billing"
	"github.com/pankaj-dahiya-devops/fleetcost/internal/cluster"
	"github.com/pankaj-dahiya-devops/fleetcost/internal/logging"
	"github.com/pankaj-dahiya-devops/fleetcost/internal/models"
)

// DefaultEngine is the production implementation of Engine.
// It never calls BigQuery directly; queries go through the CostQuerier.
type DefaultEngine struct {
	loader  cluster.Loader
	querier billing.CostQuerier
	log     log.FieldLogger
}

// NewDefaultEngine constructs a DefaultEngine wired to the supplied cluster
// loader and cost querier. A nil logger discards diagnostics.
func NewDefaultEngine(loader cluster.Loader, querier billing.CostQuerier, logger log.FieldLogger) *DefaultEngine {
	if logger == nil {
		logger = logging.Discard()
	}
	return &DefaultEngine{
		loader:  loader,
		querier: querier,
		log:     logger,
	}
}

// GenerateCostTable implements Engine. Clusters are processed one at a time
// in loader order. Clusters on other providers, and GCP clusters whose bill
// is not paid by us, are skipped. The first failure aborts the whole run;
// no partial table is returned.
func (e *DefaultEngine) GenerateCostTable(ctx context.Context, opts CostTableOptions) ([]models.CostRow, error) {
	clusters, err := e.loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load clusters: %w", err)
	}

	var costs []models.ProjectMonthCost
	for _, c := range clusters {
		logger := e.log.WithField("cluster", c.Name)

		if c.Provider != cluster.ProviderGCP {
			logger.WithField("provider", c.Provider).Debug("skipping cluster: unsupported provider")
			continue
		}
		if !c.PaysForBilling() {
			logger.Debug("skipping cluster: billing not paid by us")
			continue
		}

		clusterCosts, err := e.queryCluster(ctx, c, opts, logger)
		if err != nil {
			return nil, fmt.Errorf("cluster %q: %w", c.Name, err)
		}
		costs = append(costs, clusterCosts...)
	}

	return billing.Normalize(costs), nil
}

// queryCluster builds the billing export table name for c and returns every
// row the cost query yields for its project.
func (e *DefaultEngine) queryCluster(
	ctx context.Context,
	c cluster.Config,
	opts CostTableOptions,
	logger log.FieldLogger,
) ([]models.ProjectMonthCost, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	table, err := billing.TableName(c.GCP.Billing.BigQuery)
	if err != nil {
		return nil, err
	}

	logger = logger.WithFields(log.Fields{"table": table, "project": c.GCP.Project})
	logger.Info("querying billing export")

	var costs []models.ProjectMonthCost
	for cost, err := range e.querier.MonthlyCosts(ctx, table, opts.StartMonth, opts.EndMonth, c.GCP.Project) {
		if err != nil {
			return nil, err
		}
		costs = append(costs, cost)
	}

	logger.WithField("rows", len(costs)).Debug("billing export queried")
	return costs, nil
}
