// Package cluster discovers and parses the per-cluster YAML descriptors that
// describe the fleet. Only the GCP provider carries billing export
// coordinates; descriptors for other providers parse cleanly but are inert.
package cluster

import (
	"errors"
	"fmt"
)

// Provider identifies the cloud a cluster runs on.
type Provider string

const (
	ProviderGCP        Provider = "gcp"
	ProviderAWS        Provider = "aws"
	ProviderAzure      Provider = "azure"
	ProviderKubeconfig Provider = "kubeconfig"
)

// Config is the parsed contents of a single cluster.yaml descriptor.
// It is loaded once per run and never modified afterwards.
type Config struct {
	// Name is the cluster name. Defaults to the directory containing the
	// descriptor when the file does not set it.
	Name string `yaml:"name"`

	Provider Provider `yaml:"provider"`

	// GCP is only populated when Provider is ProviderGCP.
	GCP *GCPConfig `yaml:"gcp,omitempty"`

	// Path is the descriptor file this config was read from.
	Path string `yaml:"-"`
}

// GCPConfig holds the GCP-specific part of a cluster descriptor.
type GCPConfig struct {
	Project string        `yaml:"project"`
	Cluster string        `yaml:"cluster"`
	Zone    string        `yaml:"zone"`
	Region  string        `yaml:"region"`
	Billing BillingConfig `yaml:"billing"`
}

// BillingConfig describes who pays for a GCP cluster and where its billing
// export lives.
type BillingConfig struct {
	// PaidByUs is true when the organisation operating the fleet pays the
	// cloud bill for this cluster and passes costs through.
	PaidByUs bool `yaml:"paid_by_us"`

	BigQuery BigQueryExport `yaml:"bigquery"`
}

// BigQueryExport locates a Cloud Billing detailed export table.
type BigQueryExport struct {
	Project   string `yaml:"project"`
	Dataset   string `yaml:"dataset"`
	BillingID string `yaml:"billing_id"`
}

// ErrIncompleteBilling is returned by Validate when a cluster that pays for
// billing is missing export coordinates.
var ErrIncompleteBilling = errors.New("incomplete billing configuration")

// PaysForBilling reports whether this cluster's costs should be reported:
// it must run on GCP and have billing.paid_by_us set.
func (c Config) PaysForBilling() bool {
	return c.Provider == ProviderGCP && c.GCP != nil && c.GCP.Billing.PaidByUs
}

// Validate checks that a billing cluster names its project and all three
// BigQuery export coordinates. Clusters that do not pay for billing are
// always valid.
func (c Config) Validate() error {
	if !c.PaysForBilling() {
		return nil
	}
	var missing []string
	if c.GCP.Project == "" {
		missing = append(missing, "gcp.project")
	}
	bq := c.GCP.Billing.BigQuery
	if bq.Project == "" {
		missing = append(missing, "gcp.billing.bigquery.project")
	}
	if bq.Dataset == "" {
		missing = append(missing, "gcp.billing.bigquery.dataset")
	}
	if bq.BillingID == "" {
		missing = append(missing, "gcp.billing.bigquery.billing_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("cluster %q: %w: missing %v", c.Name, ErrIncompleteBilling, missing)
	}
	return nil
}
