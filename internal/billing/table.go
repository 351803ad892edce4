package billing

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/pankaj-dahiya-devops/fleetcost/internal/cluster"
)

// ErrInvalidTableName is returned when a constructed table identifier
// contains characters outside the allow-list.
var ErrInvalidTableName = errors.New("invalid billing export table name")

// exportTablePrefix is the fixed prefix of Cloud Billing detailed
// (resource-level) export tables.
const exportTablePrefix = "gcp_billing_export_resource_v1_"

// BigQuery does not accept the table name as a query parameter, so it is
// interpolated into the SQL text. Only these characters may appear in it.
var tableNamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// TableName builds the fully-qualified billing export table identifier
// project.dataset.gcp_billing_export_resource_v1_<billing id> for bq.
// Hyphens in the billing account ID become underscores, matching the name
// BigQuery gives the export table. The result is checked against the
// allow-list before it is returned.
func TableName(bq cluster.BigQueryExport) (string, error) {
	name := fmt.Sprintf("%s.%s.%s%s",
		bq.Project,
		bq.Dataset,
		exportTablePrefix,
		strings.ReplaceAll(bq.BillingID, "-", "_"),
	)
	if err := ValidateTableName(name); err != nil {
		return "", err
	}
	return name, nil
}

// ValidateTableName reports ErrInvalidTableName when name contains anything
// other than letters, digits, '.', '_' or '-'.
func ValidateTableName(name string) error {
	if !tableNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidTableName, name)
	}
	return nil
}
