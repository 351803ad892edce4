package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pankaj-dahiya-devops/fleetcost/internal/billing"
	"github.com/pankaj-dahiya-devops/fleetcost/internal/cluster"
	"github.com/pankaj-dahiya-devops/fleetcost/internal/config"
)

// DoctorResult is the structured output of fleetcost doctor. It can be
// serialised to JSON via --format=json or rendered as a human-readable
// table (default).
type DoctorResult struct {
	Clusters struct {
		Dir     string   `json:"dir"`
		Loaded  bool     `json:"loaded"`
		Found   int      `json:"found"`
		Billing int      `json:"billing"`
		Errors  []string `json:"errors,omitempty"`
	} `json:"clusters"`

	SheetsSecret struct {
		Path    string `json:"path"`
		Present bool   `json:"present"`
		Error   string `json:"error,omitempty"`
	} `json:"sheets_secret"`

	OverallHealthy bool `json:"overall_healthy"`
}

func newDoctorCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "doctor",
		Short:         "Check cluster descriptors and credentials before generating a cost table",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			clustersDir, _ := cmd.Flags().GetString("clusters-dir")
			result, err := runDoctor(cmd.OutOrStdout(), format, clustersDir, cfg.Sheets.CredentialsSecret)
			if err != nil {
				return err
			}
			if !result.OverallHealthy {
				// Exit directly so no error text reaches main.go's
				// fmt.Fprintln(os.Stderr, err) path.
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().String("format", "table", `Output format: "table" or "json"`)
	return cmd
}

// runDoctor collects all diagnostic results, renders them to w in the
// requested format, and returns the result. The returned error covers only
// rendering failures; callers inspect result.OverallHealthy.
func runDoctor(w io.Writer, format, clustersDir, secretPath string) (DoctorResult, error) {
	result := collectDoctorResult(cluster.NewFileLoader(clustersDir), clustersDir, secretPath)

	switch format {
	case "json":
		if err := json.NewEncoder(w).Encode(result); err != nil {
			return result, fmt.Errorf("encode doctor result: %w", err)
		}
	default:
		renderDoctorTable(result, w)
	}
	return result, nil
}

// collectDoctorResult loads every cluster descriptor, validates the billing
// configuration of each billing cluster (including the table-name
// allow-list) and checks that the sheets credential secret exists.
func collectDoctorResult(loader cluster.Loader, clustersDir, secretPath string) DoctorResult {
	var result DoctorResult
	result.Clusters.Dir = clustersDir
	result.SheetsSecret.Path = secretPath

	clusters, err := loader.Load()
	if err != nil {
		result.Clusters.Errors = []string{err.Error()}
	} else {
		result.Clusters.Loaded = true
		result.Clusters.Found = len(clusters)
		for _, c := range clusters {
			if !c.PaysForBilling() {
				continue
			}
			result.Clusters.Billing++
			if err := c.Validate(); err != nil {
				result.Clusters.Errors = append(result.Clusters.Errors, err.Error())
				continue
			}
			if _, err := billing.TableName(c.GCP.Billing.BigQuery); err != nil {
				result.Clusters.Errors = append(result.Clusters.Errors, fmt.Sprintf("cluster %q: %v", c.Name, err))
			}
		}
	}

	// The secret is only needed for --output google-sheet, so a missing file
	// is reported but does not make the environment unhealthy.
	if _, err := os.Stat(secretPath); err == nil {
		result.SheetsSecret.Present = true
	} else {
		result.SheetsSecret.Error = err.Error()
	}

	result.OverallHealthy = result.Clusters.Loaded && len(result.Clusters.Errors) == 0
	return result
}

// renderDoctorTable writes the human-readable diagnostic output from result to w.
func renderDoctorTable(result DoctorResult, w io.Writer) {
	fmt.Fprintln(w, "Environment Diagnostics")

	fmt.Fprintf(w, "\nClusters (%s):\n", result.Clusters.Dir)
	if !result.Clusters.Loaded {
		for _, e := range result.Clusters.Errors {
			doctorPrint(w, "Descriptors", "FAIL", e)
		}
	} else {
		doctorPrint(w, "Descriptors", "OK", fmt.Sprintf("%d found", result.Clusters.Found))
		doctorPrint(w, "Billing clusters", "OK", fmt.Sprintf("%d", result.Clusters.Billing))
		if len(result.Clusters.Errors) == 0 {
			doctorPrint(w, "Billing config", "OK", "")
		} else {
			for _, e := range result.Clusters.Errors {
				doctorPrint(w, "Billing config", "FAIL", e)
			}
		}
	}

	fmt.Fprintln(w, "\nGoogle Sheets:")
	if result.SheetsSecret.Present {
		doctorPrint(w, "Credentials secret", "OK", result.SheetsSecret.Path)
	} else {
		doctorPrint(w, "Credentials secret", "Not found (needed for --output google-sheet)", result.SheetsSecret.Path)
	}
}

// doctorPrint writes a single diagnostic check line to w.
// When detail is non-empty it is appended in parentheses.
func doctorPrint(w io.Writer, label, status, detail string) {
	if detail != "" {
		fmt.Fprintf(w, "  %s: %s (%s)\n", label, status, detail)
	} else {
		fmt.Fprintf(w, "  %s: %s\n", label, status)
	}
}
