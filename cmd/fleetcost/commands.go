package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pankaj-dahiya-devops/fleetcost/internal/billing"
	"github.com/pankaj-dahiya-devops/fleetcost/internal/cluster"
	"github.com/pankaj-dahiya-devops/fleetcost/internal/config"
	"github.com/pankaj-dahiya-devops/fleetcost/internal/engine"
	"github.com/pankaj-dahiya-devops/fleetcost/internal/logging"
	"github.com/pankaj-dahiya-devops/fleetcost/internal/models"
	"github.com/pankaj-dahiya-devops/fleetcost/internal/output"
	"github.com/pankaj-dahiya-devops/fleetcost/internal/secrets"
	"github.com/pankaj-dahiya-devops/fleetcost/internal/version"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	return newRootCmdWithRunner(cfg, newDefaultCostTableRunner(cfg))
}

func newRootCmdWithRunner(cfg *config.Config, runner *costTableRunner) *cobra.Command {
	root := &cobra.Command{
		Use:           "fleetcost",
		Short:         "Cloud cost reporting for a fleet of Kubernetes clusters",
		SilenceErrors: true,
	}
	root.PersistentFlags().String("log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
	root.PersistentFlags().String("clusters-dir", cfg.ClustersDir, "Directory searched recursively for cluster.yaml files")

	root.AddCommand(newGenerateCostTableCmd(cfg, runner))
	root.AddCommand(newListClustersCmd())
	root.AddCommand(newDoctorCmd(cfg))
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), version.Info())
		},
	}
}

// costTableFlags holds the raw flag values of generate-cost-table.
type costTableFlags struct {
	startMonth     string
	endMonth       string
	output         string
	googleSheetURL string
	color          bool
}

// costTableRequest is a fully validated generate-cost-table invocation.
type costTableRequest struct {
	opts     engine.CostTableOptions
	format   output.Format
	sheetURL string
	color    bool
}

// resolveCostTableRequest validates flags. It performs no I/O, so a bad
// month or output format is reported before any cluster is read or queried.
func resolveCostTableRequest(f costTableFlags) (costTableRequest, error) {
	start, err := billing.ValidateMonth(f.startMonth)
	if err != nil {
		return costTableRequest{}, fmt.Errorf("--start-month: %w", err)
	}
	end, err := billing.ValidateMonth(f.endMonth)
	if err != nil {
		return costTableRequest{}, fmt.Errorf("--end-month: %w", err)
	}
	format, err := output.ParseFormat(f.output)
	if err != nil {
		return costTableRequest{}, fmt.Errorf("--output: %w", err)
	}
	if format == output.FormatGoogleSheet && f.googleSheetURL == "" {
		return costTableRequest{}, fmt.Errorf("--google-sheet-url is required with --output %s", output.FormatGoogleSheet)
	}
	return costTableRequest{
		opts:     engine.CostTableOptions{StartMonth: start, EndMonth: end},
		format:   format,
		sheetURL: f.googleSheetURL,
		color:    f.color,
	}, nil
}

// costTableRunner holds the collaborators of generate-cost-table.
// All fields are funcs so tests can replace BigQuery and Sheets.
type costTableRunner struct {
	// newEngine returns an engine reading clusters from clustersDir and a
	// func releasing whatever clients it opened.
	newEngine func(ctx context.Context, clustersDir string, logger log.FieldLogger) (engine.Engine, func() error, error)

	// openWorksheet returns the first worksheet of the spreadsheet at url.
	openWorksheet func(ctx context.Context, url string) (output.Worksheet, error)

	now func() time.Time
}

// newDefaultCostTableRunner wires the production BigQuery, sops and Google
// Sheets clients.
func newDefaultCostTableRunner(cfg *config.Config) *costTableRunner {
	return &costTableRunner{
		newEngine: func(ctx context.Context, clustersDir string, logger log.FieldLogger) (engine.Engine, func() error, error) {
			client, err := bigquery.NewClient(ctx, cfg.BigQueryProject)
			if err != nil {
				return nil, nil, fmt.Errorf("create bigquery client: %w", err)
			}
			querier := billing.NewBigQueryCostQuerier(billing.NewBigQueryRunner(client))
			eng := engine.NewDefaultEngine(cluster.NewFileLoader(clustersDir), querier, logger)
			return eng, client.Close, nil
		},
		openWorksheet: func(ctx context.Context, url string) (output.Worksheet, error) {
			client, err := output.NewSheetsClientFromSecret(ctx, secrets.NewSopsDecrypter(), cfg.Sheets.CredentialsSecret)
			if err != nil {
				return nil, fmt.Errorf("google sheets credentials: %w", err)
			}
			return client.OpenFirstWorksheet(ctx, url)
		},
		now: time.Now,
	}
}

// run generates the cost table and sends it to the requested output.
func (r *costTableRunner) run(ctx context.Context, req costTableRequest, clustersDir string, w io.Writer, logger log.FieldLogger) error {
	eng, closeFn, err := r.newEngine(ctx, clustersDir, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeFn(); err != nil {
			logger.WithError(err).Debug("close query client")
		}
	}()

	rows, err := eng.GenerateCostTable(ctx, req.opts)
	if err != nil {
		return fmt.Errorf("generate cost table: %w", err)
	}
	return r.render(ctx, req, rows, w, logger)
}

// render dispatches rows to the terminal or Google Sheet output.
func (r *costTableRunner) render(ctx context.Context, req costTableRequest, rows []models.CostRow, w io.Writer, logger log.FieldLogger) error {
	switch req.format {
	case output.FormatGoogleSheet:
		ws, err := r.openWorksheet(ctx, req.sheetURL)
		if err != nil {
			return err
		}
		if err := output.WriteSheet(ctx, ws, rows, r.now()); err != nil {
			return fmt.Errorf("write google sheet: %w", err)
		}
		logger.WithField("rows", len(rows)).Info("google sheet updated")
		return nil
	default:
		output.RenderCostTable(w, rows, output.TableOptions{Colored: req.color})
		return nil
	}
}

func newGenerateCostTableCmd(cfg *config.Config, runner *costTableRunner) *cobra.Command {
	defaultStart, defaultEnd := billing.DefaultMonthRange(time.Now())
	flags := costTableFlags{}

	formats := make([]string, len(output.Formats))
	for i, f := range output.Formats {
		formats[i] = string(f)
	}

	cmd := &cobra.Command{
		Use:   "generate-cost-table",
		Short: "Generate a per-project, per-month cost table for every GCP project whose bill we pay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := resolveCostTableRequest(flags)
			if err != nil {
				return err
			}
			// Flags are valid; failures from here on are not usage errors.
			cmd.SilenceUsage = true

			logLevel, _ := cmd.Flags().GetString("log-level")
			logger, err := logging.Setup(cmd.ErrOrStderr(), logLevel)
			if err != nil {
				return err
			}
			clustersDir, _ := cmd.Flags().GetString("clusters-dir")

			return runner.run(cmd.Context(), req, clustersDir, cmd.OutOrStdout(), logger)
		},
	}

	cmd.Flags().StringVar(&flags.startMonth, "start-month", defaultStart, "Starting month (as YYYY-MM) to produce cost data for. Defaults to 12 invoicing months ago")
	cmd.Flags().StringVar(&flags.endMonth, "end-month", defaultEnd, "Ending month (as YYYY-MM) to produce cost data for. Defaults to the current invoicing month")
	cmd.Flags().StringVar(&flags.output, "output", string(output.FormatTerminal), "Where to output the cost table to: "+strings.Join(formats, " or "))
	cmd.Flags().StringVar(&flags.googleSheetURL, "google-sheet-url", cfg.Sheets.URL, "Google Sheet URL written to with --output google-sheet. The billing service account needs Editor rights on it")
	cmd.Flags().BoolVar(&flags.color, "color", false, "Colourise terminal output")

	return cmd
}

func newListClustersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-clusters",
		Short: "List cluster descriptors and whether each contributes to the cost table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			clustersDir, _ := cmd.Flags().GetString("clusters-dir")
			clusters, err := cluster.NewFileLoader(clustersDir).Load()
			if err != nil {
				return err
			}
			printClusters(cmd.OutOrStdout(), clusters)
			return nil
		},
	}
}

// printClusters renders one line per cluster: name, provider, GCP project
// and whether its billing export is queried.
func printClusters(w io.Writer, clusters []cluster.Config) {
	if len(clusters) == 0 {
		fmt.Fprintln(w, "No clusters found.")
		return
	}

	fmt.Fprintf(w, "%-30s  %-12s  %-35s  %s\n", "CLUSTER", "PROVIDER", "PROJECT", "BILLED")
	fmt.Fprintln(w, strings.Repeat("-", 88))
	for _, c := range clusters {
		project := "-"
		if c.GCP != nil && c.GCP.Project != "" {
			project = c.GCP.Project
		}
		billed := "no"
		if c.PaysForBilling() {
			billed = "yes"
		}
		fmt.Fprintf(w, "%-30s  %-12s  %-35s  %s\n", c.Name, string(c.Provider), project, billed)
	}
}
