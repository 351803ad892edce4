package main

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/pankaj-dahiya-devops/fleetcost/internal/billing"
	"github.com/pankaj-dahiya-devops/fleetcost/internal/cluster"
	"github.com/pankaj-dahiya-devops/fleetcost/internal/config"
	"github.com/pankaj-dahiya-devops/fleetcost/internal/engine"
	"github.com/pankaj-dahiya-devops/fleetcost/internal/models"
	"github.com/pankaj-dahiya-devops/fleetcost/internal/output"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func testConfig() *config.Config {
	return &config.Config{
		ClustersDir: "config/clusters",
		LogLevel:    "warn",
	}
}

// stubEngine returns canned rows and records the options it was given.
type stubEngine struct {
	rows []models.CostRow
	err  error
	opts engine.CostTableOptions
}

func (s *stubEngine) GenerateCostTable(_ context.Context, opts engine.CostTableOptions) ([]models.CostRow, error) {
	s.opts = opts
	return s.rows, s.err
}

// memWorksheet records everything written to it.
type memWorksheet struct {
	cleared bool
	rows    [][]interface{}
}

func (m *memWorksheet) Clear(context.Context) error {
	m.cleared = true
	m.rows = nil
	return nil
}

func (m *memWorksheet) AppendRows(_ context.Context, rows [][]interface{}) error {
	m.rows = append(m.rows, rows...)
	return nil
}

// testRunner builds a costTableRunner around eng and ws and counts how often
// the engine factory is used.
func testRunner(eng engine.Engine, ws output.Worksheet, engineCalls *int, gotDir *string) *costTableRunner {
	return &costTableRunner{
		newEngine: func(_ context.Context, clustersDir string, _ log.FieldLogger) (engine.Engine, func() error, error) {
			*engineCalls++
			if gotDir != nil {
				*gotDir = clustersDir
			}
			return eng, func() error { return nil }, nil
		},
		openWorksheet: func(context.Context, string) (output.Worksheet, error) {
			return ws, nil
		},
		now: func() time.Time { return time.Date(2026, time.October, 18, 0, 0, 0, 0, time.UTC) },
	}
}

func execute(t *testing.T, runner *costTableRunner, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	root := newRootCmdWithRunner(testConfig(), runner)
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func sampleRows() []models.CostRow {
	return []models.CostRow{
		{Period: "2023-02", Project: "alpha-project", TotalWithCredits: big.NewRat(1050, 100)},
		{Period: "2023-01", Project: "alpha-project", TotalWithCredits: big.NewRat(2, 1)},
	}
}

// ── resolveCostTableRequest ──────────────────────────────────────────────────

func TestResolveCostTableRequest_Valid(t *testing.T) {
	req, err := resolveCostTableRequest(costTableFlags{
		startMonth: "2023-01",
		endMonth:   "2023-12",
		output:     "terminal",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.opts.StartMonth != "202301" || req.opts.EndMonth != "202312" {
		t.Errorf("opts = %+v; want 202301..202312", req.opts)
	}
	if req.format != output.FormatTerminal {
		t.Errorf("format = %q", req.format)
	}
}

func TestResolveCostTableRequest_InvalidMonths(t *testing.T) {
	cases := []costTableFlags{
		{startMonth: "2023-1", endMonth: "2023-12", output: "terminal"},
		{startMonth: "2023-01", endMonth: "Dec 2023", output: "terminal"},
	}
	for _, f := range cases {
		if _, err := resolveCostTableRequest(f); !errors.Is(err, billing.ErrInvalidMonth) {
			t.Errorf("flags %+v: err = %v; want ErrInvalidMonth", f, err)
		}
	}
}

func TestResolveCostTableRequest_GoogleSheetNeedsURL(t *testing.T) {
	_, err := resolveCostTableRequest(costTableFlags{startMonth: "2023-01", endMonth: "2023-02", output: "google-sheet"})
	if err == nil || !strings.Contains(err.Error(), "--google-sheet-url") {
		t.Errorf("err = %v; want missing --google-sheet-url", err)
	}
}

func TestResolveCostTableRequest_UnknownOutput(t *testing.T) {
	_, err := resolveCostTableRequest(costTableFlags{startMonth: "2023-01", endMonth: "2023-02", output: "pdf"})
	if err == nil || !strings.Contains(err.Error(), "--output") {
		t.Errorf("err = %v; want --output error", err)
	}
}

// ── generate-cost-table ──────────────────────────────────────────────────────

func TestGenerateCostTable_InvalidMonthStopsBeforeIO(t *testing.T) {
	calls := 0
	runner := testRunner(&stubEngine{}, &memWorksheet{}, &calls, nil)

	out, err := execute(t, runner, "generate-cost-table", "--start-month", "2023/01")
	if !errors.Is(err, billing.ErrInvalidMonth) {
		t.Fatalf("err = %v; want ErrInvalidMonth", err)
	}
	if calls != 0 {
		t.Errorf("engine created %d times; want 0", calls)
	}
	if !strings.Contains(out, "Usage:") {
		t.Errorf("usage not printed for invalid flag\ngot:\n%s", out)
	}
}

func TestGenerateCostTable_TerminalOutput(t *testing.T) {
	calls := 0
	var dir string
	eng := &stubEngine{rows: sampleRows()}
	runner := testRunner(eng, &memWorksheet{}, &calls, &dir)

	out, err := execute(t, runner, "generate-cost-table",
		"--start-month", "2023-01", "--end-month", "2023-02", "--clusters-dir", "/fleet")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eng.opts.StartMonth != "202301" || eng.opts.EndMonth != "202302" {
		t.Errorf("engine opts = %+v", eng.opts)
	}
	if dir != "/fleet" {
		t.Errorf("clusters dir = %q; want /fleet", dir)
	}
	for _, want := range []string{"Project Costs", "alpha-project", "10.50", "2.00"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\ngot:\n%s", want, out)
		}
	}
}

func TestGenerateCostTable_GoogleSheetOutput(t *testing.T) {
	calls := 0
	ws := &memWorksheet{}
	runner := testRunner(&stubEngine{rows: sampleRows()}, ws, &calls, nil)

	out, err := execute(t, runner, "generate-cost-table",
		"--output", "google-sheet", "--google-sheet-url", "https://docs.google.com/spreadsheets/d/abc/edit")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ws.cleared {
		t.Error("worksheet was not cleared")
	}
	if len(ws.rows) != 5 {
		t.Fatalf("sheet rows = %d; want 5 (3 preamble + 2 data)", len(ws.rows))
	}
	if ws.rows[3][0] != "2023-02" || ws.rows[3][2] != 10.5 {
		t.Errorf("first data row = %v", ws.rows[3])
	}
	if strings.Contains(out, "Project Costs") {
		t.Errorf("terminal table printed for google-sheet output\ngot:\n%s", out)
	}
}

func TestGenerateCostTable_EngineErrorIsFatal(t *testing.T) {
	boom := errors.New("bigquery unavailable")
	calls := 0
	ws := &memWorksheet{}
	runner := testRunner(&stubEngine{err: boom}, ws, &calls, nil)

	out, err := execute(t, runner, "generate-cost-table",
		"--output", "google-sheet", "--google-sheet-url", "https://docs.google.com/spreadsheets/d/abc/edit")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v; want %v", err, boom)
	}
	if ws.cleared {
		t.Error("sheet must not be touched when the query fails")
	}
	if strings.Contains(out, "Usage:") {
		t.Errorf("usage printed for a runtime failure\ngot:\n%s", out)
	}
}

func TestGenerateCostTable_SheetOpenFailureIsFatal(t *testing.T) {
	denied := errors.New("sops: no key could decrypt the data key")
	calls := 0
	eng := &stubEngine{rows: sampleRows()}
	runner := testRunner(eng, &memWorksheet{}, &calls, nil)
	runner.openWorksheet = func(context.Context, string) (output.Worksheet, error) {
		return nil, denied
	}

	out, err := execute(t, runner, "generate-cost-table",
		"--output", "google-sheet", "--google-sheet-url", "https://docs.google.com/spreadsheets/d/abc/edit")
	if !errors.Is(err, denied) {
		t.Fatalf("err = %v; want %v", err, denied)
	}
	if strings.Contains(out, "Project Costs") || strings.Contains(out, "alpha-project") {
		t.Errorf("cost table printed after sheet open failure\ngot:\n%s", out)
	}
	if strings.Contains(out, "Usage:") {
		t.Errorf("usage printed for a credential failure\ngot:\n%s", out)
	}
}

func TestGenerateCostTable_CloseErrorIsLogged(t *testing.T) {
	calls := 0
	runner := testRunner(&stubEngine{rows: sampleRows()}, &memWorksheet{}, &calls, nil)
	open := runner.newEngine
	runner.newEngine = func(ctx context.Context, dir string, logger log.FieldLogger) (engine.Engine, func() error, error) {
		eng, _, err := open(ctx, dir, logger)
		return eng, func() error { return errors.New("connection reset") }, err
	}

	out, err := execute(t, runner, "generate-cost-table", "--log-level", "debug")
	if err != nil {
		t.Fatalf("close failure must not fail the run: %v", err)
	}
	if !strings.Contains(out, "Project Costs") {
		t.Errorf("cost table missing\ngot:\n%s", out)
	}
	if !strings.Contains(out, "close query client") || !strings.Contains(out, "connection reset") {
		t.Errorf("close error not logged\ngot:\n%s", out)
	}
}

// ── list-clusters ────────────────────────────────────────────────────────────

func TestListClusters(t *testing.T) {
	root := t.TempDir()
	write := func(dir, contents string) {
		p := filepath.Join(root, dir, cluster.DescriptorFileName)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(contents), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("alpha", "provider: gcp\ngcp:\n  project: alpha-project\n  billing:\n    paid_by_us: true\n")
	write("gamma", "provider: aws\n")

	calls := 0
	out, err := execute(t, testRunner(&stubEngine{}, &memWorksheet{}, &calls, nil),
		"list-clusters", "--clusters-dir", root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines; want header, rule and 2 clusters\n%s", len(lines), out)
	}
	if !strings.Contains(lines[2], "alpha-project") || !strings.HasSuffix(lines[2], "yes") {
		t.Errorf("alpha line = %q", lines[2])
	}
	if !strings.Contains(lines[3], "aws") || !strings.HasSuffix(lines[3], "no") {
		t.Errorf("gamma line = %q", lines[3])
	}
}

func TestPrintClusters_Empty(t *testing.T) {
	var buf bytes.Buffer
	printClusters(&buf, nil)
	if !strings.Contains(buf.String(), "No clusters found.") {
		t.Errorf("got %q", buf.String())
	}
}
