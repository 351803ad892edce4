package output

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/pankaj-dahiya-devops/fleetcost/internal/models"
	"github.com/pankaj-dahiya-devops/fleetcost/internal/secrets"
)

// SheetBanner is written to the first row of the sheet on every run.
const SheetBanner = "WARNING: Do not manually modify, this sheet is autogenerated by the generate-cost-table subcommand of fleetcost"

// SheetHeader is the column header row written above the data rows.
var SheetHeader = []interface{}{"Period", "Project", "Cost (after Credits)"}

// ErrInvalidSheetURL is returned when a spreadsheet ID cannot be found in a URL.
var ErrInvalidSheetURL = errors.New("invalid Google Sheet URL")

var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)

// Worksheet is the subset of spreadsheet operations WriteSheet needs.
// googleWorksheet is the production implementation; tests use a recorder.
type Worksheet interface {
	// Clear removes all values from the worksheet.
	Clear(ctx context.Context) error

	// AppendRows appends rows after the last non-empty row in one request.
	AppendRows(ctx context.Context, rows [][]interface{}) error
}

// WriteSheet replaces the contents of ws with rows: a warning banner, a
// last-updated timestamp, the header row, then every data row in a single
// bulk append. The banner, timestamp and header are written even when rows
// is empty.
func WriteSheet(ctx context.Context, ws Worksheet, rows []models.CostRow, now time.Time) error {
	if err := ws.Clear(ctx); err != nil {
		return fmt.Errorf("clear worksheet: %w", err)
	}

	preamble := [][]interface{}{
		{SheetBanner},
		{"Last Updated: " + now.UTC().Format(time.RFC3339)},
		SheetHeader,
	}
	if err := ws.AppendRows(ctx, preamble); err != nil {
		return fmt.Errorf("write sheet header: %w", err)
	}

	if len(rows) == 0 {
		return nil
	}
	data := make([][]interface{}, len(rows))
	for i, r := range rows {
		data[i] = []interface{}{r.Period, r.Project, r.TotalFloat()}
	}
	if err := ws.AppendRows(ctx, data); err != nil {
		return fmt.Errorf("write %d cost rows: %w", len(rows), err)
	}
	return nil
}

// SpreadsheetID extracts the spreadsheet ID from a Google Sheets URL such
// as https://docs.google.com/spreadsheets/d/<id>/edit#gid=0.
func SpreadsheetID(url string) (string, error) {
	m := spreadsheetIDPattern.FindStringSubmatch(url)
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidSheetURL, url)
	}
	return m[1], nil
}

// SheetsClient opens worksheets through the Google Sheets API.
type SheetsClient struct {
	svc *sheets.Service
}

// NewSheetsClient authenticates with the service account key at
// credentialsFile. The key is read during construction; the file is not
// needed afterwards.
func NewSheetsClient(ctx context.Context, credentialsFile string) (*SheetsClient, error) {
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &SheetsClient{svc: svc}, nil
}

// NewSheetsClientFromSecret decrypts the encrypted service account key at
// secretPath and builds a SheetsClient from it. The plaintext key exists on
// disk only while the client is being constructed.
func NewSheetsClientFromSecret(ctx context.Context, d secrets.Decrypter, secretPath string) (*SheetsClient, error) {
	var client *SheetsClient
	err := secrets.WithDecryptedFile(d, secretPath, func(keyPath string) error {
		c, err := NewSheetsClient(ctx, keyPath)
		if err != nil {
			return err
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// OpenFirstWorksheet returns the first worksheet of the spreadsheet at url.
func (c *SheetsClient) OpenFirstWorksheet(ctx context.Context, url string) (Worksheet, error) {
	id, err := SpreadsheetID(url)
	if err != nil {
		return nil, err
	}

	ss, err := c.svc.Spreadsheets.Get(id).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet %s: %w", id, err)
	}
	if len(ss.Sheets) == 0 || ss.Sheets[0].Properties == nil {
		return nil, fmt.Errorf("spreadsheet %s has no worksheets", id)
	}

	return &googleWorksheet{
		values:        c.svc.Spreadsheets.Values,
		spreadsheetID: id,
		sheetRange:    quoteSheetTitle(ss.Sheets[0].Properties.Title),
	}, nil
}

// quoteSheetTitle turns a worksheet title into an A1 range covering the
// whole sheet.
func quoteSheetTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// googleWorksheet implements Worksheet against one sheet of a spreadsheet.
type googleWorksheet struct {
	values        *sheets.SpreadsheetsValuesService
	spreadsheetID string
	sheetRange    string
}

func (g *googleWorksheet) Clear(ctx context.Context) error {
	_, err := g.values.Clear(g.spreadsheetID, g.sheetRange, &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	return err
}

func (g *googleWorksheet) AppendRows(ctx context.Context, rows [][]interface{}) error {
	_, err := g.values.Append(g.spreadsheetID, g.sheetRange, &sheets.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}
