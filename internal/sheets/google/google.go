package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"github.com/garyjeong/household-ledger-server/internal/core"
	ports "github.com/garyjeong/household-ledger-server/internal/sheets"
)

// Client exports transactions to a Google spreadsheet. Each ledger
// year gets its own sheet, named "<year> <base>".
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	ledgerBase    string
}

var (
	_ ports.TransactionWriter  = (*Client)(nil)
	_ ports.TransactionDeleter = (*Client)(nil)
)

// NewFromEnv creates a Sheets client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID. Credentials come from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS. GOOGLE_SHEET_NAME overrides the
// ledger sheet base name (default "Ledger").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	base := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if base == "" {
		base = "Ledger"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, ledgerBase: base}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case inline != "":
		credentialsJSON = []byte(inline)
	case file != "":
		credentialsJSON, err = os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// Append writes the transaction as a row: date, type, category,
// amount, merchant, memo, ledger id. The ledger id in the last column
// is what Delete matches on.
func (c *Client) Append(ctx context.Context, t core.Transaction, categoryName string) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	sheet := c.sheetName(t.Date.Year())

	rng := fmt.Sprintf("%s!A:A", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("get dimensions of %s: %w", sheet, err)
	}
	nextRow := len(resp.Values) + 1

	dataRange := fmt.Sprintf("%s!A%d:G%d", sheet, nextRow, nextRow)
	vr := &gsheet.ValueRange{Values: [][]any{transactionRow(t, categoryName)}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("write row to %s: %w", sheet, err)
	}

	ref := fmt.Sprintf("%s!A%d:G%d", sheet, nextRow, nextRow)
	slog.InfoContext(ctx, "appended transaction row",
		"transaction_id", t.ID,
		"sheet_ref", ref)
	return ref, nil
}

// Delete finds the row carrying the transaction id in the current
// year's sheet and clears it. A missing row is not an error, the
// export is best-effort and the row may never have been written.
func (c *Client) Delete(ctx context.Context, transactionID int64) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	sheet := c.sheetName(time.Now().Year())

	rng := fmt.Sprintf("%s!G:G", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read id column of %s: %w", sheet, err)
	}

	want := strconv.FormatInt(transactionID, 10)
	for i, row := range resp.Values {
		if len(row) == 0 || strings.TrimSpace(fmt.Sprint(row[0])) != want {
			continue
		}
		clearRange := fmt.Sprintf("%s!A%d:G%d", sheet, i+1, i+1)
		_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
			Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("clear row %s: %w", clearRange, err)
		}
		slog.InfoContext(ctx, "cleared transaction row",
			"transaction_id", transactionID,
			"sheet_ref", clearRange)
		return nil
	}

	slog.WarnContext(ctx, "no exported row found for transaction",
		"transaction_id", transactionID,
		"sheet", sheet)
	return nil
}

// ListMonth reads back the rows for the given year and month. Used by
// reconciliation tooling; parsing is best-effort and skips rows that
// do not look like transactions.
func (c *Client) ListMonth(ctx context.Context, year, month int) ([]ExportedRow, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("invalid month: %d", month)
	}
	rng := fmt.Sprintf("%s!A:G", c.sheetName(year))
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return parseExportedRows(resp.Values, month), nil
}

// sheetName returns "<year> <base>" unless the base already carries a
// 4-digit year prefix.
func (c *Client) sheetName(year int) string {
	base := strings.TrimSpace(c.ledgerBase)
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}

func transactionRow(t core.Transaction, categoryName string) []any {
	return []any{
		t.Date.String(),
		string(t.Type),
		categoryName,
		t.Amount.String(),
		t.Merchant,
		t.Memo,
		strconv.FormatInt(t.ID, 10),
	}
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
