package google

import (
	"strconv"
	"strings"

	"github.com/garyjeong/household-ledger-server/internal/core"
)

// ExportedRow is one parsed ledger row as read back from the sheet.
type ExportedRow struct {
	TransactionID int64
	Date          core.Date
	Type          core.TransactionType
	Category      string
	Amount        core.Money
	Merchant      string
	Memo          string
}

// parseExportedRows filters a values matrix down to the rows of the
// given month. Header rows, cleared rows and anything unparseable is
// skipped.
func parseExportedRows(values [][]any, month int) []ExportedRow {
	var out []ExportedRow
	for _, raw := range values {
		cols := toStrings(raw)
		if len(cols) < 4 {
			continue
		}
		date, err := core.ParseDate(cols[0])
		if err != nil || date.Month() != month {
			continue
		}
		amount, err := core.ParseMoney(cols[3])
		if err != nil {
			continue
		}
		row := ExportedRow{
			Date:     date,
			Type:     core.TransactionType(cols[1]),
			Category: cols[2],
			Amount:   amount,
		}
		if len(cols) >= 5 {
			row.Merchant = cols[4]
		}
		if len(cols) >= 6 {
			row.Memo = cols[5]
		}
		if len(cols) >= 7 {
			if id, err := strconv.ParseInt(strings.TrimSpace(cols[6]), 10, 64); err == nil {
				row.TransactionID = id
			}
		}
		out = append(out, row)
	}
	return out
}
