package google

import (
	"testing"
)

func TestParseExportedRowsFiltersMonth(t *testing.T) {
	values := [][]any{
		{"Date", "Type", "Category", "Amount", "Merchant", "Memo", "ID"},
		{"2024-03-15", "EXPENSE", "식비", "50000.00", "이마트", "", "7"},
		{"2024-04-01", "EXPENSE", "식비", "12000.00", "", "", "8"},
		{"", "", "", "", "", "", ""}, // cleared row
		{"2024-03-20", "INCOME", "급여", "3000000.00", "", "3월 급여", "9"},
	}

	rows := parseExportedRows(values, 3)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].TransactionID != 7 || rows[0].Amount.Cents != 5000000 {
		t.Fatalf("first row = %+v", rows[0])
	}
	if rows[1].Memo != "3월 급여" {
		t.Fatalf("second row memo = %q", rows[1].Memo)
	}
}

func TestParseExportedRowsSkipsGarbage(t *testing.T) {
	values := [][]any{
		{"not-a-date", "EXPENSE", "식비", "100.00"},
		{"2024-03-15", "EXPENSE", "식비", "not-money"},
		{"2024-03-15"},
	}
	if rows := parseExportedRows(values, 3); len(rows) != 0 {
		t.Fatalf("rows = %+v, want none", rows)
	}
}
