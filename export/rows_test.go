package export

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/ledgerlink_backend/models"
)

func chartByCode() map[string]models.ChartOfAccount {
	chart := make(map[string]models.ChartOfAccount)
	for _, acc := range models.DefaultChart() {
		chart[acc.Code] = acc
	}
	return chart
}

func approvedEntry(externalId string, date time.Time, code string, minor int64, direction models.EntryDirection) models.JournalEntry {
	return models.JournalEntry{
		ClientId:         "client-1",
		ExternalId:       externalId,
		EntryDate:        date,
		AccountCode:      code,
		AccountName:      "stale name",
		Description:      "desc " + externalId,
		AmountMinorUnits: minor,
		Direction:        direction,
		Status:           models.EntryStatusApproved,
		ApprovedBy:       "somsak",
	}
}

func TestFormatRendersAmountsAndSides(t *testing.T) {
	date := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	entries := []models.JournalEntry{
		approvedEntry("EXP-1", date, "5110", 123450, models.EntryDirectionDebit),
		approvedEntry("INC-1", date, "4100", 999, models.EntryDirectionCredit),
	}

	rows, err := Format(entries, chartByCode())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	exp := rows[0]
	if exp.Debit != "1234.50" || exp.Credit != "" {
		t.Fatalf("expense must fill only debit: %+v", exp)
	}
	if exp.AccountName != "Utilities Expense" {
		t.Fatalf("account name must come from the chart, got %q", exp.AccountName)
	}
	if exp.Date != "2026-04-02" {
		t.Fatalf("bad date: %q", exp.Date)
	}
	if exp.Recorder != "somsak" {
		t.Fatalf("recorder must be the approver, got %q", exp.Recorder)
	}

	inc := rows[1]
	if inc.Credit != "9.99" || inc.Debit != "" {
		t.Fatalf("income must fill only credit: %+v", inc)
	}
}

func TestFormatDeterministicOrder(t *testing.T) {
	d1 := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	entries := []models.JournalEntry{
		approvedEntry("B", d2, "5000", 100, models.EntryDirectionDebit),
		approvedEntry("A", d2, "5000", 100, models.EntryDirectionDebit),
		approvedEntry("C", d1, "5000", 100, models.EntryDirectionDebit),
	}

	rows, err := Format(entries, chartByCode())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := []string{rows[0].DocumentNumber, rows[1].DocumentNumber, rows[2].DocumentNumber}
	want := []string{"C", "A", "B"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order mismatch: got %v want %v", got, want)
		}
	}
}

func TestFormatUnmappedAccountAborts(t *testing.T) {
	date := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	entries := []models.JournalEntry{
		approvedEntry("OK-1", date, "5110", 100, models.EntryDirectionDebit),
		approvedEntry("BAD-1", date, "9999", 100, models.EntryDirectionDebit),
	}

	rows, err := Format(entries, chartByCode())
	if rows != nil {
		t.Fatal("no partial output on unmapped account")
	}
	var unmapped *UnmappedAccountError
	if !errors.As(err, &unmapped) {
		t.Fatalf("expected UnmappedAccountError, got %v", err)
	}
	if unmapped.AccountCode != "9999" || unmapped.ExternalId != "BAD-1" {
		t.Fatalf("unexpected error detail: %+v", unmapped)
	}
}

func TestWriteCSV(t *testing.T) {
	date := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	entry := approvedEntry("EXP-1", date, "5110", 50000, models.EntryDirectionDebit)
	entry.Description = `electricity, "april"`

	rows, err := Format([]models.JournalEntry{entry}, chartByCode())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.Bytes()

	if !bytes.HasPrefix(out, utf8BOM) {
		t.Fatal("missing UTF-8 BOM")
	}

	lines := strings.Split(strings.TrimRight(string(out[len(utf8BOM):]), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	if lines[0] != "Date,Document No,Description,Account Code,Account Name,Debit,Credit,Recorded By" {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	if !strings.Contains(lines[1], `"electricity, ""april"""`) {
		t.Fatalf("description not quoted: %q", lines[1])
	}
	if !strings.Contains(lines[1], "500.00") {
		t.Fatalf("amount not two-decimal: %q", lines[1])
	}
}

func TestWriteCSVEmptyBatch(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := string(buf.Bytes()[len(utf8BOM):])
	if strings.Count(out, "\n") != 1 {
		t.Fatalf("empty batch must still emit the header: %q", out)
	}
}

func TestWriteXLSX(t *testing.T) {
	date := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	rows, err := Format([]models.JournalEntry{
		approvedEntry("EXP-1", date, "5110", 50000, models.EntryDirectionDebit),
	}, chartByCode())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteXLSX(&buf, rows); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("empty xlsx output")
	}
	// XLSX containers are zip files.
	if !bytes.HasPrefix(buf.Bytes(), []byte("PK")) {
		t.Fatal("output is not a zip container")
	}
}
