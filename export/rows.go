// Package export renders approved journal entries into the fixed-layout
// files the regulator accepts. Formatting is a hard gate: one unmappable
// account aborts the whole export instead of producing a file with holes.
package export

import (
	"fmt"
	"sort"

	"bitbucket.org/mmdatafocus/ledgerlink_backend/models"
	"github.com/shopspring/decimal"
)

// UnmappedAccountError aborts an export whose entries reference an account
// missing from the chart. Never downgraded to an empty cell.
type UnmappedAccountError struct {
	AccountCode string
	ExternalId  string
}

func (e *UnmappedAccountError) Error() string {
	return fmt.Sprintf("entry %s references account %s not present in the chart", e.ExternalId, e.AccountCode)
}

// Row is one line of the export file. All amounts are pre-rendered strings
// with exactly two decimals; a row fills the debit column or the credit
// column, never both.
type Row struct {
	Date           string
	DocumentNumber string
	Description    string
	AccountCode    string
	AccountName    string
	Debit          string
	Credit         string
	Recorder       string
}

// Header is the fixed column order. The regulator's importer matches by
// position, so this never changes without a format version bump.
func Header() []string {
	return []string{
		"Date",
		"Document No",
		"Description",
		"Account Code",
		"Account Name",
		"Debit",
		"Credit",
		"Recorded By",
	}
}

// Format converts entries to export rows in deterministic
// (entry_date, external_id) order. The chart is consulted for the account
// name even when the entry carries one, so the export always reflects the
// current chart.
func Format(entries []models.JournalEntry, chart map[string]models.ChartOfAccount) ([]Row, error) {
	sorted := make([]models.JournalEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].EntryDate.Equal(sorted[j].EntryDate) {
			return sorted[i].EntryDate.Before(sorted[j].EntryDate)
		}
		return sorted[i].ExternalId < sorted[j].ExternalId
	})

	rows := make([]Row, 0, len(sorted))
	for _, entry := range sorted {
		acc, ok := chart[entry.AccountCode]
		if !ok {
			return nil, &UnmappedAccountError{AccountCode: entry.AccountCode, ExternalId: entry.ExternalId}
		}

		amount := decimal.New(entry.AmountMinorUnits, -2).StringFixed(2)
		row := Row{
			Date:           entry.EntryDate.UTC().Format("2006-01-02"),
			DocumentNumber: entry.ExternalId,
			Description:    entry.Description,
			AccountCode:    entry.AccountCode,
			AccountName:    acc.Name,
			Recorder:       recorder(entry),
		}
		if entry.Direction == models.EntryDirectionCredit {
			row.Credit = amount
		} else {
			row.Debit = amount
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func recorder(entry models.JournalEntry) string {
	if entry.ApprovedBy != "" {
		return entry.ApprovedBy
	}
	return entry.CreatedBy
}

func (r Row) columns() []string {
	return []string{
		r.Date,
		r.DocumentNumber,
		r.Description,
		r.AccountCode,
		r.AccountName,
		r.Debit,
		r.Credit,
		r.Recorder,
	}
}
