package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"

	"bitbucket.org/mmdatafocus/ledgerlink_backend/config"
	"bitbucket.org/mmdatafocus/ledgerlink_backend/models"
	"gorm.io/gorm"
)

// utf8BOM makes spreadsheet tools on Windows read Thai text correctly.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteCSV renders rows as the regulator CSV: UTF-8 with BOM, fixed header,
// comma separated with standard quoting.
func WriteCSV(w io.Writer, rows []Row) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(row.columns()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ApprovedCSV builds the CSV for a client's approved entries and returns the
// ids of the entries it contains, so the caller can mark exactly that batch
// exported.
func ApprovedCSV(ctx context.Context, clientId string) ([]byte, []int, error) {
	entries, err := models.GetEntriesByStatus(ctx, clientId, models.EntryStatusApproved)
	if err != nil {
		return nil, nil, err
	}
	chart, err := models.GetChartMap(ctx)
	if err != nil {
		return nil, nil, err
	}

	rows, err := Format(entries, chart)
	if err != nil {
		return nil, nil, err
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows); err != nil {
		return nil, nil, err
	}

	ids := make([]int, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.ID)
	}
	return buf.Bytes(), ids, nil
}

// MarkExported flips the batch to exported in one transaction, so a partially
// written export never leaves half its entries consumed.
func MarkExported(ctx context.Context, clientId string, ids []int) error {
	return config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return models.MarkEntriesExported(tx, clientId, ids)
	})
}
