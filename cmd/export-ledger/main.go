// export-ledger writes a client's approved journal entries to the regulator
// CSV (or XLSX), optionally archives the file to GCS, and marks the batch
// exported.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_NAME=... \
//     go run ./cmd/export-ledger -client <client-id> -out ledger.csv
//
// Flags:
//   -client   client id to export (required)
//   -out      output file path; extension picks the format (.csv or .xlsx)
//   -archive  also upload the file to the GCS_EXPORT_BUCKET bucket
//   -mark     flip the exported batch from approved to exported
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/ledgerlink_backend/config"
	"bitbucket.org/mmdatafocus/ledgerlink_backend/export"
	"bitbucket.org/mmdatafocus/ledgerlink_backend/models"
	"bitbucket.org/mmdatafocus/ledgerlink_backend/utils"
)

func main() {
	clientId := flag.String("client", "", "client id to export")
	out := flag.String("out", "ledger.csv", "output file (.csv or .xlsx)")
	archive := flag.Bool("archive", false, "upload the export to GCS")
	mark := flag.Bool("mark", false, "mark exported entries")
	flag.Parse()

	if strings.TrimSpace(*clientId) == "" {
		fmt.Fprintln(os.Stderr, "-client is required")
		os.Exit(2)
	}

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	ctx := utils.SetClientIdInContext(context.Background(), *clientId)

	entries, err := models.GetEntriesByStatus(ctx, *clientId, models.EntryStatusApproved)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load approved entries: %v\n", err)
		os.Exit(1)
	}
	if len(entries) == 0 {
		fmt.Println("nothing to export: no approved entries")
		return
	}
	chart, err := models.GetChartMap(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load chart of accounts: %v\n", err)
		os.Exit(1)
	}

	rows, err := export.Format(entries, chart)
	if err != nil {
		fmt.Fprintf(os.Stderr, "export aborted: %v\n", err)
		os.Exit(1)
	}

	var buf bytes.Buffer
	contentType := "text/csv"
	switch strings.ToLower(filepath.Ext(*out)) {
	case ".xlsx":
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		err = export.WriteXLSX(&buf, rows)
	default:
		err = export.WriteCSV(&buf, rows)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to render export: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(*out, buf.Bytes(), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write %s: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Printf("wrote %d entries to %s\n", len(entries), *out)

	if *archive {
		objectName := fmt.Sprintf("exports/%s/%s-%s", *clientId, time.Now().UTC().Format("20060102T150405Z"), filepath.Base(*out))
		if err := utils.SaveExportToGCS(ctx, objectName, contentType, buf.Bytes()); err != nil {
			fmt.Fprintf(os.Stderr, "failed to archive export: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("archived as %s\n", objectName)
	}

	if *mark {
		ids := make([]int, 0, len(entries))
		for _, entry := range entries {
			ids = append(ids, entry.ID)
		}
		if err := export.MarkExported(ctx, *clientId, ids); err != nil {
			fmt.Fprintf(os.Stderr, "failed to mark entries exported: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("marked %d entries exported\n", len(ids))
	}
}
