// seed-chart inserts any missing default chart-of-accounts rows. Existing
// codes are never modified, so reruns are safe.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_NAME=... go run ./cmd/seed-chart
package main

import (
	"context"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/ledgerlink_backend/config"
	"bitbucket.org/mmdatafocus/ledgerlink_backend/models"
)

func main() {
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	models.MigrateTable()

	if err := models.SeedChartOfAccounts(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed chart of accounts: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("chart of accounts seeded (%d codes ensured)\n", len(models.DefaultChart()))
}
