package models

import (
	"bitbucket.org/mmdatafocus/ledgerlink_backend/config"
	"bitbucket.org/mmdatafocus/ledgerlink_backend/utils"
)

func MigrateTable() {
	db := config.GetDB()

	utils.ErrorPanic(db.AutoMigrate(
		&ChartOfAccount{},
		&JournalEntry{},
		&SyncWatermark{},
		&ProviderConnection{},
		&SyncRun{}, &SyncError{},
	))
}
