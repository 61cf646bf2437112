package siamsync

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/ledgerlink_backend/config"
	"bitbucket.org/mmdatafocus/ledgerlink_backend/models"
	"gorm.io/gorm"
)

// DocumentSource lists provider documents issued at or after a boundary.
type DocumentSource interface {
	ListDocuments(ctx context.Context, clientId string, since time.Time) ([]models.SourceDocument, error)
}

// EntryStore is the persistence surface the worker needs, kept narrow so
// runs can be tested without a database.
type EntryStore interface {
	GetWatermark(ctx context.Context, clientId string) (*models.SyncWatermark, error)
	AdvanceWatermark(ctx context.Context, read *models.SyncWatermark, newAt time.Time, newExternalId string) error
	ExistingExternalIds(ctx context.Context, clientId string, externalIds []string) (map[string]bool, error)
	CreateEntry(ctx context.Context, entry *models.JournalEntry) error
	RecordSyncError(ctx context.Context, syncErr models.SyncError) error
}

// CategoryDecider resolves one document's classification.
type CategoryDecider interface {
	Decide(ctx context.Context, doc models.SourceDocument) models.ClassificationResult
}

type gormStore struct{}

// NewStore returns the gorm-backed EntryStore used outside tests.
func NewStore() EntryStore {
	return gormStore{}
}

func (gormStore) GetWatermark(ctx context.Context, clientId string) (*models.SyncWatermark, error) {
	return models.GetOrCreateWatermark(ctx, clientId)
}

func (gormStore) AdvanceWatermark(ctx context.Context, read *models.SyncWatermark, newAt time.Time, newExternalId string) error {
	return models.AdvanceWatermark(ctx, read, newAt, newExternalId)
}

func (gormStore) ExistingExternalIds(ctx context.Context, clientId string, externalIds []string) (map[string]bool, error) {
	return models.ExistingExternalIds(ctx, clientId, externalIds)
}

func (gormStore) CreateEntry(ctx context.Context, entry *models.JournalEntry) error {
	return models.CreateJournalEntry(ctx, entry)
}

func (gormStore) RecordSyncError(ctx context.Context, syncErr models.SyncError) error {
	return config.GetDB().WithContext(ctx).Create(&syncErr).Error
}

func getConnection(db *gorm.DB, clientId string) (*models.ProviderConnection, error) {
	var conn models.ProviderConnection
	err := db.Where("client_id = ? AND provider = ?", clientId, models.ProviderSiamBooks).Take(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conn, nil
}
