package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/ledgerlink_backend/config"
	"gorm.io/gorm"
)

// ErrWatermarkConflict means another run advanced the watermark since this
// run read it. The losing run must not advance from its stale snapshot.
var ErrWatermarkConflict = errors.New("sync watermark was advanced by a concurrent run")

// SyncWatermark is the per-client sync cursor. LastSyncedExternalId breaks
// ties between documents sharing a timestamp. The row is owned exclusively
// by the sync orchestrator and only ever moves forward.
type SyncWatermark struct {
	ID                   uint      `gorm:"primary_key" json:"id"`
	ClientId             string    `gorm:"uniqueIndex;size:100;not null" json:"client_id"`
	LastSyncedAt         time.Time `gorm:"not null" json:"last_synced_at"`
	LastSyncedExternalId string    `gorm:"size:128" json:"last_synced_external_id"`
	CreatedAt            time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// watermarkEpoch is where a fresh cursor starts. Unix zero keeps the column
// inside MySQL's DATETIME range; Go's zero time (year 1) is not.
var watermarkEpoch = time.Unix(0, 0).UTC()

func newWatermark(clientId string) SyncWatermark {
	return SyncWatermark{ClientId: clientId, LastSyncedAt: watermarkEpoch}
}

// GetOrCreateWatermark reads the client's cursor, creating an epoch cursor on
// first sync.
func GetOrCreateWatermark(ctx context.Context, clientId string) (*SyncWatermark, error) {
	db := config.GetDB().WithContext(ctx)

	var wm SyncWatermark
	err := db.Where("client_id = ?", clientId).Take(&wm).Error
	if err == nil {
		return &wm, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	wm = newWatermark(clientId)
	if err := db.Create(&wm).Error; err != nil {
		if isDuplicateKeyErr(err) {
			// Concurrent first sync; re-read the winner's row.
			if err := db.Where("client_id = ?", clientId).Take(&wm).Error; err != nil {
				return nil, err
			}
			return &wm, nil
		}
		return nil, err
	}
	return &wm, nil
}

// AdvanceWatermark moves the cursor forward with compare-and-swap semantics:
// the update only succeeds if the stored cursor still matches the snapshot
// read at run start. Never called before the corresponding entries are
// durably persisted.
func AdvanceWatermark(ctx context.Context, read *SyncWatermark, newAt time.Time, newExternalId string) error {
	if newAt.Before(read.LastSyncedAt) {
		return nil // monotonic-forward only
	}
	res := config.GetDB().WithContext(ctx).
		Model(&SyncWatermark{}).
		Where("client_id = ? AND last_synced_at = ? AND last_synced_external_id = ?",
			read.ClientId, read.LastSyncedAt, read.LastSyncedExternalId).
		Updates(map[string]interface{}{
			"last_synced_at":          newAt,
			"last_synced_external_id": newExternalId,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrWatermarkConflict
	}
	read.LastSyncedAt = newAt
	read.LastSyncedExternalId = newExternalId
	return nil
}
