package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/ledgerlink_backend/config"
	"bitbucket.org/mmdatafocus/ledgerlink_backend/utils"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

var (
	// ErrDuplicateExternalId means another run already created the entry for
	// this source document. Safe to treat as "already handled".
	ErrDuplicateExternalId = errors.New("journal entry already exists for external id")

	// ErrVersionConflict means a concurrent update won the optimistic race.
	ErrVersionConflict = errors.New("journal entry was modified concurrently")

	ErrInvalidStatusTransition = errors.New("invalid journal entry status transition")
)

// ClassificationResult is attached to the entry it produced and never
// mutated afterwards. Reasoning is kept for audit.
type ClassificationResult struct {
	AccountCode string               `gorm:"column:classified_code;size:16" json:"account_code"`
	Confidence  float64              `gorm:"column:classified_confidence" json:"confidence"`
	Reasoning   string               `gorm:"column:classified_reasoning;type:text" json:"reasoning"`
	Source      ClassificationSource `gorm:"column:classified_source;size:10" json:"source"`
}

type JournalEntry struct {
	ID               int                  `gorm:"primary_key" json:"id"`
	ClientId         string               `gorm:"uniqueIndex:idx_entry_external,priority:1;not null" json:"client_id"`
	ExternalId       string               `gorm:"uniqueIndex:idx_entry_external,priority:2;size:128;not null" json:"external_id"`
	EntryDate        time.Time            `gorm:"index;not null" json:"entry_date"`
	AccountCode      string               `gorm:"size:16;not null" json:"account_code"`
	AccountName      string               `gorm:"size:255;not null" json:"account_name"`
	Description      string               `gorm:"size:500" json:"description"`
	AmountMinorUnits int64                `gorm:"not null" json:"amount_minor_units"`
	Direction        EntryDirection       `gorm:"size:10;not null" json:"direction"`
	Status           EntryStatus          `gorm:"index;size:20;not null" json:"status"`
	Classification   ClassificationResult `gorm:"embedded" json:"classification"`
	CreatedBy        string               `gorm:"size:100" json:"created_by"`
	ApprovedBy       string               `gorm:"size:100" json:"approved_by"`
	Version          int                  `gorm:"not null;default:1" json:"version"`
	CreatedAt        time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

func (j *JournalEntry) GetId() int {
	return j.ID
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// DeriveDirection gives the posting side for a document landing on an
// account. Expense documents debit expense accounts; income documents credit
// income accounts. An account of the opposite nature posts on its own side.
func DeriveDirection(docType DocumentType, nature EntryDirection) EntryDirection {
	if nature.IsValid() {
		return nature
	}
	if docType == DocumentTypeIncome {
		return EntryDirectionCredit
	}
	return EntryDirectionDebit
}

func (j *JournalEntry) validate(ctx context.Context) error {
	if j.AmountMinorUnits <= 0 {
		return fmt.Errorf("amount must be positive, got %d", j.AmountMinorUnits)
	}
	if !j.Direction.IsValid() {
		return fmt.Errorf("invalid direction %q", j.Direction)
	}
	if !j.Status.IsValid() {
		return fmt.Errorf("invalid status %q", j.Status)
	}
	_, ok, err := GetAccountByCode(ctx, j.AccountCode)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("account code %q not in chart of accounts", j.AccountCode)
	}
	return nil
}

// CreateJournalEntry writes one entry atomically. The unique index on
// (client_id, external_id) is the real duplicate guard: concurrent runs that
// race on the same document get ErrDuplicateExternalId instead of a second
// row.
func CreateJournalEntry(ctx context.Context, entry *JournalEntry) error {
	if err := entry.validate(ctx); err != nil {
		return err
	}
	if entry.Version == 0 {
		entry.Version = 1
	}
	err := config.GetDB().WithContext(ctx).Create(entry).Error
	if err != nil {
		if isDuplicateKeyErr(err) {
			return ErrDuplicateExternalId
		}
		return err
	}
	return nil
}

// ExistingExternalIds returns which of the given ids already have an entry
// for the client. Used to skip already-synced documents.
func ExistingExternalIds(ctx context.Context, clientId string, externalIds []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	if len(externalIds) == 0 {
		return existing, nil
	}
	var ids []string
	err := config.GetDB().WithContext(ctx).
		Model(&JournalEntry{}).
		Where("client_id = ? AND external_id IN ?", clientId, externalIds).
		Pluck("external_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		existing[id] = true
	}
	return existing, nil
}

// GetEntriesByStatus lists a client's entries in a deterministic order.
func GetEntriesByStatus(ctx context.Context, clientId string, status EntryStatus) ([]JournalEntry, error) {
	var entries []JournalEntry
	err := config.GetDB().WithContext(ctx).
		Where("client_id = ? AND status = ?", clientId, status).
		Order("entry_date, external_id").
		Find(&entries).Error
	return entries, err
}

func GetJournalEntry(ctx context.Context, clientId string, id int) (*JournalEntry, error) {
	var entry JournalEntry
	err := config.GetDB().WithContext(ctx).
		Where("id = ? AND client_id = ?", id, clientId).
		Take(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// UpdateEntryStatus moves an entry through the review state machine with an
// optimistic version check. expectedVersion must be the version the caller
// read; a stale version returns ErrVersionConflict.
func UpdateEntryStatus(ctx context.Context, clientId string, id int, expectedVersion int, next EntryStatus, actor string) error {
	entry, err := GetJournalEntry(ctx, clientId, id)
	if err != nil {
		return err
	}
	if entry == nil {
		return utils.ErrorRecordNotFound
	}
	if !entry.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, entry.Status, next)
	}

	updates := map[string]interface{}{
		"status":  next,
		"version": gorm.Expr("version + 1"),
	}
	if next == EntryStatusApproved {
		updates["approved_by"] = actor
	}

	res := config.GetDB().WithContext(ctx).
		Model(&JournalEntry{}).
		Where("id = ? AND client_id = ? AND version = ?", id, clientId, expectedVersion).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

// MarkEntriesExported flips approved entries to exported inside the caller's
// transaction so an export either marks its whole batch or none of it.
func MarkEntriesExported(tx *gorm.DB, clientId string, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	return tx.Model(&JournalEntry{}).
		Where("client_id = ? AND id IN ? AND status = ?", clientId, ids, EntryStatusApproved).
		Updates(map[string]interface{}{
			"status":  EntryStatusExported,
			"version": gorm.Expr("version + 1"),
		}).Error
}
