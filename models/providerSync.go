package models

import "time"

// ProviderConnection links a client to its SiamBooks account. AuthSecretRef
// holds the vault-encrypted API key; no raw secret is ever persisted.
type ProviderConnection struct {
	ID            uint       `gorm:"primary_key" json:"id"`
	ClientId      string     `gorm:"uniqueIndex:idx_provider_conn,priority:1;size:100;not null" json:"client_id"`
	Provider      string     `gorm:"uniqueIndex:idx_provider_conn,priority:2;size:50;not null" json:"provider"`
	Status        string     `gorm:"size:20;not null" json:"status"`
	AuthSecretRef string     `gorm:"type:text" json:"auth_secret_ref"`
	StoreId       string     `gorm:"size:100" json:"store_id"`
	StoreName     string     `gorm:"size:255" json:"store_name"`
	LastSyncAt    *time.Time `json:"last_sync_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// SyncRun records one orchestrator run per client with its outcome summary.
type SyncRun struct {
	ID              uint       `gorm:"primary_key" json:"id"`
	ClientId        string     `gorm:"index;not null" json:"client_id"`
	Provider        string     `gorm:"index;size:50;not null" json:"provider"`
	Status          string     `gorm:"size:20;not null" json:"status"`
	TriggeredBy     string     `gorm:"size:20" json:"triggered_by"`
	Note            string     `gorm:"size:255" json:"note"`
	FetchedCount    int        `json:"fetched_count"`
	ClassifiedCount int        `json:"classified_count"`
	PersistedCount  int        `json:"persisted_count"`
	FailedCount     int        `json:"failed_count"`
	WatermarkAt     *time.Time `json:"watermark_at"`
	WatermarkId     string     `gorm:"size:128" json:"watermark_id"`
	ParentRunId     *uint      `gorm:"index" json:"parent_run_id"`
	StartedAt       *time.Time `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at"`
	DurationMs      int64      `json:"duration_ms"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// SyncError is one failed document within a run, kept visible for operator
// follow-up and retried on the next run because the watermark never passes
// a failed document.
type SyncError struct {
	ID         uint      `gorm:"primary_key" json:"id"`
	SyncRunId  uint      `gorm:"index;not null" json:"sync_run_id"`
	ClientId   string    `gorm:"index;not null" json:"client_id"`
	ExternalId string    `gorm:"size:128" json:"external_id"`
	ErrorCode  string    `gorm:"size:64" json:"error_code"`
	Message    string    `gorm:"type:text" json:"message"`
	Retryable  bool      `gorm:"default:false" json:"retryable"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}
