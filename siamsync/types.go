// Package siamsync synchronizes SiamBooks documents into journal entries.
// One run fetches documents past the client's watermark, classifies each one
// and persists the resulting entries, then advances the watermark only over
// the contiguous prefix of persisted work.
package siamsync

import (
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/ledgerlink_backend/models"
)

type ConnectRequest struct {
	StoreId   string `json:"storeId" binding:"required"`
	StoreName string `json:"storeName"`
	APIKey    string `json:"apiKey" binding:"required"`
}

type TriggerSyncRequest struct {
	Note string `json:"note"`
}

type StatusResponse struct {
	Connection ConnectionResponse `json:"connection"`
	LastSyncAt *string            `json:"lastSyncAt"`
	Watermark  *WatermarkResponse `json:"watermark"`
}

type ConnectionResponse struct {
	Status    string `json:"status"`
	StoreId   string `json:"storeId"`
	StoreName string `json:"storeName"`
}

type WatermarkResponse struct {
	LastSyncedAt         string `json:"lastSyncedAt"`
	LastSyncedExternalId string `json:"lastSyncedExternalId"`
}

type SyncHistoryResponse struct {
	Items []SyncRunResponse `json:"items"`
}

type SyncRunResponse struct {
	ID              uint    `json:"id"`
	Status          string  `json:"status"`
	TriggeredBy     string  `json:"triggeredBy"`
	Note            string  `json:"note,omitempty"`
	StartedAt       *string `json:"startedAt"`
	FinishedAt      *string `json:"finishedAt"`
	DurationMs      int64   `json:"durationMs"`
	FetchedCount    int     `json:"fetchedCount"`
	ClassifiedCount int     `json:"classifiedCount"`
	PersistedCount  int     `json:"persistedCount"`
	FailedCount     int     `json:"failedCount"`
}

type SyncRunDetailResponse struct {
	SyncRunResponse
	Errors []SyncErrorResponse `json:"errors"`
}

type SyncErrorResponse struct {
	ID         uint   `json:"id"`
	ExternalId string `json:"externalId"`
	ErrorCode  string `json:"errorCode"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable"`
}

type ReviewRequest struct {
	Version int    `json:"version"`
	Actor   string `json:"actor"`
}

// WebhookPayload is what SiamBooks posts when new documents are available.
type WebhookPayload struct {
	Event    string `json:"event"`
	ClientId string `json:"client_id"`
	StoreId  string `json:"store_id"`
}

type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type SyncPubSubPayload struct {
	RunId    uint   `json:"run_id"`
	ClientId string `json:"client_id"`
}

// RunSummary is the outcome of one worker run, before it is written back to
// the SyncRun row.
type RunSummary struct {
	Fetched    int
	Skipped    int
	Classified int
	Persisted  int
	Failed     int
	Status     string
	Watermark  models.SyncWatermark
}

func (s RunSummary) MarshalLog() []byte {
	b, _ := json.Marshal(map[string]interface{}{
		"fetched":    s.Fetched,
		"skipped":    s.Skipped,
		"classified": s.Classified,
		"persisted":  s.Persisted,
		"failed":     s.Failed,
		"status":     s.Status,
	})
	return b
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
