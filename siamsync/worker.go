package siamsync

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/ledgerlink_backend/classify"
	"bitbucket.org/mmdatafocus/ledgerlink_backend/config"
	"bitbucket.org/mmdatafocus/ledgerlink_backend/models"
	"bitbucket.org/mmdatafocus/ledgerlink_backend/utils"
	"bitbucket.org/mmdatafocus/ledgerlink_backend/vault"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const moduleName = "siamsync"

// Worker executes one sync run. Collaborators are injected so the run loop
// can be exercised without a database or a live provider.
type Worker struct {
	Source  DocumentSource
	Store   EntryStore
	Decider CategoryDecider
	Chart   map[string]models.ChartOfAccount
	RunId   uint

	// Pace throttles classification calls so a large backlog cannot burn
	// through the AI quota in one run.
	Pace time.Duration
}

// Run processes every document past the client's watermark in
// (issued_date, external_id) order. The watermark advances only over the
// contiguous prefix of documents that are durably persisted (or already
// were); a failed document pins the watermark before itself so the next run
// retries it, with the unique entry index absorbing any re-fetch of the
// documents after it.
func (w *Worker) Run(ctx context.Context, clientId string) (RunSummary, error) {
	logger := config.GetLogger()
	summary := RunSummary{Status: models.SyncRunStatusFailed}

	wm, err := w.Store.GetWatermark(ctx, clientId)
	if err != nil {
		return summary, err
	}

	docs, err := w.Source.ListDocuments(ctx, clientId, wm.LastSyncedAt)
	if err != nil {
		return summary, err
	}
	SortDocuments(docs)
	docs = dropBehindWatermark(docs, wm)
	summary.Fetched = len(docs)

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ExternalId)
	}
	existing, err := w.Store.ExistingExternalIds(ctx, clientId, ids)
	if err != nil {
		return summary, err
	}

	candidate := *wm
	advanced := false
	prefixClean := true
	aborted := false

	for _, doc := range docs {
		if ctx.Err() != nil {
			// Shutdown mid-run. Everything persisted so far is safe to pass;
			// the remaining documents belong to the next run.
			aborted = true
			break
		}

		if existing[doc.ExternalId] {
			summary.Skipped++
			if prefixClean {
				candidate.LastSyncedAt = doc.IssuedDate
				candidate.LastSyncedExternalId = doc.ExternalId
				advanced = true
			}
			continue
		}

		if w.Pace > 0 && summary.Classified > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(w.Pace):
			}
			if ctx.Err() != nil {
				// Cancelled while waiting; the in-flight document must not be
				// classified against a dead context and persisted as fallback.
				aborted = true
				break
			}
		}
		result := w.Decider.Decide(ctx, doc)
		summary.Classified++

		entry := w.buildEntry(doc, result)
		err := w.Store.CreateEntry(ctx, entry)
		if errors.Is(err, models.ErrDuplicateExternalId) {
			// A concurrent run got there first; counts as persisted work.
			summary.Skipped++
			if prefixClean {
				candidate.LastSyncedAt = doc.IssuedDate
				candidate.LastSyncedExternalId = doc.ExternalId
				advanced = true
			}
			continue
		}
		if err != nil {
			summary.Failed++
			prefixClean = false
			config.LogError(logger, moduleName, "Run", "persist journal entry failed", doc.ExternalId, err)
			_ = w.Store.RecordSyncError(ctx, models.SyncError{
				SyncRunId:  w.RunId,
				ClientId:   clientId,
				ExternalId: doc.ExternalId,
				ErrorCode:  "persist_failed",
				Message:    err.Error(),
				Retryable:  true,
			})
			continue
		}

		summary.Persisted++
		if prefixClean {
			candidate.LastSyncedAt = doc.IssuedDate
			candidate.LastSyncedExternalId = doc.ExternalId
			advanced = true
		}
	}

	if advanced {
		err := w.Store.AdvanceWatermark(ctx, wm, candidate.LastSyncedAt, candidate.LastSyncedExternalId)
		if errors.Is(err, models.ErrWatermarkConflict) {
			// Another run moved the cursor under us. Our entries are durable
			// and idempotent, so losing the cursor race is harmless.
			config.LogWarn(logger, moduleName, "Run", "watermark advanced by concurrent run", clientId)
		} else if err != nil {
			return summary, err
		}
	}
	summary.Watermark = *wm

	switch {
	case summary.Failed > 0 && summary.Persisted == 0 && summary.Skipped == 0:
		summary.Status = models.SyncRunStatusFailed
	case summary.Failed > 0 || aborted:
		// An interrupted run left documents behind; the next run picks them
		// up, but the run itself did not cover its whole fetch.
		summary.Status = models.SyncRunStatusPartial
	default:
		summary.Status = models.SyncRunStatusSuccess
	}
	return summary, nil
}

func (w *Worker) buildEntry(doc models.SourceDocument, result models.ClassificationResult) *models.JournalEntry {
	acc := w.Chart[result.AccountCode]
	return &models.JournalEntry{
		ClientId:         doc.ClientId,
		ExternalId:       doc.ExternalId,
		EntryDate:        doc.IssuedDate,
		AccountCode:      result.AccountCode,
		AccountName:      acc.Name,
		Description:      doc.Description,
		AmountMinorUnits: doc.AmountMinorUnits,
		Direction:        models.DeriveDirection(doc.Type, acc.Nature),
		Status:           models.EntryStatusPendingReview,
		Classification:   result,
		CreatedBy:        moduleName,
	}
}

// dropBehindWatermark removes documents at or before the cursor position.
// The provider boundary is inclusive, so re-seeing the exact watermark
// document is the normal case, not an error.
func dropBehindWatermark(docs []models.SourceDocument, wm *models.SyncWatermark) []models.SourceDocument {
	out := docs[:0]
	for _, doc := range docs {
		if doc.IssuedDate.Before(wm.LastSyncedAt) {
			continue
		}
		if doc.IssuedDate.Equal(wm.LastSyncedAt) && doc.ExternalId <= wm.LastSyncedExternalId {
			continue
		}
		out = append(out, doc)
	}
	return out
}

func processSyncRun(ctx context.Context, payload SyncPubSubPayload) error {
	if payload.RunId == 0 || payload.ClientId == "" {
		return errors.New("invalid payload")
	}

	logger := config.GetLogger()
	ctx = utils.SetClientIdInContext(ctx, payload.ClientId)
	db := config.GetDB().WithContext(ctx)

	tracer := otel.Tracer(moduleName)
	ctx, span := tracer.Start(ctx, "siamsync.run")
	span.SetAttributes(attribute.String("client_id", payload.ClientId), attribute.Int("run_id", int(payload.RunId)))
	defer span.End()

	var run models.SyncRun
	if err := db.Where("id = ? AND client_id = ?", payload.RunId, payload.ClientId).Take(&run).Error; err != nil {
		return err
	}
	if run.Status == models.SyncRunStatusSuccess || run.Status == models.SyncRunStatusFailed || run.Status == models.SyncRunStatusPartial {
		return nil
	}

	conn, err := getConnection(db, payload.ClientId)
	if err != nil {
		return err
	}
	if conn == nil || conn.Status != models.ConnectionStatusConnected {
		return errors.New("siambooks not connected")
	}

	// One run per client at a time; delivery retries re-queue the run.
	lock, err := utils.ClientLock(ctx, payload.ClientId, "siamsync", 10*time.Minute, moduleName, "processSyncRun")
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release(context.Background()) }()

	now := time.Now()
	startedAt := run.StartedAt
	if startedAt == nil {
		startedAt = &now
	}
	if err := db.Model(&run).Updates(map[string]interface{}{
		"status":     models.SyncRunStatusRunning,
		"started_at": startedAt,
	}).Error; err != nil {
		return err
	}

	worker, err := buildWorker(ctx, conn, run.ID)
	if err != nil {
		markRunFailed(db, &run, startedAt, err)
		return err
	}

	summary, err := worker.Run(ctx, payload.ClientId)
	if err != nil {
		config.LogError(logger, moduleName, "processSyncRun", "sync run failed", payload.ClientId, err)
		markRunFailed(db, &run, startedAt, err)
		return err
	}

	finishedAt := time.Now()
	logger.WithFields(logrus.Fields{
		"module":   moduleName,
		"funcName": "processSyncRun",
		"clientId": payload.ClientId,
		"runId":    payload.RunId,
		"summary":  string(summary.MarshalLog()),
	}).Info("sync run finished")

	if err := db.Model(&run).Updates(runCompletionUpdates(summary, *startedAt, finishedAt)).Error; err != nil {
		return err
	}

	return db.Model(&models.ProviderConnection{}).
		Where("id = ? AND client_id = ?", conn.ID, payload.ClientId).
		Update("last_sync_at", finishedAt).Error
}

// runCompletionUpdates renders a finished run's summary into the SyncRun
// column updates. A cursor that never left Go's zero time is not written:
// year 1 is outside MySQL's DATETIME range.
func runCompletionUpdates(summary RunSummary, startedAt, finishedAt time.Time) map[string]interface{} {
	updates := map[string]interface{}{
		"status":           summary.Status,
		"fetched_count":    summary.Fetched,
		"classified_count": summary.Classified,
		"persisted_count":  summary.Persisted,
		"failed_count":     summary.Failed,
		"finished_at":      finishedAt,
		"duration_ms":      finishedAt.Sub(startedAt).Milliseconds(),
	}
	if !summary.Watermark.LastSyncedAt.IsZero() {
		updates["watermark_at"] = summary.Watermark.LastSyncedAt
		updates["watermark_id"] = summary.Watermark.LastSyncedExternalId
	}
	return updates
}

func buildWorker(ctx context.Context, conn *models.ProviderConnection, runId uint) (*Worker, error) {
	v, err := vault.New()
	if err != nil {
		return nil, err
	}
	apiKey, err := v.Decrypt(conn.AuthSecretRef)
	if err != nil {
		return nil, err
	}

	client, err := newSiamClient(apiKey)
	if err != nil {
		return nil, err
	}

	chart, err := models.GetChartMap(ctx)
	if err != nil {
		return nil, err
	}
	rules, err := classify.LoadRuleTable(strings.TrimSpace(os.Getenv("CLASSIFY_RULES_PATH")), chart)
	if err != nil {
		return nil, err
	}

	var ai classify.Classifier
	if strings.TrimSpace(os.Getenv("GEMINI_API_KEY")) != "" {
		gemini, err := classify.NewGeminiClassifier(ctx, chart)
		if err != nil {
			config.LogError(config.GetLogger(), moduleName, "buildWorker", "gemini classifier unavailable, continuing with rules only", conn.ClientId, err)
		} else {
			ai = gemini
		}
	}

	return &Worker{
		Source: client,
		Store:  NewStore(),
		Decider: &classify.Decider{
			Rules:       rules,
			AI:          ai,
			Chart:       chart,
			AIThreshold: classify.AIThresholdFromEnv(),
		},
		Chart: chart,
		RunId: runId,
		Pace:  classifyPaceFromEnv(),
	}, nil
}

func classifyPaceFromEnv() time.Duration {
	raw := strings.TrimSpace(os.Getenv("CLASSIFY_DELAY_MS"))
	if raw == "" {
		return 200 * time.Millisecond
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms < 0 {
		return 200 * time.Millisecond
	}
	return time.Duration(ms) * time.Millisecond
}

func markRunFailed(db *gorm.DB, run *models.SyncRun, startedAt *time.Time, cause error) {
	finishedAt := time.Now()
	_ = db.Model(run).Updates(map[string]interface{}{
		"status":      models.SyncRunStatusFailed,
		"finished_at": finishedAt,
		"duration_ms": finishedAt.Sub(*startedAt).Milliseconds(),
	}).Error
	_ = db.Create(&models.SyncError{
		SyncRunId: run.ID,
		ClientId:  run.ClientId,
		ErrorCode: "run_failed",
		Message:   cause.Error(),
		Retryable: true,
	}).Error
}
