package siamsync

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/ledgerlink_backend/config"
	"bitbucket.org/mmdatafocus/ledgerlink_backend/models"
	"bitbucket.org/mmdatafocus/ledgerlink_backend/utils"
	"bitbucket.org/mmdatafocus/ledgerlink_backend/vault"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

func StatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientId, err := resolveClientID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		ctx := utils.SetClientIdInContext(c.Request.Context(), clientId)
		db := config.GetDB().WithContext(ctx)

		conn, err := getConnection(db, clientId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if conn == nil {
			c.JSON(http.StatusOK, StatusResponse{
				Connection: ConnectionResponse{Status: models.ConnectionStatusDisconnected},
			})
			return
		}

		resp := StatusResponse{
			Connection: ConnectionResponse{
				Status:    conn.Status,
				StoreId:   conn.StoreId,
				StoreName: conn.StoreName,
			},
			LastSyncAt: formatTime(conn.LastSyncAt),
		}

		var wm models.SyncWatermark
		if err := db.Where("client_id = ?", clientId).Take(&wm).Error; err == nil {
			resp.Watermark = &WatermarkResponse{
				LastSyncedAt:         wm.LastSyncedAt.UTC().Format(time.RFC3339),
				LastSyncedExternalId: wm.LastSyncedExternalId,
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}

// ConnectHandler stores the SiamBooks credentials. The API key is sealed by
// the vault before it touches the database; the raw key exists only in this
// request's memory.
func ConnectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientId, err := resolveClientID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req ConnectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			var validationErrs validator.ValidationErrors
			if errors.As(err, &validationErrs) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if strings.TrimSpace(req.StoreId) == "" || strings.TrimSpace(req.APIKey) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "storeId and apiKey are required"})
			return
		}

		v, err := vault.New()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		sealed, err := v.Encrypt(strings.TrimSpace(req.APIKey))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		ctx := utils.SetClientIdInContext(c.Request.Context(), clientId)
		db := config.GetDB().WithContext(ctx)

		conn, err := getConnection(db, clientId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		now := time.Now()
		storeName := strings.TrimSpace(req.StoreName)
		if storeName == "" {
			storeName = req.StoreId
		}

		if conn == nil {
			conn = &models.ProviderConnection{
				ClientId:      clientId,
				Provider:      models.ProviderSiamBooks,
				Status:        models.ConnectionStatusConnected,
				AuthSecretRef: sealed,
				StoreId:       req.StoreId,
				StoreName:     storeName,
			}
			if err := db.Create(conn).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		} else {
			if err := db.Model(conn).Updates(map[string]interface{}{
				"status":          models.ConnectionStatusConnected,
				"auth_secret_ref": sealed,
				"store_id":        req.StoreId,
				"store_name":      storeName,
				"updated_at":      now,
			}).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func DisconnectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientId, err := resolveClientID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		ctx := utils.SetClientIdInContext(c.Request.Context(), clientId)
		db := config.GetDB().WithContext(ctx)

		conn, err := getConnection(db, clientId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if conn == nil {
			c.JSON(http.StatusOK, gin.H{"success": true})
			return
		}

		if err := db.Model(conn).Updates(map[string]interface{}{
			"status":          models.ConnectionStatusDisconnected,
			"auth_secret_ref": "",
			"updated_at":      time.Now(),
		}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func TriggerSyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientId, err := resolveClientID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req TriggerSyncRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
				return
			}
		}

		ctx := utils.SetClientIdInContext(c.Request.Context(), clientId)
		runId, err := queueSyncRun(ctx, clientId, models.SyncTriggeredManual, nil, strings.TrimSpace(req.Note))
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, errNotConnected) {
				status = http.StatusConflict
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": runId})
	}
}

func SyncHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientId, err := resolveClientID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		limit := 20
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}

		ctx := utils.SetClientIdInContext(c.Request.Context(), clientId)
		db := config.GetDB().WithContext(ctx)

		var runs []models.SyncRun
		if err := db.Where("client_id = ? AND provider = ?", clientId, models.ProviderSiamBooks).
			Order("id desc").
			Limit(limit).
			Find(&runs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		items := make([]SyncRunResponse, 0, len(runs))
		for _, run := range runs {
			items = append(items, mapRunToResponse(run))
		}
		c.JSON(http.StatusOK, SyncHistoryResponse{Items: items})
	}
}

func SyncRunDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientId, err := resolveClientID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		ctx := utils.SetClientIdInContext(c.Request.Context(), clientId)
		db := config.GetDB().WithContext(ctx)

		var run models.SyncRun
		if err := db.Where("id = ? AND client_id = ?", id, clientId).Take(&run).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		var errs []models.SyncError
		if err := db.Where("sync_run_id = ?", run.ID).Order("id desc").Find(&errs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, SyncRunDetailResponse{
			SyncRunResponse: mapRunToResponse(run),
			Errors:          mapErrors(errs),
		})
	}
}

func RetrySyncRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientId, err := resolveClientID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		ctx := utils.SetClientIdInContext(c.Request.Context(), clientId)
		db := config.GetDB().WithContext(ctx)

		var run models.SyncRun
		if err := db.Where("id = ? AND client_id = ?", id, clientId).Take(&run).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		runId, err := queueSyncRun(ctx, clientId, models.SyncTriggeredRetry, &run.ID, "")
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, errNotConnected) {
				status = http.StatusConflict
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": runId})
	}
}

// WebhookHandler is the inbound boundary from SiamBooks. The body signature
// is verified before anything is parsed or persisted.
func WebhookHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}

		if err := utils.VerifyWebhookSignature(body, c.GetHeader("X-Signature")); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}

		var payload WebhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}
		clientId := strings.TrimSpace(payload.ClientId)
		if clientId == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "client_id is required"})
			return
		}

		ctx := utils.SetClientIdInContext(c.Request.Context(), clientId)
		runId, err := queueSyncRun(ctx, clientId, models.SyncTriggeredWebhook, nil, strings.TrimSpace(payload.Event))
		if err != nil {
			if errors.Is(err, errNotConnected) {
				// Webhook for a disconnected client is acknowledged, not retried.
				c.JSON(http.StatusOK, gin.H{"queued": false})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"queued": true, "id": runId})
	}
}

func PendingEntriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientId, err := resolveClientID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		status := models.EntryStatus(strings.TrimSpace(c.DefaultQuery("status", string(models.EntryStatusPendingReview))))
		if !status.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}

		ctx := utils.SetClientIdInContext(c.Request.Context(), clientId)
		entries, err := models.GetEntriesByStatus(ctx, clientId, status)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": entries})
	}
}

func ApproveEntryHandler() gin.HandlerFunc {
	return reviewEntryHandler(models.EntryStatusApproved)
}

func RejectEntryHandler() gin.HandlerFunc {
	return reviewEntryHandler(models.EntryStatusRejected)
}

func reviewEntryHandler(next models.EntryStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientId, err := resolveClientID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entry id"})
			return
		}

		var req ReviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if req.Version <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "version is required"})
			return
		}
		actor := strings.TrimSpace(req.Actor)
		if actor == "" {
			actor, _ = utils.GetActorFromContext(c.Request.Context())
		}

		ctx := utils.SetClientIdInContext(c.Request.Context(), clientId)
		err = models.UpdateEntryStatus(ctx, clientId, id, req.Version, next, actor)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, gin.H{"success": true})
		case errors.Is(err, utils.ErrorRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		case errors.Is(err, models.ErrVersionConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "entry was modified, reload and retry"})
		case errors.Is(err, models.ErrInvalidStatusTransition):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
	}
}

var errNotConnected = errors.New("siambooks is not connected")

func queueSyncRun(ctx context.Context, clientId string, triggeredBy string, parentRunId *uint, note string) (uint, error) {
	db := config.GetDB().WithContext(ctx)

	conn, err := getConnection(db, clientId)
	if err != nil {
		return 0, err
	}
	if conn == nil || conn.Status != models.ConnectionStatusConnected {
		return 0, errNotConnected
	}

	run := models.SyncRun{
		ClientId:    clientId,
		Provider:    models.ProviderSiamBooks,
		Status:      models.SyncRunStatusQueued,
		TriggeredBy: triggeredBy,
		Note:        note,
		ParentRunId: parentRunId,
	}
	if err := db.Create(&run).Error; err != nil {
		return 0, err
	}

	if err := PublishSyncRun(ctx, run.ID, clientId); err != nil {
		config.LogError(config.GetLogger(), moduleName, "queueSyncRun", "publish sync run failed", clientId, err)
	}
	return run.ID, nil
}

func resolveClientID(c *gin.Context) (string, error) {
	if clientId, ok := utils.GetClientIdFromContext(c.Request.Context()); ok && strings.TrimSpace(clientId) != "" {
		return strings.TrimSpace(clientId), nil
	}
	clientId := strings.TrimSpace(c.GetHeader("X-Client-Id"))
	if clientId == "" {
		clientId = strings.TrimSpace(c.Query("client_id"))
	}
	if clientId == "" {
		return "", errors.New("client id is required")
	}
	return clientId, nil
}

func mapRunToResponse(run models.SyncRun) SyncRunResponse {
	return SyncRunResponse{
		ID:              run.ID,
		Status:          run.Status,
		TriggeredBy:     run.TriggeredBy,
		Note:            run.Note,
		StartedAt:       formatTime(run.StartedAt),
		FinishedAt:      formatTime(run.FinishedAt),
		DurationMs:      run.DurationMs,
		FetchedCount:    run.FetchedCount,
		ClassifiedCount: run.ClassifiedCount,
		PersistedCount:  run.PersistedCount,
		FailedCount:     run.FailedCount,
	}
}

func mapErrors(errorsList []models.SyncError) []SyncErrorResponse {
	out := make([]SyncErrorResponse, 0, len(errorsList))
	for _, errItem := range errorsList {
		out = append(out, SyncErrorResponse{
			ID:         errItem.ID,
			ExternalId: errItem.ExternalId,
			ErrorCode:  errItem.ErrorCode,
			Message:    errItem.Message,
			Retryable:  errItem.Retryable,
		})
	}
	return out
}
