package api

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"waterops-backend/internal/auth"
	"waterops-backend/internal/syncdata"
)

// UploadSync handles the POST /api/sync/upload request: idempotent
// application of a batch of device-originated records. A malformed payload
// fails the whole request before any record is touched; business-rule
// failures on individual records never abort their siblings.
func (h *Handler) UploadSync(c *gin.Context) {
	var req syncdata.UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	user := auth.CurrentUser(c)
	ctx := c.Request.Context()

	result := syncdata.UploadResult{
		Readings: h.store.ApplyReadings(ctx, user.ID, req.Readings),
		Faults:   h.store.ApplyFaults(ctx, user.ID, req.Faults),
	}

	log.Printf("User %s synced data: %d readings created, %d updated, %d faults created, %d updated",
		user.Email, result.Readings.Created, result.Readings.Updated,
		result.Faults.Created, result.Faults.Updated)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Sync completed",
		"data":    result,
	})
}

// GetPendingSync handles the GET /api/sync/pending request: the download
// half of synchronization, oldest records first.
func (h *Handler) GetPendingSync(c *gin.Context) {
	user := auth.CurrentUser(c)
	ctx := c.Request.Context()

	readings, err := h.store.PendingReadings(ctx, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	faults, err := h.store.PendingFaults(ctx, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": syncdata.PendingData{
			Readings: readings,
			Faults:   faults,
		},
	})
}

// MarkSynced handles the POST /api/sync/mark-synced request.
func (h *Handler) MarkSynced(c *gin.Context) {
	var req syncdata.MarkSyncedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request data"})
		return
	}

	user := auth.CurrentUser(c)
	count, err := h.store.MarkSynced(c.Request.Context(), user.ID, req.Type, req.IDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("%d %s marked as synced", count, req.Type),
	})
}
