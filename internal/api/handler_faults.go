package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"waterops-backend/internal/auth"
	"waterops-backend/internal/model"
)

type updateFaultStatusRequest struct {
	Status     model.FaultStatus `json:"status" binding:"required,oneof=open assigned in_progress resolved closed"`
	AssignedTo *string           `json:"assignedTo,omitempty" binding:"omitempty,uuid"`
}

// UpdateFaultStatus handles the PUT /api/faults/:id/status request. The
// resolved timestamp is set exactly once, when the status first becomes
// resolved; a later update that re-sends resolved leaves it untouched.
func UpdateFaultStatus(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateFaultStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}

		user := auth.CurrentUser(c)
		faultID := c.Param("id")

		query := db.Where("id = ?", faultID)
		if user.Role == model.RoleOperator {
			query = query.Where("reported_by = ?", user.ID)
		}

		var fault model.Fault
		if err := query.First(&fault).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Fault not found or access denied"})
			} else {
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			}
			return
		}

		fault.Status = req.Status
		if req.AssignedTo != nil {
			fault.AssignedTo = req.AssignedTo
		}
		if req.Status == model.FaultResolved && fault.ResolvedAt == nil {
			now := time.Now().UTC()
			fault.ResolvedAt = &now
		}

		if err := db.Save(&fault).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data": gin.H{
				"id":         fault.ID,
				"status":     fault.Status,
				"assignedTo": fault.AssignedTo,
				"resolvedAt": fault.ResolvedAt,
				"updatedAt":  fault.UpdatedAt,
			},
		})
	}
}
