package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"waterops-backend/internal/auth"
	"waterops-backend/internal/model"
)

// GetStations handles the GET /api/stations request. Operators see only the
// stations assigned to them; admins see every station.
func GetStations(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := auth.CurrentUser(c)

		query := db.Order("name")
		if user.Role == model.RoleOperator {
			query = query.Where("operator_id = ?", user.ID)
		}

		var stations []model.Station
		if err := query.Find(&stations).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve stations"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "data": stations})
	}
}
