package handlers

import (
	"github.com/devsmilefactory/moversfinder-sub006/internal/availability"
	"github.com/devsmilefactory/moversfinder-sub006/internal/models"
	"github.com/gin-gonic/gin"
)

// SetProviderOnline handles provider presence updates
func SetProviderOnline(tracker *availability.Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		providerID := c.GetUint("userId")
		userType := c.GetString("userType")

		if userType != string(models.UserTypeProvider) {
			c.JSON(403, gin.H{"error": "Only providers can update presence"})
			return
		}

		var input struct {
			IsOnline *bool `json:"isOnline"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		if input.IsOnline == nil {
			c.JSON(400, gin.H{"error": "isOnline field is required"})
			return
		}

		row, err := tracker.SetOnline(c.Request.Context(), providerID, *input.IsOnline)
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to update presence"})
			return
		}

		c.JSON(200, gin.H{
			"message":     "Presence updated successfully",
			"isOnline":    row.IsOnline,
			"isAvailable": row.IsAvailable,
		})
	}
}

// UpdateProviderLocation handles provider position updates
func UpdateProviderLocation(tracker *availability.Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		providerID := c.GetUint("userId")
		userType := c.GetString("userType")

		if userType != string(models.UserTypeProvider) {
			c.JSON(403, gin.H{"error": "Only providers can update location"})
			return
		}

		var input struct {
			Lat float64 `json:"lat" binding:"required"`
			Lng float64 `json:"lng" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		// Validate coordinates
		if input.Lat < -90 || input.Lat > 90 {
			c.JSON(400, gin.H{"error": "Invalid latitude"})
			return
		}
		if input.Lng < -180 || input.Lng > 180 {
			c.JSON(400, gin.H{"error": "Invalid longitude"})
			return
		}

		row, err := tracker.UpdatePosition(c.Request.Context(), providerID, input.Lat, input.Lng)
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to update location"})
			return
		}

		c.JSON(200, gin.H{
			"message": "Location updated successfully",
			"location": gin.H{
				"lat": row.Lat,
				"lng": row.Lng,
			},
		})
	}
}

// GetProviderStatus returns the provider's current presence and engagement
func GetProviderStatus(tracker *availability.Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		providerID := c.GetUint("userId")
		userType := c.GetString("userType")

		if userType != string(models.UserTypeProvider) {
			c.JSON(403, gin.H{"error": "Only providers can check status"})
			return
		}

		row, err := tracker.Get(c.Request.Context(), providerID)
		if err != nil {
			c.JSON(404, gin.H{"error": "Provider availability not found"})
			return
		}

		status := "offline"
		if row.IsOnline {
			if row.IsAvailable {
				status = "available"
			} else {
				status = "busy"
			}
		}

		c.JSON(200, gin.H{
			"providerId":      providerID,
			"status":          status,
			"isOnline":        row.IsOnline,
			"isAvailable":     row.IsAvailable,
			"activeRequestId": row.ActiveRequestID,
			"location": gin.H{
				"lat": row.Lat,
				"lng": row.Lng,
			},
		})
	}
}
