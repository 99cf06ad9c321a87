package handlers

import (
	"strconv"
	"time"

	"github.com/devsmilefactory/moversfinder-sub006/internal/dispatch"
	"github.com/devsmilefactory/moversfinder-sub006/internal/models"
	"github.com/devsmilefactory/moversfinder-sub006/internal/propagator"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CreateRequest handles new transportation requests from requesters
func CreateRequest(db *gorm.DB, broker *propagator.Broker) gin.HandlerFunc {
	return func(c *gin.Context) {
		requesterID := c.GetUint("userId")
		userType := c.GetString("userType")

		if userType != string(models.UserTypeRequester) {
			c.JSON(403, gin.H{"error": "Only requesters can post requests"})
			return
		}

		var input struct {
			Pickup struct {
				Lat     float64 `json:"lat" binding:"required"`
				Lng     float64 `json:"lng" binding:"required"`
				Address string  `json:"address" binding:"required"`
			} `json:"pickup" binding:"required"`
			Destination struct {
				Lat     float64 `json:"lat" binding:"required"`
				Lng     float64 `json:"lng" binding:"required"`
				Address string  `json:"address" binding:"required"`
			} `json:"destination" binding:"required"`
			TimingClass  string     `json:"timingClass"`
			ScheduledAt  *time.Time `json:"scheduledAt"`
			FareEstimate float64    `json:"fareEstimate"`
		}

		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		if input.TimingClass == "" {
			input.TimingClass = models.TimingClassInstant
		}
		if input.TimingClass != models.TimingClassInstant && input.TimingClass != models.TimingClassScheduled {
			c.JSON(400, gin.H{"error": "Invalid timing class"})
			return
		}
		if input.TimingClass == models.TimingClassScheduled && input.ScheduledAt == nil {
			c.JSON(400, gin.H{"error": "scheduledAt is required for scheduled requests"})
			return
		}

		request := models.Request{
			RequesterID:     requesterID,
			Status:          models.RequestStatusPending,
			TimingClass:     input.TimingClass,
			ScheduledAt:     input.ScheduledAt,
			StatusUpdatedAt: time.Now(),
			PickupLat:       input.Pickup.Lat,
			PickupLng:       input.Pickup.Lng,
			PickupAddr:      input.Pickup.Address,
			DestLat:         input.Destination.Lat,
			DestLng:         input.Destination.Lng,
			DestAddr:        input.Destination.Address,
			FareEstimate:    input.FareEstimate,
		}

		if err := db.Create(&request).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to create request"})
			return
		}

		broker.Publish(propagator.Event{
			Table: "requests", RowID: request.ID, RequestID: request.ID, Op: propagator.OpInsert,
		})

		c.JSON(201, gin.H{
			"message":   "Request created. Waiting for offers.",
			"requestId": request.ID,
			"status":    request.Status,
		})
	}
}

// GetRequest returns one request with its offers, visible to its requester
// and to any bidding or assigned provider.
func GetRequest(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID, err := strconv.ParseUint(c.Param("requestId"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid request ID"})
			return
		}
		userID := c.GetUint("userId")
		userType := c.GetString("userType")

		var request models.Request
		if err := db.Preload("Offers").First(&request, requestID).Error; err != nil {
			c.JSON(404, gin.H{"error": "Request not found"})
			return
		}

		if userType == string(models.UserTypeRequester) && request.RequesterID != userID {
			c.JSON(403, gin.H{"error": "Unauthorized to view this request"})
			return
		}

		c.JSON(200, request)
	}
}

// CancelRequest handles cancellation of a pending or active request
func CancelRequest(coordinator *dispatch.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID, err := strconv.ParseUint(c.Param("requestId"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid request ID"})
			return
		}
		userID := c.GetUint("userId")
		userType := c.GetString("userType")

		request, err := coordinator.Cancel(c.Request.Context(), uint(requestID), userID, userType)
		if err != nil {
			respondDispatchError(c, err)
			return
		}

		c.JSON(200, gin.H{
			"message":   "Request cancelled successfully",
			"requestId": request.ID,
			"status":    request.Status,
		})
	}
}

// CompleteRequest lets the assigned provider finalize an active request,
// releasing their availability in the same transaction.
func CompleteRequest(coordinator *dispatch.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID, err := strconv.ParseUint(c.Param("requestId"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid request ID"})
			return
		}
		providerID := c.GetUint("userId")
		userType := c.GetString("userType")

		if userType != string(models.UserTypeProvider) {
			c.JSON(403, gin.H{"error": "Only providers can complete requests"})
			return
		}

		request, err := coordinator.Complete(c.Request.Context(), uint(requestID), providerID)
		if err != nil {
			respondDispatchError(c, err)
			return
		}

		c.JSON(200, gin.H{
			"message":   "Request completed successfully",
			"requestId": request.ID,
			"status":    request.Status,
		})
	}
}
