package handlers

import (
	"strconv"

	"github.com/devsmilefactory/moversfinder-sub006/internal/dispatch"
	"github.com/devsmilefactory/moversfinder-sub006/internal/models"
	"github.com/devsmilefactory/moversfinder-sub006/internal/services"
	"github.com/gin-gonic/gin"
)

// PlaceOffer handles a provider bidding on a pending request
func PlaceOffer(coordinator *dispatch.Coordinator, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID, err := strconv.ParseUint(c.Param("requestId"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid request ID"})
			return
		}
		providerID := c.GetUint("userId")
		userType := c.GetString("userType")

		if userType != string(models.UserTypeProvider) {
			c.JSON(403, gin.H{"error": "Only providers can place offers"})
			return
		}

		var input struct {
			QuotedAmount float64 `json:"quotedAmount" binding:"required"`
			Message      string  `json:"message"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		if input.QuotedAmount <= 0 {
			c.JSON(400, gin.H{"error": "Quoted amount must be positive"})
			return
		}

		offer, request, err := coordinator.Place(c.Request.Context(), dispatch.PlaceParams{
			RequestID:    uint(requestID),
			ProviderID:   providerID,
			QuotedAmount: input.QuotedAmount,
			Message:      input.Message,
		})
		if err != nil {
			respondDispatchError(c, err)
			return
		}

		hub.SendToUser(request.RequesterID, "offer_placed", services.OfferPlaced{
			RequestID:    offer.RequestID,
			OfferID:      offer.ID,
			ProviderID:   providerID,
			QuotedAmount: offer.QuotedAmount,
		})

		c.JSON(201, gin.H{
			"message": "Offer placed successfully",
			"offerId": offer.ID,
			"status":  offer.Status,
		})
	}
}

// AcceptOffer lets a requester accept one bid, assigning its provider and
// rejecting every competing bid atomically. Lock contention is retried once
// before it surfaces to the caller.
func AcceptOffer(coordinator *dispatch.Coordinator, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		offerID, err := strconv.ParseUint(c.Param("offerId"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid offer ID"})
			return
		}
		requesterID := c.GetUint("userId")
		userType := c.GetString("userType")

		if userType != string(models.UserTypeRequester) {
			c.JSON(403, gin.H{"error": "Only requesters can accept offers"})
			return
		}

		var input struct {
			RequestID  uint `json:"requestId" binding:"required"`
			ProviderID uint `json:"providerId" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		params := dispatch.AcceptParams{
			RequestID:   input.RequestID,
			OfferID:     uint(offerID),
			ProviderID:  input.ProviderID,
			RequesterID: requesterID,
		}

		result, err := coordinator.Accept(c.Request.Context(), params)
		if dispatch.Retryable(err) {
			result, err = coordinator.Accept(c.Request.Context(), params)
		}
		if err != nil {
			respondDispatchError(c, err)
			return
		}

		if !result.AlreadyApplied {
			assigned := services.RequestAssigned{
				RequestID:          result.Request.ID,
				OfferID:            result.Offer.ID,
				AssignedProviderID: params.ProviderID,
			}
			hub.SendToUser(params.ProviderID, "request_assigned", assigned)
			hub.SendToUser(requesterID, "request_assigned", assigned)
			for _, rejectedID := range result.RejectedOfferIDs {
				hub.SendToUser(params.ProviderID, "offer_closed", services.OfferClosed{
					RequestID: result.Request.ID,
					OfferID:   rejectedID,
					Status:    models.OfferStatusRejected,
				})
			}
		}

		c.JSON(200, gin.H{
			"success":              true,
			"status":               result.Request.Status,
			"assigned_provider_id": params.ProviderID,
		})
	}
}

// WithdrawOffer lets a provider pull their own pending bid
func WithdrawOffer(coordinator *dispatch.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		offerID, err := strconv.ParseUint(c.Param("offerId"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid offer ID"})
			return
		}
		providerID := c.GetUint("userId")
		userType := c.GetString("userType")

		if userType != string(models.UserTypeProvider) {
			c.JSON(403, gin.H{"error": "Only providers can withdraw offers"})
			return
		}

		offer, err := coordinator.Withdraw(c.Request.Context(), uint(offerID), providerID)
		if err != nil {
			respondDispatchError(c, err)
			return
		}

		c.JSON(200, gin.H{
			"message": "Offer withdrawn successfully",
			"offerId": offer.ID,
			"status":  offer.Status,
		})
	}
}

// DeclineOffer lets a requester reject one specific bid without accepting
// another
func DeclineOffer(coordinator *dispatch.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		offerID, err := strconv.ParseUint(c.Param("offerId"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid offer ID"})
			return
		}
		requesterID := c.GetUint("userId")
		userType := c.GetString("userType")

		if userType != string(models.UserTypeRequester) {
			c.JSON(403, gin.H{"error": "Only requesters can decline offers"})
			return
		}

		offer, err := coordinator.Decline(c.Request.Context(), uint(offerID), requesterID)
		if err != nil {
			respondDispatchError(c, err)
			return
		}

		c.JSON(200, gin.H{
			"message": "Offer declined successfully",
			"offerId": offer.ID,
			"status":  offer.Status,
		})
	}
}
