package handlers

import (
	"strconv"

	"github.com/devsmilefactory/moversfinder-sub006/internal/feed"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// GetFeed serves the authoritative paginated query behind one tab. The same
// query backs the per-client synchronizer's refetches, so a plain HTTP poll
// and a live websocket view can never disagree.
func GetFeed(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tab := feed.Tab(c.Param("tab"))
		if !feed.ValidTab(tab) {
			c.JSON(400, gin.H{"error": "Invalid feed tab"})
			return
		}

		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		perPage, _ := strconv.Atoi(c.DefaultQuery("perPage", "20"))

		fetcher := &feed.GormFetcher{
			DB:       db,
			UserID:   c.GetUint("userId"),
			UserType: c.GetString("userType"),
		}
		rows, err := fetcher.Fetch(c.Request.Context(), feed.Query{Tab: tab, Page: page, PerPage: perPage})
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch feed"})
			return
		}

		c.JSON(200, gin.H{
			"tab":   tab,
			"page":  page,
			"rows":  rows,
			"count": len(rows),
		})
	}
}
