package handlers

import (
	"github.com/devsmilefactory/moversfinder-sub006/internal/dispatch"
	"github.com/gin-gonic/gin"
)

// respondDispatchError maps engine outcomes onto HTTP. Business outcomes are
// 409/404 with a stable error code; only genuinely unexpected failures become
// 500s.
func respondDispatchError(c *gin.Context, err error) {
	if code, ok := dispatch.CodeOf(err); ok {
		status := 409
		if code == dispatch.CodeNotFound {
			status = 404
		}
		c.JSON(status, gin.H{"success": false, "error": string(code)})
		return
	}
	c.JSON(500, gin.H{"error": "Internal error"})
}
