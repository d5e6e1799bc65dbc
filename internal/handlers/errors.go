package handlers

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/chachabrian/mooveit-dispatch/internal/models"
	"github.com/gin-gonic/gin"
)

// respondError maps domain errors onto HTTP statuses. Unexpected errors are
// logged and hidden behind a generic message.
func respondError(c *gin.Context, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(404, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrInvalidState):
		c.JSON(409, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrValidation):
		c.JSON(400, gin.H{"error": err.Error()})
	default:
		log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(500, gin.H{"error": "Internal server error"})
	}
}

// paramID reads a positive numeric path parameter, answering 400 when it is malformed.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(400, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return uint(id), true
}
