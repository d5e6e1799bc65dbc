package handlers

import (
	"github.com/chachabrian/mooveit-dispatch/internal/services"
	"github.com/gin-gonic/gin"
)

// EventStream upgrades to a websocket carrying every dispatch event.
func EventStream(hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		hub.Serve(c.Writer, c.Request, c.GetUint("userId"))
	}
}
