package registry

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(rg *gin.RouterGroup, reg *Registry) {
	rg.GET("/sessions", listSessions(reg))
	rg.DELETE("/sessions/:key", deleteSession(reg))
}

func listSessions(reg *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		infos := reg.List()
		c.JSON(http.StatusOK, gin.H{"sessions": infos, "total": len(infos)})
	}
}

func deleteSession(reg *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("key")
		reg.Cleanup(key)
		c.JSON(http.StatusOK, gin.H{"status": "cleaned", "key": key})
	}
}
