package cells

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the public lookup on api and the admin endpoints on admin.
// admin is expected to already carry the bearer-token middleware.
func (h *Handler) RegisterRoutes(api, admin *gin.RouterGroup) {
	api.GET("/nearest", h.Nearest)

	admin.GET("/cells", h.ListCells)
	admin.POST("/cells", h.CreateCell)
	admin.POST("/cells/export", h.ExportCells)
	admin.PUT("/cells/:id", h.UpdateCell)
	admin.DELETE("/cells/:id", h.DeleteCell)
}
