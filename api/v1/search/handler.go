package search

import (
	"strconv"

	"github.com/ikus060/udb/internal/httpx"
	"github.com/ikus060/udb/internal/search"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler serves the cross model websearch.
type Handler struct {
	db *gorm.DB
}

// NewHandler creates the handler.
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// Register mounts the routes.
func (h *Handler) Register(g *gin.RouterGroup) {
	g.GET("", h.Search)
}

// Search handles GET /api/v1/search?q=
func (h *Handler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		httpx.FailErr(c, httpx.ErrParamInvalid("missing query parameter `q`"))
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httpx.FailErr(c, httpx.ErrParamInvalid("invalid limit"))
			return
		}
		limit = parsed
	}
	results, err := search.Query(h.db, query, limit)
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	if results == nil {
		results = []search.Result{}
	}
	httpx.OK(c, gin.H{"results": results})
}
