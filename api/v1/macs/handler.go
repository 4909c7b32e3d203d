package macs

import (
	"github.com/ikus060/udb/api/v1/common"
	"github.com/ikus060/udb/internal/engine"
	"github.com/ikus060/udb/internal/httpx"
	"github.com/ikus060/udb/internal/model"
	"github.com/ikus060/udb/internal/types"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler serves the MAC registry. Like the IP registry it is populated
// by the engine and read mostly.
type Handler struct {
	db    *gorm.DB
	store *engine.Store
}

// NewHandler creates the handler.
func NewHandler(db *gorm.DB, store *engine.Store) *Handler {
	return &Handler{db: db, store: store}
}

// Register mounts the routes.
func (h *Handler) Register(g *gin.RouterGroup) {
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.GET("/:id/related", h.Related)
	audit := &common.AuditRoutes{DB: h.db, Store: h.store, Load: load}
	audit.Register(g)
}

func load(db *gorm.DB, id int) (model.Auditable, error) {
	var mac model.Mac
	if err := db.First(&mac, id).Error; err != nil {
		return nil, err
	}
	return &mac, nil
}

// List handles GET /api/v1/macs
func (h *Handler) List(c *gin.Context) {
	page, pageSize := common.Pagination(c)
	q := h.db.Model(&model.Mac{})
	if query := c.Query("q"); query != "" {
		q = q.Where("search_string LIKE ?", types.FormatWebsearch(query))
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		httpx.FailFrom(c, err)
		return
	}
	var macs []model.Mac
	err := q.Order("mac").Offset((page - 1) * pageSize).Limit(pageSize).Find(&macs).Error
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OKItems(c, macs, total, page, pageSize)
}

// Get handles GET /api/v1/macs/:id
func (h *Handler) Get(c *gin.Context) {
	id, ok := common.ParseID(c)
	if !ok {
		return
	}
	mac, err := load(h.db, id)
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, mac)
}

// Related handles GET /api/v1/macs/:id/related: the DHCP reservations
// using this hardware address.
func (h *Handler) Related(c *gin.Context) {
	id, ok := common.ParseID(c)
	if !ok {
		return
	}
	entity, err := load(h.db, id)
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	mac := entity.(*model.Mac)
	var records []model.DhcpRecord
	err = h.db.Where("mac = ? AND status != ?", mac.Mac, model.StatusDeleted).
		Order("ip_key").Find(&records).Error
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, gin.H{"dhcprecords": records})
}

type macRequest struct {
	Notes *string `json:"notes"`
}

// Update handles PUT /api/v1/macs/:id
func (h *Handler) Update(c *gin.Context) {
	id, ok := common.ParseID(c)
	if !ok {
		return
	}
	var req macRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request: "+err.Error()))
		return
	}
	entity, err := load(h.db, id)
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	mac := entity.(*model.Mac)
	if req.Notes != nil {
		mac.Notes = *req.Notes
	}
	if err := h.store.Save(mac, common.CurrentUID(c)); err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, mac)
}
