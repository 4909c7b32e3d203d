package dhcprecords

import (
	"github.com/ikus060/udb/api/v1/common"
	"github.com/ikus060/udb/internal/engine"
	"github.com/ikus060/udb/internal/httpx"
	"github.com/ikus060/udb/internal/model"
	"github.com/ikus060/udb/internal/types"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler serves the DHCP reservation resource.
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
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	audit := &common.AuditRoutes{DB: h.db, Store: h.store, Load: load}
	audit.Register(g)
}

func load(db *gorm.DB, id int) (model.Auditable, error) {
	var record model.DhcpRecord
	if err := db.First(&record, id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// List handles GET /api/v1/dhcprecords
func (h *Handler) List(c *gin.Context) {
	page, pageSize := common.Pagination(c)
	q := common.FilterStatus(h.db.Model(&model.DhcpRecord{}), c)
	if query := c.Query("q"); query != "" {
		q = q.Where("search_string LIKE ?", types.FormatWebsearch(query))
	}
	if vrf := c.Query("vrf_id"); vrf != "" {
		q = q.Where("vrf_id = ?", vrf)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		httpx.FailFrom(c, err)
		return
	}
	var records []model.DhcpRecord
	err := q.Order("ip_key").Offset((page - 1) * pageSize).Limit(pageSize).Find(&records).Error
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OKItems(c, records, total, page, pageSize)
}

// Get handles GET /api/v1/dhcprecords/:id
func (h *Handler) Get(c *gin.Context) {
	id, ok := common.ParseID(c)
	if !ok {
		return
	}
	record, err := load(h.db, id)
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, record)
}

type recordRequest struct {
	IP     *string `json:"ip"`
	Mac    *string `json:"mac"`
	VrfID  *int    `json:"vrf_id"`
	Notes  *string `json:"notes"`
	Status *string `json:"status"`
}

func (r *recordRequest) apply(record *model.DhcpRecord) {
	if r.IP != nil {
		record.IP = *r.IP
	}
	if r.Mac != nil {
		record.Mac = *r.Mac
	}
	if r.VrfID != nil {
		record.VrfID = r.VrfID
	}
	if r.Notes != nil {
		record.Notes = *r.Notes
	}
	if r.Status != nil {
		record.Status = model.Status(*r.Status)
	}
}

// Create handles POST /api/v1/dhcprecords
func (h *Handler) Create(c *gin.Context) {
	var req recordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request: "+err.Error()))
		return
	}
	record := &model.DhcpRecord{}
	record.Status = model.StatusEnabled
	record.OwnerID = common.CurrentUID(c)
	req.apply(record)
	if err := h.store.Save(record, common.CurrentUID(c)); err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, record)
}

// Update handles PUT /api/v1/dhcprecords/:id
func (h *Handler) Update(c *gin.Context) {
	id, ok := common.ParseID(c)
	if !ok {
		return
	}
	var req recordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request: "+err.Error()))
		return
	}
	entity, err := load(h.db, id)
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	record := entity.(*model.DhcpRecord)
	req.apply(record)
	if err := h.store.Save(record, common.CurrentUID(c)); err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, record)
}

// Delete handles DELETE /api/v1/dhcprecords/:id
func (h *Handler) Delete(c *gin.Context) {
	id, ok := common.ParseID(c)
	if !ok {
		return
	}
	entity, err := load(h.db, id)
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	if err := h.store.Delete(entity, common.CurrentUID(c)); err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, nil)
}
