package vrfs

import (
	"github.com/ikus060/udb/api/v1/common"
	"github.com/ikus060/udb/internal/engine"
	"github.com/ikus060/udb/internal/httpx"
	"github.com/ikus060/udb/internal/model"
	"github.com/ikus060/udb/internal/types"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler serves the VRF resource.
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
	var vrf model.Vrf
	if err := db.First(&vrf, id).Error; err != nil {
		return nil, err
	}
	return &vrf, nil
}

// List handles GET /api/v1/vrfs
func (h *Handler) List(c *gin.Context) {
	page, pageSize := common.Pagination(c)
	q := common.FilterStatus(h.db.Model(&model.Vrf{}), c)
	if query := c.Query("q"); query != "" {
		q = q.Where("search_string LIKE ?", types.FormatWebsearch(query))
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		httpx.FailFrom(c, err)
		return
	}
	var vrfs []model.Vrf
	err := q.Order("name").Offset((page - 1) * pageSize).Limit(pageSize).Find(&vrfs).Error
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OKItems(c, vrfs, total, page, pageSize)
}

// Get handles GET /api/v1/vrfs/:id
func (h *Handler) Get(c *gin.Context) {
	id, ok := common.ParseID(c)
	if !ok {
		return
	}
	vrf, err := load(h.db, id)
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, vrf)
}

type vrfRequest struct {
	Name   *string `json:"name"`
	Notes  *string `json:"notes"`
	Status *string `json:"status"`
}

func (r *vrfRequest) apply(vrf *model.Vrf) {
	if r.Name != nil {
		vrf.Name = *r.Name
	}
	if r.Notes != nil {
		vrf.Notes = *r.Notes
	}
	if r.Status != nil {
		vrf.Status = model.Status(*r.Status)
	}
}

// Create handles POST /api/v1/vrfs
func (h *Handler) Create(c *gin.Context) {
	var req vrfRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request: "+err.Error()))
		return
	}
	vrf := &model.Vrf{}
	vrf.Status = model.StatusEnabled
	vrf.OwnerID = common.CurrentUID(c)
	req.apply(vrf)
	if err := h.store.Save(vrf, common.CurrentUID(c)); err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, vrf)
}

// Update handles PUT /api/v1/vrfs/:id
func (h *Handler) Update(c *gin.Context) {
	id, ok := common.ParseID(c)
	if !ok {
		return
	}
	var req vrfRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request: "+err.Error()))
		return
	}
	entity, err := load(h.db, id)
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	vrf := entity.(*model.Vrf)
	req.apply(vrf)
	if err := h.store.Save(vrf, common.CurrentUID(c)); err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, vrf)
}

// Delete handles DELETE /api/v1/vrfs/:id
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
