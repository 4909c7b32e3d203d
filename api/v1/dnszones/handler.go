package dnszones

import (
	"github.com/ikus060/udb/api/v1/common"
	"github.com/ikus060/udb/internal/engine"
	"github.com/ikus060/udb/internal/httpx"
	"github.com/ikus060/udb/internal/model"
	"github.com/ikus060/udb/internal/types"
	"github.com/ikus060/udb/internal/zonefile"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler serves the DNS zone resource.
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
	g.GET("/:id/zonefile", h.Zonefile)
	audit := &common.AuditRoutes{DB: h.db, Store: h.store, Load: load}
	audit.Register(g)
}

func load(db *gorm.DB, id int) (model.Auditable, error) {
	var zone model.DnsZone
	if err := db.Preload("Subnets").First(&zone, id).Error; err != nil {
		return nil, err
	}
	return &zone, nil
}

// List handles GET /api/v1/dnszones
func (h *Handler) List(c *gin.Context) {
	page, pageSize := common.Pagination(c)
	q := common.FilterStatus(h.db.Model(&model.DnsZone{}), c)
	if query := c.Query("q"); query != "" {
		q = q.Where("search_string LIKE ?", types.FormatWebsearch(query))
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		httpx.FailFrom(c, err)
		return
	}
	var zones []model.DnsZone
	err := q.Order("name").Offset((page - 1) * pageSize).Limit(pageSize).Find(&zones).Error
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OKItems(c, zones, total, page, pageSize)
}

// Get handles GET /api/v1/dnszones/:id
func (h *Handler) Get(c *gin.Context) {
	id, ok := common.ParseID(c)
	if !ok {
		return
	}
	zone, err := load(h.db, id)
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, zone)
}

// Zonefile handles GET /api/v1/dnszones/:id/zonefile: the zone rendered
// as a BIND style zone file, enabled records only.
func (h *Handler) Zonefile(c *gin.Context) {
	id, ok := common.ParseID(c)
	if !ok {
		return
	}
	entity, err := load(h.db, id)
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	zone := entity.(*model.DnsZone)
	records, err := zonefile.RecordsForZone(h.db, zone.Name)
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.String(200, zonefile.Render(records))
}

type zoneRequest struct {
	Name      *string `json:"name"`
	Notes     *string `json:"notes"`
	Status    *string `json:"status"`
	SubnetIDs []int   `json:"subnet_ids"`
}

func (r *zoneRequest) apply(db *gorm.DB, zone *model.DnsZone) error {
	if r.Name != nil {
		zone.Name = *r.Name
	}
	if r.Notes != nil {
		zone.Notes = *r.Notes
	}
	if r.Status != nil {
		zone.Status = model.Status(*r.Status)
	}
	if r.SubnetIDs != nil {
		var subnets []model.Subnet
		if len(r.SubnetIDs) > 0 {
			if err := db.Find(&subnets, r.SubnetIDs).Error; err != nil {
				return err
			}
			if len(subnets) != len(r.SubnetIDs) {
				return model.NewValidationError("subnet_ids", "one or more subnets do not exist")
			}
		}
		zone.Subnets = subnets
	}
	return nil
}

// Create handles POST /api/v1/dnszones
func (h *Handler) Create(c *gin.Context) {
	var req zoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request: "+err.Error()))
		return
	}
	zone := &model.DnsZone{}
	zone.Status = model.StatusEnabled
	zone.OwnerID = common.CurrentUID(c)
	if err := req.apply(h.db, zone); err != nil {
		httpx.FailFrom(c, err)
		return
	}
	if err := h.store.Save(zone, common.CurrentUID(c)); err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, zone)
}

// Update handles PUT /api/v1/dnszones/:id
func (h *Handler) Update(c *gin.Context) {
	id, ok := common.ParseID(c)
	if !ok {
		return
	}
	var req zoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request: "+err.Error()))
		return
	}
	entity, err := load(h.db, id)
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	zone := entity.(*model.DnsZone)
	if err := req.apply(h.db, zone); err != nil {
		httpx.FailFrom(c, err)
		return
	}
	if err := h.store.Save(zone, common.CurrentUID(c)); err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, zone)
}

// Delete handles DELETE /api/v1/dnszones/:id
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
