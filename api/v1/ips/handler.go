package ips

import (
	"github.com/ikus060/udb/api/v1/common"
	"github.com/ikus060/udb/internal/engine"
	"github.com/ikus060/udb/internal/httpx"
	"github.com/ikus060/udb/internal/model"
	"github.com/ikus060/udb/internal/types"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler serves the IP registry. Rows are created by the engine when a
// DNS or DHCP record references an address, so the surface is read mostly:
// only the notes can be edited.
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
	var ip model.Ip
	if err := db.First(&ip, id).Error; err != nil {
		return nil, err
	}
	return &ip, nil
}

// List handles GET /api/v1/ips
func (h *Handler) List(c *gin.Context) {
	page, pageSize := common.Pagination(c)
	q := h.db.Model(&model.Ip{})
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
	var ips []model.Ip
	err := q.Order("ip_key").Offset((page - 1) * pageSize).Limit(pageSize).Find(&ips).Error
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OKItems(c, ips, total, page, pageSize)
}

// Get handles GET /api/v1/ips/:id
func (h *Handler) Get(c *gin.Context) {
	id, ok := common.ParseID(c)
	if !ok {
		return
	}
	ip, err := load(h.db, id)
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, ip)
}

// Related handles GET /api/v1/ips/:id/related: the DNS and DHCP records
// referencing this address in its VRF.
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
	ip := entity.(*model.Ip)

	var dnsRecords []model.DnsRecord
	err = h.db.Where("generated_ip = ? AND vrf_id = ? AND status != ?",
		ip.IPKey, ip.VrfID, model.StatusDeleted).
		Order("name, type").Find(&dnsRecords).Error
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	var dhcpRecords []model.DhcpRecord
	err = h.db.Where("ip = ? AND vrf_id = ? AND status != ?",
		ip.IP, ip.VrfID, model.StatusDeleted).
		Find(&dhcpRecords).Error
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, gin.H{
		"dnsrecords":  dnsRecords,
		"dhcprecords": dhcpRecords,
	})
}

type ipRequest struct {
	Notes *string `json:"notes"`
}

// Update handles PUT /api/v1/ips/:id
func (h *Handler) Update(c *gin.Context) {
	id, ok := common.ParseID(c)
	if !ok {
		return
	}
	var req ipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request: "+err.Error()))
		return
	}
	entity, err := load(h.db, id)
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	ip := entity.(*model.Ip)
	if req.Notes != nil {
		ip.Notes = *req.Notes
	}
	if err := h.store.Save(ip, common.CurrentUID(c)); err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, ip)
}
