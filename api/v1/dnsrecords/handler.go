package dnsrecords

import (
	"github.com/ikus060/udb/api/v1/common"
	"github.com/ikus060/udb/internal/engine"
	"github.com/ikus060/udb/internal/httpx"
	"github.com/ikus060/udb/internal/model"
	"github.com/ikus060/udb/internal/types"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler serves the DNS record resource.
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
	g.GET("/:id/reverse", h.GetReverse)
	g.POST("/:id/reverse", h.CreateReverse)
	audit := &common.AuditRoutes{DB: h.db, Store: h.store, Load: load}
	audit.Register(g)
}

func load(db *gorm.DB, id int) (model.Auditable, error) {
	var record model.DnsRecord
	if err := db.First(&record, id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// List handles GET /api/v1/dnsrecords
func (h *Handler) List(c *gin.Context) {
	page, pageSize := common.Pagination(c)
	q := common.FilterStatus(h.db.Model(&model.DnsRecord{}), c)
	if query := c.Query("q"); query != "" {
		q = q.Where("search_string LIKE ?", types.FormatWebsearch(query))
	}
	if recordType := c.Query("type"); recordType != "" {
		q = q.Where("type = ?", recordType)
	}
	if zone := c.Query("dnszone_id"); zone != "" {
		q = q.Where("dnszone_id = ?", zone)
	}
	if vrf := c.Query("vrf_id"); vrf != "" {
		q = q.Where("vrf_id = ?", vrf)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		httpx.FailFrom(c, err)
		return
	}
	var records []model.DnsRecord
	err := q.Order("name, type, value").Offset((page - 1) * pageSize).Limit(pageSize).Find(&records).Error
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OKItems(c, records, total, page, pageSize)
}

// Get handles GET /api/v1/dnsrecords/:id
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
	Name   *string `json:"name"`
	Type   *string `json:"type"`
	TTL    *int    `json:"ttl"`
	Value  *string `json:"value"`
	VrfID  *int    `json:"vrf_id"`
	Notes  *string `json:"notes"`
	Status *string `json:"status"`
}

func (r *recordRequest) apply(record *model.DnsRecord) {
	if r.Name != nil {
		record.Name = *r.Name
	}
	if r.Type != nil {
		record.Type = *r.Type
	}
	if r.TTL != nil {
		record.TTL = *r.TTL
	}
	if r.Value != nil {
		record.Value = *r.Value
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

// Create handles POST /api/v1/dnsrecords. With `with_reverse=1` the
// matching PTR (or forward) record is created in the same transaction.
func (h *Handler) Create(c *gin.Context) {
	var req recordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request: "+err.Error()))
		return
	}
	record := &model.DnsRecord{}
	record.Status = model.StatusEnabled
	record.OwnerID = common.CurrentUID(c)
	req.apply(record)

	uid := common.CurrentUID(c)
	if c.Query("with_reverse") == "1" {
		if err := record.Validate(); err != nil {
			httpx.FailFrom(c, err)
			return
		}
		reverse := record.ReverseRecord()
		if reverse == nil {
			httpx.FailErr(c, httpx.ErrParamInvalid("this record type has no reverse counterpart"))
			return
		}
		reverse.Status = model.StatusEnabled
		reverse.OwnerID = uid
		if err := h.store.SaveAll([]model.Auditable{record, reverse}, uid); err != nil {
			httpx.FailFrom(c, err)
			return
		}
		httpx.OK(c, record)
		return
	}

	if err := h.store.Save(record, uid); err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, record)
}

// GetReverse handles GET /api/v1/dnsrecords/:id/reverse: returns the
// existing counterpart of an A, AAAA or PTR record.
func (h *Handler) GetReverse(c *gin.Context) {
	id, ok := common.ParseID(c)
	if !ok {
		return
	}
	entity, err := load(h.db, id)
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	record := entity.(*model.DnsRecord)
	reverse := record.ReverseRecord()
	if reverse == nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("this record type has no reverse counterpart"))
		return
	}
	var match model.DnsRecord
	err = h.db.Where("name = ? AND type = ? AND value = ? AND estatus != ?",
		reverse.Name, reverse.Type, reverse.Value, model.StatusDeleted).
		First(&match).Error
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, &match)
}

// CreateReverse handles POST /api/v1/dnsrecords/:id/reverse: creates the
// PTR for an A or AAAA record, or the forward record for a PTR.
func (h *Handler) CreateReverse(c *gin.Context) {
	id, ok := common.ParseID(c)
	if !ok {
		return
	}
	entity, err := load(h.db, id)
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	record := entity.(*model.DnsRecord)
	reverse := record.ReverseRecord()
	if reverse == nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("this record type has no reverse counterpart"))
		return
	}
	uid := common.CurrentUID(c)
	reverse.Status = model.StatusEnabled
	reverse.OwnerID = uid
	if err := h.store.Save(reverse, uid); err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, reverse)
}

// Update handles PUT /api/v1/dnsrecords/:id
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
	record := entity.(*model.DnsRecord)
	req.apply(record)
	if err := h.store.Save(record, common.CurrentUID(c)); err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, record)
}

// Delete handles DELETE /api/v1/dnsrecords/:id
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
