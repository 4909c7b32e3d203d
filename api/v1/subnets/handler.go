package subnets

import (
	"github.com/ikus060/udb/api/v1/common"
	"github.com/ikus060/udb/internal/engine"
	"github.com/ikus060/udb/internal/httpx"
	"github.com/ikus060/udb/internal/model"
	"github.com/ikus060/udb/internal/search"
	"github.com/ikus060/udb/internal/types"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler serves the subnet resource.
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
	g.GET("/tree", h.Tree)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	audit := &common.AuditRoutes{DB: h.db, Store: h.store, Load: load}
	audit.Register(g)
}

func load(db *gorm.DB, id int) (model.Auditable, error) {
	var subnet model.Subnet
	err := db.Preload("Ranges").Preload("Zones").First(&subnet, id).Error
	if err != nil {
		return nil, err
	}
	subnet.SortRanges()
	return &subnet, nil
}

// List handles GET /api/v1/subnets
func (h *Handler) List(c *gin.Context) {
	page, pageSize := common.Pagination(c)
	q := common.FilterStatus(h.db.Model(&model.Subnet{}), c)
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
	var subnets []model.Subnet
	err := q.Preload("Ranges").Order("id").
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&subnets).Error
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	for i := range subnets {
		subnets[i].SortRanges()
	}
	httpx.OKItems(c, subnets, total, page, pageSize)
}

// Tree handles GET /api/v1/subnets/tree: the subnets ordered for the
// hierarchical view, each with its depth.
func (h *Handler) Tree(c *gin.Context) {
	subnets, err := search.SubnetTree(h.db)
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, subnets)
}

// Get handles GET /api/v1/subnets/:id
func (h *Handler) Get(c *gin.Context) {
	id, ok := common.ParseID(c)
	if !ok {
		return
	}
	subnet, err := load(h.db, id)
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, subnet)
}

type rangeRequest struct {
	Range       string  `json:"range" binding:"required"`
	Dhcp        bool    `json:"dhcp"`
	DhcpStartIP *string `json:"dhcp_start_ip"`
	DhcpEndIP   *string `json:"dhcp_end_ip"`
}

type subnetRequest struct {
	Name       *string        `json:"name"`
	VrfID      *int           `json:"vrf_id"`
	L3VNI      *int           `json:"l3vni"`
	L2VNI      *int           `json:"l2vni"`
	Vlan       *int           `json:"vlan"`
	RirStatus  *string        `json:"rir_status"`
	Notes      *string        `json:"notes"`
	Status     *string        `json:"status"`
	Ranges     []rangeRequest `json:"ranges"`
	DnsZoneIDs []int          `json:"dnszone_ids"`
}

func (r *subnetRequest) apply(db *gorm.DB, subnet *model.Subnet) error {
	if r.Name != nil {
		subnet.Name = *r.Name
	}
	if r.VrfID != nil {
		subnet.VrfID = *r.VrfID
	}
	if r.L3VNI != nil {
		subnet.L3VNI = r.L3VNI
	}
	if r.L2VNI != nil {
		subnet.L2VNI = r.L2VNI
	}
	if r.Vlan != nil {
		subnet.Vlan = r.Vlan
	}
	if r.RirStatus != nil {
		if *r.RirStatus == "" {
			subnet.RirStatus = nil
		} else {
			subnet.RirStatus = r.RirStatus
		}
	}
	if r.Notes != nil {
		subnet.Notes = *r.Notes
	}
	if r.Status != nil {
		subnet.Status = model.Status(*r.Status)
	}
	if r.Ranges != nil {
		ranges := make([]model.SubnetRange, 0, len(r.Ranges))
		for _, req := range r.Ranges {
			ranges = append(ranges, model.SubnetRange{
				SubnetID:    subnet.ID,
				Range:       req.Range,
				Dhcp:        req.Dhcp,
				DhcpStartIP: req.DhcpStartIP,
				DhcpEndIP:   req.DhcpEndIP,
			})
		}
		subnet.Ranges = ranges
	}
	if r.DnsZoneIDs != nil {
		var zones []model.DnsZone
		if len(r.DnsZoneIDs) > 0 {
			if err := db.Find(&zones, r.DnsZoneIDs).Error; err != nil {
				return err
			}
			if len(zones) != len(r.DnsZoneIDs) {
				return model.NewValidationError("dnszone_ids", "one or more DNS zones do not exist")
			}
		}
		subnet.Zones = zones
	}
	return nil
}

// Create handles POST /api/v1/subnets
func (h *Handler) Create(c *gin.Context) {
	var req subnetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request: "+err.Error()))
		return
	}
	subnet := &model.Subnet{}
	subnet.Status = model.StatusEnabled
	subnet.OwnerID = common.CurrentUID(c)
	if err := req.apply(h.db, subnet); err != nil {
		httpx.FailFrom(c, err)
		return
	}
	if err := h.store.Save(subnet, common.CurrentUID(c)); err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, subnet)
}

// Update handles PUT /api/v1/subnets/:id
func (h *Handler) Update(c *gin.Context) {
	id, ok := common.ParseID(c)
	if !ok {
		return
	}
	var req subnetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request: "+err.Error()))
		return
	}
	entity, err := load(h.db, id)
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	subnet := entity.(*model.Subnet)
	if err := req.apply(h.db, subnet); err != nil {
		httpx.FailFrom(c, err)
		return
	}
	if err := h.store.Save(subnet, common.CurrentUID(c)); err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, subnet)
}

// Delete handles DELETE /api/v1/subnets/:id
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
