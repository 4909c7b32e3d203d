package environments

import (
	"github.com/ikus060/udb/api/v1/common"
	"github.com/ikus060/udb/internal/deploy"
	"github.com/ikus060/udb/internal/engine"
	"github.com/ikus060/udb/internal/httpx"
	"github.com/ikus060/udb/internal/model"
	"github.com/ikus060/udb/internal/types"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler serves the deployment environments.
type Handler struct {
	db      *gorm.DB
	store   *engine.Store
	service *deploy.Service
}

// NewHandler creates the handler.
func NewHandler(db *gorm.DB, store *engine.Store, service *deploy.Service) *Handler {
	return &Handler{db: db, store: store, service: service}
}

// Register mounts the routes.
func (h *Handler) Register(g *gin.RouterGroup) {
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/deployments", h.Deploy)
	g.GET("/:id/deployments", h.ListDeployments)
	audit := &common.AuditRoutes{DB: h.db, Store: h.store, Load: load}
	audit.Register(g)
}

func load(db *gorm.DB, id int) (model.Auditable, error) {
	var env model.Environment
	if err := db.First(&env, id).Error; err != nil {
		return nil, err
	}
	return &env, nil
}

// List handles GET /api/v1/environments
func (h *Handler) List(c *gin.Context) {
	page, pageSize := common.Pagination(c)
	q := common.FilterStatus(h.db.Model(&model.Environment{}), c)
	if query := c.Query("q"); query != "" {
		q = q.Where("search_string LIKE ?", types.FormatWebsearch(query))
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		httpx.FailFrom(c, err)
		return
	}
	var envs []model.Environment
	err := q.Order("name").Offset((page - 1) * pageSize).Limit(pageSize).Find(&envs).Error
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OKItems(c, envs, total, page, pageSize)
}

// Get handles GET /api/v1/environments/:id
func (h *Handler) Get(c *gin.Context) {
	id, ok := common.ParseID(c)
	if !ok {
		return
	}
	env, err := load(h.db, id)
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, env)
}

type envRequest struct {
	Name       *string `json:"name"`
	Script     *string `json:"script"`
	ModelNames *string `json:"model_name"`
	Notes      *string `json:"notes"`
	Status     *string `json:"status"`
}

func (r *envRequest) apply(env *model.Environment) {
	if r.Name != nil {
		env.Name = *r.Name
	}
	if r.Script != nil {
		env.Script = *r.Script
	}
	if r.ModelNames != nil {
		env.ModelNames = *r.ModelNames
	}
	if r.Notes != nil {
		env.Notes = *r.Notes
	}
	if r.Status != nil {
		env.Status = model.Status(*r.Status)
	}
}

// Create handles POST /api/v1/environments
func (h *Handler) Create(c *gin.Context) {
	var req envRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request: "+err.Error()))
		return
	}
	env := &model.Environment{}
	env.Status = model.StatusEnabled
	env.OwnerID = common.CurrentUID(c)
	req.apply(env)
	if err := h.store.Save(env, common.CurrentUID(c)); err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, env)
}

// Update handles PUT /api/v1/environments/:id
func (h *Handler) Update(c *gin.Context) {
	id, ok := common.ParseID(c)
	if !ok {
		return
	}
	var req envRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request: "+err.Error()))
		return
	}
	entity, err := load(h.db, id)
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	env := entity.(*model.Environment)
	req.apply(env)
	if err := h.store.Save(env, common.CurrentUID(c)); err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, env)
}

// Delete handles DELETE /api/v1/environments/:id
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

// Deploy handles POST /api/v1/environments/:id/deployments: schedule a
// new deployment of this environment.
func (h *Handler) Deploy(c *gin.Context) {
	id, ok := common.ParseID(c)
	if !ok {
		return
	}
	deployment, err := h.service.Schedule(id, common.CurrentUID(c))
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, deployment)
}

// ListDeployments handles GET /api/v1/environments/:id/deployments
func (h *Handler) ListDeployments(c *gin.Context) {
	id, ok := common.ParseID(c)
	if !ok {
		return
	}
	page, pageSize := common.Pagination(c)
	q := h.db.Model(&model.Deployment{}).Where("environment_id = ?", id)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		httpx.FailFrom(c, err)
		return
	}
	var deployments []model.Deployment
	err := q.Omit("data", "output").Order("id DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&deployments).Error
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OKItems(c, deployments, total, page, pageSize)
}
