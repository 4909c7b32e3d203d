package rules

import (
	"strconv"

	"github.com/ikus060/udb/api/v1/common"
	"github.com/ikus060/udb/internal/engine"
	"github.com/ikus060/udb/internal/httpx"
	"github.com/ikus060/udb/internal/model"
	"github.com/ikus060/udb/internal/rule"
	"github.com/ikus060/udb/internal/types"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler serves the data quality rules and the linter report.
type Handler struct {
	db    *gorm.DB
	store *engine.Store
	rules *rule.Engine
}

// NewHandler creates the handler.
func NewHandler(db *gorm.DB, store *engine.Store, rules *rule.Engine) *Handler {
	return &Handler{db: db, store: store, rules: rules}
}

// Register mounts the routes. Lint must come before the :id routes so gin
// does not treat it as an identifier.
func (h *Handler) Register(g *gin.RouterGroup) {
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/lint", h.Lint)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/verify", h.Verify)
	audit := &common.AuditRoutes{DB: h.db, Store: h.store, Load: load}
	audit.Register(g)
}

func load(db *gorm.DB, id int) (model.Auditable, error) {
	var r model.Rule
	if err := db.First(&r, id).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// List handles GET /api/v1/rules
func (h *Handler) List(c *gin.Context) {
	page, pageSize := common.Pagination(c)
	q := common.FilterStatus(h.db.Model(&model.Rule{}), c)
	if query := c.Query("q"); query != "" {
		q = q.Where("search_string LIKE ?", types.FormatWebsearch(query))
	}
	if m := c.Query("model_name"); m != "" {
		q = q.Where("model_name = ?", m)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		httpx.FailFrom(c, err)
		return
	}
	var rules []model.Rule
	err := q.Order("name").Offset((page - 1) * pageSize).Limit(pageSize).Find(&rules).Error
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OKItems(c, rules, total, page, pageSize)
}

// Get handles GET /api/v1/rules/:id
func (h *Handler) Get(c *gin.Context) {
	id, ok := common.ParseID(c)
	if !ok {
		return
	}
	r, err := load(h.db, id)
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, r)
}

// Lint handles GET /api/v1/rules/lint: evaluate the enabled rules and
// report every violation. Optional filters: model_name and id.
func (h *Handler) Lint(c *gin.Context) {
	modelName := c.Query("model_name")
	id := 0
	if raw := c.Query("id"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httpx.FailErr(c, httpx.ErrParamInvalid("invalid id"))
			return
		}
		id = parsed
	}
	violations, err := h.rules.Lint(h.db, modelName, id)
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	if violations == nil {
		violations = []rule.Violation{}
	}
	httpx.OK(c, gin.H{"violations": violations})
}

// Verify handles POST /api/v1/rules/:id/verify: run one rule on demand,
// even when it is disabled, and report its violations.
func (h *Handler) Verify(c *gin.Context) {
	id, ok := common.ParseID(c)
	if !ok {
		return
	}
	entity, err := load(h.db, id)
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	violations, err := h.rules.Check(h.db, entity.(*model.Rule))
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, gin.H{"violations": violations})
}

type ruleRequest struct {
	Name        *string `json:"name"`
	TargetModel *string `json:"model_name"`
	Description *string `json:"description"`
	Statement   *string `json:"statement"`
	Severity    *string `json:"severity"`
	Notes       *string `json:"notes"`
	Status      *string `json:"status"`
}

// apply copies the request onto the rule. Builtin rules keep their
// statement and target: only severity, notes and status can change.
func (r *ruleRequest) apply(rule *model.Rule) error {
	if rule.Builtin {
		if r.Name != nil && *r.Name != rule.Name {
			return model.NewValidationError("name", "builtin rules cannot be renamed")
		}
		if r.Statement != nil && *r.Statement != rule.Statement {
			return model.NewValidationError("statement", "builtin rule statements cannot be edited")
		}
		if r.TargetModel != nil && *r.TargetModel != rule.TargetModel {
			return model.NewValidationError("model_name", "builtin rule targets cannot be edited")
		}
	} else {
		if r.Name != nil {
			rule.Name = *r.Name
		}
		if r.TargetModel != nil {
			rule.TargetModel = *r.TargetModel
		}
		if r.Statement != nil {
			rule.Statement = *r.Statement
		}
	}
	if r.Description != nil {
		rule.Description = *r.Description
	}
	if r.Severity != nil {
		rule.Severity = *r.Severity
	}
	if r.Notes != nil {
		rule.Notes = *r.Notes
	}
	if r.Status != nil {
		rule.Status = model.Status(*r.Status)
	}
	return nil
}

// Create handles POST /api/v1/rules
func (h *Handler) Create(c *gin.Context) {
	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request: "+err.Error()))
		return
	}
	r := &model.Rule{Severity: model.RuleSeveritySoft}
	r.Status = model.StatusEnabled
	r.OwnerID = common.CurrentUID(c)
	if err := req.apply(r); err != nil {
		httpx.FailFrom(c, err)
		return
	}
	if err := h.store.Save(r, common.CurrentUID(c)); err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, r)
}

// Update handles PUT /api/v1/rules/:id
func (h *Handler) Update(c *gin.Context) {
	id, ok := common.ParseID(c)
	if !ok {
		return
	}
	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request: "+err.Error()))
		return
	}
	entity, err := load(h.db, id)
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	r := entity.(*model.Rule)
	if err := req.apply(r); err != nil {
		httpx.FailFrom(c, err)
		return
	}
	if err := h.store.Save(r, common.CurrentUID(c)); err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, r)
}

// Delete handles DELETE /api/v1/rules/:id
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
	r := entity.(*model.Rule)
	if r.Builtin {
		httpx.FailErr(c, httpx.ErrStateConflict("builtin rules cannot be deleted, disable them instead"))
		return
	}
	if err := h.store.Delete(r, common.CurrentUID(c)); err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, nil)
}
