package deployments

import (
	"crypto/subtle"
	"encoding/json"
	"strings"

	"github.com/ikus060/udb/api/v1/common"
	"github.com/ikus060/udb/internal/httpx"
	"github.com/ikus060/udb/internal/model"
	"github.com/ikus060/udb/internal/zonefile"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler serves the deployment history. Deployments are created through
// the environments resource; this surface is read only.
type Handler struct {
	db *gorm.DB
}

// NewHandler creates the handler.
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// Register mounts the authenticated routes.
func (h *Handler) Register(g *gin.RouterGroup) {
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.GET("/:id/output", h.Output)
}

// RegisterData mounts the snapshot routes. They live outside the JWT
// middleware: the deployment script authenticates with the per-run token
// it receives in its environment, or with regular user credentials over
// HTTP basic auth.
func (h *Handler) RegisterData(g *gin.RouterGroup) {
	g.GET("/:id/data", h.Data)
	g.GET("/:id/zonefile", h.Zonefile)
}

// List handles GET /api/v1/deployments
func (h *Handler) List(c *gin.Context) {
	page, pageSize := common.Pagination(c)
	q := h.db.Model(&model.Deployment{})
	if env := c.Query("environment_id"); env != "" {
		q = q.Where("environment_id = ?", env)
	}
	if state := c.Query("state"); state != "" {
		q = q.Where("state = ?", state)
	}
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

// Get handles GET /api/v1/deployments/:id
func (h *Handler) Get(c *gin.Context) {
	id, ok := common.ParseID(c)
	if !ok {
		return
	}
	var deployment model.Deployment
	if err := h.db.Omit("data").First(&deployment, id).Error; err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, deployment)
}

// Output handles GET /api/v1/deployments/:id/output: the captured script
// output as plain text.
func (h *Handler) Output(c *gin.Context) {
	id, ok := common.ParseID(c)
	if !ok {
		return
	}
	var deployment model.Deployment
	if err := h.db.Omit("data").First(&deployment, id).Error; err != nil {
		httpx.FailFrom(c, err)
		return
	}
	c.Data(200, "text/plain; charset=utf-8", []byte(deployment.Output))
}

// authorize checks the caller against the deployment: basic auth with the
// token as password (any username) or a real user credential, a bearer
// token, or a token query parameter. The token is only valid for its own
// deployment and always compared in constant time.
func (h *Handler) authorize(c *gin.Context, deployment *model.Deployment) bool {
	if username, password, ok := c.Request.BasicAuth(); ok {
		if subtle.ConstantTimeCompare([]byte(password), []byte(deployment.Token)) == 1 {
			return true
		}
		var user model.User
		err := h.db.Where("username = ? AND status = ?", strings.ToLower(username), model.StatusEnabled).
			First(&user).Error
		if err != nil {
			return false
		}
		return user.CheckPassword(password)
	}
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if token == "" {
		token = c.Query("token")
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(deployment.Token)) == 1
}

// Data handles GET /api/v1/deployments/:id/data: the immutable snapshot
// taken at scheduling time, fetched by the running script.
func (h *Handler) Data(c *gin.Context) {
	id, ok := common.ParseID(c)
	if !ok {
		return
	}
	var deployment model.Deployment
	if err := h.db.First(&deployment, id).Error; err != nil {
		httpx.FailFrom(c, err)
		return
	}
	if !h.authorize(c, &deployment) {
		httpx.FailErr(c, httpx.ErrUnauthorized("invalid deployment credentials"))
		return
	}
	c.Data(200, "application/json", deployment.Data)
}

// Zonefile handles GET /api/v1/deployments/:id/zonefile?name=<zone>: the
// zone rendered from the deployment snapshot, so the script serves exactly
// what was captured at scheduling time.
func (h *Handler) Zonefile(c *gin.Context) {
	id, ok := common.ParseID(c)
	if !ok {
		return
	}
	var deployment model.Deployment
	if err := h.db.First(&deployment, id).Error; err != nil {
		httpx.FailFrom(c, err)
		return
	}
	if !h.authorize(c, &deployment) {
		httpx.FailErr(c, httpx.ErrUnauthorized("invalid deployment credentials"))
		return
	}
	name := strings.ToLower(strings.TrimSpace(c.Query("name")))
	if name == "" {
		httpx.FailErr(c, httpx.ErrParamInvalid("zone name is required"))
		return
	}
	var snapshot struct {
		Records []model.DnsRecord `json:"dnsrecord"`
	}
	if err := json.Unmarshal(deployment.Data, &snapshot); err != nil {
		httpx.FailFrom(c, err)
		return
	}
	var records []model.DnsRecord
	for _, r := range snapshot.Records {
		if zonefile.InZone(&r, name) {
			records = append(records, r)
		}
	}
	zonefile.Sort(records)
	c.Data(200, "text/plain; charset=utf-8", []byte(zonefile.Render(records)))
}
