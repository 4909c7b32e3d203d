package users

import (
	"github.com/ikus060/udb/api/v1/common"
	"github.com/ikus060/udb/internal/engine"
	"github.com/ikus060/udb/internal/httpx"
	"github.com/ikus060/udb/internal/model"
	"github.com/ikus060/udb/internal/types"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler serves the user accounts. Management routes are admin only;
// every authenticated user can read and edit their own profile.
type Handler struct {
	db    *gorm.DB
	store *engine.Store
}

// NewHandler creates the handler.
func NewHandler(db *gorm.DB, store *engine.Store) *Handler {
	return &Handler{db: db, store: store}
}

// Register mounts the admin routes.
func (h *Handler) Register(g *gin.RouterGroup) {
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

// RegisterProfile mounts the self service routes.
func (h *Handler) RegisterProfile(g *gin.RouterGroup) {
	g.GET("/profile", h.GetProfile)
	g.PUT("/profile", h.UpdateProfile)
}

func load(db *gorm.DB, id int) (model.Auditable, error) {
	var user model.User
	if err := db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// List handles GET /api/v1/users
func (h *Handler) List(c *gin.Context) {
	page, pageSize := common.Pagination(c)
	q := h.db.Model(&model.User{})
	if query := c.Query("q"); query != "" {
		q = q.Where("search_string LIKE ?", types.FormatWebsearch(query))
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		httpx.FailFrom(c, err)
		return
	}
	var users []model.User
	err := q.Order("username").Offset((page - 1) * pageSize).Limit(pageSize).Find(&users).Error
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OKItems(c, users, total, page, pageSize)
}

// Get handles GET /api/v1/users/:id
func (h *Handler) Get(c *gin.Context) {
	id, ok := common.ParseID(c)
	if !ok {
		return
	}
	user, err := load(h.db, id)
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, user)
}

type userRequest struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
	Fullname *string `json:"fullname"`
	Email    *string `json:"email"`
	Language *string `json:"lang"`
	Timezone *string `json:"timezone"`
	Status   *string `json:"status"`
	Notes    *string `json:"notes"`
}

func (r *userRequest) apply(user *model.User) error {
	if r.Username != nil {
		user.Username = *r.Username
	}
	if r.Password != nil && *r.Password != "" {
		if err := user.SetPassword(*r.Password); err != nil {
			return err
		}
	}
	if r.Role != nil {
		user.Role = *r.Role
	}
	if r.Fullname != nil {
		user.Fullname = *r.Fullname
	}
	if r.Email != nil {
		if *r.Email == "" {
			user.Email = nil
		} else {
			user.Email = r.Email
		}
	}
	if r.Language != nil {
		user.Language = *r.Language
	}
	if r.Timezone != nil {
		user.Timezone = *r.Timezone
	}
	if r.Status != nil {
		user.Status = model.Status(*r.Status)
	}
	if r.Notes != nil {
		user.Notes = *r.Notes
	}
	return nil
}

// Create handles POST /api/v1/users
func (h *Handler) Create(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request: "+err.Error()))
		return
	}
	user := &model.User{Role: model.RoleGuest, Status: model.StatusEnabled}
	if err := req.apply(user); err != nil {
		httpx.FailFrom(c, err)
		return
	}
	if err := h.store.Save(user, common.CurrentUID(c)); err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, user)
}

// Update handles PUT /api/v1/users/:id
func (h *Handler) Update(c *gin.Context) {
	id, ok := common.ParseID(c)
	if !ok {
		return
	}
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request: "+err.Error()))
		return
	}
	entity, err := load(h.db, id)
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	user := entity.(*model.User)
	if err := req.apply(user); err != nil {
		httpx.FailFrom(c, err)
		return
	}
	if err := h.store.Save(user, common.CurrentUID(c)); err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, user)
}

// Delete handles DELETE /api/v1/users/:id: the account is disabled, not
// removed, so its history stays attributable.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := common.ParseID(c)
	if !ok {
		return
	}
	uid := common.CurrentUID(c)
	if uid != nil && *uid == id {
		httpx.FailErr(c, httpx.ErrStateConflict("you cannot delete your own account"))
		return
	}
	entity, err := load(h.db, id)
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	user := entity.(*model.User)
	user.Status = model.StatusDisabled
	if err := h.store.Save(user, uid); err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, nil)
}

// GetProfile handles GET /api/v1/profile
func (h *Handler) GetProfile(c *gin.Context) {
	uid := common.CurrentUID(c)
	if uid == nil {
		httpx.FailErr(c, httpx.ErrUnauthorized(""))
		return
	}
	user, err := load(h.db, *uid)
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, user)
}

type profileRequest struct {
	Password *string `json:"password"`
	Fullname *string `json:"fullname"`
	Email    *string `json:"email"`
	Language *string `json:"lang"`
	Timezone *string `json:"timezone"`
}

// UpdateProfile handles PUT /api/v1/profile: the caller edits their own
// account, role and status excluded.
func (h *Handler) UpdateProfile(c *gin.Context) {
	uid := common.CurrentUID(c)
	if uid == nil {
		httpx.FailErr(c, httpx.ErrUnauthorized(""))
		return
	}
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request: "+err.Error()))
		return
	}
	entity, err := load(h.db, *uid)
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	user := entity.(*model.User)
	full := userRequest{
		Password: req.Password,
		Fullname: req.Fullname,
		Email:    req.Email,
		Language: req.Language,
		Timezone: req.Timezone,
	}
	if err := full.apply(user); err != nil {
		httpx.FailFrom(c, err)
		return
	}
	if err := h.store.Save(user, uid); err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, user)
}
