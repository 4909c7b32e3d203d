// Package common carries the helpers shared by every resource handler:
// id and pagination parsing, the current user, and the audit sub-routes
// (history, comments, followers) registered under each resource.
package common

import (
	"strconv"

	"github.com/ikus060/udb/internal/changelog"
	"github.com/ikus060/udb/internal/engine"
	"github.com/ikus060/udb/internal/httpx"
	"github.com/ikus060/udb/internal/model"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ParseID parses the :id route parameter. On failure the response is
// already written.
func ParseID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid id"))
		return 0, false
	}
	return id, true
}

// Pagination parses page/pageSize query parameters.
func Pagination(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 1000 {
		pageSize = 20
	}
	return page, pageSize
}

// CurrentUID returns the authenticated user id, nil for anonymous paths.
func CurrentUID(c *gin.Context) *int {
	uid := c.GetInt("uid")
	if uid == 0 {
		return nil
	}
	return &uid
}

// FilterStatus applies the status query parameter. Deleted rows are
// hidden unless asked for explicitly.
func FilterStatus(q *gorm.DB, c *gin.Context) *gorm.DB {
	status := c.Query("status")
	if status == "" {
		return q.Where("status != ?", model.StatusDeleted)
	}
	if status == "all" {
		return q
	}
	return q.Where("status = ?", status)
}

// EntityLoader fetches one entity of the resource by id.
type EntityLoader func(db *gorm.DB, id int) (model.Auditable, error)

// AuditRoutes registers the change log surface of one resource.
type AuditRoutes struct {
	DB    *gorm.DB
	Store *engine.Store
	Load  EntityLoader
}

// Register mounts the audit sub-routes on the resource group.
func (a *AuditRoutes) Register(g *gin.RouterGroup) {
	g.GET("/:id/messages", a.listMessages)
	g.POST("/:id/comments", a.addComment)
	g.GET("/:id/followers", a.listFollowers)
	g.POST("/:id/follow", a.follow)
	g.DELETE("/:id/follow", a.unfollow)
}

func (a *AuditRoutes) listMessages(c *gin.Context) {
	id, ok := ParseID(c)
	if !ok {
		return
	}
	entity, err := a.Load(a.DB, id)
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	messages, err := changelog.History(a.DB, entity.ModelName(), entity.GetID())
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, messages)
}

type commentRequest struct {
	Body string `json:"body" binding:"required"`
}

func (a *AuditRoutes) addComment(c *gin.Context) {
	id, ok := ParseID(c)
	if !ok {
		return
	}
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request: "+err.Error()))
		return
	}
	entity, err := a.Load(a.DB, id)
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	if err := a.Store.Comment(entity, req.Body, CurrentUID(c)); err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, nil)
}

func (a *AuditRoutes) listFollowers(c *gin.Context) {
	id, ok := ParseID(c)
	if !ok {
		return
	}
	entity, err := a.Load(a.DB, id)
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	var users []model.User
	err = a.DB.Table("user").
		Joins("JOIN follower ON follower.user_id = user.id").
		Where("follower.model_name = ?", entity.ModelName()).
		Where("follower.model_id = ? OR follower.model_id = 0", entity.GetID()).
		Find(&users).Error
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, users)
}

func (a *AuditRoutes) follow(c *gin.Context) {
	id, ok := ParseID(c)
	if !ok {
		return
	}
	uid := CurrentUID(c)
	if uid == nil {
		httpx.FailErr(c, httpx.ErrUnauthorized(""))
		return
	}
	entity, err := a.Load(a.DB, id)
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	follower := model.Follower{
		ModelName: entity.ModelName(),
		ModelID:   entity.GetID(),
		UserID:    *uid,
	}
	err = a.DB.Where(&follower).FirstOrCreate(&follower).Error
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, follower)
}

func (a *AuditRoutes) unfollow(c *gin.Context) {
	id, ok := ParseID(c)
	if !ok {
		return
	}
	uid := CurrentUID(c)
	if uid == nil {
		httpx.FailErr(c, httpx.ErrUnauthorized(""))
		return
	}
	entity, err := a.Load(a.DB, id)
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	err = a.DB.Where("model_name = ? AND model_id = ? AND user_id = ?",
		entity.ModelName(), entity.GetID(), *uid).
		Delete(&model.Follower{}).Error
	if err != nil {
		httpx.FailFrom(c, err)
		return
	}
	httpx.OK(c, nil)
}
