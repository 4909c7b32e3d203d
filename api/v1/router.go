package v1

import (
	"github.com/ikus060/udb/api/v1/auth"
	"github.com/ikus060/udb/api/v1/deployments"
	"github.com/ikus060/udb/api/v1/dhcprecords"
	"github.com/ikus060/udb/api/v1/dnsrecords"
	"github.com/ikus060/udb/api/v1/dnszones"
	"github.com/ikus060/udb/api/v1/environments"
	"github.com/ikus060/udb/api/v1/ips"
	"github.com/ikus060/udb/api/v1/macs"
	"github.com/ikus060/udb/api/v1/middleware"
	"github.com/ikus060/udb/api/v1/rules"
	"github.com/ikus060/udb/api/v1/search"
	"github.com/ikus060/udb/api/v1/subnets"
	"github.com/ikus060/udb/api/v1/users"
	"github.com/ikus060/udb/api/v1/vrfs"
	"github.com/ikus060/udb/internal/config"
	"github.com/ikus060/udb/internal/deploy"
	"github.com/ikus060/udb/internal/engine"
	"github.com/ikus060/udb/internal/httpx"
	"github.com/ikus060/udb/internal/model"
	"github.com/ikus060/udb/internal/rule"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Services carries the shared components the handlers depend on.
type Services struct {
	Store      *engine.Store
	Rules      *rule.Engine
	Deployment *deploy.Service
}

// SetupRouter sets up the API v1 routes
func SetupRouter(r *gin.Engine, db *gorm.DB, cfg *config.Config, svc *Services) {
	deploymentsHandler := deployments.NewHandler(db)
	usersHandler := users.NewHandler(db, svc.Store)

	r.Use(middleware.RequestID())

	v1 := r.Group("/api/v1")
	{
		// Public routes (no authentication required)
		v1.GET("/ping", pingHandler)

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/login", auth.LoginHandler(db, cfg))
		}

		// Deployment scripts fetch their snapshot with the per-run token,
		// not a JWT.
		deploymentsHandler.RegisterData(v1.Group("/deployments"))

		// Protected routes (authentication required). Guests get read
		// access only.
		protected := v1.Group("")
		protected.Use(middleware.AuthRequired(), middleware.WriteAccess())
		{
			protected.GET("/me", meHandler)

			vrfs.NewHandler(db, svc.Store).Register(protected.Group("/vrfs"))
			subnets.NewHandler(db, svc.Store).Register(protected.Group("/subnets"))
			dnszones.NewHandler(db, svc.Store).Register(protected.Group("/dnszones"))
			dnsrecords.NewHandler(db, svc.Store).Register(protected.Group("/dnsrecords"))
			dhcprecords.NewHandler(db, svc.Store).Register(protected.Group("/dhcprecords"))
			ips.NewHandler(db, svc.Store).Register(protected.Group("/ips"))
			macs.NewHandler(db, svc.Store).Register(protected.Group("/macs"))
			search.NewHandler(db).Register(protected.Group("/search"))
			deploymentsHandler.Register(protected.Group("/deployments"))
			usersHandler.RegisterProfile(protected)

			// Environments and rules change what gets deployed and what
			// writes are accepted, so they stay admin only, as does the
			// account management.
			admin := protected.Group("")
			admin.Use(middleware.RoleRequired(model.RoleAdmin))
			{
				environments.NewHandler(db, svc.Store, svc.Deployment).Register(admin.Group("/environments"))
				rules.NewHandler(db, svc.Store, svc.Rules).Register(admin.Group("/rules"))
				usersHandler.Register(admin.Group("/users"))
			}
		}
	}
}

// pingHandler handles the ping request using unified response
func pingHandler(c *gin.Context) {
	httpx.OK(c, gin.H{
		"pong": true,
	})
}

// meHandler returns current user information
func meHandler(c *gin.Context) {
	uid, _ := c.Get("uid")
	username, _ := c.Get("username")
	role, _ := c.Get("role")

	httpx.OK(c, gin.H{
		"uid":      uid,
		"username": username,
		"role":     role,
	})
}
