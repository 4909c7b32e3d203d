package middleware

import (
	"errors"
	"strings"

	"github.com/ikus060/udb/internal/auth"
	"github.com/ikus060/udb/internal/httpx"
	"github.com/ikus060/udb/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// AuthRequired is a middleware that validates JWT token
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			httpx.FailErr(c, httpx.ErrUnauthorized("missing authorization header"))
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httpx.FailErr(c, httpx.ErrUnauthorized("invalid authorization header format"))
			c.Abort()
			return
		}

		claims, err := auth.ParseToken(parts[1])
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				httpx.FailErr(c, httpx.ErrTokenExpired("token expired"))
			} else {
				httpx.FailErr(c, httpx.ErrInvalidToken("invalid token"))
			}
			c.Abort()
			return
		}

		c.Set("uid", claims.UID)
		c.Set("username", claims.Subject)
		c.Set("role", claims.Role)

		c.Next()
	}
}

// WriteAccess keeps guest accounts read only: any method other than GET
// or HEAD requires at least the user role. Must run after AuthRequired.
func WriteAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == "GET" || c.Request.Method == "HEAD" {
			c.Next()
			return
		}
		current := c.GetString("role")
		u := model.User{Role: current}
		if !u.HasRole(model.RoleUser) {
			httpx.FailErr(c, httpx.ErrForbidden("guest accounts are read only"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RoleRequired restricts the route to users holding at least the given
// role. Must run after AuthRequired.
func RoleRequired(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		current := c.GetString("role")
		u := model.User{Role: current}
		if !u.HasRole(role) {
			httpx.FailErr(c, httpx.ErrForbidden(""))
			c.Abort()
			return
		}
		c.Next()
	}
}
