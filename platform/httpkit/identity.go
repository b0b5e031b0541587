// Package httpkit provides HTTP utilities shared by all modules.
package httpkit

import (
	"slices"

	"talent_pipeline_backend/platform/apperr"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity is the authenticated case officer making a request.
type Identity interface {
	UserID() uuid.UUID
	HasRole(role string) bool
	IsAuthenticated() bool
}

type identity struct {
	userID        uuid.UUID
	roles         []string
	authenticated bool
}

func (i *identity) UserID() uuid.UUID        { return i.userID }
func (i *identity) HasRole(role string) bool { return slices.Contains(i.roles, role) }
func (i *identity) IsAuthenticated() bool    { return i.authenticated }

// GetIdentity reads the identity placed on the context by AuthRequired.
func GetIdentity(c *gin.Context) Identity {
	raw, ok := c.Get(ContextUserIDKey)
	if !ok {
		return &identity{}
	}
	uid, ok := raw.(uuid.UUID)
	if !ok || uid == uuid.Nil {
		return &identity{}
	}

	var roles []string
	if v, ok := c.Get(ContextRolesKey); ok {
		roles, _ = v.([]string)
	}
	return &identity{userID: uid, roles: roles, authenticated: true}
}

// MustGetIdentity returns the identity or aborts with 401 and returns nil.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		AbortWithError(c, apperr.Unauthorized("unauthorized"))
		return nil
	}
	return id
}

// RoleAdmin may run bulk and maintenance operations.
const RoleAdmin = "admin"

// RequireRole aborts with 403 unless the authenticated user holds role.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := MustGetIdentity(c)
		if id == nil {
			return
		}
		if !id.HasRole(role) {
			AbortWithError(c, apperr.Forbidden("insufficient permissions"))
			return
		}
		c.Next()
	}
}
