package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/policy"
)

const CtxPrincipalKey = "principal"

// Authenticate resolves the caller. A request without a bearer token is
// anonymous; a bad token is rejected.
func Authenticate(jwtMgr *JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" {
			c.Set(CtxPrincipalKey, policy.Anonymous())
			c.Next()
			return
		}
		if !strings.HasPrefix(h, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := jwtMgr.Parse(strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid access token"})
			return
		}
		p, err := claims.Principal()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid access token"})
			return
		}
		c.Set(CtxPrincipalKey, p)
		c.Next()
	}
}

func RequireRole(roles ...policy.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := PrincipalFrom(c)
		for _, r := range roles {
			if p.Role == r {
				c.Next()
				return
			}
		}
		if p.Role == policy.RoleAnon {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
			return
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}

// PrincipalFrom returns the caller set by Authenticate, or anon.
func PrincipalFrom(c *gin.Context) policy.Principal {
	v, ok := c.Get(CtxPrincipalKey)
	if !ok {
		return policy.Anonymous()
	}
	p, ok := v.(policy.Principal)
	if !ok {
		return policy.Anonymous()
	}
	return p
}
