package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"trueface/internal/apperrors"
)

const claimsKey = "claims"

// RequireTeacher enforces a bearer token issued by iss.
func RequireTeacher(iss *Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			abort(c, "missing bearer token")
			return
		}
		claims, err := iss.Parse(strings.TrimSpace(authz[len("bearer "):]))
		if err != nil {
			abort(c, "invalid token")
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// FromContext returns the claims stored by RequireTeacher.
func FromContext(c *gin.Context) (Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return Claims{}, false
	}
	claims, ok := v.(Claims)
	return claims, ok
}

func abort(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": apperrors.Clone(apperrors.ErrUnauthorized, msg)})
}
