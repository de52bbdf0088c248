package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/0xtaosu/meme-memos/internal/handler"
	"github.com/0xtaosu/meme-memos/internal/paas"
)

const (
	claimsKey         = "auth.claims"
	anonymousOperator = "anonymous"
)

// Middleware requires a valid bearer token and stores the caller under
// paas.OperatorKey. With disabled set every request passes as anonymous.
func Middleware(issuer *Issuer, disabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if disabled {
			c.Set(paas.OperatorKey, anonymousOperator)
			c.Next()
			return
		}
		tok := bearerToken(c.GetHeader("Authorization"))
		if tok == "" {
			handler.Error(c, http.StatusUnauthorized, "missing bearer token", nil)
			c.Abort()
			return
		}
		claims, err := issuer.Verify(tok)
		if err != nil {
			handler.Error(c, http.StatusUnauthorized, "invalid token", nil)
			c.Abort()
			return
		}
		c.Set(claimsKey, claims)
		c.Set(paas.OperatorKey, claims.Username)
		c.Next()
	}
}

func ClaimsFrom(c *gin.Context) (Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return Claims{}, false
	}
	claims, ok := v.(Claims)
	return claims, ok
}

func bearerToken(v string) string {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(v), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}
