package paas

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func RegisterDocs(r *gin.Engine) {
	r.GET("/docs", func(c *gin.Context) {
		c.Header("Content-Type", "text/markdown; charset=utf-8")
		c.String(http.StatusOK, `# Meme Memos Service

Tracks tokens ("memos") and dated events on them. Each new event is enriched
with the large buys seen in the 24 hours before it.

## Auth

POST /api/auth/login with {"username","password"} returns a bearer token.
Routes that change data require Authorization: Bearer <token>.
Reads and health endpoints are public.

## Routes

- GET /healthz
- GET /readyz
- GET /swagger/index.html
- POST /api/auth/login
- POST /api/auth/refresh
- GET /api/auth/status
- GET /api/memos
- POST /api/memos
- GET /api/memos/stream (websocket)
- GET /api/memos/{tokenAddress}
- DELETE /api/memos/{tokenAddress}
- POST /api/memos/{tokenAddress}/refresh
- POST /api/memos/{tokenAddress}/events
- DELETE /api/memos/{tokenAddress}/events/{eventId}
- GET /api/memos/{tokenAddress}/large-transactions
- GET /api/large-transactions
`)
	})
}
