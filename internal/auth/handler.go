package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/0xtaosu/meme-memos/internal/handler"
)

type Handler struct {
	Issuer   *Issuer
	Operator *Operator
	Disabled bool
	Logger   *zap.Logger
}

func (h *Handler) Register(r *gin.Engine, requireAuth gin.HandlerFunc) {
	group := r.Group("/api/auth")
	group.POST("/login", h.login)
	group.GET("/status", h.status)
	group.POST("/refresh", requireAuth, h.refresh)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// @Summary Operator login
// @Tags auth
// @Accept json
// @Param body body loginRequest true "credentials"
// @Success 200 {object} handler.Response{data=tokenResponse}
// @Failure 401 {object} handler.Response
// @Router /api/auth/login [post]
func (h *Handler) login(c *gin.Context) {
	if h.Disabled {
		handler.Error(c, http.StatusBadRequest, "auth disabled", nil)
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if err := h.Operator.Check(req.Username, req.Password); err != nil {
		if h.Logger != nil {
			h.Logger.Info("login rejected", zap.String("username", req.Username), zap.String("ip", c.ClientIP()))
		}
		handler.Error(c, http.StatusUnauthorized, "invalid credentials", nil)
		return
	}
	h.issue(c, req.Username)
}

// @Summary Refresh token
// @Tags auth
// @Security BearerAuth
// @Success 200 {object} handler.Response{data=tokenResponse}
// @Router /api/auth/refresh [post]
func (h *Handler) refresh(c *gin.Context) {
	claims, ok := ClaimsFrom(c)
	if !ok {
		handler.Error(c, http.StatusUnauthorized, "missing token", nil)
		return
	}
	h.issue(c, claims.Username)
}

func (h *Handler) issue(c *gin.Context, username string) {
	tok, exp, err := h.Issuer.Sign(username)
	if err != nil {
		handler.Error(c, http.StatusInternalServerError, "failed to sign token", nil)
		return
	}
	handler.Ok(c, tokenResponse{Token: tok, ExpiresAt: exp.UTC().Format(time.RFC3339)}, nil)
}

type statusResponse struct {
	Authenticated bool   `json:"authenticated"`
	Disabled      bool   `json:"disabled,omitempty"`
	Username      string `json:"username,omitempty"`
	ExpiresAt     string `json:"expires_at,omitempty"`
}

// @Summary Token status
// @Tags auth
// @Success 200 {object} handler.Response{data=statusResponse}
// @Router /api/auth/status [get]
func (h *Handler) status(c *gin.Context) {
	if h.Disabled {
		handler.Ok(c, statusResponse{Disabled: true}, nil)
		return
	}
	// A missing or bad token only means authenticated=false.
	tok := bearerToken(c.GetHeader("Authorization"))
	if tok == "" {
		handler.Ok(c, statusResponse{}, nil)
		return
	}
	claims, err := h.Issuer.Verify(tok)
	if err != nil {
		handler.Ok(c, statusResponse{}, nil)
		return
	}
	resp := statusResponse{Authenticated: true, Username: claims.Username}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time.UTC().Format(time.RFC3339)
	}
	handler.Ok(c, resp, nil)
}
