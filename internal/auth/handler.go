package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const stateCookie = "oauth_state"

type Handler struct {
	service     *Service
	frontendURL string
	logger      *zap.Logger
}

// NewHandler creates the auth handler. frontendURL receives the session
// token after Google sign-in.
func NewHandler(s *Service, frontendURL string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: s, frontendURL: strings.TrimRight(frontendURL, "/"), logger: logger}
}

// Register handles POST /auth/register
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// Login handles POST /auth/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// GoogleLogin handles GET /auth/google/login
func (h *Handler) GoogleLogin(c *gin.Context) {
	state, err := newState()
	if err != nil {
		h.writeError(c, err)
		return
	}

	url, err := h.service.GoogleAuthURL(state)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, 600, "/auth/google", "", c.Request.TLS != nil, true)
	c.Redirect(http.StatusFound, url)
}

// GoogleCallback handles GET /auth/google/callback
func (h *Handler) GoogleCallback(c *gin.Context) {
	expected, err := c.Cookie(stateCookie)
	if err != nil || expected == "" || expected != c.Query("state") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid oauth state"})
		return
	}
	c.SetCookie(stateCookie, "", -1, "/auth/google", "", c.Request.TLS != nil, true)

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code"})
		return
	}

	session, err := h.service.GoogleCallback(c.Request.Context(), code)
	if err != nil {
		h.writeError(c, err)
		return
	}

	if h.frontendURL == "" {
		c.JSON(http.StatusOK, session)
		return
	}
	c.Redirect(http.StatusFound, h.frontendURL+"/auth/callback#token="+session.Token)
}

// Me handles GET /auth/me
func (h *Handler) Me(c *gin.Context) {
	claims := MustClaims(c)
	user, err := h.service.Me(c.Request.Context(), claims.UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, ErrWrongRole), errors.Is(err, ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, ErrEmailInUse):
		status = http.StatusConflict
	case errors.Is(err, ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrInvalidRole):
		status = http.StatusBadRequest
	case errors.Is(err, ErrOAuthNotConfigured):
		status = http.StatusServiceUnavailable
	case errors.Is(err, ErrOAuthExchange):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Auth request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": FriendlyMessage(err)})
}

func newState() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
