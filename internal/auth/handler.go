package auth

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/vodbridge/backend/pkg/response"
)

// Handler exposes the one-time browser consent flow used to obtain a
// refresh token. The operator visits the consent URL once, approves
// offline access, and places the returned refresh token in the
// environment.
type Handler struct {
	cfg    *oauth2.Config
	logger *zap.Logger
}

// NewHandler creates the consent-flow handler.
func NewHandler(cfg OAuthConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		cfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		logger: logger,
	}
}

// ConsentURL handles GET /auth/url. Returns the provider consent URL
// requesting offline access so the exchange yields a refresh token.
func (h *Handler) ConsentURL(c *gin.Context) {
	if h.cfg.ClientID == "" || h.cfg.ClientSecret == "" {
		response.ServiceUnavailable(c, "oauth client not configured")
		return
	}
	url := h.cfg.AuthCodeURL("state",
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
	response.OK(c, gin.H{"consent_url": url})
}

// Callback handles GET /auth/callback. Exchanges the authorization code
// and hands the refresh token back to the operator; nothing is persisted.
func (h *Handler) Callback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		response.BadRequest(c, "code required")
		return
	}
	tok, err := h.cfg.Exchange(c.Request.Context(), code)
	if err != nil {
		h.logger.Error("code exchange failed", zap.Error(err))
		response.BadRequest(c, "code exchange failed: "+err.Error())
		return
	}
	if tok.RefreshToken == "" {
		response.BadRequest(c, "provider returned no refresh token; revoke access and retry with consent prompt")
		return
	}
	response.OK(c, gin.H{
		"refresh_token": tok.RefreshToken,
		"note":          "set OAUTH_REFRESH_TOKEN to this value and restart",
	})
}
