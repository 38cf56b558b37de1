package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smallbiznis/teamdocs-auth/internal/domain"
	"github.com/smallbiznis/teamdocs-auth/internal/http/middleware"
	"github.com/smallbiznis/teamdocs-auth/internal/identity"
	"github.com/smallbiznis/teamdocs-auth/internal/repository"
	signinsvc "github.com/smallbiznis/teamdocs-auth/internal/service/signin"
)

// Notice codes delivered to the client on decline or failure. The raw
// error never leaves the service.
const (
	noticeDomainRequired = "domain-required"
	noticeAuthError      = "auth-error"
)

const lastSignedInCookie = "lastSignedIn"

// SigninHandler exposes the federated sign-in endpoints.
type SigninHandler struct {
	Signin signinsvc.Service
	Users  repository.UserRepository
}

// NewSigninHandler creates the handler set.
func NewSigninHandler(signin signinsvc.Service, users repository.UserRepository) *SigninHandler {
	return &SigninHandler{Signin: signin, Users: users}
}

// Start begins the handshake and redirects the user to the provider's
// consent dialog.
func (h *SigninHandler) Start(c *gin.Context) {
	out, err := h.Signin.StartSignIn(c.Request.Context(), signinsvc.StartSignInInput{
		ReturnTo: c.Query("return_to"),
	})
	if err != nil {
		zap.L().Error("start sign-in failed", zap.Error(err))
		h.noticeRedirect(c, noticeAuthError)
		return
	}
	c.Redirect(http.StatusFound, out.AuthorizationURL)
}

// Callback completes the flow: it resolves the account pair, sets the
// session cookie, and redirects home. Ineligible identities are declined
// with a notice rather than an error.
func (h *SigninHandler) Callback(c *gin.Context) {
	outcome, err := h.Signin.HandleCallback(c.Request.Context(), signinsvc.CallbackInput{
		Code:  c.Query("code"),
		State: c.Query("state"),
	})
	if err != nil {
		h.respondSigninError(c, err)
		return
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     lastSignedInCookie,
		Value:    outcome.Provider,
		Path:     "/",
		Expires:  time.Now().AddDate(10, 0, 0),
		HttpOnly: false,
		Secure:   c.Request.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    outcome.Credential.Token,
		Path:     "/",
		Expires:  outcome.Credential.ExpiresAt,
		HttpOnly: true,
		Secure:   c.Request.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	redirect := strings.TrimSpace(outcome.ReturnTo)
	if !isSafeReturnTo(redirect) {
		redirect = "/"
	}
	c.Redirect(http.StatusFound, redirect)
}

// Me returns the authenticated user's account record.
func (h *SigninHandler) Me(c *gin.Context) {
	userID, ok := middleware.SessionUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "error_description": "Session not validated."})
		return
	}

	user, err := h.Users.GetByID(c.Request.Context(), userID)
	if err != nil {
		zap.L().Warn("session user lookup failed", zap.Int64("user_id", userID), zap.Error(err))
		c.JSON(http.StatusNotFound, gin.H{"error": "user_not_found", "error_description": "Account no longer exists."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         user.ID,
		"team_id":    user.TeamID,
		"name":       user.Name,
		"email":      user.Email,
		"avatar_url": user.AvatarURL,
		"is_admin":   user.IsAdmin,
	})
}

// Healthz is the liveness endpoint.
func (h *SigninHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *SigninHandler) respondSigninError(c *gin.Context, err error) {
	logger := zap.L()
	switch {
	case errors.Is(err, identity.ErrIneligible):
		// Soft decline: the identity has no hosted organization domain.
		logger.Info("sign-in declined", zap.String("reason", noticeDomainRequired))
		h.noticeRedirect(c, noticeDomainRequired)
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrInvalidState):
		logger.Warn("sign-in rejected", zap.Error(err))
		h.noticeRedirect(c, noticeAuthError)
	default:
		logger.Error("sign-in failed", zap.Error(err))
		h.noticeRedirect(c, noticeAuthError)
	}
}

func (h *SigninHandler) noticeRedirect(c *gin.Context, notice string) {
	target := url.URL{Path: "/"}
	q := target.Query()
	q.Set("notice", notice)
	target.RawQuery = q.Encode()
	c.Redirect(http.StatusFound, target.String())
}

// isSafeReturnTo allows only same-site relative paths as post-signin targets.
// Browsers normalize "/\" to "//", so both scheme-relative forms are rejected.
func isSafeReturnTo(target string) bool {
	if target == "" || !strings.HasPrefix(target, "/") {
		return false
	}
	if strings.HasPrefix(target, "//") || strings.HasPrefix(target, `/\`) {
		return false
	}
	return true
}
