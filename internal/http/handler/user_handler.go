package handler

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Shubham2003-jha/Backend-Project/internal/apierr"
	"github.com/Shubham2003-jha/Backend-Project/internal/config"
	"github.com/Shubham2003-jha/Backend-Project/internal/domain"
	"github.com/Shubham2003-jha/Backend-Project/internal/http/middleware"
	"github.com/Shubham2003-jha/Backend-Project/internal/service"
)

const refreshTokenCookie = "refreshToken"

// UserHandler exposes the account and session endpoints.
type UserHandler struct {
	Users *service.UserService
	cfg   config.Config
}

// NewUserHandler creates the handler set.
func NewUserHandler(users *service.UserService, cfg config.Config) *UserHandler {
	return &UserHandler{Users: users, cfg: cfg}
}

// Register handles multipart registration with an avatar (required) and a
// cover image (optional).
func (h *UserHandler) Register(c *gin.Context) {
	in := service.RegisterInput{
		FullName: c.PostForm("fullName"),
		Email:    c.PostForm("email"),
		Username: c.PostForm("username"),
		Password: c.PostForm("password"),
	}

	avatarPath, ok, err := h.saveFormFile(c, "avatar")
	if err != nil {
		respondError(c, err)
		return
	}
	if ok {
		in.AvatarPath = avatarPath
	}

	coverPath, ok, err := h.saveFormFile(c, "coverImage")
	if err != nil {
		respondError(c, err)
		return
	}
	if ok {
		in.CoverImagePath = coverPath
	}

	created, err := h.Users.Register(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusCreated, "User registered successfully", created)
}

// Login authenticates with username or email plus password and sets the
// session cookies.
func (h *UserHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierr.Validation("Invalid payload"))
		return
	}

	identifier := strings.TrimSpace(req.Username)
	if identifier == "" {
		identifier = strings.TrimSpace(req.Email)
	}

	result, err := h.Users.Login(c.Request.Context(), identifier, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	h.setSessionCookies(c, result.Tokens.AccessToken, result.Tokens.RefreshToken)
	respond(c, http.StatusOK, "User logged in successfully", gin.H{
		"user":         result.User,
		"accessToken":  result.Tokens.AccessToken,
		"refreshToken": result.Tokens.RefreshToken,
	})
}

// Logout clears the stored refresh token and expires both cookies.
func (h *UserHandler) Logout(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, apierr.Unauthorized("Access token is missing"))
		return
	}

	if err := h.Users.Logout(c.Request.Context(), user.ID); err != nil {
		respondError(c, err)
		return
	}

	h.clearSessionCookies(c)
	respond(c, http.StatusOK, "User logged out successfully", nil)
}

// RefreshToken runs the rotation flow. The presented token comes from the
// cookie or the request body.
func (h *UserHandler) RefreshToken(c *gin.Context) {
	presented, _ := c.Cookie(refreshTokenCookie)
	if presented == "" {
		var req struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := c.ShouldBindJSON(&req); err == nil {
			presented = strings.TrimSpace(req.RefreshToken)
		}
	}

	result, err := h.Users.Refresh(c.Request.Context(), presented)
	if err != nil {
		respondError(c, err)
		return
	}

	h.setSessionCookies(c, result.Tokens.AccessToken, result.Tokens.RefreshToken)
	respond(c, http.StatusOK, "Access token refreshed", gin.H{
		"accessToken":  result.Tokens.AccessToken,
		"refreshToken": result.Tokens.RefreshToken,
	})
}

// ChangePassword verifies the old password before replacing it.
func (h *UserHandler) ChangePassword(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, apierr.Unauthorized("Access token is missing"))
		return
	}

	var req struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierr.Validation("Invalid payload"))
		return
	}

	if err := h.Users.ChangePassword(c.Request.Context(), user.ID, req.OldPassword, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Password changed successfully", nil)
}

// CurrentUser returns the authenticated identity.
func (h *UserHandler) CurrentUser(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, apierr.Unauthorized("Access token is missing"))
		return
	}
	respond(c, http.StatusOK, "Current user fetched successfully", user)
}

// UpdateAccount changes full name and email.
func (h *UserHandler) UpdateAccount(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, apierr.Unauthorized("Access token is missing"))
		return
	}

	var req struct {
		FullName string `json:"fullName"`
		Email    string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierr.Validation("Invalid payload"))
		return
	}

	updated, err := h.Users.UpdateAccount(c.Request.Context(), user.ID, strings.TrimSpace(req.FullName), req.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Account details updated successfully", updated)
}

// UpdateAvatar replaces the avatar image.
func (h *UserHandler) UpdateAvatar(c *gin.Context) {
	h.updateImage(c, "avatar", "Avatar updated successfully", h.Users.UpdateAvatar)
}

// UpdateCoverImage replaces the cover image.
func (h *UserHandler) UpdateCoverImage(c *gin.Context) {
	h.updateImage(c, "coverImage", "Cover image updated successfully", h.Users.UpdateCoverImage)
}

// ChannelProfile returns the channel summary for the requested username as
// seen by the authenticated viewer.
func (h *UserHandler) ChannelProfile(c *gin.Context) {
	viewer, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, apierr.Unauthorized("Access token is missing"))
		return
	}

	profile, err := h.Users.ChannelProfile(c.Request.Context(), c.Param("username"), viewer.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Channel profile fetched successfully", profile)
}

// WatchHistory lists the viewer's watched videos.
func (h *UserHandler) WatchHistory(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, apierr.Unauthorized("Access token is missing"))
		return
	}

	entries, err := h.Users.WatchHistory(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Watch history fetched successfully", entries)
}

// Healthz is the liveness probe.
func (h *UserHandler) Healthz(c *gin.Context) {
	respond(c, http.StatusOK, "ok", nil)
}

func (h *UserHandler) updateImage(c *gin.Context, field, message string, update func(ctx context.Context, userID int64, localPath string) (domain.PublicUser, error)) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, apierr.Unauthorized("Access token is missing"))
		return
	}

	localPath, present, err := h.saveFormFile(c, field)
	if err != nil {
		respondError(c, err)
		return
	}
	if !present {
		respondError(c, apierr.Validation(field+" file is required"))
		return
	}

	updated, err := update(c.Request.Context(), user.ID, localPath)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, message, updated)
}

func (h *UserHandler) setSessionCookies(c *gin.Context, accessToken, refreshToken string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.AccessTokenCookie, accessToken, int(h.cfg.AccessTokenTTL.Seconds()), "/", "", true, true)
	c.SetCookie(refreshTokenCookie, refreshToken, int(h.cfg.RefreshTokenTTL.Seconds()), "/", "", true, true)
}

func (h *UserHandler) clearSessionCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", "", true, true)
	c.SetCookie(refreshTokenCookie, "", -1, "/", "", true, true)
}

// saveFormFile captures the zero-or-one file for a named slot into a
// temporary path. ok reports whether the slot was populated.
func (h *UserHandler) saveFormFile(c *gin.Context, field string) (string, bool, error) {
	file, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", false, nil
		}
		return "", false, apierr.Validation("Invalid multipart payload")
	}

	dst := filepath.Join(os.TempDir(), uuid.NewString()+filepath.Ext(file.Filename))
	if err := c.SaveUploadedFile(file, dst); err != nil {
		return "", false, apierr.Internal()
	}
	return dst, true, nil
}
