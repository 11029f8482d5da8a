package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Shubham2003-jha/Backend-Project/internal/apierr"
	"github.com/Shubham2003-jha/Backend-Project/internal/domain"
	"github.com/Shubham2003-jha/Backend-Project/internal/service"
)

const currentUserKey = "currentUser"

// AccessTokenCookie is the cookie carrying the access token; the bearer
// Authorization header is accepted as an alternative.
const AccessTokenCookie = "accessToken"

// Auth validates the access token on protected routes and attaches the
// resolved identity (credential hash and refresh token stripped) to the
// request context. Nothing is attached on failure.
type Auth struct {
	Users *service.UserService
}

// RequireUser is the auth gate middleware.
func (m *Auth) RequireUser(c *gin.Context) {
	raw := ExtractAccessToken(c)
	if raw == "" {
		abortWithError(c, apierr.Unauthorized("Access token is missing"))
		return
	}

	user, err := m.Users.Authenticate(c.Request.Context(), raw)
	if err != nil {
		abortWithError(c, apierr.From(err))
		return
	}

	c.Set(currentUserKey, user)
	c.Next()
}

// ExtractAccessToken pulls the token from the cookie or a bearer header.
func ExtractAccessToken(c *gin.Context) string {
	if cookie, err := c.Cookie(AccessTokenCookie); err == nil && cookie != "" {
		return cookie
	}
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// CurrentUser returns the identity attached by RequireUser.
func CurrentUser(c *gin.Context) (domain.PublicUser, bool) {
	value, ok := c.Get(currentUserKey)
	if !ok {
		return domain.PublicUser{}, false
	}
	user, ok := value.(domain.PublicUser)
	return user, ok
}

func abortWithError(c *gin.Context, err *apierr.Error) {
	c.AbortWithStatusJSON(err.StatusCode, gin.H{
		"statusCode": err.StatusCode,
		"message":    err.Message,
		"data":       nil,
		"success":    false,
		"errors":     errorList(err.Errors),
	})
}

func errorList(details []string) []string {
	if details == nil {
		return []string{}
	}
	return details
}
