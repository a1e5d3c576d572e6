package delivery

import (
	"net/http"
	"net/url"
	"strings"

	authdomain "invoice-backend/internal/auth/domain"
	"invoice-backend/internal/auth/usecase"
	"invoice-backend/pkg/web"

	"github.com/gin-gonic/gin"
)

const SessionCookie = "session"

// AuthMiddleware accepts the session cookie or an Authorization bearer token.
// Pages redirect to the login form; API calls get 401.
func AuthMiddleware(authUsecase usecase.AuthUsecase) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := authUsecase.ValidateToken(sessionToken(c))
		if err != nil {
			if web.WantsJSON(c) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session"})
			} else {
				web.SetFlash(c, "info", "请先登录")
				c.Redirect(http.StatusFound, "/login?next="+url.QueryEscape(c.Request.URL.RequestURI()))
			}
			c.Abort()
			return
		}

		c.Set("user", user)
		c.Set("userID", user.ID)
		c.Next()
	}
}

// AdminOnly lets through users whose username is in usernames. It must run
// after AuthMiddleware.
func AdminOnly(usernames []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(usernames))
	for _, name := range usernames {
		allowed[name] = true
	}
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !allowed[user.Username] {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// HasSessionCookie reports whether the request carries a session cookie.
func HasSessionCookie(c *gin.Context) bool {
	token, err := c.Cookie(SessionCookie)
	return err == nil && token != ""
}

func sessionToken(c *gin.Context) string {
	if token, err := c.Cookie(SessionCookie); err == nil && token != "" {
		return token
	}
	parts := strings.Split(c.GetHeader("Authorization"), " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

// CurrentUser returns the user set by AuthMiddleware.
func CurrentUser(c *gin.Context) *authdomain.User {
	v, ok := c.Get("user")
	if !ok {
		return nil
	}
	user, _ := v.(*authdomain.User)
	return user
}

// SafeNext returns next when it is a local path, so a login link cannot send
// users to another site.
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/dashboard"
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/dashboard"
	}
	return next
}
