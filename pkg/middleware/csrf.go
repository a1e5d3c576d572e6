package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"
)

type CSRFConfig struct {
	TokenLength  int
	CookieName   string
	HeaderName   string
	FormField    string
	ContextKey   string
	CookieMaxAge int
	Secure       bool
	Skipper      func(*gin.Context) bool
}

func DefaultCSRFConfig() CSRFConfig {
	return CSRFConfig{
		TokenLength:  32,
		CookieName:   "csrf_token",
		HeaderName:   "X-CSRF-Token",
		FormField:    "csrf_token",
		ContextKey:   "csrf",
		CookieMaxAge: 3600 * 12,
	}
}

// CSRFProtection is a double-submit cookie check. Every request gets a token in
// the context for templates; unsafe methods must echo the cookie value in the
// form field or header.
func CSRFProtection(cfg CSRFConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookieToken, _ := c.Cookie(cfg.CookieName)
		if cookieToken == "" {
			cookieToken = generateToken(cfg.TokenLength)
			c.SetSameSite(http.SameSiteStrictMode)
			c.SetCookie(cfg.CookieName, cookieToken, cfg.CookieMaxAge, "/", "", cfg.Secure, true)
		}
		c.Set(cfg.ContextKey, cookieToken)

		if cfg.Skipper != nil && cfg.Skipper(c) {
			c.Next()
			return
		}

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		sent := c.GetHeader(cfg.HeaderName)
		if sent == "" {
			sent = c.PostForm(cfg.FormField)
		}
		if sent == "" || !tokensEqual(cookieToken, sent) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "CSRF token missing or invalid"})
			return
		}
		c.Next()
	}
}

func generateToken(length int) string {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

func tokensEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
