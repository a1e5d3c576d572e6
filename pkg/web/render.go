// Package web holds the HTML templates and the helpers handlers use to render
// them with session data.
package web

import (
	"embed"
	"encoding/base64"
	"encoding/json"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	flashCookie = "flash"
	flashKey    = "flash_pending"
)

type Flash struct {
	Category string `json:"c"` // success, info, warning, danger
	Message  string `json:"m"`
}

// Templates parses every embedded page template.
func Templates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"fmtTime": fmtTime,
		"add":     func(a, b int) int { return a + b },
		"sub":     func(a, b int) int { return a - b },
	}).ParseFS(templateFS, "templates/*.html")
}

func MustTemplates() *template.Template {
	return template.Must(Templates())
}

func fmtTime(v interface{}) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02 15:04")
	case *time.Time:
		if t == nil || t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02 15:04")
	}
	return ""
}

// Render executes a page template with the CSRF token, current user and any
// pending flash messages added to data.
func Render(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["csrf"] = c.GetString("csrf")
	if u, ok := c.Get("user"); ok {
		data["user"] = u
	}
	data["flashes"] = PopFlashes(c)
	c.HTML(status, name, data)
}

// WantsJSON reports whether the caller expects JSON instead of a page.
func WantsJSON(c *gin.Context) bool {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}

// Error renders an error page or a JSON error depending on the caller.
func Error(c *gin.Context, status int, message string) {
	if WantsJSON(c) {
		c.JSON(status, gin.H{"error": message})
		return
	}
	Render(c, status, "error.html", gin.H{"status": status, "message": message})
}

// SetFlash queues a message shown on the next rendered page.
func SetFlash(c *gin.Context, category, message string) {
	pending := pendingFlashes(c)
	pending = append(pending, Flash{Category: category, Message: message})
	c.Set(flashKey, pending)

	data, err := json.Marshal(pending)
	if err != nil {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flashCookie, base64.RawURLEncoding.EncodeToString(data), 60, "/", "", false, true)
}

// PopFlashes returns flashes carried over from the previous response and those
// queued during this request, then clears them.
func PopFlashes(c *gin.Context) []Flash {
	var out []Flash
	if v, err := c.Cookie(flashCookie); err == nil && v != "" {
		if raw, err := base64.RawURLEncoding.DecodeString(v); err == nil {
			_ = json.Unmarshal(raw, &out)
		}
		c.SetCookie(flashCookie, "", -1, "/", "", false, true)
	}
	pending := pendingFlashes(c)
	if len(pending) > 0 {
		out = append(out, pending...)
		c.Set(flashKey, []Flash(nil))
		c.SetCookie(flashCookie, "", -1, "/", "", false, true)
	}
	return out
}

func pendingFlashes(c *gin.Context) []Flash {
	if v, ok := c.Get(flashKey); ok {
		if f, ok := v.([]Flash); ok {
			return f
		}
	}
	return nil
}
