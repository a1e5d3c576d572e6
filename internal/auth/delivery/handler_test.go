package delivery

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	authdomain "invoice-backend/internal/auth/domain"
	authdto "invoice-backend/internal/auth/dto"
	"invoice-backend/internal/auth/repository"
	"invoice-backend/internal/auth/usecase"
	"invoice-backend/pkg/config"
	"invoice-backend/pkg/database"
	"invoice-backend/pkg/web"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupAuth(t *testing.T) (*gin.Engine, usecase.AuthUsecase) {
	t.Helper()
	db, err := database.OpenMemory(&authdomain.User{})
	require.NoError(t, err)
	uc := usecase.NewAuthUsecase(repository.NewUserRepository(db), &config.Config{JWTSecret: "test", SessionExpiry: time.Hour})

	h := NewAuthHandler(uc, 3600, false)
	r := gin.New()
	r.SetHTMLTemplate(web.MustTemplates())
	r.GET("/", h.Index)
	r.GET("/login", h.LoginPage)
	r.POST("/login", h.Login)
	r.GET("/logout", h.Logout)
	r.GET("/register", h.RegisterPage)
	r.POST("/register", h.Register)

	protected := r.Group("/")
	protected.Use(AuthMiddleware(uc))
	protected.GET("/dashboard", func(c *gin.Context) { c.String(http.StatusOK, CurrentUser(c).Username) })
	protected.GET("/api/invoices", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("userID")) })
	return r, uc
}

func postForm(r *gin.Engine, target string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookie && c.Value != "" {
			return c
		}
	}
	return nil
}

func TestRegisterThenLogin(t *testing.T) {
	r, _ := setupAuth(t)

	w := postForm(r, "/register", url.Values{
		"username": {"alice"}, "email": {"alice@example.com"},
		"password": {"secret1"}, "confirm_password": {"secret1"},
	})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	w = postForm(r, "/login", url.Values{"username": {"alice"}, "password": {"secret1"}, "next": {"/invoices?page=2"}})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/invoices?page=2", w.Header().Get("Location"))

	cookie := sessionCookie(w)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", w.Body.String())
}

func TestRegisterMismatchRendersForm(t *testing.T) {
	r, _ := setupAuth(t)

	w := postForm(r, "/register", url.Values{
		"username": {"alice"}, "email": {"alice@example.com"},
		"password": {"secret1"}, "confirm_password": {"secret2"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "两次输入的密码不一致")
}

func TestLoginWrongPassword(t *testing.T) {
	r, uc := setupAuth(t)
	_, err := uc.Register(&authdto.RegisterRequest{Username: "alice", Email: "a@example.com", Password: "secret1", ConfirmPassword: "secret1"})
	require.NoError(t, err)

	w := postForm(r, "/login", url.Values{"username": {"alice"}, "password": {"nope"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "用户名或密码错误")
	assert.Nil(t, sessionCookie(w))
}

func TestLoginIgnoresExternalNext(t *testing.T) {
	r, uc := setupAuth(t)
	_, err := uc.Register(&authdto.RegisterRequest{Username: "alice", Email: "a@example.com", Password: "secret1", ConfirmPassword: "secret1"})
	require.NoError(t, err)

	w := postForm(r, "/login", url.Values{"username": {"alice"}, "password": {"secret1"}, "next": {"https://evil.example.com/"}})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))
}

func TestMiddlewareRedirectsPages(t *testing.T) {
	r, _ := setupAuth(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?next="+url.QueryEscape("/dashboard"), w.Header().Get("Location"))
}

func TestMiddlewareRejectsAPICalls(t *testing.T) {
	r, _ := setupAuth(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/invoices", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddlewareAcceptsBearerToken(t *testing.T) {
	r, uc := setupAuth(t)
	user, err := uc.Register(&authdto.RegisterRequest{Username: "alice", Email: "a@example.com", Password: "secret1", ConfirmPassword: "secret1"})
	require.NoError(t, err)
	token, _, err := uc.Login(&authdto.LoginRequest{Username: "alice", Password: "secret1"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/invoices", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, user.ID, w.Body.String())
}

func TestSafeNext(t *testing.T) {
	tests := map[string]string{
		"":                     "/dashboard",
		"/invoices":            "/invoices",
		"/invoices?page=2":     "/invoices?page=2",
		"//evil.example.com":   "/dashboard",
		"/\\evil.example.com":  "/dashboard",
		"https://evil.example": "/dashboard",
		"invoices":             "/dashboard",
	}
	for in, want := range tests {
		assert.Equal(t, want, SafeNext(in), in)
	}
}
