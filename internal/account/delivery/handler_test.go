package delivery

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"invoice-backend/internal/account/domain"
	"invoice-backend/internal/account/dto"
	"invoice-backend/internal/account/repository"
	"invoice-backend/internal/account/usecase"
	authdomain "invoice-backend/internal/auth/domain"
	"invoice-backend/pkg/database"
	"invoice-backend/pkg/web"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupAccounts(t *testing.T, userID string) (*gin.Engine, usecase.AccountUsecase) {
	t.Helper()
	db, err := database.OpenMemory(&domain.EmailAccount{})
	require.NoError(t, err)
	uc := usecase.NewAccountUsecase(repository.NewAccountRepository(db), []byte("0123456789abcdef0123456789abcdef"), "imap.qq.com", 993)

	h := NewAccountHandler(uc, "imap.qq.com", 993)
	r := gin.New()
	r.SetHTMLTemplate(web.MustTemplates())
	r.Use(func(c *gin.Context) {
		c.Set("user", &authdomain.User{ID: userID, Username: "alice"})
		c.Set("userID", userID)
	})
	r.GET("/accounts", h.List)
	r.GET("/api/accounts", h.List)
	r.POST("/accounts", h.Create)
	r.POST("/accounts/:id/delete", h.Delete)
	return r, uc
}

func post(r *gin.Engine, target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateAndListAccounts(t *testing.T) {
	r, _ := setupAccounts(t, "u1")

	w := post(r, "/accounts", url.Values{"email_address": {"me@qq.com"}, "password": {"code"}, "description": {"工作"}})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/accounts", w.Header().Get("Location"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/accounts", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Accounts []domain.EmailAccount `json:"accounts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Accounts, 1)
	assert.Equal(t, "me@qq.com", body.Accounts[0].EmailAddress)
	assert.Empty(t, body.Accounts[0].Password)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/accounts", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "me@qq.com")
}

func TestCreateRejectsInvalidAddress(t *testing.T) {
	r, uc := setupAccounts(t, "u1")

	w := post(r, "/accounts", url.Values{"email_address": {"not-an-email"}, "password": {"code"}})
	require.Equal(t, http.StatusFound, w.Code)

	accounts, err := uc.List("u1")
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestDeleteOtherUsersAccountIsForbidden(t *testing.T) {
	r, uc := setupAccounts(t, "u1")
	account, err := uc.Create("u2", &dto.CreateAccountRequest{EmailAddress: "bob@qq.com", Password: "x"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/accounts/"+account.ID+"/delete", nil)
	req.Header.Set("Accept", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	own, err := uc.Create("u1", &dto.CreateAccountRequest{EmailAddress: "me@qq.com", Password: "x"})
	require.NoError(t, err)
	w = post(r, "/accounts/"+own.ID+"/delete", url.Values{})
	assert.Equal(t, http.StatusFound, w.Code)

	accounts, err := uc.List("u1")
	require.NoError(t, err)
	assert.Empty(t, accounts)
}
