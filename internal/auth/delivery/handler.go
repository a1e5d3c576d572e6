package delivery

import (
	"errors"
	"net/http"

	authdto "invoice-backend/internal/auth/dto"
	"invoice-backend/internal/auth/usecase"
	"invoice-backend/pkg/web"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authUsecase  usecase.AuthUsecase
	cookieMaxAge int
	secureCookie bool
}

func NewAuthHandler(authUsecase usecase.AuthUsecase, cookieMaxAge int, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		authUsecase:  authUsecase,
		cookieMaxAge: cookieMaxAge,
		secureCookie: secureCookie,
	}
}

// Index sends signed in users to the dashboard and everyone else to login.
// GET /
func (h *AuthHandler) Index(c *gin.Context) {
	if _, err := h.authUsecase.ValidateToken(sessionToken(c)); err == nil {
		c.Redirect(http.StatusFound, "/dashboard")
		return
	}
	c.Redirect(http.StatusFound, "/login")
}

// GET /login
func (h *AuthHandler) LoginPage(c *gin.Context) {
	if _, err := h.authUsecase.ValidateToken(sessionToken(c)); err == nil {
		c.Redirect(http.StatusFound, "/dashboard")
		return
	}
	web.Render(c, http.StatusOK, "login.html", gin.H{"next": c.Query("next")})
}

// POST /login
func (h *AuthHandler) Login(c *gin.Context) {
	var req authdto.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		web.SetFlash(c, "danger", "请输入用户名和密码")
		web.Render(c, http.StatusBadRequest, "login.html", gin.H{"next": req.Next, "username": req.Username})
		return
	}

	token, user, err := h.authUsecase.Login(&req)
	if err != nil {
		status := http.StatusInternalServerError
		msg := "登录失败，请稍后重试"
		if errors.Is(err, usecase.ErrInvalidCredentials) {
			status = http.StatusUnauthorized
			msg = "用户名或密码错误"
		}
		web.SetFlash(c, "danger", msg)
		web.Render(c, status, "login.html", gin.H{"next": req.Next, "username": req.Username})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, token, h.cookieMaxAge, "/", "", h.secureCookie, true)
	web.SetFlash(c, "success", "欢迎回来，"+user.Username)
	c.Redirect(http.StatusFound, SafeNext(req.Next))
}

// GET /logout
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetCookie(SessionCookie, "", -1, "/", "", h.secureCookie, true)
	web.SetFlash(c, "info", "您已退出登录")
	c.Redirect(http.StatusFound, "/login")
}

// GET /register
func (h *AuthHandler) RegisterPage(c *gin.Context) {
	web.Render(c, http.StatusOK, "register.html", nil)
}

// POST /register
func (h *AuthHandler) Register(c *gin.Context) {
	var req authdto.RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		web.SetFlash(c, "danger", "请检查输入：用户名 3-64 个字符，邮箱格式正确，密码至少 6 位")
		web.Render(c, http.StatusBadRequest, "register.html", gin.H{"username": req.Username, "email": req.Email})
		return
	}

	if _, err := h.authUsecase.Register(&req); err != nil {
		status := http.StatusBadRequest
		var msg string
		switch {
		case errors.Is(err, usecase.ErrUsernameTaken):
			msg = "该用户名已被使用"
		case errors.Is(err, usecase.ErrEmailTaken):
			msg = "该邮箱已被注册"
		case errors.Is(err, usecase.ErrPasswordMismatch):
			msg = "两次输入的密码不一致"
		case errors.Is(err, usecase.ErrPasswordTooShort):
			msg = "密码至少 6 位"
		default:
			status = http.StatusInternalServerError
			msg = "注册失败，请稍后重试"
		}
		web.SetFlash(c, "danger", msg)
		web.Render(c, status, "register.html", gin.H{"username": req.Username, "email": req.Email})
		return
	}

	web.SetFlash(c, "success", "注册成功，请登录")
	c.Redirect(http.StatusFound, "/login")
}
