package delivery

import (
	"net/http"

	"invoice-backend/internal/account/dto"
	"invoice-backend/internal/account/usecase"
	"invoice-backend/pkg/apperror"
	"invoice-backend/pkg/web"

	"github.com/gin-gonic/gin"
)

type AccountHandler struct {
	accountUsecase usecase.AccountUsecase
	defaultServer  string
	defaultPort    int
}

func NewAccountHandler(accountUsecase usecase.AccountUsecase, defaultServer string, defaultPort int) *AccountHandler {
	return &AccountHandler{
		accountUsecase: accountUsecase,
		defaultServer:  defaultServer,
		defaultPort:    defaultPort,
	}
}

// GET /accounts
func (h *AccountHandler) List(c *gin.Context) {
	accounts, err := h.accountUsecase.List(c.GetString("userID"))
	if err != nil {
		web.Error(c, http.StatusInternalServerError, "加载邮箱账户失败")
		return
	}
	if web.WantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"accounts": accounts})
		return
	}
	web.Render(c, http.StatusOK, "accounts.html", gin.H{
		"title":         "邮箱账户",
		"accounts":      accounts,
		"defaultServer": h.defaultServer,
		"defaultPort":   h.defaultPort,
	})
}

// POST /accounts
func (h *AccountHandler) Create(c *gin.Context) {
	var req dto.CreateAccountRequest
	if err := c.ShouldBind(&req); err != nil {
		web.SetFlash(c, "danger", "请填写正确的邮箱地址和授权码")
		c.Redirect(http.StatusFound, "/accounts")
		return
	}

	if _, err := h.accountUsecase.Create(c.GetString("userID"), &req); err != nil {
		status, msg := apperror.Status(err)
		if status == http.StatusConflict {
			msg = "该邮箱账户已存在"
		} else if status >= http.StatusInternalServerError {
			msg = "保存账户失败"
		}
		web.SetFlash(c, "danger", msg)
		c.Redirect(http.StatusFound, "/accounts")
		return
	}

	web.SetFlash(c, "success", "邮箱账户已添加")
	c.Redirect(http.StatusFound, "/accounts")
}

// POST /accounts/:id/delete
func (h *AccountHandler) Delete(c *gin.Context) {
	if err := h.accountUsecase.Delete(c.GetString("userID"), c.Param("id")); err != nil {
		status, msg := apperror.Status(err)
		web.Error(c, status, msg)
		return
	}
	web.SetFlash(c, "success", "邮箱账户已删除")
	c.Redirect(http.StatusFound, "/accounts")
}
