package delivery

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	accountdomain "invoice-backend/internal/account/domain"
	accountdto "invoice-backend/internal/account/dto"
	"invoice-backend/internal/invoice/dto"
	"invoice-backend/internal/invoice/usecase"
	progressusecase "invoice-backend/internal/progress/usecase"
	"invoice-backend/pkg/apperror"
	"invoice-backend/pkg/imap"
	"invoice-backend/pkg/logger"
	"invoice-backend/pkg/web"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Accounts is the part of the account usecase the import pages need.
type Accounts interface {
	List(userID string) ([]*accountdomain.EmailAccount, error)
	Create(userID string, req *accountdto.CreateAccountRequest) (*accountdomain.EmailAccount, error)
	Credentials(userID, accountID string) (imap.Credentials, *accountdomain.EmailAccount, error)
}

// JobQueue is satisfied by *usecase.ImportWorker.
type JobQueue interface {
	Queue(job usecase.ImportJob) error
}

type InvoiceHandler struct {
	invoiceUsecase usecase.InvoiceUsecase
	accounts       Accounts
	tracker        progressusecase.Tracker
	queue          JobQueue
	defaultSubject string
	imapServer     string
	imapPort       int
	log            *zap.Logger
}

func NewInvoiceHandler(
	invoiceUsecase usecase.InvoiceUsecase,
	accounts Accounts,
	tracker progressusecase.Tracker,
	queue JobQueue,
	defaultSubject, imapServer string,
	imapPort int,
) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceUsecase: invoiceUsecase,
		accounts:       accounts,
		tracker:        tracker,
		queue:          queue,
		defaultSubject: defaultSubject,
		imapServer:     imapServer,
		imapPort:       imapPort,
		log:            logger.Named("invoice_handler"),
	}
}

func (h *InvoiceHandler) fail(c *gin.Context, err error) {
	status, msg := apperror.Status(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	web.Error(c, status, msg)
}

// Dashboard shows saved accounts and recent imports.
// GET /dashboard
func (h *InvoiceHandler) Dashboard(c *gin.Context) {
	userID := c.GetString("userID")
	accounts, err := h.accounts.List(userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	histories, err := h.invoiceUsecase.History(userID, 10)
	if err != nil {
		h.fail(c, err)
		return
	}
	web.Render(c, http.StatusOK, "dashboard.html", gin.H{
		"title":     "控制台",
		"accounts":  accounts,
		"histories": histories,
	})
}

// jobSummary returns the finished job's message when ?job= names one of the
// caller's jobs.
func (h *InvoiceHandler) jobSummary(c *gin.Context) string {
	jobID := c.Query("job")
	if jobID == "" {
		return ""
	}
	p, err := h.tracker.Get(c.Request.Context(), jobID)
	if err != nil || p == nil || p.UserID != c.GetString("userID") || p.Summary == nil {
		return ""
	}
	return p.Summary.Message
}

// GET /import
func (h *InvoiceHandler) ImportPage(c *gin.Context) {
	accounts, err := h.accounts.List(c.GetString("userID"))
	if err != nil {
		h.fail(c, err)
		return
	}
	web.Render(c, http.StatusOK, "import.html", gin.H{
		"title":    "导入发票",
		"accounts": accounts,
		"subject":  h.defaultSubject,
		"summary":  h.jobSummary(c),
	})
}

// StartImport queues an import job and sends the user to the progress page.
// POST /import
func (h *InvoiceHandler) StartImport(c *gin.Context) {
	userID := c.GetString("userID")
	var req dto.ImportRequest
	if err := c.ShouldBind(&req); err != nil {
		h.importError(c, http.StatusBadRequest, "请求参数无效")
		return
	}

	if req.Since != "" {
		if _, err := time.Parse("2006-01-02", req.Since); err != nil {
			h.importError(c, http.StatusBadRequest, "日期格式无效，请使用YYYY-MM-DD格式")
			return
		}
	}

	var creds imap.Credentials
	if req.AccountID != "" {
		var err error
		creds, _, err = h.accounts.Credentials(userID, req.AccountID)
		if err != nil {
			status, msg := apperror.Status(err)
			h.importError(c, status, msg)
			return
		}
	} else {
		address := strings.TrimSpace(req.EmailAddress)
		if address == "" || req.Password == "" {
			h.importError(c, http.StatusBadRequest, "请选择邮箱账户或输入邮箱地址和授权码")
			return
		}
		creds = imap.Credentials{Server: h.imapServer, Port: h.imapPort, Username: address, Password: req.Password}

		if req.SaveAccount {
			_, err := h.accounts.Create(userID, &accountdto.CreateAccountRequest{EmailAddress: address, Password: req.Password})
			if err != nil && !errors.Is(err, apperror.ErrDuplicate) {
				h.log.Warn("save account failed", zap.String("user_id", userID), zap.Error(err))
			}
		}
	}

	p, err := h.tracker.Begin(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}

	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = h.defaultSubject
	}
	job := usecase.ImportJob{
		JobID:       p.JobID,
		UserID:      userID,
		Credentials: creds,
		Since:       req.Since,
		Subject:     subject,
	}
	if err := h.queue.Queue(job); err != nil {
		h.importError(c, http.StatusServiceUnavailable, "系统繁忙，请稍后再试")
		return
	}

	if web.WantsJSON(c) {
		c.JSON(http.StatusAccepted, gin.H{"job_id": p.JobID, "status_url": "/api/import/status/" + p.JobID})
		return
	}
	c.Redirect(http.StatusFound, "/import/processing/"+p.JobID)
}

func (h *InvoiceHandler) importError(c *gin.Context, status int, msg string) {
	if web.WantsJSON(c) {
		c.JSON(status, gin.H{"error": msg})
		return
	}
	web.SetFlash(c, "danger", msg)
	c.Redirect(http.StatusFound, "/import")
}

// GET /import/processing/:job
func (h *InvoiceHandler) Processing(c *gin.Context) {
	jobID := c.Param("job")
	p, err := h.tracker.Get(c.Request.Context(), jobID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if p == nil || p.UserID != c.GetString("userID") {
		web.Error(c, http.StatusNotFound, "任务不存在")
		return
	}
	web.Render(c, http.StatusOK, "processing.html", gin.H{"title": "正在处理", "jobID": jobID})
}

// GET /invoices/results/:history
func (h *InvoiceHandler) Results(c *gin.Context) {
	history, invoices, err := h.invoiceUsecase.HistoryResults(c.GetString("userID"), c.Param("history"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if summary := h.jobSummary(c); summary != "" {
		web.SetFlash(c, "success", summary)
	}
	web.Render(c, http.StatusOK, "results.html", gin.H{
		"title":    "导入结果",
		"history":  history,
		"invoices": invoices,
	})
}

// GET /history
func (h *InvoiceHandler) History(c *gin.Context) {
	histories, err := h.invoiceUsecase.History(c.GetString("userID"), 0)
	if err != nil {
		h.fail(c, err)
		return
	}
	web.Render(c, http.StatusOK, "history.html", gin.H{"title": "导入记录", "histories": histories})
}

// GET /downloads/:filename
func (h *InvoiceHandler) DownloadFile(c *gin.Context) {
	filename := c.Param("filename")
	path, err := h.invoiceUsecase.UserFile(c.GetString("userID"), filename)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.FileAttachment(path, filename)
}

var sortFields = []string{"invoice_no", "invoice_date", "seller", "amount", "created_at"}

// GET /invoices
func (h *InvoiceHandler) List(c *gin.Context) {
	var q dto.ListInvoicesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		web.Error(c, http.StatusBadRequest, "查询参数无效")
		return
	}
	res, err := h.invoiceUsecase.List(c.GetString("userID"), q)
	if err != nil {
		h.fail(c, err)
		return
	}

	current := c.Request.URL.Query()
	sortLinks := make(map[string]string, len(sortFields))
	for _, field := range sortFields {
		order := "asc"
		if q.Sort == field && !strings.EqualFold(q.Order, "desc") {
			order = "desc"
		}
		sortLinks[field] = pageLink(current, map[string]string{"sort": field, "order": order, "page": "1"})
	}

	web.Render(c, http.StatusOK, "invoices.html", gin.H{
		"title":     "发票列表",
		"invoices":  res.Invoices,
		"total":     res.Total,
		"page":      res.Page,
		"pages":     res.Pages,
		"filter":    q,
		"sortLinks": sortLinks,
		"prevLink":  pageLink(current, map[string]string{"page": strconv.Itoa(res.Page - 1)}),
		"nextLink":  pageLink(current, map[string]string{"page": strconv.Itoa(res.Page + 1)}),
	})
}

func pageLink(current url.Values, overrides map[string]string) string {
	v := url.Values{}
	for k, vals := range current {
		v[k] = append([]string(nil), vals...)
	}
	for k, val := range overrides {
		v.Set(k, val)
	}
	return "/invoices?" + v.Encode()
}

// GET /api/invoices
func (h *InvoiceHandler) ListJSON(c *gin.Context) {
	var q dto.ListInvoicesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.invoiceUsecase.List(c.GetString("userID"), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/invoices/sellers?q=
func (h *InvoiceHandler) SellerSuggestions(c *gin.Context) {
	sellers, err := h.invoiceUsecase.SuggestSellers(c.GetString("userID"), c.Query("q"), 10)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sellers": sellers})
}

// GET /invoices/:id
func (h *InvoiceHandler) Detail(c *gin.Context) {
	invoice, err := h.invoiceUsecase.Get(c.GetString("userID"), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if web.WantsJSON(c) {
		c.JSON(http.StatusOK, invoice)
		return
	}
	web.Render(c, http.StatusOK, "invoice_detail.html", gin.H{"title": "发票详情", "invoice": invoice})
}

// GET /invoices/:id/edit
func (h *InvoiceHandler) EditPage(c *gin.Context) {
	invoice, err := h.invoiceUsecase.Get(c.GetString("userID"), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	web.Render(c, http.StatusOK, "invoice_edit.html", gin.H{"title": "编辑发票", "invoice": invoice})
}

// POST /invoices/:id/edit
func (h *InvoiceHandler) Edit(c *gin.Context) {
	id := c.Param("id")
	var req dto.UpdateInvoiceRequest
	if err := c.ShouldBind(&req); err != nil {
		web.SetFlash(c, "danger", "请检查输入，发票号码不能为空")
		c.Redirect(http.StatusFound, "/invoices/"+id+"/edit")
		return
	}

	invoice, err := h.invoiceUsecase.Update(c.GetString("userID"), id, &req)
	if err != nil {
		status, msg := apperror.Status(err)
		if status == http.StatusBadRequest || status == http.StatusConflict {
			web.SetFlash(c, "danger", msg)
			c.Redirect(http.StatusFound, "/invoices/"+id+"/edit")
			return
		}
		h.fail(c, err)
		return
	}

	web.SetFlash(c, "success", "发票信息已更新")
	c.Redirect(http.StatusFound, "/invoices/"+invoice.ID)
}

// GET /invoices/:id/download
func (h *InvoiceHandler) Download(c *gin.Context) {
	path, name, err := h.invoiceUsecase.FilePath(c.GetString("userID"), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.FileAttachment(path, name)
}

// POST /invoices/:id/delete
func (h *InvoiceHandler) Delete(c *gin.Context) {
	if err := h.invoiceUsecase.Delete(c.GetString("userID"), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	web.SetFlash(c, "success", "发票已删除")
	c.Redirect(http.StatusFound, "/invoices")
}

// POST /invoices/batch/download
func (h *InvoiceHandler) BatchDownload(c *gin.Context) {
	var req dto.BatchRequest
	_ = c.ShouldBind(&req)

	name, err := h.invoiceUsecase.BatchExport(c.GetString("userID"), req.IDs)
	if err != nil {
		status, msg := apperror.Status(err)
		if status < http.StatusInternalServerError {
			web.SetFlash(c, "warning", msg)
			c.Redirect(http.StatusFound, "/invoices")
			return
		}
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/downloads/"+url.PathEscape(name))
}

// POST /invoices/batch/delete
func (h *InvoiceHandler) BatchDelete(c *gin.Context) {
	var req dto.BatchRequest
	_ = c.ShouldBind(&req)

	res, err := h.invoiceUsecase.BatchDelete(c.GetString("userID"), req.IDs)
	if err != nil {
		status, msg := apperror.Status(err)
		if status < http.StatusInternalServerError {
			web.SetFlash(c, "warning", msg)
			c.Redirect(http.StatusFound, "/invoices")
			return
		}
		h.fail(c, err)
		return
	}

	if res.Failed > 0 {
		web.SetFlash(c, "warning", "成功删除 "+strconv.Itoa(res.Deleted)+" 张发票，"+strconv.Itoa(res.Failed)+" 张发票删除失败")
	} else {
		web.SetFlash(c, "success", "成功删除 "+strconv.Itoa(res.Deleted)+" 张发票")
	}
	c.Redirect(http.StatusFound, "/invoices")
}
