package usecase

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"invoice-backend/internal/invoice/domain"
	"invoice-backend/internal/invoice/dto"
	"invoice-backend/internal/invoice/repository"
	"invoice-backend/pkg/apperror"
	"invoice-backend/pkg/archive"
	"invoice-backend/pkg/fuzzy"
	"invoice-backend/pkg/imap"
	"invoice-backend/pkg/logger"
	"invoice-backend/pkg/sanitize"

	"go.uber.org/zap"
)

type invoiceUsecase struct {
	invoiceRepo repository.InvoiceRepository
	historyRepo repository.HistoryRepository
	staticDir   string
	now         func() time.Time
	log         *zap.Logger
}

func NewInvoiceUsecase(invoiceRepo repository.InvoiceRepository, historyRepo repository.HistoryRepository, staticDir string) InvoiceUsecase {
	return &invoiceUsecase{
		invoiceRepo: invoiceRepo,
		historyRepo: historyRepo,
		staticDir:   staticDir,
		now:         time.Now,
		log:         logger.Named("invoice"),
	}
}

func parseAmount(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func (u *invoiceUsecase) List(userID string, q dto.ListInvoicesQuery) (*ListResult, error) {
	filter := repository.Filter{
		Seller:     strings.TrimSpace(q.Seller),
		InvoiceNo:  strings.TrimSpace(q.InvoiceNo),
		DateFrom:   domain.NormalizeDate(strings.TrimSpace(q.DateFrom)),
		DateTo:     domain.NormalizeDate(strings.TrimSpace(q.DateTo)),
		AmountFrom: parseAmount(q.AmountFrom),
		AmountTo:   parseAmount(q.AmountTo),
		Sort:       q.Sort,
		Desc:       strings.EqualFold(q.Order, "desc"),
		Page:       q.Page,
		PageSize:   q.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = repository.DefaultPageSize
	}
	if filter.PageSize > repository.MaxPageSize {
		filter.PageSize = repository.MaxPageSize
	}

	invoices, total, err := u.invoiceRepo.List(userID, filter)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}

	pages := int(math.Ceil(float64(total) / float64(filter.PageSize)))
	return &ListResult{
		Invoices: invoices,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
		Pages:    pages,
		Filter:   filter,
	}, nil
}

func (u *invoiceUsecase) Get(userID, invoiceID string) (*domain.Invoice, error) {
	invoice, err := u.invoiceRepo.FindByID(invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, apperror.NotFound("invoice not found")
	}
	if invoice.UserID != userID {
		return nil, apperror.Forbidden("无权限访问此发票")
	}
	return invoice, nil
}

func (u *invoiceUsecase) Update(userID, invoiceID string, req *dto.UpdateInvoiceRequest) (*domain.Invoice, error) {
	invoice, err := u.Get(userID, invoiceID)
	if err != nil {
		return nil, err
	}

	no := sanitize.Text(req.InvoiceNo)
	if no == "" {
		return nil, apperror.BadRequest("发票号码不能为空", nil)
	}
	if no != invoice.InvoiceNo {
		exists, err := u.invoiceRepo.ExistsByUserAndNo(userID, no)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, apperror.New(http.StatusConflict, "该发票号码已存在", apperror.ErrDuplicate)
		}
	}

	invoice.InvoiceNo = no
	invoice.InvoiceDate = domain.NormalizeDate(sanitize.Text(req.InvoiceDate))
	invoice.Seller = sanitize.Text(req.Seller)
	invoice.Amount = sanitize.Text(req.Amount)
	invoice.ProjectName = sanitize.Text(req.ProjectName)
	invoice.Notes = sanitize.Text(req.Notes)

	if name := invoice.Filename(); name != invoice.CurrentFilename {
		invoice.CurrentFilename = name
		u.renameStored(invoice)
	}

	if err := u.invoiceRepo.Update(invoice); err != nil {
		return nil, fmt.Errorf("update invoice: %w", err)
	}
	return invoice, nil
}

// renameStored moves the stored PDF to match CurrentFilename. A missing file
// only updates the record.
func (u *invoiceUsecase) renameStored(invoice *domain.Invoice) {
	if invoice.FilePath == "" {
		return
	}
	if _, err := os.Stat(invoice.FilePath); err != nil {
		return
	}
	dest := imap.UniquePath(filepath.Dir(invoice.FilePath), invoice.CurrentFilename)
	if err := os.Rename(invoice.FilePath, dest); err != nil {
		u.log.Warn("rename stored file failed", zap.String("invoice_id", invoice.ID), zap.Error(err))
		return
	}
	invoice.FilePath = dest
}

func removeFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (u *invoiceUsecase) Delete(userID, invoiceID string) error {
	invoice, err := u.Get(userID, invoiceID)
	if err != nil {
		return err
	}
	if err := removeFile(invoice.FilePath); err != nil {
		u.log.Warn("remove invoice file failed", zap.String("invoice_id", invoice.ID), zap.Error(err))
	}
	return u.invoiceRepo.Delete(invoice.ID)
}

func (u *invoiceUsecase) BatchDelete(userID string, ids []string) (*dto.BatchDeleteResult, error) {
	if len(ids) == 0 {
		return nil, apperror.BadRequest("请选择要删除的发票", nil)
	}
	invoices, err := u.invoiceRepo.FindByIDs(userID, ids)
	if err != nil {
		return nil, err
	}

	result := &dto.BatchDeleteResult{}
	for _, invoice := range invoices {
		if err := removeFile(invoice.FilePath); err != nil {
			u.log.Warn("remove invoice file failed", zap.String("invoice_id", invoice.ID), zap.Error(err))
		}
		if err := u.invoiceRepo.Delete(invoice.ID); err != nil {
			result.Failed++
			u.log.Error("delete invoice failed", zap.String("invoice_id", invoice.ID), zap.Error(err))
			continue
		}
		result.Deleted++
	}
	return result, nil
}

func (u *invoiceUsecase) BatchExport(userID string, ids []string) (string, error) {
	if len(ids) == 0 {
		return "", apperror.BadRequest("请选择要下载的发票", nil)
	}
	invoices, err := u.invoiceRepo.FindByIDs(userID, ids)
	if err != nil {
		return "", err
	}
	if len(invoices) == 0 {
		return "", apperror.NotFound("没有可下载的发票")
	}

	ts := timestamp(u.now())
	work, err := os.MkdirTemp("", "batch_"+userID+"_"+ts+"_")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(work)

	var entries []archive.Entry
	rows := make([][]string, 0, len(invoices))
	used := make(map[string]int)
	for _, inv := range invoices {
		rows = append(rows, []string{inv.InvoiceNo, inv.InvoiceDate, inv.Seller, inv.Amount, inv.ProjectName, inv.CurrentFilename})
		if inv.FilePath == "" {
			continue
		}
		if _, err := os.Stat(inv.FilePath); err != nil {
			continue
		}
		name := inv.CurrentFilename
		if n := used[name]; n > 0 {
			ext := filepath.Ext(name)
			name = fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), n, ext)
		}
		used[inv.CurrentFilename]++
		entries = append(entries, archive.Entry{Name: name, Path: inv.FilePath})
	}

	csvPath := filepath.Join(work, CSVFilename)
	if err := archive.WriteCSV(csvPath, exportCSVHeader, rows); err != nil {
		return "", fmt.Errorf("write csv: %w", err)
	}
	entries = append(entries, archive.Entry{Name: CSVFilename, Path: csvPath})

	zipName := fmt.Sprintf("selected_invoices_%s.zip", ts)
	zipPath := imap.UniquePath(UserDir(u.staticDir, userID), zipName)
	missing, err := archive.Zip(zipPath, entries)
	if err != nil {
		return "", fmt.Errorf("create zip: %w", err)
	}
	if len(missing) > 0 {
		u.log.Warn("files missing from export", zap.Strings("files", missing))
	}
	return filepath.Base(zipPath), nil
}

func (u *invoiceUsecase) FilePath(userID, invoiceID string) (string, string, error) {
	invoice, err := u.Get(userID, invoiceID)
	if err != nil {
		return "", "", err
	}
	if invoice.FilePath == "" {
		return "", "", apperror.NotFound("发票文件不存在")
	}
	if _, err := os.Stat(invoice.FilePath); err != nil {
		return "", "", apperror.NotFound("发票文件不存在")
	}
	return invoice.FilePath, invoice.CurrentFilename, nil
}

func (u *invoiceUsecase) UserFile(userID, filename string) (string, error) {
	clean := filepath.Base(filepath.Clean("/" + filename))
	if clean == "/" || clean == "." || clean != filename {
		return "", apperror.NotFound("文件不存在")
	}
	path := filepath.Join(UserDir(u.staticDir, userID), clean)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", apperror.NotFound("文件不存在")
	}
	return path, nil
}

func (u *invoiceUsecase) SuggestSellers(userID, query string, limit int) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []string{}, nil
	}
	sellers, err := u.invoiceRepo.Sellers(userID)
	if err != nil {
		return nil, fmt.Errorf("list sellers: %w", err)
	}
	return fuzzy.Rank(query, sellers, limit), nil
}

func (u *invoiceUsecase) History(userID string, limit int) ([]*domain.InvoiceHistory, error) {
	return u.historyRepo.ListByUser(userID, limit)
}

func (u *invoiceUsecase) HistoryResults(userID, historyID string) (*domain.InvoiceHistory, []*domain.Invoice, error) {
	history, err := u.historyRepo.FindByID(historyID)
	if err != nil {
		return nil, nil, err
	}
	if history == nil {
		return nil, nil, apperror.NotFound("处理记录不存在")
	}
	if history.UserID != userID {
		return nil, nil, apperror.Forbidden("无权限查看此记录")
	}
	invoices, err := u.invoiceRepo.FindByHistoryID(userID, historyID)
	if err != nil {
		return nil, nil, err
	}
	return history, invoices, nil
}

func (u *invoiceUsecase) MigrateDates() (*dto.MigrateResult, error) {
	invoices, err := u.invoiceRepo.FindAll()
	if err != nil {
		return nil, err
	}

	result := &dto.MigrateResult{Total: len(invoices)}
	for _, inv := range invoices {
		changed := false
		if date := domain.NormalizeDate(inv.InvoiceDate); date != inv.InvoiceDate {
			u.log.Info("normalise date", zap.String("invoice_id", inv.ID), zap.String("from", inv.InvoiceDate), zap.String("to", date))
			inv.InvoiceDate = date
			result.DatesUpdated++
			changed = true
		}
		if name := inv.Filename(); name != inv.CurrentFilename {
			inv.CurrentFilename = name
			u.renameStored(inv)
			result.FilenamesUpdated++
			changed = true
		}
		if !changed {
			continue
		}
		if err := u.invoiceRepo.Update(inv); err != nil {
			result.Errors++
			u.log.Error("migrate invoice failed", zap.String("invoice_id", inv.ID), zap.Error(err))
		}
	}
	return result, nil
}
