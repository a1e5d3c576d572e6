package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	accountdomain "invoice-backend/internal/account/domain"
	"invoice-backend/internal/invoice/domain"
	"invoice-backend/internal/invoice/repository"
	progressdomain "invoice-backend/internal/progress/domain"
	progressusecase "invoice-backend/internal/progress/usecase"
	"invoice-backend/pkg/ai"
	"invoice-backend/pkg/archive"
	"invoice-backend/pkg/imap"
	"invoice-backend/pkg/logger"
	"invoice-backend/pkg/metrics"
	"invoice-backend/pkg/mq"
	"invoice-backend/pkg/pdftext"

	"go.uber.org/zap"
)

// AttachmentFetcher downloads the PDF attachments of matching messages.
type AttachmentFetcher interface {
	FetchInvoiceAttachments(ctx context.Context, creds imap.Credentials, opts imap.FetchOptions) (*imap.FetchResult, error)
}

// AccountLookup links an import run to a saved account.
type AccountLookup interface {
	FindByAddress(userID, address string) (*accountdomain.EmailAccount, error)
}

// ImportJob is one queued run against a mailbox.
type ImportJob struct {
	JobID       string
	UserID      string
	Credentials imap.Credentials
	Since       string // YYYY-MM-DD, empty for all mail
	Subject     string
}

type ImporterConfig struct {
	DownloadDir string
	RenamedDir  string
	StaticDir   string
	Subject     string
}

type extracted struct {
	fields   *ai.InvoiceFields
	filename string
	path     string
}

// Importer runs the mailbox to database pipeline for one job at a time.
type Importer struct {
	invoiceRepo repository.InvoiceRepository
	historyRepo repository.HistoryRepository
	accounts    AccountLookup
	fetcher     AttachmentFetcher
	pdf         pdftext.Reader
	extractor   ai.InvoiceExtractor
	tracker     progressusecase.Tracker
	publisher   mq.Publisher
	cfg         ImporterConfig
	now         func() time.Time
	log         *zap.Logger
}

func NewImporter(
	invoiceRepo repository.InvoiceRepository,
	historyRepo repository.HistoryRepository,
	accounts AccountLookup,
	fetcher AttachmentFetcher,
	pdf pdftext.Reader,
	extractor ai.InvoiceExtractor,
	tracker progressusecase.Tracker,
	publisher mq.Publisher,
	cfg ImporterConfig,
) *Importer {
	if publisher == nil {
		publisher = mq.NopPublisher{}
	}
	if cfg.Subject == "" {
		cfg.Subject = imap.DefaultSubject
	}
	return &Importer{
		invoiceRepo: invoiceRepo,
		historyRepo: historyRepo,
		accounts:    accounts,
		fetcher:     fetcher,
		pdf:         pdf,
		extractor:   extractor,
		tracker:     tracker,
		publisher:   publisher,
		cfg:         cfg,
		now:         time.Now,
		log:         logger.Named("importer"),
	}
}

// Run executes job and reports progress under job.JobID. Single-file failures
// are counted and skipped; only failures that stop the whole run are returned.
func (im *Importer) Run(ctx context.Context, job ImportJob) (*progressdomain.Summary, error) {
	start := im.now()
	log := im.log.With(zap.String("job_id", job.JobID), zap.String("user_id", job.UserID))
	p := progressdomain.Progress{
		JobID:       job.JobID,
		UserID:      job.UserID,
		State:       progressdomain.StateProcessing,
		CurrentFile: "正在连接邮箱...",
	}
	im.tracker.Report(p)

	var since *time.Time
	if job.Since != "" {
		t, err := time.ParseInLocation("2006-01-02", job.Since, time.Local)
		if err != nil {
			return nil, im.fail(p, "日期格式无效，请使用YYYY-MM-DD格式", err)
		}
		since = &t
	}

	subject := job.Subject
	if subject == "" {
		subject = im.cfg.Subject
	}

	downloadDir := filepath.Join(im.cfg.DownloadDir, job.JobID)
	renamedDir := filepath.Join(im.cfg.RenamedDir, job.JobID)
	defer os.RemoveAll(downloadDir)
	defer os.RemoveAll(renamedDir)

	p.CurrentFile = "正在下载邮件附件..."
	im.tracker.Report(p)

	fetched, err := im.fetcher.FetchInvoiceAttachments(ctx, job.Credentials, imap.FetchOptions{
		Subject:     subject,
		Since:       since,
		DownloadDir: downloadDir,
	})
	if err != nil {
		msg := "下载邮件附件失败: " + err.Error()
		if errors.Is(err, imap.ErrConnect) || errors.Is(err, imap.ErrLogin) {
			msg = "邮箱连接失败，请检查账号和密码是否正确"
		}
		return nil, im.fail(p, msg, err)
	}

	summary := &progressdomain.Summary{
		Files:         len(fetched.Files),
		Downloaded:    fetched.Downloaded,
		SkippedByDate: fetched.Skipped,
		Model:         im.extractor.Name(),
	}

	if len(fetched.Files) == 0 {
		summary.ElapsedSeconds = im.now().Sub(start).Seconds()
		summary.Message = "没有找到发票附件"
		im.complete(ctx, p, summary, "/import", nil, "")
		return summary, nil
	}

	// extract
	p.Total = len(fetched.Files)
	var results []extracted
	for i, path := range fetched.Files {
		if err := ctx.Err(); err != nil {
			return nil, im.fail(p, "导入已取消", err)
		}
		p.Current = i + 1
		p.CurrentFile = filepath.Base(path)
		im.tracker.Report(p)

		fields, err := im.extract(ctx, path)
		if err != nil {
			summary.Failed++
			log.Warn("invoice extraction failed", zap.String("file", p.CurrentFile), zap.Error(err))
			continue
		}
		results = append(results, extracted{fields: fields, filename: filepath.Base(path), path: path})
	}
	summary.Extracted = len(results)
	metrics.RecordInvoices("extract_failed", summary.Failed)

	history := &domain.InvoiceHistory{
		UserID:      job.UserID,
		SearchDate:  since,
		ProcessedAt: im.now(),
	}
	if im.accounts != nil {
		if account, err := im.accounts.FindByAddress(job.UserID, job.Credentials.Username); err != nil {
			log.Warn("account lookup failed", zap.Error(err))
		} else if account != nil {
			history.EmailAccountID = &account.ID
		}
	}

	// dedupe against stored invoices and within this batch
	p.CurrentFile = "正在检查重复发票..."
	im.tracker.Report(p)

	var fresh []extracted
	seen := make(map[string]bool)
	for _, r := range results {
		no := r.fields.InvoiceNo.String()
		if seen[no] {
			summary.Duplicates++
			continue
		}
		exists, err := im.invoiceRepo.ExistsByUserAndNo(job.UserID, no)
		if err != nil {
			summary.Failed++
			log.Warn("duplicate check failed", zap.String("invoice_no", no), zap.Error(err))
			continue
		}
		seen[no] = true
		if exists {
			summary.Duplicates++
			continue
		}
		fresh = append(fresh, r)
	}
	metrics.RecordInvoices("duplicate", summary.Duplicates)

	var zipName string
	if len(fresh) > 0 {
		if err := im.historyRepo.Create(history); err != nil {
			return nil, im.fail(p, "保存处理记录失败", err)
		}
		files, err := im.stage(p, job, history, fresh, renamedDir, summary)
		if err != nil {
			return nil, im.fail(p, "重命名文件失败", err)
		}

		p.CurrentFile = "正在保存发票信息到数据库..."
		im.tracker.Report(p)

		var saved []stagedFile
		for _, f := range files {
			if err := im.save(f.invoice); err != nil {
				summary.Failed++
				metrics.RecordInvoices("save_failed", 1)
				log.Error("invoice save failed", zap.String("invoice_no", f.invoice.InvoiceNo), zap.Error(err))
				if err := os.Remove(f.invoice.FilePath); err != nil && !os.IsNotExist(err) {
					log.Warn("remove unsaved file failed", zap.String("file", f.invoice.FilePath), zap.Error(err))
				}
				continue
			}
			saved = append(saved, f)
		}
		summary.New = len(saved)
		metrics.RecordInvoices("new", summary.New)

		if len(saved) > 0 {
			name, err := im.bundle(p, job, saved, renamedDir)
			if err != nil {
				log.Error("zip export failed", zap.String("history_id", history.ID), zap.Error(err))
			}
			zipName = name
		}

		history.InvoiceCount = summary.New
		history.ZipFilename = zipName
		if err := im.historyRepo.Update(history); err != nil {
			log.Warn("history update failed", zap.String("history_id", history.ID), zap.Error(err))
		}
	}

	summary.ElapsedSeconds = im.now().Sub(start).Seconds()
	summary.Message = im.message(job, summary)

	redirect := "/import"
	if summary.New > 0 {
		redirect = "/invoices/results/" + history.ID
	}
	im.complete(ctx, p, summary, redirect, history, zipName)

	log.Info("import finished",
		zap.Int("files", summary.Files),
		zap.Int("new", summary.New),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

func (im *Importer) extract(ctx context.Context, path string) (*ai.InvoiceFields, error) {
	text, err := im.pdf.FirstPageText(path)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	fields, err := im.extractor.ExtractInvoice(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("extract fields: %w", err)
	}
	if strings.TrimSpace(fields.InvoiceNo.String()) == "" {
		return nil, errors.New("no invoice number in response")
	}
	return fields, nil
}

// stagedFile is a renamed copy in the working dir plus the invoice whose
// FilePath points at its copy in the user's file store.
type stagedFile struct {
	invoice *domain.Invoice
	renamed string
}

// stage copies each new invoice under its renamed name into renamedDir and into
// the user's file store.
func (im *Importer) stage(p progressdomain.Progress, job ImportJob, history *domain.InvoiceHistory, fresh []extracted, renamedDir string, summary *progressdomain.Summary) ([]stagedFile, error) {
	p.CurrentFile = "正在重命名文件..."
	im.tracker.Report(p)

	if err := resetDir(renamedDir); err != nil {
		return nil, err
	}
	storeDir := filesDir(im.cfg.StaticDir, job.UserID)
	if err := os.MkdirAll(storeDir, 0o755); err != nil {
		return nil, err
	}

	var files []stagedFile
	for _, r := range fresh {
		inv := &domain.Invoice{
			UserID:           job.UserID,
			HistoryID:        &history.ID,
			InvoiceNo:        strings.TrimSpace(r.fields.InvoiceNo.String()),
			InvoiceDate:      domain.NormalizeDate(strings.TrimSpace(r.fields.InvoiceDate)),
			Seller:           strings.TrimSpace(r.fields.Seller),
			Amount:           strings.TrimSpace(r.fields.Amount.String()),
			ProjectName:      strings.TrimSpace(r.fields.ProjectName),
			OriginalFilename: r.filename,
		}
		inv.CurrentFilename = inv.Filename()

		dest := imap.UniquePath(renamedDir, inv.CurrentFilename)
		if err := copyFile(r.path, dest); err != nil {
			summary.Failed++
			im.log.Warn("rename copy failed", zap.String("file", r.filename), zap.Error(err))
			continue
		}
		final := imap.UniquePath(storeDir, filepath.Base(dest))
		if err := copyFile(dest, final); err != nil {
			summary.Failed++
			im.log.Warn("store file failed", zap.String("file", final), zap.Error(err))
			continue
		}
		inv.FilePath = final
		files = append(files, stagedFile{invoice: inv, renamed: dest})
	}
	if len(files) == 0 {
		return nil, errors.New("no files could be copied")
	}
	return files, nil
}

// bundle writes the CSV for the saved invoices and zips it with their renamed
// PDFs into the user's dir.
func (im *Importer) bundle(p progressdomain.Progress, job ImportJob, saved []stagedFile, renamedDir string) (string, error) {
	p.CurrentFile = "正在创建ZIP文件..."
	im.tracker.Report(p)

	entries := make([]archive.Entry, 0, len(saved)+1)
	rows := make([][]string, 0, len(saved))
	for _, f := range saved {
		inv := f.invoice
		entries = append(entries, archive.Entry{Name: filepath.Base(f.renamed), Path: f.renamed})
		rows = append(rows, []string{
			inv.InvoiceNo, inv.InvoiceDate, inv.Seller, inv.Amount, inv.ProjectName,
			inv.OriginalFilename, inv.CurrentFilename,
		})
	}

	csvPath := filepath.Join(renamedDir, CSVFilename)
	if err := archive.WriteCSV(csvPath, importCSVHeader, rows); err != nil {
		return "", fmt.Errorf("write csv: %w", err)
	}
	entries = append(entries, archive.Entry{Name: CSVFilename, Path: csvPath})

	zipName := fmt.Sprintf("invoices_%s.zip", timestamp(im.now()))
	zipPath := imap.UniquePath(UserDir(im.cfg.StaticDir, job.UserID), zipName)
	if _, err := archive.Zip(zipPath, entries); err != nil {
		return "", err
	}
	return filepath.Base(zipPath), nil
}

// save inserts inv, retrying once on a database error.
func (im *Importer) save(inv *domain.Invoice) error {
	err := im.invoiceRepo.Create(inv)
	if err == nil {
		return nil
	}
	im.log.Warn("invoice save failed, retrying", zap.String("invoice_no", inv.InvoiceNo), zap.Error(err))
	if err := im.invoiceRepo.Create(inv); err != nil {
		return err
	}
	return nil
}

func (im *Importer) message(job ImportJob, s *progressdomain.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "成功下载并处理 %d 个文件", s.Files)
	if job.Since != "" {
		fmt.Fprintf(&b, "，检索%s之后的邮件", job.Since)
	}
	fmt.Fprintf(&b, "\n发现 %d 张发票，成功导入 %d 张新发票", s.Extracted, s.New)
	if s.Duplicates > 0 {
		fmt.Fprintf(&b, "，其中 %d 张为重复发票", s.Duplicates)
	}
	if s.Failed > 0 {
		fmt.Fprintf(&b, "，%d 个文件处理失败", s.Failed)
	}
	fmt.Fprintf(&b, "\n处理时间: %.2f 秒\n本次下载: %d 个PDF附件", s.ElapsedSeconds, s.Downloaded)
	if s.SkippedByDate > 0 {
		fmt.Fprintf(&b, "，%d 封邮件早于检索日期被跳过", s.SkippedByDate)
	}
	fmt.Fprintf(&b, "\n本次处理使用的大模型：%s", s.Model)
	return b.String()
}

func (im *Importer) fail(p progressdomain.Progress, msg string, cause error) error {
	p.State = progressdomain.StateError
	p.Error = msg
	im.tracker.Report(p)
	metrics.RecordImportRun("error")
	im.log.Error("import failed", zap.String("job_id", p.JobID), zap.String("reason", msg), zap.Error(cause))
	return fmt.Errorf("%s: %w", msg, cause)
}

func (im *Importer) complete(ctx context.Context, p progressdomain.Progress, s *progressdomain.Summary, redirect string, history *domain.InvoiceHistory, zipName string) {
	p.State = progressdomain.StateComplete
	p.Current = p.Total
	p.CurrentFile = ""
	p.RedirectURL = redirect
	p.Summary = s
	im.tracker.Report(p)
	metrics.RecordImportRun("complete")

	event := mq.ImportCompletedEvent{
		JobID:      p.JobID,
		UserID:     p.UserID,
		NewCount:   s.New,
		Duplicates: s.Duplicates,
		Failed:     s.Failed,
		ZipFile:    zipName,
		FinishedAt: im.now(),
	}
	if history != nil {
		event.HistoryID = history.ID
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := im.publisher.Publish(pubCtx, mq.RoutingImportCompleted, event); err != nil {
		im.log.Warn("publish import event failed", zap.String("job_id", p.JobID), zap.Error(err))
	}
}
