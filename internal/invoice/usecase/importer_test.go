package usecase

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	accountdomain "invoice-backend/internal/account/domain"
	"invoice-backend/internal/invoice/domain"
	"invoice-backend/internal/invoice/repository"
	progressdomain "invoice-backend/internal/progress/domain"
	progressrepo "invoice-backend/internal/progress/repository"
	progressusecase "invoice-backend/internal/progress/usecase"
	"invoice-backend/pkg/ai"
	"invoice-backend/pkg/database"
	"invoice-backend/pkg/imap"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher writes the named files into the download dir like the IMAP
// service does.
type fakeFetcher struct {
	files   []string
	skipped int
	err     error
	opts    imap.FetchOptions
}

func (f *fakeFetcher) FetchInvoiceAttachments(ctx context.Context, creds imap.Credentials, opts imap.FetchOptions) (*imap.FetchResult, error) {
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	if err := os.MkdirAll(opts.DownloadDir, 0o755); err != nil {
		return nil, err
	}
	res := &imap.FetchResult{Matched: len(f.files) + f.skipped, Skipped: f.skipped}
	for _, name := range f.files {
		path := filepath.Join(opts.DownloadDir, name)
		if err := os.WriteFile(path, []byte("%PDF-1.4 "+name), 0o644); err != nil {
			return nil, err
		}
		res.Files = append(res.Files, path)
	}
	res.Downloaded = len(res.Files)
	return res, nil
}

// fakePDF returns the file's base name as its text.
type fakePDF struct {
	broken map[string]bool
}

func (f *fakePDF) FirstPageText(path string) (string, error) {
	name := filepath.Base(path)
	if f.broken[name] {
		return "", errors.New("corrupt pdf")
	}
	return name, nil
}

// fakeExtractor maps page text to a model response.
type fakeExtractor struct {
	responses map[string]string
}

func (f *fakeExtractor) Name() string { return "test-model" }

func (f *fakeExtractor) ExtractInvoice(ctx context.Context, text string) (*ai.InvoiceFields, error) {
	resp, ok := f.responses[text]
	if !ok {
		return nil, errors.New("model timeout")
	}
	return ai.ParseFields(resp)
}

// flakyRepo fails Create for the listed invoice numbers a set number of times.
type flakyRepo struct {
	repository.InvoiceRepository
	mu       sync.Mutex
	failures map[string]int
	calls    map[string]int
}

func (r *flakyRepo) Create(inv *domain.Invoice) error {
	r.mu.Lock()
	r.calls[inv.InvoiceNo]++
	if r.failures[inv.InvoiceNo] > 0 {
		r.failures[inv.InvoiceNo]--
		r.mu.Unlock()
		return errors.New("database is locked")
	}
	r.mu.Unlock()
	return r.InvoiceRepository.Create(inv)
}

type fakeAccounts struct{}

func (fakeAccounts) FindByAddress(userID, address string) (*accountdomain.EmailAccount, error) {
	if address == "saved@qq.com" {
		return &accountdomain.EmailAccount{ID: "acc-1", UserID: userID, EmailAddress: address}, nil
	}
	return nil, nil
}

type importFixture struct {
	importer *Importer
	invoices repository.InvoiceRepository
	history  repository.HistoryRepository
	tracker  progressusecase.Tracker
	fetcher  *fakeFetcher
	pdf      *fakePDF
	model    *fakeExtractor
	flaky    *flakyRepo
	static   string
	root     string
}

func fields(no, date, seller, amount string) string {
	return fmt.Sprintf("```json\n{\"invoice_no\": %q, \"invoice_date\": %q, \"seller\": %q, \"amount\": %s, \"project_name\": \"服务费\"}\n```", no, date, seller, amount)
}

func newImportFixture(t *testing.T) *importFixture {
	t.Helper()
	db, err := database.OpenMemory(&domain.Invoice{}, &domain.InvoiceHistory{})
	require.NoError(t, err)

	base := repository.NewInvoiceRepository(db)
	flaky := &flakyRepo{InvoiceRepository: base, failures: map[string]int{}, calls: map[string]int{}}
	history := repository.NewHistoryRepository(db)

	tracker := progressusecase.NewTracker(progressrepo.NewMemoryProgressRepository(), 16)
	tracker.Start()
	t.Cleanup(tracker.Stop)

	root := t.TempDir()
	f := &importFixture{
		invoices: base,
		history:  history,
		tracker:  tracker,
		fetcher:  &fakeFetcher{},
		pdf:      &fakePDF{broken: map[string]bool{}},
		model:    &fakeExtractor{responses: map[string]string{}},
		flaky:    flaky,
		static:   filepath.Join(root, "static"),
		root:     root,
	}
	f.importer = NewImporter(flaky, history, fakeAccounts{}, f.fetcher, f.pdf, f.model, tracker, nil, ImporterConfig{
		DownloadDir: filepath.Join(root, "downloads"),
		RenamedDir:  filepath.Join(root, "renamed"),
		StaticDir:   f.static,
	})
	f.importer.now = func() time.Time { return time.Date(2024, 3, 9, 10, 11, 12, 0, time.Local) }
	return f
}

func (f *importFixture) run(t *testing.T, job ImportJob) (*progressdomain.Summary, *progressdomain.Progress, error) {
	t.Helper()
	if job.JobID == "" {
		job.JobID = "job-1"
	}
	if job.UserID == "" {
		job.UserID = "u1"
	}
	summary, err := f.importer.Run(context.Background(), job)
	f.tracker.Flush()
	p, perr := f.tracker.Get(context.Background(), job.JobID)
	require.NoError(t, perr)
	return summary, p, err
}

func TestImportSkipsFailedExtraction(t *testing.T) {
	f := newImportFixture(t)
	f.fetcher.files = []string{"a.pdf", "b.pdf", "c.pdf", "d.pdf"}
	f.model.responses["a.pdf"] = fields("001", "2024年1月5日", "滴滴出行科技有限公司", `"35.00"`)
	f.model.responses["b.pdf"] = fields("002", "2024/2/1", "中国铁路", `120.5`)
	// c.pdf has no response: the model call fails
	f.model.responses["d.pdf"] = fields("004", "2024-02-03", "某酒店", `"600"`)

	summary, p, err := f.run(t, ImportJob{})
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Files)
	assert.Equal(t, 3, summary.Extracted)
	assert.Equal(t, 3, summary.New)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, "test-model", summary.Model)

	list, total, err := f.invoices.List("u1", repository.Filter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)

	byNo := map[string]*domain.Invoice{}
	for _, inv := range list {
		byNo[inv.InvoiceNo] = inv
	}
	require.Contains(t, byNo, "001")
	assert.Equal(t, "2024-01-05", byNo["001"].InvoiceDate)
	assert.Equal(t, "[2024-01-05-滴滴出行科技有限公司-35.00-001].pdf", byNo["001"].CurrentFilename)
	assert.Equal(t, "a.pdf", byNo["001"].OriginalFilename)
	assert.Equal(t, "120.5", byNo["002"].Amount)
	assert.FileExists(t, byNo["001"].FilePath)

	require.Equal(t, progressdomain.StateComplete, p.State)
	assert.True(t, strings.HasPrefix(p.RedirectURL, "/invoices/results/"))
	assert.Equal(t, 4, p.Current)
	assert.Equal(t, 4, p.Total)
	require.NotNil(t, p.Summary)
	assert.Contains(t, p.Summary.Message, "成功导入 3 张新发票")

	histories, err := f.history.ListByUser("u1", 10)
	require.NoError(t, err)
	require.Len(t, histories, 1)
	assert.Equal(t, 3, histories[0].InvoiceCount)
	assert.Equal(t, "invoices_20240309101112.zip", histories[0].ZipFilename)
	assert.Equal(t, "/invoices/results/"+histories[0].ID, p.RedirectURL)
}

func TestImportSkipsUnreadablePDF(t *testing.T) {
	f := newImportFixture(t)
	f.fetcher.files = []string{"a.pdf", "scan.pdf"}
	f.pdf.broken["scan.pdf"] = true
	f.model.responses["a.pdf"] = fields("001", "2024-01-05", "S", `"1"`)
	f.model.responses["scan.pdf"] = fields("002", "2024-01-05", "S", `"1"`)

	summary, _, err := f.run(t, ImportJob{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.New)
	assert.Equal(t, 1, summary.Failed)
}

func TestImportRejectsDuplicates(t *testing.T) {
	f := newImportFixture(t)
	require.NoError(t, f.invoices.Create(&domain.Invoice{UserID: "u1", InvoiceNo: "001"}))
	// another user's invoice with the same number does not count
	require.NoError(t, f.invoices.Create(&domain.Invoice{UserID: "u2", InvoiceNo: "002"}))

	f.fetcher.files = []string{"a.pdf", "b.pdf", "b-copy.pdf"}
	f.model.responses["a.pdf"] = fields("001", "2024-01-05", "S", `"1"`)
	f.model.responses["b.pdf"] = fields("002", "2024-01-06", "S", `"2"`)
	f.model.responses["b-copy.pdf"] = fields("002", "2024-01-06", "S", `"2"`)

	summary, _, err := f.run(t, ImportJob{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.New)
	assert.Equal(t, 2, summary.Duplicates)

	_, total, err := f.invoices.List("u1", repository.Filter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total, "001 stays single, 002 added once")
}

func TestImportAllDuplicatesRedirectsToForm(t *testing.T) {
	f := newImportFixture(t)
	require.NoError(t, f.invoices.Create(&domain.Invoice{UserID: "u1", InvoiceNo: "001"}))
	f.fetcher.files = []string{"a.pdf"}
	f.model.responses["a.pdf"] = fields("001", "2024-01-05", "S", `"1"`)

	summary, p, err := f.run(t, ImportJob{})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.New)
	assert.Equal(t, "/import", p.RedirectURL)

	entries, _ := os.ReadDir(UserDir(f.static, "u1"))
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".zip"), "no zip without new invoices")
	}

	histories, err := f.history.ListByUser("u1", 10)
	require.NoError(t, err)
	assert.Empty(t, histories)
}

func TestImportRetriesSaveOnce(t *testing.T) {
	f := newImportFixture(t)
	f.fetcher.files = []string{"a.pdf", "b.pdf", "c.pdf"}
	f.model.responses["a.pdf"] = fields("001", "2024-01-05", "S", `"1"`)
	f.model.responses["b.pdf"] = fields("002", "2024-01-06", "S", `"2"`)
	f.model.responses["c.pdf"] = fields("003", "2024-01-07", "S", `"3"`)
	f.flaky.failures["001"] = 1 // recovers on retry
	f.flaky.failures["002"] = 2 // fails both attempts

	summary, _, err := f.run(t, ImportJob{})
	require.NoError(t, err)

	assert.Equal(t, 2, f.flaky.calls["001"])
	assert.Equal(t, 2, f.flaky.calls["002"])
	assert.Equal(t, 1, f.flaky.calls["003"])
	assert.Equal(t, 2, summary.New)
	assert.Equal(t, 1, summary.Failed)

	exists, err := f.invoices.ExistsByUserAndNo("u1", "001")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = f.invoices.ExistsByUserAndNo("u1", "002")
	require.NoError(t, err)
	assert.False(t, exists)

	histories, err := f.history.ListByUser("u1", 1)
	require.NoError(t, err)
	require.Len(t, histories, 1)
	assert.Equal(t, 2, histories[0].InvoiceCount)

	_, err = os.Stat(filepath.Join(filesDir(f.static, "u1"), "[2024-01-06-S-2-002].pdf"))
	assert.True(t, os.IsNotExist(err), "unsaved invoice file is removed")
	_, err = os.Stat(filepath.Join(filesDir(f.static, "u1"), "[2024-01-05-S-1-001].pdf"))
	assert.NoError(t, err)

	zr, err := zip.OpenReader(filepath.Join(UserDir(f.static, "u1"), histories[0].ZipFilename))
	require.NoError(t, err)
	defer zr.Close()
	var names []string
	for _, file := range zr.File {
		names = append(names, file.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{
		"[2024-01-05-S-1-001].pdf",
		"[2024-01-07-S-3-003].pdf",
		CSVFilename,
	}, names)
}

func TestImportWritesZipWithCSV(t *testing.T) {
	f := newImportFixture(t)
	f.fetcher.files = []string{"a.pdf", "b.pdf"}
	f.model.responses["a.pdf"] = fields("001", "2024-01-05", "S:1", `"1"`)
	f.model.responses["b.pdf"] = fields("002", "2024-01-06", "S", `"2"`)

	_, _, err := f.run(t, ImportJob{})
	require.NoError(t, err)

	zr, err := zip.OpenReader(filepath.Join(UserDir(f.static, "u1"), "invoices_20240309101112.zip"))
	require.NoError(t, err)
	defer zr.Close()

	var names []string
	var csvBody []byte
	for _, file := range zr.File {
		names = append(names, file.Name)
		if file.Name == CSVFilename {
			rc, err := file.Open()
			require.NoError(t, err)
			csvBody, err = io.ReadAll(rc)
			rc.Close()
			require.NoError(t, err)
		}
	}
	sort.Strings(names)
	assert.Equal(t, []string{
		"[2024-01-05-S_1-1-001].pdf",
		"[2024-01-06-S-2-002].pdf",
		CSVFilename,
	}, names)

	require.NotEmpty(t, csvBody)
	assert.Equal(t, []byte{0xEF, 0xBB, 0xBF}, csvBody[:3])
	assert.Contains(t, string(csvBody), "发票号码,开票日期,开票方名称,含税金额,项目名称,原文件名,重命名后文件名")
}

func TestImportConnectionErrorReportsProgress(t *testing.T) {
	f := newImportFixture(t)
	f.fetcher.err = fmt.Errorf("%w: bad password", imap.ErrLogin)

	_, p, err := f.run(t, ImportJob{})
	require.Error(t, err)
	assert.Equal(t, progressdomain.StateError, p.State)
	assert.Equal(t, "邮箱连接失败，请检查账号和密码是否正确", p.Error)
}

func TestImportInvalidSinceDate(t *testing.T) {
	f := newImportFixture(t)

	_, p, err := f.run(t, ImportJob{Since: "09/03/2024"})
	require.Error(t, err)
	assert.Equal(t, progressdomain.StateError, p.State)
	assert.Contains(t, p.Error, "YYYY-MM-DD")
}

func TestImportPassesSinceAndSubject(t *testing.T) {
	f := newImportFixture(t)
	f.fetcher.skipped = 2

	summary, p, err := f.run(t, ImportJob{Since: "2024-03-01", Subject: "报销"})
	require.NoError(t, err)
	require.NotNil(t, f.fetcher.opts.Since)
	assert.Equal(t, "2024-03-01", f.fetcher.opts.Since.Format("2006-01-02"))
	assert.Equal(t, "报销", f.fetcher.opts.Subject)
	assert.Equal(t, 2, summary.SkippedByDate)
	assert.Equal(t, progressdomain.StateComplete, p.State)
	assert.Equal(t, "/import", p.RedirectURL)
	assert.Equal(t, "没有找到发票附件", summary.Message)
}

func TestImportDefaultSubjectAndAccountLink(t *testing.T) {
	f := newImportFixture(t)
	f.fetcher.files = []string{"a.pdf"}
	f.model.responses["a.pdf"] = fields("001", "2024-01-05", "S", `"1"`)

	_, _, err := f.run(t, ImportJob{Credentials: imap.Credentials{Username: "saved@qq.com"}})
	require.NoError(t, err)
	assert.Equal(t, imap.DefaultSubject, f.fetcher.opts.Subject)

	histories, err := f.history.ListByUser("u1", 1)
	require.NoError(t, err)
	require.Len(t, histories, 1)
	require.NotNil(t, histories[0].EmailAccountID)
	assert.Equal(t, "acc-1", *histories[0].EmailAccountID)
}

func TestImportRemovesWorkingDirs(t *testing.T) {
	f := newImportFixture(t)
	f.fetcher.files = []string{"a.pdf"}
	f.model.responses["a.pdf"] = fields("001", "2024-01-05", "S", `"1"`)

	_, _, err := f.run(t, ImportJob{JobID: "job-x"})
	require.NoError(t, err)

	assert.NoDirExists(t, filepath.Join(f.root, "downloads", "job-x"))
	assert.NoDirExists(t, filepath.Join(f.root, "renamed", "job-x"))
}
