package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	accountDelivery "invoice-backend/internal/account/delivery"
	accountRepo "invoice-backend/internal/account/repository"
	accountUsecasePkg "invoice-backend/internal/account/usecase"
	authDelivery "invoice-backend/internal/auth/delivery"
	authRepo "invoice-backend/internal/auth/repository"
	authUsecasePkg "invoice-backend/internal/auth/usecase"
	invoiceDelivery "invoice-backend/internal/invoice/delivery"
	invoiceRepo "invoice-backend/internal/invoice/repository"
	"invoice-backend/internal/invoice/scheduler"
	invoiceUsecasePkg "invoice-backend/internal/invoice/usecase"
	progressDelivery "invoice-backend/internal/progress/delivery"
	progressRepo "invoice-backend/internal/progress/repository"
	progressUsecasePkg "invoice-backend/internal/progress/usecase"
	"invoice-backend/pkg/ai"
	"invoice-backend/pkg/config"
	"invoice-backend/pkg/crypto"
	"invoice-backend/pkg/imap"
	"invoice-backend/pkg/logger"
	"invoice-backend/pkg/mq"
	"invoice-backend/pkg/pdftext"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	importQueueSize  = 20
	importJobTimeout = 30 * time.Minute
)

// Handlers groups the delivery handlers mounted by SetupRoutes.
type Handlers struct {
	Auth     *authDelivery.AuthHandler
	Account  *accountDelivery.AccountHandler
	Invoice  *invoiceDelivery.InvoiceHandler
	Progress *progressDelivery.ProgressHandler
}

type Handler struct {
	config      *config.Config
	authUsecase authUsecasePkg.AuthUsecase
	handlers    Handlers
	tracker     progressUsecasePkg.Tracker
	worker      *invoiceUsecasePkg.ImportWorker
	cleanup     *scheduler.ExportCleanupScheduler
	server      *http.Server
	log         *zap.Logger
}

func NewHandler(cfg *config.Config, db *gorm.DB, progressStore progressRepo.ProgressRepository, publisher mq.Publisher) (*Handler, error) {
	log := logger.Named("api")

	// Initialize runtime config for settings API
	InitRuntimeConfig(cfg)

	key, err := crypto.ParseKey(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("encryption key: %w", err)
	}

	extractor, err := ai.NewInvoiceExtractor(ai.Config{
		Provider:         ai.ProviderType(cfg.AIProvider),
		OpenAIAPIKey:     cfg.OpenAIAPIKey,
		GetOpenAIBaseURL: GetRuntimeOpenAIBaseURL,
		GetOpenAIModel:   GetRuntimeOpenAIModel,
		GetOllamaBaseURL: GetRuntimeOllamaBaseURL,
		GetOllamaModel:   GetRuntimeOllamaModel,
		GeminiAPIKey:     cfg.GeminiAPIKey,
		Timeout:          cfg.LLMTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("ai provider: %w", err)
	}
	log.Info("ai extractor initialized", zap.String("provider", extractor.Name()))

	// repositories
	userRepository := authRepo.NewUserRepository(db)
	accountRepository := accountRepo.NewAccountRepository(db)
	invoiceRepository := invoiceRepo.NewInvoiceRepository(db)
	historyRepository := invoiceRepo.NewHistoryRepository(db)

	// usecases
	authUc := authUsecasePkg.NewAuthUsecase(userRepository, cfg)
	accountUc := accountUsecasePkg.NewAccountUsecase(accountRepository, key, cfg.IMAPServer, cfg.IMAPPort)
	invoiceUc := invoiceUsecasePkg.NewInvoiceUsecase(invoiceRepository, historyRepository, cfg.StaticDir)

	tracker := progressUsecasePkg.NewTracker(progressStore, 0)
	importer := invoiceUsecasePkg.NewImporter(
		invoiceRepository,
		historyRepository,
		accountUc,
		imap.NewService(cfg.IMAPTimeout),
		pdftext.NewExtractor(),
		extractor,
		tracker,
		publisher,
		invoiceUsecasePkg.ImporterConfig{
			DownloadDir: cfg.DownloadDir,
			RenamedDir:  cfg.RenamedDir,
			StaticDir:   cfg.StaticDir,
			Subject:     cfg.IMAPSubject,
		},
	)
	worker := invoiceUsecasePkg.NewImportWorker(importer, cfg.ImportWorkers, importQueueSize, importJobTimeout)
	cleanup := scheduler.NewExportCleanupScheduler(cfg.StaticDir, cfg.ExportRetention, tracker, cfg.ProgressTTL)

	h := &Handler{
		config:      cfg,
		authUsecase: authUc,
		handlers: Handlers{
			Auth:     authDelivery.NewAuthHandler(authUc, int(cfg.SessionExpiry.Seconds()), cfg.SecureCookie),
			Account:  accountDelivery.NewAccountHandler(accountUc, cfg.IMAPServer, cfg.IMAPPort),
			Invoice:  invoiceDelivery.NewInvoiceHandler(invoiceUc, accountUc, tracker, worker, cfg.IMAPSubject, cfg.IMAPServer, cfg.IMAPPort),
			Progress: progressDelivery.NewProgressHandler(tracker),
		},
		tracker: tracker,
		worker:  worker,
		cleanup: cleanup,
		log:     log,
	}
	h.server = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return h, nil
}

// Engine builds the gin engine with every route mounted.
func (h *Handler) Engine() *gin.Engine {
	gin.SetMode(h.config.GinMode)
	r := gin.New()
	r.Use(gin.Recovery())
	SetupRoutes(r, h.authUsecase, h.handlers, h.config)
	return r
}

// StartBackground starts the progress tracker, import workers and cleanup scheduler.
func (h *Handler) StartBackground() {
	h.tracker.Start()
	h.worker.Start()
	h.cleanup.Start()
}

// Start serves HTTP until Shutdown.
func (h *Handler) Start() error {
	h.log.Info("server starting", zap.String("addr", h.server.Addr))
	if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, cancels running imports and flushes progress.
func (h *Handler) Shutdown(ctx context.Context) error {
	err := h.server.Shutdown(ctx)
	h.cleanup.Stop()
	h.worker.Stop()
	h.tracker.Stop()
	h.log.Info("server stopped")
	return err
}
