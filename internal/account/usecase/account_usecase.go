package usecase

import (
	"fmt"
	"net/http"
	"strings"

	"invoice-backend/internal/account/domain"
	"invoice-backend/internal/account/dto"
	"invoice-backend/internal/account/repository"
	"invoice-backend/pkg/apperror"
	"invoice-backend/pkg/crypto"
	"invoice-backend/pkg/imap"
	"invoice-backend/pkg/logger"
	"invoice-backend/pkg/sanitize"

	"go.uber.org/zap"
)

type accountUsecase struct {
	repo          repository.AccountRepository
	key           []byte
	defaultServer string
	defaultPort   int
	log           *zap.Logger
}

func NewAccountUsecase(repo repository.AccountRepository, key []byte, defaultServer string, defaultPort int) AccountUsecase {
	return &accountUsecase{
		repo:          repo,
		key:           key,
		defaultServer: defaultServer,
		defaultPort:   defaultPort,
		log:           logger.Named("account"),
	}
}

func (u *accountUsecase) List(userID string) ([]*domain.EmailAccount, error) {
	return u.repo.FindByUserID(userID)
}

func (u *accountUsecase) Create(userID string, req *dto.CreateAccountRequest) (*domain.EmailAccount, error) {
	address := strings.ToLower(strings.TrimSpace(req.EmailAddress))
	if address == "" || req.Password == "" {
		return nil, apperror.BadRequest("email address and password are required", nil)
	}

	existing, err := u.repo.FindByAddress(userID, address)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperror.New(http.StatusConflict, "account already saved", apperror.ErrDuplicate)
	}

	secret, err := crypto.Encrypt(req.Password, u.key)
	if err != nil {
		return nil, fmt.Errorf("encrypt password: %w", err)
	}

	server := strings.TrimSpace(req.IMAPServer)
	if server == "" {
		server = u.defaultServer
	}
	port := req.IMAPPort
	if port <= 0 {
		port = u.defaultPort
	}

	account := &domain.EmailAccount{
		UserID:       userID,
		EmailAddress: address,
		Password:     secret,
		Description:  sanitize.Text(req.Description),
		IMAPServer:   server,
		IMAPPort:     port,
	}
	if err := u.repo.Create(account); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	u.log.Info("account saved", zap.String("user_id", userID), zap.String("account_id", account.ID))
	return account, nil
}

func (u *accountUsecase) owned(userID, accountID string) (*domain.EmailAccount, error) {
	account, err := u.repo.FindByID(accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, apperror.NotFound("account not found")
	}
	if account.UserID != userID {
		return nil, apperror.Forbidden("account belongs to another user")
	}
	return account, nil
}

func (u *accountUsecase) Delete(userID, accountID string) error {
	if _, err := u.owned(userID, accountID); err != nil {
		return err
	}
	return u.repo.Delete(accountID)
}

func (u *accountUsecase) Credentials(userID, accountID string) (imap.Credentials, *domain.EmailAccount, error) {
	account, err := u.owned(userID, accountID)
	if err != nil {
		return imap.Credentials{}, nil, err
	}

	password, err := crypto.Decrypt(account.Password, u.key)
	if err != nil {
		return imap.Credentials{}, nil, fmt.Errorf("decrypt account %s: %w", account.ID, err)
	}

	return imap.Credentials{
		Server:   account.IMAPServer,
		Port:     account.IMAPPort,
		Username: account.EmailAddress,
		Password: password,
	}, account, nil
}

func (u *accountUsecase) FindByAddress(userID, address string) (*domain.EmailAccount, error) {
	return u.repo.FindByAddress(userID, strings.ToLower(strings.TrimSpace(address)))
}
