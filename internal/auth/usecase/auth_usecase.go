package usecase

import (
	"errors"
	"fmt"
	"strings"
	"time"

	authdomain "invoice-backend/internal/auth/domain"
	authdto "invoice-backend/internal/auth/dto"
	"invoice-backend/internal/auth/repository"
	"invoice-backend/pkg/config"
	"invoice-backend/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrEmailTaken         = errors.New("email already registered")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")
	ErrInvalidToken       = errors.New("invalid token")
)

// authUsecase implements AuthUsecase interface
type authUsecase struct {
	userRepo repository.UserRepository
	config   *config.Config
	log      *zap.Logger
}

// NewAuthUsecase creates a new instance of authUsecase
func NewAuthUsecase(userRepo repository.UserRepository, cfg *config.Config) AuthUsecase {
	return &authUsecase{
		userRepo: userRepo,
		config:   cfg,
		log:      logger.Named("auth"),
	}
}

func (u *authUsecase) Register(req *authdto.RegisterRequest) (*authdomain.User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if len(req.Password) < 6 {
		return nil, ErrPasswordTooShort
	}
	if req.Password != req.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}

	existing, err := u.userRepo.FindByUsername(username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUsernameTaken
	}

	existing, err = u.userRepo.FindByEmail(email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hashedPassword, err := repository.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &authdomain.User{
		Username: username,
		Email:    email,
		Password: hashedPassword,
	}
	if err := u.userRepo.Create(user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	u.log.Info("user registered", zap.String("user_id", user.ID), zap.String("username", username))
	return user, nil
}

func (u *authUsecase) Login(req *authdto.LoginRequest) (string, *authdomain.User, error) {
	user, err := u.userRepo.FindByUsername(strings.TrimSpace(req.Username))
	if err != nil {
		return "", nil, err
	}
	if user == nil || !repository.CheckPasswordHash(req.Password, user.Password) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := u.generateSessionToken(user)
	if err != nil {
		return "", nil, err
	}

	if err := u.userRepo.UpdateLastLogin(user.ID); err != nil {
		u.log.Warn("update last login failed", zap.String("user_id", user.ID), zap.Error(err))
	}
	return token, user, nil
}

func (u *authUsecase) generateSessionToken(user *authdomain.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"exp":      time.Now().Add(u.config.SessionExpiry).Unix(),
		"iat":      time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(u.config.JWTSecret))
}

func (u *authUsecase) ValidateToken(tokenString string) (*authdomain.User, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(u.config.JWTSecret), nil
	})

	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	user, err := u.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}

	if user == nil {
		return nil, errors.New("user not found")
	}

	return user, nil
}
