package usecase

import (
	authdomain "invoice-backend/internal/auth/domain"
	authdto "invoice-backend/internal/auth/dto"
)

// AuthUsecase defines the interface for session authentication
type AuthUsecase interface {
	Register(req *authdto.RegisterRequest) (*authdomain.User, error)
	// Login returns a signed session token for the user.
	Login(req *authdto.LoginRequest) (string, *authdomain.User, error)
	ValidateToken(token string) (*authdomain.User, error)
}
