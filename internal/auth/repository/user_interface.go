package repository

import authdomain "invoice-backend/internal/auth/domain"

// UserRepository defines the interface for user persistence
type UserRepository interface {
	Create(user *authdomain.User) error
	FindByID(id string) (*authdomain.User, error)
	FindByUsername(username string) (*authdomain.User, error)
	FindByEmail(email string) (*authdomain.User, error)
	UpdateLastLogin(id string) error
}
