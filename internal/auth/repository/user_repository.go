package repository

import (
	"errors"
	"time"

	authdomain "invoice-backend/internal/auth/domain"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// userRepository implements UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new instance of userRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{
		db: db,
	}
}

func (r *userRepository) Create(user *authdomain.User) error {
	user.ID = uuid.New().String()
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	return r.db.Create(user).Error
}

func (r *userRepository) FindByID(id string) (*authdomain.User, error) {
	return r.findOne("id = ?", id)
}

func (r *userRepository) FindByUsername(username string) (*authdomain.User, error) {
	return r.findOne("username = ?", username)
}

func (r *userRepository) FindByEmail(email string) (*authdomain.User, error) {
	return r.findOne("email = ?", email)
}

func (r *userRepository) findOne(query string, arg interface{}) (*authdomain.User, error) {
	var user authdomain.User
	err := r.db.Where(query, arg).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) UpdateLastLogin(id string) error {
	now := time.Now()
	return r.db.Model(&authdomain.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_login": now,
			"updated_at": now,
		}).Error
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash compares a password with a hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
