package domain

import "time"

type User struct {
	ID        string     `json:"id" gorm:"primaryKey"`
	Username  string     `json:"username" gorm:"uniqueIndex;size:64;not null"`
	Email     string     `json:"email" gorm:"uniqueIndex;size:120;not null"`
	Password  string     `json:"-" gorm:"not null"` // Never return password in JSON
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}
