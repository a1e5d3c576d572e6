package dto

type LoginRequest struct {
	Username string `form:"username" json:"username" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
	Next     string `form:"next" json:"next"`
}

type RegisterRequest struct {
	Username        string `form:"username" json:"username" binding:"required,min=3,max=64"`
	Email           string `form:"email" json:"email" binding:"required,email"`
	Password        string `form:"password" json:"password" binding:"required,min=6"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password" binding:"required"`
}
