package model

import "gorm.io/gorm"

type User struct {
	gorm.Model
	Email          string `json:"email" gorm:"column:email;type:varchar(191);uniqueIndex;not null"`
	Password       string `json:"-" gorm:"column:password;not null"`
	PasswordSalt   string `json:"-" gorm:"column:password_salt"`
	RoleID         uint32 `json:"role_id" gorm:"column:role_id;not null"`
	FailedAttempts int    `json:"-" gorm:"column:failed_attempts;default:0"`
	LockedUntil    *int64 `json:"-" gorm:"column:locked_until"`
}
