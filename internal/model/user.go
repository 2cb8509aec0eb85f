package model

import (
	"time"
)

// Role authorization role carried in the access token
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User model
type User struct {
	ID           uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string     `gorm:"type:varchar(100);uniqueIndex;not null" json:"email"`
	Username     string     `gorm:"type:varchar(50);not null" json:"username"`
	PasswordHash string     `gorm:"type:varchar(255);not null" json:"-"`
	Salt         string     `gorm:"type:varchar(32);not null" json:"-"`
	Role         Role       `gorm:"type:varchar(20);not null;default:user" json:"role"`
	Status       int8       `gorm:"type:tinyint;not null;default:1;index" json:"status"`
	LastLoginAt  *time.Time `gorm:"type:timestamp" json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName set name
func (User) TableName() string {
	return "users"
}

// UserStatus user status const
const (
	UserStatusNormal   = 1
	UserStatusDisabled = 2
)

// IsActive check if user is active
func (u *User) IsActive() bool {
	return u.Status == UserStatusNormal
}

// IsAdmin check if user may use admin operations
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
