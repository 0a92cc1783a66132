package model

import "strings"

// User 用户表 — 对应 users
// 用户不做物理删除，停用通过 IsActive 实现
type User struct {
	BaseModel
	Email        string `gorm:"type:varchar(255);not null;uniqueIndex"      json:"email"`
	PasswordHash string `gorm:"type:varchar(255);not null"                  json:"-"`
	Role         string `gorm:"type:varchar(20);not null;default:'observer'" json:"role"`
	FirstName    string `gorm:"type:varchar(100);not null"                  json:"first_name"`
	LastName     string `gorm:"type:varchar(100);not null"                  json:"last_name"`
	MiddleName   string `gorm:"type:varchar(100);not null;default:''"       json:"middle_name"`
	Position     string `gorm:"type:varchar(150);not null;default:''"       json:"position"`
	Phone        string `gorm:"type:varchar(30);not null;default:''"        json:"phone"`
	IsActive     bool   `gorm:"not null;default:true"                       json:"is_active"`
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// FullName 姓 名 父称
func (u *User) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{u.LastName, u.FirstName, u.MiddleName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
