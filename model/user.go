package model

import "gorm.io/gorm"

// User 后台账号，只用于登录签发 JWT (司机和管理员共用同一套账号)
type User struct {
	gorm.Model
	Username string `json:"username" gorm:"uniqueIndex;not null"` // 登录名，唯一
	Password string `json:"password" gorm:"not null"`             // bcrypt 哈希，绝不存明文
	Email    string `json:"email"`
}
