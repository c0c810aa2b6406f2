package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"miuruta/model"
	"miuruta/utils"
)

var DB *gorm.DB

func InitDB() {
	// 从环境变量读取配置 (为了 Docker 部署方便)
	host := getEnvOrDefault("DB_HOST", "localhost")
	port := getEnvOrDefault("DB_PORT", "5432")
	user := getEnvOrDefault("DB_USER", "miuruta")
	password := getEnvOrDefault("DB_PASSWORD", "miuruta")
	dbname := getEnvOrDefault("DB_NAME", "miuruta")

	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=America/Lima",
		host, user, password, dbname, port,
	)

	// 带重试的数据库连接 (Docker 启动时数据库可能还没准备好)
	var err error
	maxRetries := 30
	for i := 0; i < maxRetries; i++ {
		DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err == nil {
			break
		}
		log.Printf("esperando la base de datos... (%d/%d): %v", i+1, maxRetries, err)
		time.Sleep(2 * time.Second)
	}

	if err != nil {
		log.Fatalf("no se pudo conectar a la base de datos: %v", err)
	}

	// 自动迁移模式 (自动创建表结构)
	err = DB.AutoMigrate(&model.User{}, &model.Client{}, &model.RouteRecord{})
	if err != nil {
		log.Fatalf("fallo en la migración de la base de datos: %v", err)
	}

	seedAdminUser()

	log.Println("base de datos conectada e inicializada")
}

// getEnvOrDefault 获取环境变量，如果不存在则返回默认值
func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// seedAdminUser 用户表为空时按环境变量种一个管理员账号，方便首次部署
func seedAdminUser() {
	var count int64
	DB.Model(&model.User{}).Count(&count)
	if count > 0 {
		return
	}

	username := getEnvOrDefault("ADMIN_USERNAME", "admin")
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		log.Println("ADMIN_PASSWORD no configurado, se omite el usuario inicial")
		return
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		log.Printf("error generando hash del admin: %v", err)
		return
	}
	if err := DB.Create(&model.User{Username: username, Password: hash}).Error; err != nil {
		log.Printf("error creando usuario admin: %v", err)
		return
	}
	log.Printf("usuario inicial %q creado", username)
}
