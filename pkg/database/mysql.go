// Package database 提供 MySQL 连接与 GORM 实例的初始化。
package database

import (
	"fmt"
	"time"

	"knowhub_tags/internal/config"
	"knowhub_tags/internal/model"
	"knowhub_tags/pkg/log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"moul.io/zapgorm2"
)

// DB 全局 GORM 数据库实例，在 InitMySQL 成功后可通过 database.DB 使用。
var DB *gorm.DB

// gormConfig SQL 日志走 zap；LogSQL 关闭时只记录慢查询和错误
func gormConfig(cfg config.MySQLConfig) *gorm.Config {
	gormLogger := zapgorm2.New(log.GetLogger())
	gormLogger.IgnoreRecordNotFoundError = true

	level := logger.Warn
	if cfg.LogSQL {
		level = logger.Info
	}
	return &gorm.Config{Logger: gormLogger.LogMode(level)}
}

// Open 根据配置连接 MySQL 并设置连接池，不修改全局 DB。
func Open(cfg config.MySQLConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN), gormConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}

	// 获取底层 *sql.DB 以配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	return db, nil
}

// InitMySQL 连接 MySQL 并初始化全局 DB，失败时调用 log.Fatal 退出进程。
func InitMySQL(cfg config.MySQLConfig) {
	var err error
	DB, err = Open(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MySQL", err)
	}
	log.Info("MySQL initialized successfully")
}

// RunMigrate 创建或更新标签树相关的三张表。
func RunMigrate(db *gorm.DB) error {
	log.Info("Running migrations...")

	if err := db.AutoMigrate(
		&model.TagRow{},
		&model.TagKeywordRow{},
		&model.TagAttributeLinkRow{},
	); err != nil {
		log.Errorf("Failed to run migrations: %v", err)
		return err
	}

	log.Info("Migrations completed successfully")
	return nil
}
