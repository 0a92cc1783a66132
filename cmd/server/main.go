package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Tuns2000/Campusfix-sub000/config"
	"github.com/Tuns2000/Campusfix-sub000/pkg/database"
	applogger "github.com/Tuns2000/Campusfix-sub000/pkg/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "campusfix",
	Short:         "Сервис учета строительных дефектов",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "путь к файлу конфигурации (по умолчанию ./config/config.yaml)")
	rootCmd.AddCommand(serveCmd, migrateCmd, createAdminCmd, reconcileCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}

// app 各子命令共享的基础资源
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
}

// bootstrap 加载配置、初始化日志并连接数据库
func bootstrap() (*app, error) {
	// 1. 加载配置
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}
	logger.Info("数据库连接成功")

	return &app{cfg: cfg, logger: logger, db: db}, nil
}

// migrate 执行全部待应用的迁移
func (a *app) migrate() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return database.RunMigrations(sqlDB, a.logger)
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.logger.Sync()
}
