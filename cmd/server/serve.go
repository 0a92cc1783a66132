package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Tuns2000/Campusfix-sub000/internal/api/handler"
	"github.com/Tuns2000/Campusfix-sub000/internal/api/middleware"
	"github.com/Tuns2000/Campusfix-sub000/internal/api/router"
	"github.com/Tuns2000/Campusfix-sub000/internal/repository"
	"github.com/Tuns2000/Campusfix-sub000/internal/service"
	"github.com/Tuns2000/Campusfix-sub000/internal/validation"
	"github.com/Tuns2000/Campusfix-sub000/pkg/jwt"
	"github.com/Tuns2000/Campusfix-sub000/pkg/redis"
	"github.com/Tuns2000/Campusfix-sub000/pkg/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Запустить HTTP-сервер (по умолчанию)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	cfg, logger := a.cfg, a.logger
	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
	)

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := validation.Setup(); err != nil {
		return err
	}

	// 3.1 执行数据库迁移
	if err := a.migrate(); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}

	// 4. 连接 Redis（可选：连接失败时降级运行，不中断启动）
	// 接口变量保持 nil，避免持有 nil 指针的非 nil 接口
	var (
		blacklist service.TokenBlacklist
		limiter   middleware.RateLimiter
	)
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，Token 黑名单与限流将不可用", zap.Error(err))
	} else {
		defer rdb.Close()
		blacklist, limiter = rdb, rdb
	}

	// 5. 附件存储
	ctx := context.Background()
	store, err := storage.New(ctx, &cfg.Upload, logger)
	if err != nil {
		return fmt.Errorf("初始化附件存储失败: %w", err)
	}
	if !cfg.Upload.PreviewRequiresAuth {
		logger.Warn("附件预览接口无需认证，任何知道附件 ID 的人均可访问",
			zap.String("setting", "upload.preview_requires_auth"))
	}

	// 6. 依赖注入: Repository → Service → Handler
	jwtMgr := jwt.NewManager(&cfg.Auth)
	repo := repository.NewRepository(a.db)
	svc := service.NewService(cfg, repo, store, jwtMgr, blacklist, logger)
	h := handler.NewHandler(svc, repo)

	// 7. 初始化路由
	engine := router.Setup(cfg, h, svc.Auth, limiter, logger)

	// 8. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 9. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))
	case err := <-errCh:
		return fmt.Errorf("HTTP 服务器异常: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	logger.Info("服务器已关闭")
	return nil
}
