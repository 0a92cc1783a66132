package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Tuns2000/Campusfix-sub000/config"
	"github.com/Tuns2000/Campusfix-sub000/internal/api/handler"
	"github.com/Tuns2000/Campusfix-sub000/internal/api/middleware"
	"github.com/Tuns2000/Campusfix-sub000/internal/model"
	"github.com/Tuns2000/Campusfix-sub000/pkg/response"
)

// multipart 边界与表单字段的额外开销
const uploadOverhead = 1 << 20

// Setup 初始化并返回 Gin 路由引擎
// limiter 可为 nil（Redis 不可用时不限流）
func Setup(
	cfg *config.Config,
	h *handler.Handler,
	auth middleware.Authenticator,
	limiter middleware.RateLimiter,
	logger *zap.Logger,
) *gin.Engine {
	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.ErrorHandler(logger))

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "Маршрут не найден")
	})

	// ── 健康检查 ──
	r.GET("/health", h.Health.Check)

	// 上传接口单独成组使用附件上限，其余 /api 接口使用 server.body_limit
	api := r.Group("/api", middleware.BodyLimit(cfg.Server.BodyLimit))
	upload := r.Group("/api", middleware.BodyLimit(cfg.Upload.MaxFileSize*int64(cfg.Upload.MaxFiles)+uploadOverhead))

	jwtAuth := middleware.JWTAuth(auth)
	authLimit := middleware.RateLimit(limiter, cfg.RateLimit.AuthRequests, cfg.RateLimit.AuthWindow, logger)

	// 常用角色组合
	var (
		adminOnly   = middleware.RoleAuth(model.RoleAdmin)
		managers    = middleware.RoleAuth(model.RoleAdmin, model.RoleManager)
		contributor = middleware.RoleAuth(model.RoleAdmin, model.RoleManager, model.RoleEngineer)
	)

	// ────────────────────── 认证 ──────────────────────
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", authLimit, h.Auth.Register)
		authGroup.POST("/login", authLimit, h.Auth.Login)

		authGroup.GET("/me", jwtAuth, h.Auth.Me)
		authGroup.POST("/logout", jwtAuth, h.Auth.Logout)
		authGroup.PUT("/password", jwtAuth, h.Auth.ChangePassword)
		authGroup.PUT("/profile", jwtAuth, h.Auth.UpdateProfile)
	}

	// 预览默认公开，便于 <img>/<iframe> 直接引用
	if cfg.Upload.PreviewRequiresAuth {
		api.GET("/attachments/:id/preview", jwtAuth, h.Attachment.Preview)
	} else {
		api.GET("/attachments/:id/preview", h.Attachment.Preview)
	}

	authorized := api.Group("")
	authorized.Use(jwtAuth)

	// ────────────────────── 用户 ──────────────────────
	users := authorized.Group("/users")
	{
		users.GET("", managers, h.User.List)
		users.GET("/:id", managers, h.User.Get)
		users.PUT("/:id/role", adminOnly, h.User.UpdateRole)
		users.PUT("/:id/status", adminOnly, h.User.UpdateStatus)
	}

	// ────────────────────── 项目与阶段 ──────────────────────
	projects := authorized.Group("/projects")
	{
		projects.GET("", h.Project.List)
		projects.GET("/:id", h.Project.Get)
		projects.POST("", managers, h.Project.Create)
		projects.PUT("/:id", managers, h.Project.Update)
		projects.DELETE("/:id", adminOnly, h.Project.Delete)

		projects.GET("/:id/stages", h.Project.ListStages)
		projects.POST("/:id/stages", managers, h.Project.CreateStage)
	}
	stages := authorized.Group("/stages")
	{
		stages.PUT("/:id", managers, h.Project.UpdateStage)
		stages.DELETE("/:id", managers, h.Project.DeleteStage)
	}

	// ────────────────────── 缺陷 ──────────────────────
	defects := authorized.Group("/defects")
	{
		defects.GET("", h.Defect.List)
		defects.GET("/:id", h.Defect.Get)
		defects.POST("", contributor, h.Defect.Create)
		defects.PUT("/:id", h.Defect.Update) // 观察员仅可改状态（Service 层鉴权）
		defects.DELETE("/:id", adminOnly, h.Defect.Delete)
		defects.GET("/:id/history", h.Defect.History)
		defects.GET("/:id/transitions", h.Defect.Transitions)

		defects.GET("/:id/comments", h.Defect.ListComments)
		defects.POST("/:id/comments", h.Defect.CreateComment)

		defects.GET("/:id/attachments", h.Attachment.List)
	}
	upload.POST("/defects/:id/attachments", jwtAuth, h.Attachment.Upload)
	comments := authorized.Group("/comments")
	{
		comments.PUT("/:id", h.Defect.UpdateComment)
		comments.DELETE("/:id", h.Defect.DeleteComment)
	}

	// ────────────────────── 附件 ──────────────────────
	attachments := authorized.Group("/attachments")
	{
		attachments.GET("/:id", h.Attachment.Download)
		attachments.DELETE("/:id", h.Attachment.Delete) // 管理员、经理或上传者（Service 层鉴权）
	}

	// ────────────────────── 报表 ──────────────────────
	reports := authorized.Group("/reports")
	{
		reports.GET("/export/defects", h.Report.ExportDefects)
		reports.GET("/export/project/:projectId", h.Report.ExportProject)
		reports.GET("/statistics", h.Report.Statistics)
	}

	return r
}
