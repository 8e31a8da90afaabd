package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"mailroom/backend/internal/auth"
	"mailroom/backend/internal/config"
	"mailroom/backend/internal/middleware"
	"mailroom/backend/internal/monitoring"
	"mailroom/backend/internal/photostore"
	"mailroom/backend/internal/scan"
	"mailroom/backend/internal/service"
	"mailroom/backend/internal/storage"
	"mailroom/backend/internal/websocket"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config              *config.Config
	AuthService         *auth.AuthService
	ContactService      *service.ContactService
	MailItemService     *service.MailItemService
	MailLogService      *service.MailLogService
	TodoService         *service.TodoService
	NotificationService *service.NotificationService
	OAuthService        *service.GmailOAuthService
	ScanService         *scan.Service
	PhotoStore          photostore.Store
	Store               storage.Store
	Metrics             *monitoring.Metrics // 可为 nil（测试环境）
	WebSocketHub        *websocket.Hub      // 可为 nil
	HealthHandler       http.Handler        // 可为 nil
	Logger              *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()

	// 使用自定义中间件替代默认中间件
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(middleware.DefaultBodyLimit))

	if deps.Metrics != nil {
		mon := middleware.NewMonitoringMiddleware(deps.Metrics, log)
		router.Use(mon.PanicRecovery())
		router.Use(mon.HTTPMetrics())
		router.Use(mon.RateLimitMetrics())
	} else {
		router.Use(gin.Recovery())
	}

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	// 创建处理器
	authHandler := NewAuthHandler(deps.AuthService, log)
	contactHandler := NewContactHandler(deps.ContactService, log)
	mailItemHandler := NewMailItemHandler(deps.MailItemService, log)
	mailLogHandler := NewMailLogHandler(deps.MailLogService, log)
	todoHandler := NewTodoHandler(deps.TodoService, log)
	notifyHandler := NewNotificationHandler(deps.NotificationService, log)
	oauthHandler := NewOAuthHandler(deps.OAuthService, log)
	scanHandler := NewScanHandler(deps.ScanService, deps.PhotoStore, log)
	statsHandler := NewStatisticsHandler(deps.Store, log)

	if deps.Metrics != nil {
		mailItemHandler.SetMetrics(deps.Metrics)
		notifyHandler.SetMetrics(deps.Metrics)
	}

	// 创建中间件
	jwtAuth := middleware.NewJWTAuth(deps.AuthService, log)
	roleAuth := middleware.NewRoleAuth(deps.AuthService)

	// Swagger 文档
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 健康检查与指标
	if deps.HealthHandler != nil {
		router.GET("/live", gin.WrapH(deps.HealthHandler))
		router.GET("/ready", gin.WrapH(deps.HealthHandler))
	}
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	// V1 API
	v1 := router.Group("/v1")
	{
		// ========== Auth Routes ==========
		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh", authHandler.Refresh)
			authRoutes.POST("/logout", authHandler.Logout)
			authRoutes.GET("/me", jwtAuth.RequireAuth(), authHandler.Me)
			authRoutes.POST("/password", jwtAuth.RequireAuth(), authHandler.ChangePassword)
		}

		// ========== Staff Routes（经理及以上） ==========
		staffRoutes := v1.Group("/staff")
		staffRoutes.Use(jwtAuth.RequireAuth(), roleAuth.RequireManager())
		{
			staffRoutes.POST("", authHandler.Register)
			staffRoutes.PATCH("/:id/active", authHandler.SetActive)
		}

		// ========== Contact Routes ==========
		contactRoutes := v1.Group("/contacts")
		contactRoutes.Use(jwtAuth.RequireAuth())
		{
			contactRoutes.POST("", contactHandler.Create)
			contactRoutes.GET("", contactHandler.List)
			contactRoutes.GET("/:id", contactHandler.Get)
			contactRoutes.PUT("/:id", contactHandler.Update)
			contactRoutes.POST("/:id/archive", contactHandler.Archive)
			contactRoutes.DELETE("/:id", roleAuth.RequireManager(), contactHandler.Delete)

			// 取件通知
			contactRoutes.POST("/:id/notify", notifyHandler.Notify)
		}

		// ========== Mail Item Routes ==========
		mailRoutes := v1.Group("/mail-items")
		mailRoutes.Use(jwtAuth.RequireAuth())
		{
			mailRoutes.POST("", mailItemHandler.Log)
			mailRoutes.GET("", mailItemHandler.List)
			mailRoutes.GET("/:id", mailItemHandler.Get)
			mailRoutes.PUT("/:id", mailItemHandler.Update)
			mailRoutes.PATCH("/:id/status", mailItemHandler.UpdateStatus)
			mailRoutes.DELETE("/:id", mailItemHandler.Delete)
			mailRoutes.GET("/:id/history", mailItemHandler.History)
		}

		// ========== Mail Log / Activity Routes ==========
		v1.GET("/mail-log", jwtAuth.RequireAuth(), mailLogHandler.Groups)
		v1.GET("/activity", jwtAuth.RequireAuth(), mailItemHandler.RecentActivity)

		// ========== Todo Routes ==========
		todoRoutes := v1.Group("/todos")
		todoRoutes.Use(jwtAuth.RequireAuth())
		{
			todoRoutes.POST("", todoHandler.Create)
			todoRoutes.GET("", todoHandler.List)
			todoRoutes.PUT("/:id", todoHandler.Update)
			todoRoutes.PATCH("/:id/complete", todoHandler.Complete)
			todoRoutes.DELETE("/:id", todoHandler.Delete)
		}

		// ========== Scan Routes ==========
		scanRoutes := v1.Group("/scan")
		scanRoutes.Use(jwtAuth.RequireAuth())
		{
			scanRoutes.POST("/session", scanHandler.Start)
			scanRoutes.GET("/session", scanHandler.Resume)
			scanRoutes.DELETE("/session", scanHandler.Cancel)

			// 拍照上传放宽请求体上限
			photoLimit := middleware.BodySizeLimit(middleware.PhotoBodyLimit)
			scanRoutes.POST("/capture", photoLimit, scanHandler.Capture)
			scanRoutes.POST("/capture/batch", photoLimit, scanHandler.CaptureBatch)

			scanRoutes.PATCH("/items/:itemId", scanHandler.Resolve)
			scanRoutes.DELETE("/items/:itemId", scanHandler.RemoveItem)
			scanRoutes.GET("/summary", scanHandler.Summary)
			scanRoutes.POST("/submit", scanHandler.Submit)
		}
		v1.GET("/photos/*key", jwtAuth.RequireAuth(), scanHandler.Photo)

		// ========== Gmail OAuth Routes ==========
		oauthRoutes := v1.Group("/oauth/gmail")
		oauthRoutes.Use(jwtAuth.RequireAuth())
		{
			oauthRoutes.GET("/url", oauthHandler.AuthURL)
			oauthRoutes.POST("/callback", oauthHandler.Callback)
			oauthRoutes.GET("/status", oauthHandler.Status)
			oauthRoutes.DELETE("", oauthHandler.Disconnect)
		}

		// ========== Statistics Routes（经理及以上） ==========
		v1.GET("/statistics", jwtAuth.RequireAuth(), roleAuth.RequireManager(), statsHandler.Get)

		// ========== WebSocket Routes（扫描进度推送） ==========
		if deps.WebSocketHub != nil {
			v1.GET("/ws", websocket.HandleWebSocket(deps.WebSocketHub))
		}
	}

	return router
}
