package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mailroom/backend/internal/ai"
	"mailroom/backend/internal/auth"
	"mailroom/backend/internal/config"
	"mailroom/backend/internal/health"
	"mailroom/backend/internal/logger"
	"mailroom/backend/internal/monitoring"
	"mailroom/backend/internal/notify"
	"mailroom/backend/internal/ocr"
	"mailroom/backend/internal/photostore"
	"mailroom/backend/internal/scan"
	"mailroom/backend/internal/service"
	"mailroom/backend/internal/storage"
	"mailroom/backend/internal/storage/hybrid"
	"mailroom/backend/internal/storage/memory"
	httptransport "mailroom/backend/internal/transport/http"
	"mailroom/backend/internal/websocket"
)

// main 启动邮务室管理后端服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     "",
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting mailroom server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 存储层：配置了数据库走 PostgreSQL/MySQL + Redis，否则内存（开发环境）
	var store storage.Store
	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		store, err = hybrid.NewStore(&cfg.Database, &cfg.Redis, log)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize database storage: %v", err))
		}
		log.Info("using database storage", zap.String("type", cfg.Database.Type))
	} else {
		store = memory.NewStore()
		log.Info("using memory storage (development mode)")
	}
	defer store.Close()

	// 监控与健康检查
	metrics := monitoring.NewMetrics()
	healthChecker := health.NewHealthChecker(store, log)
	if cfg.OCR.BaseURL != "" {
		healthChecker.AddOCRCheck(cfg.OCR.BaseURL)
	}

	alertManager := monitoring.NewAlertManager(log)
	alertManager.AddReceiver(monitoring.NewLogAlertReceiver(log))
	alertManager.AddRule(monitoring.HighMemoryUsageRule(512.0))
	alertManager.AddRule(monitoring.DatabaseConnectionRule(store))
	alertManager.AddRule(monitoring.PendingPickupBacklogRule(store, metrics, 100))

	// 照片存储（本地目录或 S3）
	photos, err := photostore.New(&cfg.Photo, log)
	if err != nil {
		log.Warn("failed to initialize photo storage, scan photos will not be archived", zap.Error(err))
		photos = nil
	}

	// 识别链路：AI 智能匹配 + OCR 兜底，二者均可留空禁用
	var recognizer scan.Recognizer
	if cfg.AI.APIKey != "" {
		recognizer = ai.NewClient(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.MinInterval, log)
		log.Info("ai recognition enabled", zap.String("model", cfg.AI.Model))
	}
	var reader scan.TextReader
	if cfg.OCR.BaseURL != "" {
		reader = ocr.NewClient(cfg.OCR.BaseURL, cfg.OCR.Language, cfg.OCR.Timeout, log)
		log.Info("ocr fallback enabled", zap.String("base_url", cfg.OCR.BaseURL))
	}

	// 业务服务
	authService := auth.NewAuthService(store, auth.NewJWTManager(&cfg.JWT), store)
	contactService := service.NewContactService(store, log)
	mailItemService := service.NewMailItemService(store, cfg, log)
	mailLogService := service.NewMailLogService(store, cfg.Location(), log)
	todoService := service.NewTodoService(store, log)
	oauthService := service.NewGmailOAuthService(store, &cfg.Notify, log)
	mailer := notify.NewMailer(&cfg.Notify, log)
	notifyService := service.NewNotificationService(
		store, mailer, oauthService, mailItemService, cfg.Mailroom.NotifyRateLimit, log)
	scanService := scan.NewService(store, contactService, recognizer, reader, photos, cfg.Scan, log)
	scanService.SetMetrics(metrics)
	scanService.SetNotifyFunc(func(ctx context.Context, contactID string, itemIDs []string, operatorID string) error {
		_, err := notifyService.NotifyContact(contactID, itemIDs, operatorID)
		return err
	})

	// WebSocket Hub：向前端推送扫描进度
	wsHub := websocket.NewHub(cfg.CORS.AllowedOrigins, authService, log)
	scanService.SetNotifier(wsHub)

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:              cfg,
		AuthService:         authService,
		ContactService:      contactService,
		MailItemService:     mailItemService,
		MailLogService:      mailLogService,
		TodoService:         todoService,
		NotificationService: notifyService,
		OAuthService:        oauthService,
		ScanService:         scanService,
		PhotoStore:          photos,
		Store:               store,
		Metrics:             metrics,
		WebSocketHub:        wsHub,
		HealthHandler:       healthChecker.Handler(),
		Logger:              log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	group.Go(func() error {
		log.Info("starting WebSocket hub")
		wsHub.Run(groupCtx)
		return nil
	})

	// 定时清理过期扫描会话
	group.Go(func() error {
		interval := cfg.Scan.SweepInterval
		if interval <= 0 {
			interval = 10 * time.Minute
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Info("starting scan session sweeper", zap.Duration("interval", interval))

		for {
			select {
			case <-groupCtx.Done():
				log.Info("scan session sweeper stopped")
				return nil
			case <-ticker.C:
				count, err := scanService.Sweep()
				if err != nil {
					log.Error("failed to sweep expired scan sessions", zap.Error(err))
				} else if count > 0 {
					log.Info("expired scan sessions discarded", zap.Int("count", count))
				}
			}
		}
	})

	group.Go(func() error {
		log.Info("starting alert monitoring")
		alertManager.StartMonitoring(groupCtx, 1*time.Minute)
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}
		if photos != nil {
			if err := photos.Close(); err != nil {
				log.Warn("photo storage close warning", zap.Error(err))
			}
		}

		log.Info("server stopped")
		return nil
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}
