package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// MailroomConfig 定义邮务室核心业务配置
type MailroomConfig struct {
	Timezone        string        // 邮件日志按日分组使用的时区，默认 "Local"
	DuplicateWindow time.Duration // 重复登记检测的时间窗口，默认 10 分钟
	NotifyRateLimit int           // 单个联系人每小时最多通知次数，默认 5
}

// ScanConfig 定义扫描批次录入配置
type ScanConfig struct {
	SessionTTL    time.Duration // 扫描会话有效期，过期后会话作废，默认 4 小时
	MaxBatchSize  int           // 单次批量识别照片上限，默认 10
	AutoAccept    float64       // 单张识别自动采纳的置信度阈值，默认 0.7
	BatchAccept   float64       // 批量识别自动采纳的置信度阈值，默认 0.5
	SweepInterval time.Duration // 过期会话清理周期，默认 10 分钟
}

// AIConfig 定义视觉识别服务配置
type AIConfig struct {
	APIKey      string        // Anthropic API Key，留空时禁用智能匹配
	Model       string        // 模型名称
	MinInterval time.Duration // 相邻两次 API 调用的最小间隔，默认 1 秒
}

// OCRConfig 定义 OCR 兜底服务配置
type OCRConfig struct {
	BaseURL  string        // OCR 服务地址，留空时禁用 OCR 兜底
	Language string        // 识别语言，默认 "eng"
	Timeout  time.Duration // 单次识别超时，默认 30 秒
}

// NotifyConfig 定义客户通知（Gmail 发信）配置
type NotifyConfig struct {
	FromName     string // 发件人显示名
	SMTPAddr     string // SMTP 服务地址，默认 "smtp.gmail.com:465"
	ClientID     string // Google OAuth 客户端 ID
	ClientSecret string // Google OAuth 客户端密钥
	RedirectURL  string // OAuth 回调地址
}

// PhotoConfig 定义面单照片归档配置
type PhotoConfig struct {
	Backend   string // 存储后端: "local" 或 "s3"，默认 "local"
	LocalDir  string // 本地存储目录，默认 "./data/photos"
	Bucket    string // S3 桶名
	Region    string // S3 区域
	Endpoint  string // S3 自定义端点（MinIO 等兼容服务）
	AccessKey string // S3 静态访问密钥，留空走 AWS 默认凭证链
	SecretKey string // S3 静态私钥
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
}

// DatabaseConfig 定义数据库连接配置（支持 MySQL 和 PostgreSQL）
type DatabaseConfig struct {
	Type            string        // 数据库类型: "mysql" 或 "postgres"，留空使用内存存储
	DSN             string        // 数据库连接字符串
	MaxOpenConns    int           // 最大打开连接数，默认 25
	MaxIdleConns    int           // 最大空闲连接数，默认 5
	ConnMaxLifetime time.Duration // 连接最大生命周期，默认 5 分钟
}

// RedisConfig 定义 Redis 缓存服务配置
type RedisConfig struct {
	Address  string // Redis 服务地址，格式 "host:port"，默认 "localhost:6379"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
}

// JWTConfig 定义 JWT 认证相关配置
type JWTConfig struct {
	Secret        string        // JWT 签名密钥，必须至少 32 字符
	Issuer        string        // JWT 签发者标识，默认 "mailroom"
	AccessExpiry  time.Duration // 访问令牌有效期，默认 15 分钟
	RefreshExpiry time.Duration // 刷新令牌有效期，默认 7 天
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server   ServerConfig   // HTTP 服务器配置
	Mailroom MailroomConfig // 邮务室业务配置
	Scan     ScanConfig     // 扫描录入配置
	AI       AIConfig       // 视觉识别配置
	OCR      OCRConfig      // OCR 兜底配置
	Notify   NotifyConfig   // 客户通知配置
	Photo    PhotoConfig    // 照片归档配置
	CORS     CORSConfig     // 跨域配置
	Log      LogConfig      // 日志配置
	Database DatabaseConfig // 数据库配置
	Redis    RedisConfig    // Redis 配置
	JWT      JWTConfig      // JWT 认证配置
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: MAILROOM_
// 例如: MAILROOM_SERVER_HOST, MAILROOM_JWT_SECRET
//
// .env 文件位置：
//   - 当前目录的 .env
//   - 父目录的 .env（如果在 backend/ 子目录中运行）
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，因为 .env 文件是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("mailroom")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("mailroom.timezone", "Local")
	viper.SetDefault("mailroom.duplicate_window", "10m")
	viper.SetDefault("mailroom.notify_rate_limit", 5)
	viper.SetDefault("scan.session_ttl", "4h")
	viper.SetDefault("scan.max_batch_size", 10)
	viper.SetDefault("scan.auto_accept", 0.7)
	viper.SetDefault("scan.batch_accept", 0.5)
	viper.SetDefault("scan.sweep_interval", "10m")
	viper.SetDefault("ai.api_key", "")
	viper.SetDefault("ai.model", "claude-sonnet-4-20250514")
	viper.SetDefault("ai.min_interval", "1s")
	viper.SetDefault("ocr.base_url", "")
	viper.SetDefault("ocr.language", "eng")
	viper.SetDefault("ocr.timeout", "30s")
	viper.SetDefault("notify.from_name", "Mailroom")
	viper.SetDefault("notify.smtp_addr", "smtp.gmail.com:465")
	viper.SetDefault("notify.client_id", "")
	viper.SetDefault("notify.client_secret", "")
	viper.SetDefault("notify.redirect_url", "")
	viper.SetDefault("photo.backend", "local")
	viper.SetDefault("photo.local_dir", "./data/photos")
	viper.SetDefault("photo.bucket", "")
	viper.SetDefault("photo.region", "")
	viper.SetDefault("photo.endpoint", "")
	viper.SetDefault("photo.access_key", "")
	viper.SetDefault("photo.secret_key", "")
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("database.type", "") // 默认为空，使用内存存储
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.issuer", "mailroom")
	viper.SetDefault("jwt.access_expiry", "15m")
	viper.SetDefault("jwt.refresh_expiry", "168h")

	sessionTTL := parseDuration("scan.session_ttl", 4*time.Hour)
	duplicateWindow := parseDuration("mailroom.duplicate_window", 10*time.Minute)
	sweepInterval := parseDuration("scan.sweep_interval", 10*time.Minute)
	aiInterval := parseDuration("ai.min_interval", time.Second)
	ocrTimeout := parseDuration("ocr.timeout", 30*time.Second)
	connMaxLifetime := parseDuration("database.conn_max_lifetime", 5*time.Minute)
	accessExpiry := parseDuration("jwt.access_expiry", 15*time.Minute)
	refreshExpiry := parseDuration("jwt.refresh_expiry", 7*24*time.Hour)

	maxBatch := viper.GetInt("scan.max_batch_size")
	if maxBatch <= 0 {
		maxBatch = 10
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	if _, err := time.LoadLocation(viper.GetString("mailroom.timezone")); err != nil {
		return nil, fmt.Errorf("invalid mailroom.timezone: %w", err)
	}

	jwtSecret := viper.GetString("jwt.secret")

	// 安全检查：禁止使用默认的 JWT secret
	if jwtSecret == "change-me-in-production" {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret cannot be the default value. Please set MAILROOM_JWT_SECRET environment variable")
	}

	// JWT secret 必须至少 32 字符
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret must be at least 32 characters long")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Mailroom: MailroomConfig{
			Timezone:        viper.GetString("mailroom.timezone"),
			DuplicateWindow: duplicateWindow,
			NotifyRateLimit: viper.GetInt("mailroom.notify_rate_limit"),
		},
		Scan: ScanConfig{
			SessionTTL:    sessionTTL,
			MaxBatchSize:  maxBatch,
			AutoAccept:    viper.GetFloat64("scan.auto_accept"),
			BatchAccept:   viper.GetFloat64("scan.batch_accept"),
			SweepInterval: sweepInterval,
		},
		AI: AIConfig{
			APIKey:      viper.GetString("ai.api_key"),
			Model:       viper.GetString("ai.model"),
			MinInterval: aiInterval,
		},
		OCR: OCRConfig{
			BaseURL:  viper.GetString("ocr.base_url"),
			Language: viper.GetString("ocr.language"),
			Timeout:  ocrTimeout,
		},
		Notify: NotifyConfig{
			FromName:     viper.GetString("notify.from_name"),
			SMTPAddr:     viper.GetString("notify.smtp_addr"),
			ClientID:     viper.GetString("notify.client_id"),
			ClientSecret: viper.GetString("notify.client_secret"),
			RedirectURL:  viper.GetString("notify.redirect_url"),
		},
		Photo: PhotoConfig{
			Backend:   viper.GetString("photo.backend"),
			LocalDir:  viper.GetString("photo.local_dir"),
			Bucket:    viper.GetString("photo.bucket"),
			Region:    viper.GetString("photo.region"),
			Endpoint:  viper.GetString("photo.endpoint"),
			AccessKey: viper.GetString("photo.access_key"),
			SecretKey: viper.GetString("photo.secret_key"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
		},
		Database: DatabaseConfig{
			Type:            viper.GetString("database.type"),
			DSN:             viper.GetString("database.dsn"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: connMaxLifetime,
		},
		Redis: RedisConfig{
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:        jwtSecret,
			Issuer:        viper.GetString("jwt.issuer"),
			AccessExpiry:  accessExpiry,
			RefreshExpiry: refreshExpiry,
		},
	}

	return cfg, nil
}

// Location 返回配置的时区对象。
//
// Load 已经校验过时区合法性，这里不会失败。
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Mailroom.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// parseDuration 解析时长配置，解析失败时使用默认值
func parseDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(viper.GetString(key))
	if err != nil {
		return fallback
	}
	return d
}

// parseList 将逗号分隔的字符串解析为字符串切片
//
// 参数:
//   - value: 逗号分隔的字符串，如 "item1,item2,item3"
//
// 返回值:
//   - []string: 解析后的字符串切片，已去除空白字符
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env（用于从 backend/ 子目录运行的情况）
//
// 注意：
//   - 如果文件不存在，静默失败（.env 是可选的）
//   - 环境变量不会被覆盖（已存在的环境变量优先级更高）
func loadEnvFile() {
	// 尝试当前目录的 .env
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	// 尝试父目录的 .env（从 backend/ 目录运行时）
	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
