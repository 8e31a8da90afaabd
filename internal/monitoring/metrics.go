package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// 邮件登记指标
	MailItemsLogged  *prometheus.CounterVec
	MailItemsPending prometheus.Gauge
	MailItemsPicked  prometheus.Counter

	// 扫描指标
	ScanSessionsStarted prometheus.Counter
	ScanSessionsExpired prometheus.Counter
	ScanItemsProcessed  *prometheus.CounterVec
	ScanSessionsActive  prometheus.Gauge
	ScanProcessingTime  *prometheus.HistogramVec

	// 通知指标
	NotificationsSent   prometheus.Counter
	NotificationsFailed prometheus.Counter

	// 系统指标
	SystemUptime        prometheus.Gauge
	DatabaseConnections prometheus.Gauge
	RedisConnections    prometheus.Gauge

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter

	// 限流指标
	RateLimitBlocks *prometheus.CounterVec
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		// HTTP 请求指标
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailroom_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailroom_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailroom_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		HTTPResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailroom_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		// 邮件登记指标
		MailItemsLogged: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailroom_mail_items_logged_total",
				Help: "Total number of mail items logged",
			},
			[]string{"type", "source"},
		),

		MailItemsPending: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "mailroom_mail_items_pending",
				Help: "Number of mail items awaiting pickup",
			},
		),

		MailItemsPicked: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailroom_mail_items_picked_up_total",
				Help: "Total number of mail items picked up",
			},
		),

		// 扫描指标
		ScanSessionsStarted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailroom_scan_sessions_started_total",
				Help: "Total number of scan sessions started",
			},
		),

		ScanSessionsExpired: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailroom_scan_sessions_expired_total",
				Help: "Total number of scan sessions discarded after expiry",
			},
		),

		ScanItemsProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailroom_scan_items_processed_total",
				Help: "Total number of scanned photos processed",
			},
			[]string{"source", "status"},
		),

		ScanSessionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "mailroom_scan_sessions_active",
				Help: "Number of active scan sessions",
			},
		),

		ScanProcessingTime: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailroom_scan_processing_duration_seconds",
				Help:    "Photo recognition duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),

		// 通知指标
		NotificationsSent: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailroom_notifications_sent_total",
				Help: "Total number of pickup notifications sent",
			},
		),

		NotificationsFailed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailroom_notifications_failed_total",
				Help: "Total number of pickup notifications that failed to send",
			},
		),

		// 系统指标
		SystemUptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "mailroom_system_uptime_seconds",
				Help: "System uptime in seconds",
			},
		),

		DatabaseConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "mailroom_database_connections",
				Help: "Number of database connections",
			},
		),

		RedisConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "mailroom_redis_connections",
				Help: "Number of Redis connections",
			},
		),

		// 错误指标
		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailroom_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailroom_panics_total",
				Help: "Total number of panics",
			},
		),

		// 限流指标
		RateLimitBlocks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailroom_rate_limit_blocks_total",
				Help: "Total number of rate limit blocks",
			},
			[]string{"type"},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration, requestSize, responseSize int64) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	m.HTTPRequestSize.WithLabelValues(method, endpoint).Observe(float64(requestSize))
	m.HTTPResponseSize.WithLabelValues(method, endpoint).Observe(float64(responseSize))
}

// RecordMailItemLogged 记录邮件登记
func (m *Metrics) RecordMailItemLogged(itemType, source string) {
	m.MailItemsLogged.WithLabelValues(itemType, source).Inc()
}

// RecordMailItemPickedUp 记录邮件取件
func (m *Metrics) RecordMailItemPickedUp() {
	m.MailItemsPicked.Inc()
}

// RecordScanSessionStarted 记录扫描会话创建
func (m *Metrics) RecordScanSessionStarted() {
	m.ScanSessionsStarted.Inc()
}

// RecordScanSessionExpired 记录扫描会话过期丢弃
func (m *Metrics) RecordScanSessionExpired(count int) {
	m.ScanSessionsExpired.Add(float64(count))
}

// RecordScanItem 记录单张照片的识别结果
func (m *Metrics) RecordScanItem(source, status string, duration time.Duration) {
	m.ScanItemsProcessed.WithLabelValues(source, status).Inc()
	m.ScanProcessingTime.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordNotificationSent 记录通知发送成功
func (m *Metrics) RecordNotificationSent() {
	m.NotificationsSent.Inc()
}

// RecordNotificationFailed 记录通知发送失败
func (m *Metrics) RecordNotificationFailed() {
	m.NotificationsFailed.Inc()
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// RecordRateLimitBlock 记录限流阻止
func (m *Metrics) RecordRateLimitBlock(limitType string) {
	m.RateLimitBlocks.WithLabelValues(limitType).Inc()
}

// UpdateMailItemsPending 更新待取件数量
func (m *Metrics) UpdateMailItemsPending(count int) {
	m.MailItemsPending.Set(float64(count))
}

// UpdateScanSessionsActive 更新活跃扫描会话数
func (m *Metrics) UpdateScanSessionsActive(count int) {
	m.ScanSessionsActive.Set(float64(count))
}

// UpdateSystemUptime 更新系统运行时间
func (m *Metrics) UpdateSystemUptime(uptime time.Duration) {
	m.SystemUptime.Set(uptime.Seconds())
}

// UpdateDatabaseConnections 更新数据库连接数
func (m *Metrics) UpdateDatabaseConnections(count int) {
	m.DatabaseConnections.Set(float64(count))
}

// UpdateRedisConnections 更新 Redis 连接数
func (m *Metrics) UpdateRedisConnections(count int) {
	m.RedisConnections.Set(float64(count))
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
