package storage

import (
	"errors"
	"time"

	"mailroom/backend/internal/domain"
)

var (
	// ErrContactNotFound 联系人未找到错误
	ErrContactNotFound = errors.New("contact not found")
	// ErrMailboxNumberTaken 信箱号已被占用错误
	ErrMailboxNumberTaken = errors.New("mailbox number already taken")
	// ErrMailItemNotFound 邮件记录未找到错误
	ErrMailItemNotFound = errors.New("mail item not found")
	// ErrTodoNotFound 待办未找到错误
	ErrTodoNotFound = errors.New("todo not found")
	// ErrUserNotFound 用户未找到错误
	ErrUserNotFound = errors.New("user not found")
	// ErrScanSessionNotFound 扫描会话未找到错误
	ErrScanSessionNotFound = errors.New("scan session not found")
	// ErrOAuthTokenNotFound OAuth 令牌未找到错误
	ErrOAuthTokenNotFound = errors.New("oauth token not found")
)

// ContactRepository 定义联系人数据存取操作。
type ContactRepository interface {
	SaveContact(contact *domain.Contact) error
	GetContact(id string) (*domain.Contact, error)
	GetContactByMailboxNumber(number string) (*domain.Contact, error)
	ListContacts(includeArchived bool) ([]domain.Contact, error)
	SearchContacts(query string) ([]domain.Contact, error)
	UpdateContact(contact *domain.Contact) error
	DeleteContact(id string) error
}

// MailItemRepository 定义邮件记录数据存取操作。
type MailItemRepository interface {
	CreateMailItem(item *domain.MailItem) error
	// CreateMailItems 在一个事务里批量写入邮件和对应的历史记录，
	// 任一条失败则整批回滚。扫描批次提交依赖该语义。
	CreateMailItems(items []domain.MailItem, histories []domain.ActionHistory) error
	GetMailItem(id string) (*domain.MailItem, error)
	ListMailItems(filter domain.MailItemFilter) ([]domain.MailItem, int, error)
	UpdateMailItem(item *domain.MailItem) error
	DeleteMailItem(id string) error
	// FindRecentMailItem 查找指定联系人在时间窗口内最近一条同类型记录，
	// 用于重复登记检测。没有时返回 (nil, nil)。
	FindRecentMailItem(contactID string, itemType domain.MailItemType, within time.Duration) (*domain.MailItem, error)
}

// ActionHistoryRepository 定义操作历史存取操作。
//
// 历史记录只增不改：接口刻意不提供更新和删除。
type ActionHistoryRepository interface {
	AppendHistory(entry *domain.ActionHistory) error
	ListHistoryByMailItem(mailItemID string) ([]domain.ActionHistory, error)
	ListRecentHistory(limit int) ([]domain.ActionHistory, error)
}

// TodoRepository 定义待办数据存取操作。
type TodoRepository interface {
	CreateTodo(todo *domain.Todo) error
	GetTodo(id string) (*domain.Todo, error)
	ListTodos(includeCompleted bool) ([]domain.Todo, error)
	UpdateTodo(todo *domain.Todo) error
	DeleteTodo(id string) error
}

// UserRepository 定义员工账号数据存取操作。
type UserRepository interface {
	CreateUser(user *domain.User) error
	GetUserByID(id string) (*domain.User, error)
	GetUserByEmail(email string) (*domain.User, error)
	GetUserByUsername(username string) (*domain.User, error)
	UpdateUser(user *domain.User) error
	UpdateLastLogin(userID string) error
}

// OAuthTokenRepository 定义第三方授权令牌存取操作。
type OAuthTokenRepository interface {
	SaveOAuthToken(token *domain.OAuthToken) error
	GetOAuthToken(userID, provider string) (*domain.OAuthToken, error)
	DeleteOAuthToken(userID, provider string) error
}

// ScanSessionRepository 定义扫描会话持久化操作。
//
// 会话带 TTL：Redis 实现依赖键过期，内存实现由清理任务兜底。
type ScanSessionRepository interface {
	SaveScanSession(session *domain.ScanSession, ttl time.Duration) error
	GetScanSession(id string) (*domain.ScanSession, error)
	GetScanSessionByOperator(operatorID string) (*domain.ScanSession, error)
	DeleteScanSession(id string) error
	DeleteExpiredScanSessions() (int, error) // 删除过期会话，返回删除数量
}

// StatisticsRepository 定义统计数据查询操作。
type StatisticsRepository interface {
	GetStatistics() (*domain.MailroomStatistics, error)
}

// JWTRepository 定义 JWT 黑名单操作。
type JWTRepository interface {
	AddToBlacklist(jti string, ttl time.Duration) error
	IsBlacklisted(jti string) (bool, error)
}

// RateLimitRepository 定义限流操作。
type RateLimitRepository interface {
	IncrementRateLimit(key string, window time.Duration) (int64, error)
	GetRateLimit(key string) (int64, error)
	// DeleteRateLimit 删除计数键，用于一次性口令在使用后立即作废。
	DeleteRateLimit(key string) error
}

// Store 定义完整的存储接口。
type Store interface {
	ContactRepository
	MailItemRepository
	ActionHistoryRepository
	TodoRepository
	UserRepository
	OAuthTokenRepository
	ScanSessionRepository
	StatisticsRepository
	JWTRepository
	RateLimitRepository

	// 工具方法
	Close() error
	Health() error
}
