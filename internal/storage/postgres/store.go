package postgres

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mailroom/backend/internal/domain"
	"mailroom/backend/internal/storage"
)

// Store PostgreSQL 存储实现
//
// 联系人、邮件、历史等持久数据走 GORM；统计查询走 pgx 连接池
// 做原生 SQL 聚合。扫描会话、黑名单等易失数据不在这里，
// 由 Redis 实现承载（见 hybrid 包的组装）。
type Store struct {
	db     *gorm.DB
	client *Client // 可选，nil 时统计退回 GORM 逐表计数
}

// NewStore 创建 PostgreSQL 存储实例
func NewStore(dsn string, client *Client) (*Store, error) {
	return NewStoreWithDialector(postgres.Open(dsn), client)
}

// NewMySQLStore 创建 MySQL 存储实例
func NewMySQLStore(dsn string) (*Store, error) {
	return NewStoreWithDialector(mysql.Open(dsn), nil)
}

// NewStoreWithDialector 使用指定的GORM dialector创建存储实例
func NewStoreWithDialector(dialector gorm.Dialector, client *Client) (*Store, error) {
	// 配置 GORM
	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // 静默模式
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	// 连接数据库
	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	store := &Store{db: db, client: client}

	// 自动迁移数据库表
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate 自动迁移数据库表结构
func (s *Store) migrate() error {
	return s.db.AutoMigrate(
		&domain.User{},
		&domain.Contact{},
		&domain.MailItem{},
		&domain.ActionHistory{},
		&domain.Todo{},
		&domain.OAuthToken{},
	)
}

// ========== Contact Repository ==========

// SaveContact 保存联系人
func (s *Store) SaveContact(contact *domain.Contact) error {
	if contact.MailboxNumber != "" {
		var count int64
		err := s.db.Model(&domain.Contact{}).
			Where("LOWER(mailbox_number) = LOWER(?) AND id <> ?", contact.MailboxNumber, contact.ID).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return storage.ErrMailboxNumberTaken
		}
	}
	return s.db.Save(contact).Error
}

// GetContact 根据 ID 获取联系人
func (s *Store) GetContact(id string) (*domain.Contact, error) {
	var contact domain.Contact
	err := s.db.Where("id = ?", id).First(&contact).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, storage.ErrContactNotFound
		}
		return nil, err
	}
	return &contact, nil
}

// GetContactByMailboxNumber 根据信箱号获取联系人，大小写不敏感
func (s *Store) GetContactByMailboxNumber(number string) (*domain.Contact, error) {
	var contact domain.Contact
	err := s.db.Where("LOWER(mailbox_number) = LOWER(?)", number).First(&contact).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, storage.ErrContactNotFound
		}
		return nil, err
	}
	return &contact, nil
}

// ListContacts 返回联系人列表
func (s *Store) ListContacts(includeArchived bool) ([]domain.Contact, error) {
	var contacts []domain.Contact
	query := s.db.Order("company_name, contact_person")
	if !includeArchived {
		query = query.Where("status <> ?", domain.ContactStatusArchived)
	}
	if err := query.Find(&contacts).Error; err != nil {
		return nil, err
	}
	return contacts, nil
}

// SearchContacts 按姓名、公司名或信箱号子串检索联系人
func (s *Store) SearchContacts(query string) ([]domain.Contact, error) {
	var contacts []domain.Contact
	// LOWER+LIKE 两个方言通用，ILIKE 只有 PostgreSQL 认
	pattern := "%" + strings.ToLower(query) + "%"
	err := s.db.
		Where("LOWER(contact_person) LIKE ? OR LOWER(company_name) LIKE ? OR LOWER(mailbox_number) LIKE ?",
			pattern, pattern, pattern).
		Order("company_name, contact_person").
		Find(&contacts).Error
	if err != nil {
		return nil, err
	}
	return contacts, nil
}

// UpdateContact 更新联系人
func (s *Store) UpdateContact(contact *domain.Contact) error {
	var existing domain.Contact
	if err := s.db.Where("id = ?", contact.ID).First(&existing).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return storage.ErrContactNotFound
		}
		return err
	}
	return s.SaveContact(contact)
}

// DeleteContact 删除联系人
func (s *Store) DeleteContact(id string) error {
	result := s.db.Where("id = ?", id).Delete(&domain.Contact{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrContactNotFound
	}
	return nil
}

// ========== MailItem Repository ==========

// CreateMailItem 写入一条邮件记录
func (s *Store) CreateMailItem(item *domain.MailItem) error {
	return s.db.Create(item).Error
}

// CreateMailItems 在一个事务里批量写入邮件和历史记录
func (s *Store) CreateMailItems(items []domain.MailItem, histories []domain.ActionHistory) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		if len(histories) > 0 {
			if err := tx.Create(&histories).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetMailItem 根据 ID 获取邮件记录
func (s *Store) GetMailItem(id string) (*domain.MailItem, error) {
	var item domain.MailItem
	err := s.db.Where("id = ?", id).First(&item).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, storage.ErrMailItemNotFound
		}
		return nil, err
	}
	return &item, nil
}

// ListMailItems 按过滤条件返回邮件记录和总数
func (s *Store) ListMailItems(filter domain.MailItemFilter) ([]domain.MailItem, int, error) {
	query := s.db.Model(&domain.MailItem{})

	if filter.ContactID != "" {
		query = query.Where("contact_id = ?", filter.ContactID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if !filter.From.IsZero() {
		query = query.Where("received_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		query = query.Where("received_at <= ?", filter.To)
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where(
			"LOWER(description) LIKE ? OR contact_id IN (SELECT id FROM contacts WHERE LOWER(contact_person) LIKE ? OR LOWER(company_name) LIKE ?)",
			pattern, pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("received_at DESC")
	if filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		if offset < 0 {
			offset = 0
		}
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	var items []domain.MailItem
	if err := query.Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, int(total), nil
}

// UpdateMailItem 更新邮件记录
func (s *Store) UpdateMailItem(item *domain.MailItem) error {
	result := s.db.Model(&domain.MailItem{}).Where("id = ?", item.ID).Updates(item)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrMailItemNotFound
	}
	return nil
}

// DeleteMailItem 删除邮件记录。
// 历史记录保留，操作轨迹不随邮件一起消失。
func (s *Store) DeleteMailItem(id string) error {
	result := s.db.Where("id = ?", id).Delete(&domain.MailItem{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrMailItemNotFound
	}
	return nil
}

// FindRecentMailItem 查找时间窗口内最近一条同联系人同类型记录
func (s *Store) FindRecentMailItem(contactID string, itemType domain.MailItemType, within time.Duration) (*domain.MailItem, error) {
	var item domain.MailItem
	err := s.db.
		Where("contact_id = ? AND type = ? AND received_at >= ?",
			contactID, itemType, time.Now().Add(-within)).
		Order("received_at DESC").
		First(&item).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// ========== ActionHistory Repository ==========

// AppendHistory 追加一条操作历史
func (s *Store) AppendHistory(entry *domain.ActionHistory) error {
	return s.db.Create(entry).Error
}

// ListHistoryByMailItem 返回某件邮件的全部历史，按时间正序
func (s *Store) ListHistoryByMailItem(mailItemID string) ([]domain.ActionHistory, error) {
	var entries []domain.ActionHistory
	err := s.db.Where("mail_item_id = ?", mailItemID).Order("created_at").Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ListRecentHistory 返回全局最近的历史记录，按时间倒序
func (s *Store) ListRecentHistory(limit int) ([]domain.ActionHistory, error) {
	var entries []domain.ActionHistory
	query := s.db.Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// ========== Todo Repository ==========

// CreateTodo 创建待办
func (s *Store) CreateTodo(todo *domain.Todo) error {
	return s.db.Create(todo).Error
}

// GetTodo 根据 ID 获取待办
func (s *Store) GetTodo(id string) (*domain.Todo, error) {
	var todo domain.Todo
	err := s.db.Where("id = ?", id).First(&todo).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, storage.ErrTodoNotFound
		}
		return nil, err
	}
	return &todo, nil
}

// ListTodos 返回待办列表
func (s *Store) ListTodos(includeCompleted bool) ([]domain.Todo, error) {
	var todos []domain.Todo
	query := s.db.Order("created_at")
	if !includeCompleted {
		query = query.Where("completed = ?", false)
	}
	if err := query.Find(&todos).Error; err != nil {
		return nil, err
	}
	return todos, nil
}

// UpdateTodo 更新待办
func (s *Store) UpdateTodo(todo *domain.Todo) error {
	result := s.db.Model(&domain.Todo{}).Where("id = ?", todo.ID).Select("*").
		Omit("id", "created_at").Updates(todo)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrTodoNotFound
	}
	return nil
}

// DeleteTodo 删除待办
func (s *Store) DeleteTodo(id string) error {
	result := s.db.Where("id = ?", id).Delete(&domain.Todo{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrTodoNotFound
	}
	return nil
}

// ========== User Repository ==========

// CreateUser 创建员工账号
func (s *Store) CreateUser(user *domain.User) error {
	return s.db.Create(user).Error
}

// GetUserByID 根据 ID 获取用户
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	return s.findUser("id = ?", id)
}

// GetUserByEmail 根据邮箱获取用户
func (s *Store) GetUserByEmail(email string) (*domain.User, error) {
	return s.findUser("LOWER(email) = LOWER(?)", email)
}

// GetUserByUsername 根据用户名获取用户
func (s *Store) GetUserByUsername(username string) (*domain.User, error) {
	return s.findUser("username = ?", username)
}

func (s *Store) findUser(query string, arg interface{}) (*domain.User, error) {
	var user domain.User
	err := s.db.Where(query, arg).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, storage.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UpdateUser 更新用户
func (s *Store) UpdateUser(user *domain.User) error {
	result := s.db.Model(&domain.User{}).Where("id = ?", user.ID).Updates(user)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrUserNotFound
	}
	return nil
}

// UpdateLastLogin 更新最后登录时间
func (s *Store) UpdateLastLogin(userID string) error {
	return s.db.Model(&domain.User{}).Where("id = ?", userID).
		Update("last_login_at", time.Now()).Error
}

// ========== OAuthToken Repository ==========

// SaveOAuthToken 保存第三方授权令牌
func (s *Store) SaveOAuthToken(token *domain.OAuthToken) error {
	return s.db.Save(token).Error
}

// GetOAuthToken 获取第三方授权令牌
func (s *Store) GetOAuthToken(userID, provider string) (*domain.OAuthToken, error) {
	var token domain.OAuthToken
	err := s.db.Where("user_id = ? AND provider = ?", userID, provider).First(&token).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, storage.ErrOAuthTokenNotFound
		}
		return nil, err
	}
	return &token, nil
}

// DeleteOAuthToken 删除第三方授权令牌
func (s *Store) DeleteOAuthToken(userID, provider string) error {
	result := s.db.Where("user_id = ? AND provider = ?", userID, provider).
		Delete(&domain.OAuthToken{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrOAuthTokenNotFound
	}
	return nil
}

// ========== Statistics ==========

// GetStatistics 汇总统计信息
//
// 有 pgx 连接池时走单条原生 SQL 聚合，没有时退回逐表计数。
func (s *Store) GetStatistics() (*domain.MailroomStatistics, error) {
	if s.client != nil {
		return s.client.GetStatistics()
	}

	stats := &domain.MailroomStatistics{GeneratedAt: time.Now()}
	today := time.Now().Truncate(24 * time.Hour)

	var n int64
	if err := s.db.Model(&domain.Contact{}).Count(&n).Error; err != nil {
		return nil, err
	}
	stats.TotalContacts = int(n)

	s.db.Model(&domain.Contact{}).Where("status = ?", domain.ContactStatusActive).Count(&n)
	stats.ActiveContacts = int(n)

	s.db.Model(&domain.MailItem{}).Count(&n)
	stats.TotalMailItems = int(n)

	s.db.Model(&domain.MailItem{}).
		Where("status IN ?", []domain.MailItemStatus{domain.MailStatusReceived, domain.MailStatusNotified}).
		Count(&n)
	stats.PendingPickup = int(n)

	s.db.Model(&domain.MailItem{}).Where("received_at >= ?", today).Count(&n)
	stats.ReceivedToday = int(n)

	s.db.Model(&domain.MailItem{}).Where("last_notified_at >= ?", today).Count(&n)
	stats.NotifiedToday = int(n)

	s.db.Model(&domain.Todo{}).Where("completed = ?", false).Count(&n)
	stats.OpenTodos = int(n)

	return stats, nil
}

// ========== 工具方法 ==========

// Close 关闭数据库连接
func (s *Store) Close() error {
	if s.client != nil {
		s.client.Close()
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health 健康检查
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
