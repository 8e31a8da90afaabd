package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"mailroom/backend/internal/domain"
	"mailroom/backend/internal/storage"
)

// Store 使用内存保存邮务室数据，主要用于开发验证和测试。
type Store struct {
	mu              sync.RWMutex
	contacts        map[string]*domain.Contact       // contactID -> contact
	byMailboxNumber map[string]string                // 小写信箱号 -> contactID
	mailItems       map[string]*domain.MailItem      // itemID -> item
	histories       map[string][]domain.ActionHistory // mailItemID -> 按时间追加
	todos           map[string]*domain.Todo          // todoID -> todo
	users           map[string]*domain.User          // userID -> user
	byEmail         map[string]string                // email -> userID
	byUsername      map[string]string                // username -> userID
	oauthTokens     map[string]*domain.OAuthToken    // "userID:provider" -> token
	sessions        map[string]*sessionEntry         // sessionID -> 扫描会话
	byOperator      map[string]string                // operatorID -> sessionID
	blacklist       map[string]time.Time             // jti -> 过期时间
	rateLimits      map[string]*rateLimitEntry

	rateLimitsCleanup time.Time // 下次清理过期速率限制的时间
}

// sessionEntry 带存储层 TTL 的扫描会话
type sessionEntry struct {
	Session   *domain.ScanSession
	ExpiresAt time.Time
}

// rateLimitEntry 速率限制条目
type rateLimitEntry struct {
	Count     int64
	ExpiresAt time.Time
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		contacts:          make(map[string]*domain.Contact),
		byMailboxNumber:   make(map[string]string),
		mailItems:         make(map[string]*domain.MailItem),
		histories:         make(map[string][]domain.ActionHistory),
		todos:             make(map[string]*domain.Todo),
		users:             make(map[string]*domain.User),
		byEmail:           make(map[string]string),
		byUsername:        make(map[string]string),
		oauthTokens:       make(map[string]*domain.OAuthToken),
		sessions:          make(map[string]*sessionEntry),
		byOperator:        make(map[string]string),
		blacklist:         make(map[string]time.Time),
		rateLimits:        make(map[string]*rateLimitEntry),
		rateLimitsCleanup: time.Now().Add(5 * time.Minute),
	}
}

// SaveContact 保存联系人。
func (s *Store) SaveContact(contact *domain.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if contact.MailboxNumber != "" {
		key := strings.ToLower(contact.MailboxNumber)
		if existing, ok := s.byMailboxNumber[key]; ok && existing != contact.ID {
			return storage.ErrMailboxNumberTaken
		}
		s.byMailboxNumber[key] = contact.ID
	}

	c := *contact
	s.contacts[contact.ID] = &c
	return nil
}

// GetContact 根据 ID 获取联系人。
func (s *Store) GetContact(id string) (*domain.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	contact, ok := s.contacts[id]
	if !ok {
		return nil, storage.ErrContactNotFound
	}
	c := *contact
	return &c, nil
}

// GetContactByMailboxNumber 根据信箱号获取联系人，大小写不敏感。
func (s *Store) GetContactByMailboxNumber(number string) (*domain.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byMailboxNumber[strings.ToLower(number)]
	if !ok {
		return nil, storage.ErrContactNotFound
	}
	c := *s.contacts[id]
	return &c, nil
}

// ListContacts 返回联系人快照，按显示名排序。
func (s *Store) ListContacts(includeArchived bool) ([]domain.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	contacts := make([]domain.Contact, 0, len(s.contacts))
	for _, c := range s.contacts {
		if !includeArchived && c.Status == domain.ContactStatusArchived {
			continue
		}
		contacts = append(contacts, *c)
	}
	sort.Slice(contacts, func(i, j int) bool {
		return contacts[i].PreferredName() < contacts[j].PreferredName()
	})
	return contacts, nil
}

// SearchContacts 按姓名、公司名或信箱号子串检索联系人。
func (s *Store) SearchContacts(query string) ([]domain.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	var results []domain.Contact
	for _, c := range s.contacts {
		if q == "" ||
			strings.Contains(strings.ToLower(c.ContactPerson), q) ||
			strings.Contains(strings.ToLower(c.CompanyName), q) ||
			strings.Contains(strings.ToLower(c.MailboxNumber), q) {
			results = append(results, *c)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].PreferredName() < results[j].PreferredName()
	})
	return results, nil
}

// UpdateContact 更新联系人。
func (s *Store) UpdateContact(contact *domain.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.contacts[contact.ID]
	if !ok {
		return storage.ErrContactNotFound
	}

	newKey := strings.ToLower(contact.MailboxNumber)
	if newKey != "" {
		if existing, ok := s.byMailboxNumber[newKey]; ok && existing != contact.ID {
			return storage.ErrMailboxNumberTaken
		}
	}
	if oldKey := strings.ToLower(old.MailboxNumber); oldKey != "" && oldKey != newKey {
		delete(s.byMailboxNumber, oldKey)
	}
	if newKey != "" {
		s.byMailboxNumber[newKey] = contact.ID
	}

	c := *contact
	s.contacts[contact.ID] = &c
	return nil
}

// DeleteContact 删除联系人。
func (s *Store) DeleteContact(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contact, ok := s.contacts[id]
	if !ok {
		return storage.ErrContactNotFound
	}
	if key := strings.ToLower(contact.MailboxNumber); key != "" {
		delete(s.byMailboxNumber, key)
	}
	delete(s.contacts, id)
	return nil
}

// CreateMailItem 写入一条邮件记录。
func (s *Store) CreateMailItem(item *domain.MailItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := *item
	s.mailItems[item.ID] = &i
	return nil
}

// CreateMailItems 批量写入邮件和历史记录。
//
// 内存实现在持锁状态下完成全部写入，天然满足事务语义。
func (s *Store) CreateMailItems(items []domain.MailItem, histories []domain.ActionHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range items {
		item := items[i]
		s.mailItems[item.ID] = &item
	}
	for _, h := range histories {
		s.histories[h.MailItemID] = append(s.histories[h.MailItemID], h)
	}
	return nil
}

// GetMailItem 根据 ID 获取邮件记录。
func (s *Store) GetMailItem(id string) (*domain.MailItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.mailItems[id]
	if !ok {
		return nil, storage.ErrMailItemNotFound
	}
	i := *item
	return &i, nil
}

// ListMailItems 按过滤条件返回邮件记录和总数。
func (s *Store) ListMailItems(filter domain.MailItemFilter) ([]domain.MailItem, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []domain.MailItem
	for _, item := range s.mailItems {
		if !matchFilter(item, filter, s.contacts) {
			continue
		}
		items = append(items, *item)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].ReceivedAt.After(items[j].ReceivedAt)
	})

	total := len(items)
	if filter.PageSize > 0 {
		start := (filter.Page - 1) * filter.PageSize
		if start < 0 {
			start = 0
		}
		if start >= total {
			return []domain.MailItem{}, total, nil
		}
		end := start + filter.PageSize
		if end > total {
			end = total
		}
		items = items[start:end]
	}
	return items, total, nil
}

// matchFilter 检查邮件记录是否满足过滤条件，调用方需持读锁。
func matchFilter(item *domain.MailItem, filter domain.MailItemFilter, contacts map[string]*domain.Contact) bool {
	if filter.ContactID != "" && item.ContactID != filter.ContactID {
		return false
	}
	if filter.Status != "" && item.Status != filter.Status {
		return false
	}
	if filter.Type != "" && item.Type != filter.Type {
		return false
	}
	if !filter.From.IsZero() && item.ReceivedAt.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && item.ReceivedAt.After(filter.To) {
		return false
	}
	if filter.Search != "" {
		q := strings.ToLower(filter.Search)
		hit := strings.Contains(strings.ToLower(item.Description), q)
		if !hit {
			if c, ok := contacts[item.ContactID]; ok {
				hit = strings.Contains(strings.ToLower(c.ContactPerson), q) ||
					strings.Contains(strings.ToLower(c.CompanyName), q)
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// UpdateMailItem 更新邮件记录。
func (s *Store) UpdateMailItem(item *domain.MailItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mailItems[item.ID]; !ok {
		return storage.ErrMailItemNotFound
	}
	i := *item
	s.mailItems[item.ID] = &i
	return nil
}

// DeleteMailItem 删除邮件记录。
func (s *Store) DeleteMailItem(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mailItems[id]; !ok {
		return storage.ErrMailItemNotFound
	}
	delete(s.mailItems, id)
	return nil
}

// FindRecentMailItem 查找时间窗口内最近一条同联系人同类型记录。
func (s *Store) FindRecentMailItem(contactID string, itemType domain.MailItemType, within time.Duration) (*domain.MailItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().Add(-within)
	var latest *domain.MailItem
	for _, item := range s.mailItems {
		if item.ContactID != contactID || item.Type != itemType {
			continue
		}
		if item.ReceivedAt.Before(cutoff) {
			continue
		}
		if latest == nil || item.ReceivedAt.After(latest.ReceivedAt) {
			latest = item
		}
	}
	if latest == nil {
		return nil, nil
	}
	i := *latest
	return &i, nil
}

// AppendHistory 追加一条操作历史。
func (s *Store) AppendHistory(entry *domain.ActionHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.histories[entry.MailItemID] = append(s.histories[entry.MailItemID], *entry)
	return nil
}

// ListHistoryByMailItem 返回某件邮件的全部历史，按时间正序。
func (s *Store) ListHistoryByMailItem(mailItemID string) ([]domain.ActionHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.ActionHistory, len(s.histories[mailItemID]))
	copy(entries, s.histories[mailItemID])
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

// ListRecentHistory 返回全局最近的历史记录，按时间倒序。
func (s *Store) ListRecentHistory(limit int) ([]domain.ActionHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []domain.ActionHistory
	for _, hs := range s.histories {
		entries = append(entries, hs...)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// GetStatistics 汇总当前数据的统计信息。
func (s *Store) GetStatistics() (*domain.MailroomStatistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &domain.MailroomStatistics{GeneratedAt: time.Now()}
	today := time.Now().Truncate(24 * time.Hour)

	stats.TotalContacts = len(s.contacts)
	for _, c := range s.contacts {
		if c.Status == domain.ContactStatusActive {
			stats.ActiveContacts++
		}
	}

	stats.TotalMailItems = len(s.mailItems)
	for _, item := range s.mailItems {
		switch item.Status {
		case domain.MailStatusReceived, domain.MailStatusNotified:
			stats.PendingPickup++
		}
		if !item.ReceivedAt.Before(today) {
			stats.ReceivedToday++
		}
		if item.LastNotifiedAt != nil && !item.LastNotifiedAt.Before(today) {
			stats.NotifiedToday++
		}
	}

	for _, todo := range s.todos {
		if !todo.Completed {
			stats.OpenTodos++
		}
	}
	return stats, nil
}

// Close 关闭存储，内存实现无资源需要释放。
func (s *Store) Close() error {
	return nil
}

// Health 健康检查。
func (s *Store) Health() error {
	return nil
}
