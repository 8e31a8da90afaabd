package service

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailroom/backend/internal/cache"
	"mailroom/backend/internal/domain"
	"mailroom/backend/internal/storage"
)

// 联系人名单快照的缓存键和有效期。
// 匹配和扫描每张照片都要读全量名单，不能每次都打数据库。
const (
	contactRosterKey = "contacts:roster"
	contactRosterTTL = 30 * time.Second
)

// ContactService 封装联系人（租户/客户）业务操作。
type ContactService struct {
	repo      storage.ContactRepository
	validator *domain.ContactValidator
	roster    *cache.LocalCache
	logger    *zap.Logger
}

// NewContactService 创建联系人业务服务。
func NewContactService(repo storage.ContactRepository, logger *zap.Logger) *ContactService {
	return &ContactService{
		repo:      repo,
		validator: domain.NewContactValidator(),
		roster:    cache.NewLocalCache(4, contactRosterTTL),
		logger:    logger,
	}
}

// ContactInput 创建/更新联系人的输入。
type ContactInput struct {
	ContactPerson string                       `json:"contactPerson"`
	CompanyName   string                       `json:"companyName"`
	MailboxNumber string                       `json:"mailboxNumber"`
	UnitNumber    string                       `json:"unitNumber"`
	Email         string                       `json:"email"`
	Phone         string                       `json:"phone"`
	Status        domain.ContactStatus         `json:"status"`
	DisplayName   domain.DisplayNamePreference `json:"displayName"`
	Notes         string                       `json:"notes"`
}

// Create 创建联系人。
func (s *ContactService) Create(input ContactInput) (*domain.Contact, error) {
	contact := s.fromInput(input)
	contact.ID = uuid.NewString()
	contact.CreatedAt = time.Now()
	contact.UpdatedAt = contact.CreatedAt
	if contact.Status == "" {
		contact.Status = domain.ContactStatusActive
	}

	if err := s.validator.ValidateContact(contact); err != nil {
		return nil, err
	}
	if err := s.repo.SaveContact(contact); err != nil {
		return nil, err
	}

	s.roster.Delete(contactRosterKey)
	s.logger.Info("contact created",
		zap.String("id", contact.ID),
		zap.String("mailbox", contact.MailboxNumber))
	return contact, nil
}

// Get 获取联系人。
func (s *ContactService) Get(id string) (*domain.Contact, error) {
	return s.repo.GetContact(id)
}

// List 返回联系人列表。
func (s *ContactService) List(includeArchived bool) ([]domain.Contact, error) {
	return s.repo.ListContacts(includeArchived)
}

// Search 检索联系人。
func (s *ContactService) Search(query string) ([]domain.Contact, error) {
	if strings.TrimSpace(query) == "" {
		return s.repo.ListContacts(false)
	}
	return s.repo.SearchContacts(query)
}

// Update 更新联系人。
func (s *ContactService) Update(id string, input ContactInput) (*domain.Contact, error) {
	existing, err := s.repo.GetContact(id)
	if err != nil {
		return nil, err
	}

	contact := s.fromInput(input)
	contact.ID = existing.ID
	contact.CreatedAt = existing.CreatedAt
	contact.UpdatedAt = time.Now()
	if contact.Status == "" {
		contact.Status = existing.Status
	}

	if err := s.validator.ValidateContact(contact); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateContact(contact); err != nil {
		return nil, err
	}

	s.roster.Delete(contactRosterKey)
	return contact, nil
}

// Archive 归档联系人。
//
// 归档而不是删除：历史邮件记录还挂在联系人身上。
func (s *ContactService) Archive(id string) error {
	contact, err := s.repo.GetContact(id)
	if err != nil {
		return err
	}
	contact.Status = domain.ContactStatusArchived
	contact.UpdatedAt = time.Now()
	if err := s.repo.UpdateContact(contact); err != nil {
		return err
	}
	s.roster.Delete(contactRosterKey)
	return nil
}

// Delete 删除联系人。
func (s *ContactService) Delete(id string) error {
	if err := s.repo.DeleteContact(id); err != nil {
		return err
	}
	s.roster.Delete(contactRosterKey)
	return nil
}

// ActiveRoster 返回用于匹配的在用联系人名单。
//
// 带 30 秒本地缓存，扫描批次里每张照片都会调用。
func (s *ContactService) ActiveRoster() ([]domain.Contact, error) {
	if cached, ok := s.roster.Get(contactRosterKey); ok {
		return cached.([]domain.Contact), nil
	}

	contacts, err := s.repo.ListContacts(false)
	if err != nil {
		return nil, err
	}
	s.roster.Set(contactRosterKey, contacts, contactRosterTTL)
	return contacts, nil
}

func (s *ContactService) fromInput(input ContactInput) *domain.Contact {
	return &domain.Contact{
		ContactPerson: strings.TrimSpace(input.ContactPerson),
		CompanyName:   strings.TrimSpace(input.CompanyName),
		MailboxNumber: strings.TrimSpace(input.MailboxNumber),
		UnitNumber:    strings.TrimSpace(input.UnitNumber),
		Email:         strings.TrimSpace(input.Email),
		Phone:         strings.TrimSpace(input.Phone),
		Status:        input.Status,
		DisplayName:   input.DisplayName,
		Notes:         input.Notes,
	}
}
