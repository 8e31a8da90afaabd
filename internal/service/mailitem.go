package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailroom/backend/internal/config"
	"mailroom/backend/internal/domain"
	"mailroom/backend/internal/storage"
)

var (
	ErrStaffRequired     = errors.New("staff attribution is required")
	ErrInvalidStatus     = errors.New("invalid mail item status")
	ErrInvalidType       = errors.New("invalid mail item type")
	ErrDuplicateMailItem = errors.New("a similar item was logged for this contact moments ago")
)

// MailItemService 封装邮件登记与状态流转业务操作。
type MailItemService struct {
	store  storage.Store
	cfg    *config.Config
	logger *zap.Logger
}

// NewMailItemService 创建邮件业务服务。
func NewMailItemService(store storage.Store, cfg *config.Config, logger *zap.Logger) *MailItemService {
	return &MailItemService{
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// LogMailInput 登记一件邮件的输入。
type LogMailInput struct {
	ContactID   string              `json:"contactId"`
	Type        domain.MailItemType `json:"type"`
	Quantity    int                 `json:"quantity"`
	Description string              `json:"description"`
	LoggedBy    string              `json:"-"`
	PhotoKey    string              `json:"-"`
	// Force 跳过重复登记检测，前台确认"确实又到了一件"时使用
	Force bool `json:"force"`
}

// Log 登记一件新到的邮件。
//
// 同一联系人短时间内登记同类型邮件会触发重复提示，
// 由前台确认后携带 Force 重新提交。
func (s *MailItemService) Log(input LogMailInput) (*domain.MailItem, error) {
	if input.LoggedBy == "" {
		return nil, ErrStaffRequired
	}
	if !domain.ValidMailItemType(input.Type) {
		return nil, ErrInvalidType
	}
	if input.Quantity <= 0 {
		input.Quantity = 1
	}

	if _, err := s.store.GetContact(input.ContactID); err != nil {
		return nil, err
	}

	if !input.Force {
		recent, err := s.store.FindRecentMailItem(input.ContactID, input.Type, s.cfg.Mailroom.DuplicateWindow)
		if err != nil {
			return nil, err
		}
		if recent != nil {
			return nil, ErrDuplicateMailItem
		}
	}

	now := time.Now()
	item := &domain.MailItem{
		ID:          uuid.NewString(),
		ContactID:   input.ContactID,
		Type:        input.Type,
		Quantity:    input.Quantity,
		Status:      domain.MailStatusReceived,
		Description: input.Description,
		ReceivedAt:  now,
		LoggedBy:    input.LoggedBy,
		PhotoKey:    input.PhotoKey,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := domain.ValidateMailItem(item); err != nil {
		return nil, err
	}

	if err := s.store.CreateMailItem(item); err != nil {
		return nil, err
	}

	s.appendHistory(item.ID, domain.ActionCreated, "", string(item.Status), "", input.LoggedBy)
	s.logger.Info("mail item logged",
		zap.String("id", item.ID),
		zap.String("contact", item.ContactID),
		zap.String("type", string(item.Type)))
	return item, nil
}

// Get 获取邮件记录。
func (s *MailItemService) Get(id string) (*domain.MailItem, error) {
	return s.store.GetMailItem(id)
}

// List 按过滤条件返回邮件记录。
func (s *MailItemService) List(filter domain.MailItemFilter) ([]domain.MailItem, int, error) {
	return s.store.ListMailItems(filter)
}

// UpdateMailInput 编辑邮件记录的输入。
type UpdateMailInput struct {
	Type        domain.MailItemType `json:"type"`
	Quantity    int                 `json:"quantity"`
	Description string              `json:"description"`
	PerformedBy string              `json:"-"`
}

// Update 编辑邮件记录的类型、数量和描述。
func (s *MailItemService) Update(id string, input UpdateMailInput) (*domain.MailItem, error) {
	if input.PerformedBy == "" {
		return nil, ErrStaffRequired
	}

	item, err := s.store.GetMailItem(id)
	if err != nil {
		return nil, err
	}

	old := fmt.Sprintf("%s x%d", item.Type, item.Quantity)

	if input.Type != "" {
		if !domain.ValidMailItemType(input.Type) {
			return nil, ErrInvalidType
		}
		item.Type = input.Type
	}
	if input.Quantity > 0 {
		item.Quantity = input.Quantity
	}
	if input.Description != "" {
		item.Description = input.Description
	}
	item.UpdatedAt = time.Now()

	if err := s.store.UpdateMailItem(item); err != nil {
		return nil, err
	}

	s.appendHistory(item.ID, domain.ActionEdited, old,
		fmt.Sprintf("%s x%d", item.Type, item.Quantity), "", input.PerformedBy)
	return item, nil
}

// UpdateStatus 流转邮件状态。
func (s *MailItemService) UpdateStatus(id string, status domain.MailItemStatus, notes, performedBy string) (*domain.MailItem, error) {
	if performedBy == "" {
		return nil, ErrStaffRequired
	}
	if !domain.ValidMailItemStatus(status) {
		return nil, ErrInvalidStatus
	}

	item, err := s.store.GetMailItem(id)
	if err != nil {
		return nil, err
	}

	oldStatus := item.Status
	if oldStatus == status {
		return item, nil
	}

	item.Status = status
	item.UpdatedAt = time.Now()
	if err := s.store.UpdateMailItem(item); err != nil {
		return nil, err
	}

	s.appendHistory(item.ID, domain.ActionStatusChange, string(oldStatus), string(status), notes, performedBy)
	s.logger.Info("mail item status changed",
		zap.String("id", item.ID),
		zap.String("from", string(oldStatus)),
		zap.String("to", string(status)))
	return item, nil
}

// MarkNotified 记录一次成功的客户通知。
func (s *MailItemService) MarkNotified(id, performedBy string) (*domain.MailItem, error) {
	item, err := s.store.GetMailItem(id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	oldStatus := item.Status
	item.LastNotifiedAt = &now
	if item.Status == domain.MailStatusReceived || item.Status == domain.MailStatusScanned {
		item.Status = domain.MailStatusNotified
	}
	item.UpdatedAt = now

	if err := s.store.UpdateMailItem(item); err != nil {
		return nil, err
	}

	s.appendHistory(item.ID, domain.ActionNotified, string(oldStatus), string(item.Status), "", performedBy)
	return item, nil
}

// Delete 删除邮件记录。
func (s *MailItemService) Delete(id, performedBy string) error {
	if performedBy == "" {
		return ErrStaffRequired
	}
	item, err := s.store.GetMailItem(id)
	if err != nil {
		return err
	}

	s.appendHistory(item.ID, domain.ActionDeleted, string(item.Status), "", "", performedBy)
	return s.store.DeleteMailItem(id)
}

// History 返回一件邮件的操作历史。
func (s *MailItemService) History(id string) ([]domain.ActionHistory, error) {
	if _, err := s.store.GetMailItem(id); err != nil {
		return nil, err
	}
	return s.store.ListHistoryByMailItem(id)
}

// RecentActivity 返回全局最近操作历史。
func (s *MailItemService) RecentActivity(limit int) ([]domain.ActionHistory, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListRecentHistory(limit)
}

// appendHistory 追加历史记录，失败只记日志不影响主流程。
func (s *MailItemService) appendHistory(mailItemID string, action domain.ActionType, oldValue, newValue, notes, performedBy string) {
	entry := &domain.ActionHistory{
		ID:          uuid.NewString(),
		MailItemID:  mailItemID,
		Action:      action,
		OldValue:    oldValue,
		NewValue:    newValue,
		Notes:       notes,
		PerformedBy: performedBy,
		CreatedAt:   time.Now(),
	}
	if err := s.store.AppendHistory(entry); err != nil {
		s.logger.Error("failed to append action history",
			zap.String("mail_item", mailItemID),
			zap.Error(err))
	}
}
