package service

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mailroom/backend/internal/domain"
	"mailroom/backend/internal/notify"
	"mailroom/backend/internal/storage"
)

var (
	ErrContactNoEmail    = errors.New("contact has no email address")
	ErrNotifyRateLimited = errors.New("notification rate limit reached for this contact")
	ErrNothingToNotify   = errors.New("no pending mail items for this contact")
)

// NotificationService 封装客户取件通知业务。
//
// 通知从员工授权的 Gmail 账号发出，同一联系人的发送频率
// 有上限，避免批量操作时轰炸客户邮箱。
type NotificationService struct {
	store     storage.Store
	mailer    *notify.Mailer
	oauth     *GmailOAuthService
	mailItems *MailItemService
	rateLimit int
	logger    *zap.Logger
}

// NewNotificationService 创建通知业务服务。
func NewNotificationService(
	store storage.Store,
	mailer *notify.Mailer,
	oauth *GmailOAuthService,
	mailItems *MailItemService,
	rateLimit int,
	logger *zap.Logger,
) *NotificationService {
	if rateLimit <= 0 {
		rateLimit = 5
	}
	return &NotificationService{
		store:     store,
		mailer:    mailer,
		oauth:     oauth,
		mailItems: mailItems,
		rateLimit: rateLimit,
		logger:    logger,
	}
}

// NotifyContact 给联系人发送取件通知。
//
// operatorID 是当前登录员工的账号 ID，发信凭证按该 ID 查找；
// itemIDs 为空时通知该联系人所有待取件；发送成功后逐件
// 标记已通知并写历史。
func (s *NotificationService) NotifyContact(contactID string, itemIDs []string, operatorID string) ([]domain.MailItem, error) {
	if operatorID == "" {
		return nil, ErrStaffRequired
	}

	// 历史记录按员工名归属
	performedBy := operatorID
	if user, err := s.store.GetUserByID(operatorID); err == nil {
		performedBy = user.Username
	}

	contact, err := s.store.GetContact(contactID)
	if err != nil {
		return nil, err
	}
	if contact.Email == "" {
		return nil, ErrContactNoEmail
	}

	items, err := s.pendingItems(contactID, itemIDs)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNothingToNotify
	}

	// 每联系人每小时限流
	count, err := s.store.IncrementRateLimit("notify:"+contactID, time.Hour)
	if err != nil {
		s.logger.Warn("rate limit check failed, allowing notification", zap.Error(err))
	} else if count > int64(s.rateLimit) {
		return nil, ErrNotifyRateLimited
	}

	account, token, err := s.oauth.SenderCredentials(operatorID)
	if err != nil {
		return nil, err
	}

	notice := &notify.PickupNotice{
		ContactName: contact.PreferredName(),
		Items:       items,
	}
	err = s.mailer.Send(&notify.Message{
		FromAddress: account,
		AccessToken: token,
		To:          contact.Email,
		ToName:      contact.PreferredName(),
		Subject:     notice.Subject(),
		TextBody:    notice.TextBody(),
		HTMLBody:    notice.HTMLBody(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send notification: %w", err)
	}

	notified := make([]domain.MailItem, 0, len(items))
	for _, item := range items {
		updated, err := s.mailItems.MarkNotified(item.ID, performedBy)
		if err != nil {
			s.logger.Error("failed to mark item notified",
				zap.String("item", item.ID), zap.Error(err))
			continue
		}
		notified = append(notified, *updated)
	}

	s.logger.Info("pickup notification sent",
		zap.String("contact", contactID),
		zap.Int("items", len(notified)))
	return notified, nil
}

// pendingItems 收集要通知的邮件。
func (s *NotificationService) pendingItems(contactID string, itemIDs []string) ([]domain.MailItem, error) {
	if len(itemIDs) > 0 {
		items := make([]domain.MailItem, 0, len(itemIDs))
		for _, id := range itemIDs {
			item, err := s.store.GetMailItem(id)
			if err != nil {
				return nil, err
			}
			if item.ContactID != contactID {
				return nil, fmt.Errorf("mail item %s does not belong to contact %s", id, contactID)
			}
			items = append(items, *item)
		}
		return items, nil
	}

	var pending []domain.MailItem
	for _, status := range []domain.MailItemStatus{domain.MailStatusReceived, domain.MailStatusScanned} {
		items, _, err := s.store.ListMailItems(domain.MailItemFilter{
			ContactID: contactID,
			Status:    status,
		})
		if err != nil {
			return nil, err
		}
		pending = append(pending, items...)
	}
	return pending, nil
}
