package service

import (
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"mailroom/backend/internal/domain"
	"mailroom/backend/internal/storage"
)

// MailLogGroup 邮件日志的一行：同联系人、同自然日、同类型的合并视图。
type MailLogGroup struct {
	ContactID      string              `json:"contactId"`
	ContactName    string              `json:"contactName"`
	Date           string              `json:"date"` // YYYY-MM-DD，按配置时区
	Type           domain.MailItemType `json:"type"`
	Quantity       int                 `json:"quantity"`
	DisplayStatus  string              `json:"displayStatus"`
	LastNotifiedAt *time.Time          `json:"lastNotifiedAt,omitempty"`
	ItemIDs        []string            `json:"itemIds"`
}

// 日志排序字段
const (
	SortByDate         = "date"
	SortByStatus       = "status"
	SortByCustomer     = "customer"
	SortByType         = "type"
	SortByQuantity     = "quantity"
	SortByLastNotified = "last_notified"
)

// MailLogService 生成前台邮件日志视图。
type MailLogService struct {
	store    storage.Store
	location *time.Location
	logger   *zap.Logger
}

// NewMailLogService 创建邮件日志服务。
func NewMailLogService(store storage.Store, location *time.Location, logger *zap.Logger) *MailLogService {
	if location == nil {
		location = time.Local
	}
	return &MailLogService{
		store:    store,
		location: location,
		logger:   logger,
	}
}

// Groups 按过滤条件返回分组后的日志行。
//
// 同一联系人同一天收到的同类型邮件合并为一行，数量累加；
// 各件状态不一致时显示为 "Mixed (...)"。
func (s *MailLogService) Groups(filter domain.MailItemFilter, sortBy string, descending bool) ([]MailLogGroup, error) {
	// 分组在内存完成，分页交给分组之后的调用方
	filter.Page = 0
	filter.PageSize = 0

	items, _, err := s.store.ListMailItems(filter)
	if err != nil {
		return nil, err
	}

	type groupKey struct {
		contactID string
		date      string
		itemType  domain.MailItemType
	}

	byKey := make(map[groupKey]*MailLogGroup)
	for _, item := range items {
		key := groupKey{
			contactID: item.ContactID,
			date:      item.ReceivedAt.In(s.location).Format("2006-01-02"),
			itemType:  item.Type,
		}

		group, ok := byKey[key]
		if !ok {
			group = &MailLogGroup{
				ContactID: item.ContactID,
				Date:      key.date,
				Type:      item.Type,
			}
			byKey[key] = group
		}

		group.Quantity += item.Quantity
		group.ItemIDs = append(group.ItemIDs, item.ID)
		group.DisplayStatus = mergeStatus(group.DisplayStatus, string(item.Status))
		if item.LastNotifiedAt != nil {
			if group.LastNotifiedAt == nil || item.LastNotifiedAt.After(*group.LastNotifiedAt) {
				group.LastNotifiedAt = item.LastNotifiedAt
			}
		}
	}

	groups := make([]MailLogGroup, 0, len(byKey))
	for _, g := range byKey {
		s.fillContactName(g)
		groups = append(groups, *g)
	}

	sortGroups(groups, sortBy, descending)
	return groups, nil
}

// fillContactName 补充联系人显示名，联系人已删除时退回 ID。
func (s *MailLogService) fillContactName(g *MailLogGroup) {
	contact, err := s.store.GetContact(g.ContactID)
	if err != nil {
		g.ContactName = g.ContactID
		return
	}
	g.ContactName = contact.PreferredName()
}

// mergeStatus 合并组内状态。
//
// 全部一致时保持原状态；出现分歧后固定为 "Mixed (最早状态/...)"
// 形式的提示，前台看到 Mixed 就知道要点开明细。
func mergeStatus(current, next string) string {
	if current == "" {
		return next
	}
	if current == next || strings.HasPrefix(current, "Mixed") {
		if strings.HasPrefix(current, "Mixed") && !strings.Contains(current, next) {
			return "Mixed (" + strings.TrimSuffix(strings.TrimPrefix(current, "Mixed ("), ")") + "/" + next + ")"
		}
		return current
	}
	return "Mixed (" + current + "/" + next + ")"
}

// sortGroups 按指定字段排序日志行。
//
// 从未通知过的行永远排在最后，与排序方向无关：这些是
// 最需要前台跟进的，不能淹没在中间。平局按联系人名和
// 日期字符串稳定决出。
func sortGroups(groups []MailLogGroup, sortBy string, descending bool) {
	less := func(a, b *MailLogGroup) bool {
		switch sortBy {
		case SortByStatus:
			return a.DisplayStatus < b.DisplayStatus
		case SortByCustomer:
			return a.ContactName < b.ContactName
		case SortByType:
			return a.Type < b.Type
		case SortByQuantity:
			return a.Quantity < b.Quantity
		case SortByLastNotified:
			an, bn := a.LastNotifiedAt, b.LastNotifiedAt
			if an == nil || bn == nil {
				// nil 的排序交给外层的 never-notified 规则
				return an != nil
			}
			return an.Before(*bn)
		default: // SortByDate
			return a.Date < b.Date
		}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		a, b := &groups[i], &groups[j]

		if sortBy == SortByLastNotified {
			// 从未通知的行固定垫底
			if (a.LastNotifiedAt == nil) != (b.LastNotifiedAt == nil) {
				return b.LastNotifiedAt == nil
			}
			if a.LastNotifiedAt == nil && b.LastNotifiedAt == nil {
				return tieBreak(a, b)
			}
		}

		if less(a, b) != less(b, a) {
			if descending {
				return less(b, a)
			}
			return less(a, b)
		}
		return tieBreak(a, b)
	})
}

// tieBreak 稳定平局：联系人名、日期、类型。
func tieBreak(a, b *MailLogGroup) bool {
	if a.ContactName != b.ContactName {
		return a.ContactName < b.ContactName
	}
	if a.Date != b.Date {
		return a.Date < b.Date
	}
	return a.Type < b.Type
}
