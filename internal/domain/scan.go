package domain

import (
	"time"
)

// ScanItemStatus 单次拍摄条目的识别状态
type ScanItemStatus string

const (
	ScanItemMatched   ScanItemStatus = "matched"   // 已自动匹配到联系人
	ScanItemUncertain ScanItemStatus = "uncertain" // 置信度不足，等待人工确认
	ScanItemFailed    ScanItemStatus = "failed"    // 识别失败，需要手工录入
)

// ScanSource 识别结果的来源
type ScanSource string

const (
	ScanSourceAI     ScanSource = "ai"     // AI 智能匹配
	ScanSourceOCR    ScanSource = "ocr"    // OCR + 模糊匹配兜底
	ScanSourceManual ScanSource = "manual" // 人工指定
)

// ScannedItem 表示扫描会话中的一次拍摄结果。
// 仅在会话生命周期内存在，提交时转换为 MailItem。
type ScannedItem struct {
	ID            string         `json:"id"`
	PhotoKey      string         `json:"photoKey,omitempty"` // 照片归档键（photostore）
	ExtractedText string         `json:"extractedText"`
	ContactID     string         `json:"contactId,omitempty"`
	MatchedField  string         `json:"matchedField,omitempty"`
	Confidence    float64        `json:"confidence"`
	Status        ScanItemStatus `json:"status"`
	Source        ScanSource     `json:"source"`
	ItemType      MailItemType   `json:"itemType"`
	Error         string         `json:"error,omitempty"`
	CapturedAt    time.Time      `json:"capturedAt"`
}

// ScanSession 表示一个限时的扫描批次会话。
//
// 不变式：会话自创建起 4 小时后过期，无论内容如何都会被丢弃。
// 每次变更都会持久化（Redis TTL 或内存），进程重启后可恢复。
type ScanSession struct {
	ID             string        `json:"id"`
	OperatorID     string        `json:"operatorId"`
	StartedAt      time.Time     `json:"startedAt"`
	ExpiresAt      time.Time     `json:"expiresAt"`
	Items          []ScannedItem `json:"items"`
	ResumeNotified bool          `json:"resumeNotified"` // 恢复提示只下发一次
	Submitted      bool          `json:"submitted"`
}

// Expired 会话是否已过期。
func (s *ScanSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// MatchedItems 返回已确认匹配的条目。
func (s *ScanSession) MatchedItems() []ScannedItem {
	out := make([]ScannedItem, 0, len(s.Items))
	for _, item := range s.Items {
		if item.Status == ScanItemMatched && item.ContactID != "" {
			out = append(out, item)
		}
	}
	return out
}

// PendingItems 返回等待人工确认的条目（按拍摄顺序）。
func (s *ScanSession) PendingItems() []ScannedItem {
	out := make([]ScannedItem, 0)
	for _, item := range s.Items {
		if item.Status == ScanItemUncertain {
			out = append(out, item)
		}
	}
	return out
}

// FindItem 根据 ID 定位条目，返回索引；未找到返回 -1。
func (s *ScanSession) FindItem(itemID string) int {
	for i := range s.Items {
		if s.Items[i].ID == itemID {
			return i
		}
	}
	return -1
}

// ScanSummaryGroup 结束会话时按联系人汇总的确认摘要。
type ScanSummaryGroup struct {
	ContactID string        `json:"contactId"`
	Letters   int           `json:"letters"`
	Packages  int           `json:"packages"`
	Items     []ScannedItem `json:"items"`
}

// Summarize 按联系人分组生成确认摘要。
func (s *ScanSession) Summarize() []ScanSummaryGroup {
	index := make(map[string]int)
	groups := make([]ScanSummaryGroup, 0)
	for _, item := range s.MatchedItems() {
		i, ok := index[item.ContactID]
		if !ok {
			i = len(groups)
			index[item.ContactID] = i
			groups = append(groups, ScanSummaryGroup{ContactID: item.ContactID})
		}
		groups[i].Items = append(groups[i].Items, item)
		if item.ItemType == MailItemPackage {
			groups[i].Packages++
		} else {
			groups[i].Letters++
		}
	}
	return groups
}
