package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailroom/backend/internal/ai"
	"mailroom/backend/internal/config"
	"mailroom/backend/internal/domain"
	"mailroom/backend/internal/match"
	"mailroom/backend/internal/monitoring"
	"mailroom/backend/internal/ocr"
	"mailroom/backend/internal/photostore"
	"mailroom/backend/internal/pool"
	"mailroom/backend/internal/storage"
)

var (
	// ErrNoActiveSession 操作员没有进行中的扫描会话（或会话已过期被丢弃）
	ErrNoActiveSession = errors.New("没有进行中的扫描会话")
	// ErrBatchTooLarge 批量照片数超过上限
	ErrBatchTooLarge = errors.New("批量照片数超过上限")
	// ErrEmptyBatch 批量请求未携带任何照片
	ErrEmptyBatch = errors.New("批量请求未携带照片")
	// ErrSessionEmpty 会话内没有任何拍摄条目
	ErrSessionEmpty = errors.New("扫描会话为空")
	// ErrItemNotFound 会话内找不到指定的拍摄条目
	ErrItemNotFound = errors.New("拍摄条目不存在")
	// ErrNothingToSubmit 会话内没有已确认匹配的条目
	ErrNothingToSubmit = errors.New("没有可提交的已匹配条目")
)

// ocrWorkers 批量 OCR 兜底的并发上限
const ocrWorkers = 3

// Recognizer AI 智能匹配客户端
type Recognizer interface {
	SmartMatch(ctx context.Context, imageData []byte, contacts []domain.Contact) *ai.Result
	SmartMatchBatch(ctx context.Context, images [][]byte, contacts []domain.Contact) []ai.Result
}

// TextReader OCR 文本识别客户端
type TextReader interface {
	Recognize(ctx context.Context, imageData []byte) (*ocr.Result, error)
}

// ContactSource 提供活跃联系人花名册
type ContactSource interface {
	ActiveRoster() ([]domain.Contact, error)
}

// ProgressNotifier 向前端推送扫描进度（WebSocket）
type ProgressNotifier interface {
	Publish(operatorID string, event ProgressEvent)
}

// NotifyFunc 提交后触发取件通知的回调
type NotifyFunc func(ctx context.Context, contactID string, itemIDs []string, performedBy string) error

// ProgressEvent 扫描进度事件
type ProgressEvent struct {
	Type      string              `json:"type"` // item_processed / batch_done / session_submitted
	SessionID string              `json:"sessionId"`
	Item      *domain.ScannedItem `json:"item,omitempty"`
	Index     int                 `json:"index,omitempty"`
	Total     int                 `json:"total,omitempty"`
}

// SubmitResult 提交扫描会话的结果汇总
type SubmitResult struct {
	ItemsCreated int                       `json:"itemsCreated"`
	Skipped      int                       `json:"skipped"` // 未匹配被跳过的条目数
	Groups       []domain.ScanSummaryGroup `json:"groups"`
	Notified     int                       `json:"notified"`
}

// Service 扫描会话编排服务。
//
// 会话持久化在存储层（Redis TTL 或内存），每次变更立即写回，
// 进程重启后操作员可恢复未提交的批次。识别链路：AI 智能匹配
// 优先，AI 不可用或出错时退回 OCR + 模糊匹配，OCR 也失败的
// 照片标记为 failed，由人工在前端指定联系人。
type Service struct {
	store    storage.Store
	contacts ContactSource
	ai       Recognizer // nil 时直接走 OCR 兜底
	ocr      TextReader // nil 时没有兜底，AI 失败即 failed
	photos   photostore.Store
	notifier ProgressNotifier // 可选
	notify   NotifyFunc       // 可选，提交后触发取件通知
	metrics  *monitoring.Metrics
	cfg      config.ScanConfig
	logger   *zap.Logger
}

// NewService 创建扫描会话服务。recognizer、reader、photos 均可为 nil。
func NewService(store storage.Store, contacts ContactSource, recognizer Recognizer, reader TextReader, photos photostore.Store, cfg config.ScanConfig, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		contacts: contacts,
		ai:       recognizer,
		ocr:      reader,
		photos:   photos,
		cfg:      cfg,
		logger:   logger,
	}
}

// SetNotifier 设置进度推送
func (s *Service) SetNotifier(n ProgressNotifier) {
	s.notifier = n
}

// SetNotifyFunc 设置提交后的取件通知回调
func (s *Service) SetNotifyFunc(fn NotifyFunc) {
	s.notify = fn
}

// SetMetrics 设置监控指标
func (s *Service) SetMetrics(m *monitoring.Metrics) {
	s.metrics = m
}

// Start 开始扫描会话。操作员已有未过期会话时直接返回该会话。
func (s *Service) Start(operatorID string) (*domain.ScanSession, error) {
	if existing, err := s.load(operatorID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNoActiveSession) {
		return nil, err
	}

	now := time.Now()
	session := &domain.ScanSession{
		ID:         uuid.New().String(),
		OperatorID: operatorID,
		StartedAt:  now,
		ExpiresAt:  now.Add(s.cfg.SessionTTL),
		Items:      []domain.ScannedItem{},
	}
	if err := s.store.SaveScanSession(session, s.cfg.SessionTTL); err != nil {
		return nil, fmt.Errorf("保存扫描会话失败: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordScanSessionStarted()
	}
	s.logger.Info("扫描会话已创建",
		zap.String("session_id", session.ID),
		zap.String("operator_id", operatorID))
	return session, nil
}

// Resume 恢复操作员的进行中会话。
//
// 第二个返回值表示本次是否需要向前端展示“已恢复”提示：
// 只在会话带有内容且尚未提示过时为 true，之后该标记落盘，
// 同一会话不会重复提示。
func (s *Service) Resume(operatorID string) (*domain.ScanSession, bool, error) {
	session, err := s.load(operatorID)
	if err != nil {
		return nil, false, err
	}

	if session.ResumeNotified || len(session.Items) == 0 {
		return session, false, nil
	}
	session.ResumeNotified = true
	if err := s.save(session); err != nil {
		return nil, false, err
	}
	return session, true, nil
}

// Capture 处理单张照片：识别、匹配、归档，并追加到会话。
func (s *Service) Capture(ctx context.Context, operatorID string, imageData []byte) (*domain.ScannedItem, error) {
	session, err := s.load(operatorID)
	if err != nil {
		return nil, err
	}

	roster, err := s.roster()
	if err != nil {
		return nil, err
	}

	item := s.processPhoto(ctx, imageData, roster, s.cfg.AutoAccept)
	s.archivePhoto(ctx, session, &item, imageData)

	session.Items = append(session.Items, item)
	if err := s.save(session); err != nil {
		return nil, err
	}

	s.publish(operatorID, ProgressEvent{
		Type:      "item_processed",
		SessionID: session.ID,
		Item:      &item,
		Index:     1,
		Total:     1,
	})
	return &item, nil
}

// CaptureBatch 批量处理照片。
//
// 超过上限的批次在任何识别开始前整体拒绝。所有照片合并为
// 一次 AI 调用，AI 失败的照片并发走 OCR 兜底。
func (s *Service) CaptureBatch(ctx context.Context, operatorID string, images [][]byte) ([]domain.ScannedItem, error) {
	if len(images) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(images) > s.cfg.MaxBatchSize {
		return nil, fmt.Errorf("%w: %d 张，上限 %d 张", ErrBatchTooLarge, len(images), s.cfg.MaxBatchSize)
	}

	session, err := s.load(operatorID)
	if err != nil {
		return nil, err
	}
	roster, err := s.roster()
	if err != nil {
		return nil, err
	}

	items := make([]domain.ScannedItem, len(images))
	now := time.Now()
	for i := range items {
		items[i] = domain.ScannedItem{
			ID:         uuid.New().String(),
			ItemType:   domain.MailItemLetter,
			CapturedAt: now,
		}
	}

	// 需要 OCR 兜底的照片下标
	fallback := make([]int, 0, len(images))

	if s.ai != nil {
		start := time.Now()
		results := s.ai.SmartMatchBatch(ctx, images, roster)
		elapsed := time.Since(start)
		for i := range results {
			if results[i].Error != "" {
				fallback = append(fallback, i)
				continue
			}
			s.applyAIResult(&items[i], &results[i], s.cfg.BatchAccept)
			s.recordItem(&items[i], elapsed/time.Duration(len(results)))
		}
	} else {
		for i := range images {
			fallback = append(fallback, i)
		}
	}

	if len(fallback) > 0 {
		workers := pool.NewWorkerPool(ocrWorkers, len(fallback))
		workers.Start(ctx)
		for _, i := range fallback {
			i := i
			workers.Submit(func() {
				start := time.Now()
				s.ocrFallback(ctx, &items[i], images[i], roster, s.cfg.BatchAccept)
				s.recordItem(&items[i], time.Since(start))
			})
		}
		workers.Stop()
	}

	for i := range items {
		s.archivePhoto(ctx, session, &items[i], images[i])
		session.Items = append(session.Items, items[i])
	}
	if err := s.save(session); err != nil {
		return nil, err
	}

	for i := range items {
		s.publish(operatorID, ProgressEvent{
			Type:      "item_processed",
			SessionID: session.ID,
			Item:      &items[i],
			Index:     i + 1,
			Total:     len(items),
		})
	}
	s.publish(operatorID, ProgressEvent{Type: "batch_done", SessionID: session.ID, Total: len(items)})
	return items, nil
}

// Resolve 人工指定条目的联系人（处理 uncertain/failed 条目）。
func (s *Service) Resolve(operatorID, itemID, contactID string, itemType domain.MailItemType) (*domain.ScannedItem, error) {
	session, err := s.load(operatorID)
	if err != nil {
		return nil, err
	}
	idx := session.FindItem(itemID)
	if idx < 0 {
		return nil, ErrItemNotFound
	}
	if _, err := s.store.GetContact(contactID); err != nil {
		return nil, err
	}

	item := &session.Items[idx]
	item.ContactID = contactID
	item.Status = domain.ScanItemMatched
	item.Source = domain.ScanSourceManual
	item.Confidence = 1.0
	item.MatchedField = ""
	item.Error = ""
	if domain.ValidMailItemType(itemType) {
		item.ItemType = itemType
	}

	if err := s.save(session); err != nil {
		return nil, err
	}
	return item, nil
}

// RemoveItem 从会话中移除一个拍摄条目，并清理已归档的照片。
func (s *Service) RemoveItem(ctx context.Context, operatorID, itemID string) error {
	session, err := s.load(operatorID)
	if err != nil {
		return err
	}
	idx := session.FindItem(itemID)
	if idx < 0 {
		return ErrItemNotFound
	}

	if key := session.Items[idx].PhotoKey; key != "" && s.photos != nil {
		if err := s.photos.Delete(ctx, key); err != nil {
			s.logger.Warn("删除归档照片失败", zap.String("key", key), zap.Error(err))
		}
	}
	session.Items = append(session.Items[:idx], session.Items[idx+1:]...)
	return s.save(session)
}

// End 结束会话，返回按联系人分组的确认摘要。会话保持有效，
// 直到 Submit 或 Cancel。
func (s *Service) End(operatorID string) ([]domain.ScanSummaryGroup, error) {
	session, err := s.load(operatorID)
	if err != nil {
		return nil, err
	}
	if len(session.Items) == 0 {
		return nil, ErrSessionEmpty
	}
	return session.Summarize(), nil
}

// Submit 将会话内已匹配的条目批量落库为邮件记录。
//
// 落库在一个事务内完成：任一条目失败则整体回滚，会话原样
// 保留，操作员可修正后重试。成功后删除会话；未匹配的条目
// 不入库，计入 Skipped。skipNotification 为 false 时按联系人
// 触发取件通知，通知失败只记日志，不影响提交结果。
func (s *Service) Submit(ctx context.Context, operatorID string, skipNotification bool) (*SubmitResult, error) {
	session, err := s.load(operatorID)
	if err != nil {
		return nil, err
	}

	matched := session.MatchedItems()
	if len(matched) == 0 {
		return nil, ErrNothingToSubmit
	}

	// 邮件记录和历史按员工名归属
	loggedBy := operatorID
	if user, err := s.store.GetUserByID(operatorID); err == nil {
		loggedBy = user.Username
	}

	now := time.Now()
	items := make([]domain.MailItem, 0, len(matched))
	histories := make([]domain.ActionHistory, 0, len(matched))
	itemIDsByContact := make(map[string][]string)
	for _, scanned := range matched {
		mailItem := domain.MailItem{
			ID:         uuid.New().String(),
			ContactID:  scanned.ContactID,
			Type:       scanned.ItemType,
			Quantity:   1,
			Status:     domain.MailStatusScanned,
			ReceivedAt: scanned.CapturedAt,
			LoggedBy:   loggedBy,
			PhotoKey:   scanned.PhotoKey,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		items = append(items, mailItem)
		histories = append(histories, domain.ActionHistory{
			ID:          uuid.New().String(),
			MailItemID:  mailItem.ID,
			Action:      domain.ActionScanned,
			NewValue:    string(domain.MailStatusScanned),
			Notes:       fmt.Sprintf("扫描批次 %s 录入（来源 %s，置信度 %.2f）", session.ID, scanned.Source, scanned.Confidence),
			PerformedBy: loggedBy,
			CreatedAt:   now,
		})
		itemIDsByContact[scanned.ContactID] = append(itemIDsByContact[scanned.ContactID], mailItem.ID)
	}

	if err := s.store.CreateMailItems(items, histories); err != nil {
		return nil, fmt.Errorf("提交扫描批次失败: %w", err)
	}

	result := &SubmitResult{
		ItemsCreated: len(items),
		Skipped:      len(session.Items) - len(matched),
		Groups:       session.Summarize(),
	}
	if s.metrics != nil {
		for _, item := range items {
			s.metrics.RecordMailItemLogged(string(item.Type), "scan")
		}
	}

	if err := s.store.DeleteScanSession(session.ID); err != nil {
		s.logger.Warn("删除已提交的扫描会话失败",
			zap.String("session_id", session.ID), zap.Error(err))
	}

	if !skipNotification && s.notify != nil {
		for contactID, itemIDs := range itemIDsByContact {
			if err := s.notify(ctx, contactID, itemIDs, operatorID); err != nil {
				s.logger.Warn("扫描提交后的取件通知失败",
					zap.String("contact_id", contactID), zap.Error(err))
				continue
			}
			result.Notified++
		}
	}

	s.publish(operatorID, ProgressEvent{Type: "session_submitted", SessionID: session.ID, Total: result.ItemsCreated})
	s.logger.Info("扫描会话已提交",
		zap.String("session_id", session.ID),
		zap.Int("created", result.ItemsCreated),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

// Cancel 放弃会话，清理归档照片。
func (s *Service) Cancel(ctx context.Context, operatorID string) error {
	session, err := s.store.GetScanSessionByOperator(operatorID)
	if err != nil {
		if errors.Is(err, storage.ErrScanSessionNotFound) {
			return ErrNoActiveSession
		}
		return err
	}

	if s.photos != nil {
		for _, item := range session.Items {
			if item.PhotoKey == "" {
				continue
			}
			if err := s.photos.Delete(ctx, item.PhotoKey); err != nil {
				s.logger.Warn("删除归档照片失败", zap.String("key", item.PhotoKey), zap.Error(err))
			}
		}
	}
	return s.store.DeleteScanSession(session.ID)
}

// Sweep 清理过期会话，返回清理数量。由后台定时任务周期调用。
func (s *Service) Sweep() (int, error) {
	n, err := s.store.DeleteExpiredScanSessions()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		if s.metrics != nil {
			s.metrics.RecordScanSessionExpired(n)
		}
		s.logger.Info("已清理过期扫描会话", zap.Int("count", n))
	}
	return n, nil
}

// load 取回操作员的会话；过期会话就地丢弃。
func (s *Service) load(operatorID string) (*domain.ScanSession, error) {
	session, err := s.store.GetScanSessionByOperator(operatorID)
	if err != nil {
		if errors.Is(err, storage.ErrScanSessionNotFound) {
			return nil, ErrNoActiveSession
		}
		return nil, err
	}
	if session.Expired(time.Now()) {
		if err := s.store.DeleteScanSession(session.ID); err != nil {
			s.logger.Warn("删除过期扫描会话失败", zap.String("session_id", session.ID), zap.Error(err))
		}
		if s.metrics != nil {
			s.metrics.RecordScanSessionExpired(1)
		}
		return nil, ErrNoActiveSession
	}
	return session, nil
}

// save 写回会话，保留原始过期时间对应的剩余 TTL。
func (s *Service) save(session *domain.ScanSession) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return ErrNoActiveSession
	}
	if err := s.store.SaveScanSession(session, ttl); err != nil {
		return fmt.Errorf("保存扫描会话失败: %w", err)
	}
	return nil
}

func (s *Service) roster() ([]domain.Contact, error) {
	contacts, err := s.contacts.ActiveRoster()
	if err != nil {
		return nil, fmt.Errorf("加载联系人失败: %w", err)
	}
	return contacts, nil
}

// processPhoto 识别单张照片。AI 优先，失败退回 OCR 兜底。
func (s *Service) processPhoto(ctx context.Context, imageData []byte, roster []domain.Contact, threshold float64) domain.ScannedItem {
	start := time.Now()
	item := domain.ScannedItem{
		ID:         uuid.New().String(),
		ItemType:   domain.MailItemLetter,
		CapturedAt: time.Now(),
	}

	if s.ai != nil {
		result := s.ai.SmartMatch(ctx, imageData, roster)
		if result.Error == "" {
			s.applyAIResult(&item, result, threshold)
			s.recordItem(&item, time.Since(start))
			return item
		}
		s.logger.Warn("AI 识别失败，转入 OCR 兜底",
			zap.String("error", result.Error),
			zap.Bool("rate_limited", result.RateLimited))
	}

	s.ocrFallback(ctx, &item, imageData, roster, threshold)
	s.recordItem(&item, time.Since(start))
	return item
}

// applyAIResult 把 AI 识别结果套用到条目上。
func (s *Service) applyAIResult(item *domain.ScannedItem, result *ai.Result, threshold float64) {
	item.Source = domain.ScanSourceAI
	item.ExtractedText = result.ExtractedText
	item.Confidence = result.Confidence
	if t := domain.MailItemType(result.ItemType); domain.ValidMailItemType(t) {
		item.ItemType = t
	}

	if result.ContactID != "" && result.Confidence >= threshold {
		item.ContactID = result.ContactID
		item.Status = domain.ScanItemMatched
		return
	}
	// 低置信度候选保留在 ContactID 上，前端据此预选待确认项
	item.ContactID = result.ContactID
	item.Status = domain.ScanItemUncertain
}

// ocrFallback OCR 识别 + 模糊匹配兜底。OCR 不可用或识别失败时
// 条目标记为 failed，会话继续。
func (s *Service) ocrFallback(ctx context.Context, item *domain.ScannedItem, imageData []byte, roster []domain.Contact, threshold float64) {
	item.Source = domain.ScanSourceOCR

	if s.ocr == nil {
		item.Status = domain.ScanItemFailed
		item.Error = "识别服务未配置"
		return
	}

	result, err := s.ocr.Recognize(ctx, imageData)
	if err != nil {
		item.Status = domain.ScanItemFailed
		item.Error = fmt.Sprintf("OCR 识别失败: %v", err)
		return
	}

	candidates := ocr.ExtractRecipient(result.Text)
	if len(candidates) == 0 {
		item.Status = domain.ScanItemFailed
		item.Error = "未能从照片文本中提取收件人"
		return
	}
	item.ExtractedText = candidates[0]

	var best *match.Match
	for _, candidate := range candidates {
		if m := match.MatchContact(candidate, roster); m != nil {
			if best == nil || m.Confidence > best.Confidence {
				best = m
				item.ExtractedText = candidate
			}
		}
	}
	if best == nil {
		item.Status = domain.ScanItemUncertain
		return
	}

	item.ContactID = best.Contact.ID
	item.MatchedField = string(best.Field)
	item.Confidence = best.Confidence
	if best.Confidence >= threshold {
		item.Status = domain.ScanItemMatched
		return
	}
	item.Status = domain.ScanItemUncertain
}

// archivePhoto 把原始照片写入归档存储。归档失败不阻塞识别流程。
func (s *Service) archivePhoto(ctx context.Context, session *domain.ScanSession, item *domain.ScannedItem, imageData []byte) {
	if s.photos == nil {
		return
	}
	key := photostore.PhotoKey(session.ID, item.ID, item.CapturedAt)
	if err := s.photos.Save(ctx, key, imageData, "image/jpeg"); err != nil {
		s.logger.Warn("归档照片失败", zap.String("key", key), zap.Error(err))
		return
	}
	item.PhotoKey = key
}

func (s *Service) recordItem(item *domain.ScannedItem, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordScanItem(string(item.Source), string(item.Status), elapsed)
}

func (s *Service) publish(operatorID string, event ProgressEvent) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(operatorID, event)
}
