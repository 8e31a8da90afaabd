package memory

import (
	"time"

	"mailroom/backend/internal/domain"
	"mailroom/backend/internal/storage"
)

// SaveScanSession 保存扫描会话。
//
// TTL 由存储层记录，GetScanSession 读到过期会话时按不存在处理，
// DeleteExpiredScanSessions 做周期性物理清理。
func (s *Store) SaveScanSession(session *domain.ScanSession, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := cloneSession(session)
	s.sessions[session.ID] = &sessionEntry{
		Session:   copied,
		ExpiresAt: time.Now().Add(ttl),
	}
	s.byOperator[session.OperatorID] = session.ID
	return nil
}

// GetScanSession 根据 ID 获取扫描会话。
func (s *Store) GetScanSession(id string) (*domain.ScanSession, error) {
	s.mu.RLock()
	entry, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, storage.ErrScanSessionNotFound
	}
	if time.Now().After(entry.ExpiresAt) {
		s.mu.Lock()
		s.deleteSessionLocked(id)
		s.mu.Unlock()
		return nil, storage.ErrScanSessionNotFound
	}
	return cloneSession(entry.Session), nil
}

// GetScanSessionByOperator 获取指定操作员的扫描会话。
func (s *Store) GetScanSessionByOperator(operatorID string) (*domain.ScanSession, error) {
	s.mu.RLock()
	id, ok := s.byOperator[operatorID]
	s.mu.RUnlock()

	if !ok {
		return nil, storage.ErrScanSessionNotFound
	}
	return s.GetScanSession(id)
}

// DeleteScanSession 删除扫描会话。
func (s *Store) DeleteScanSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return storage.ErrScanSessionNotFound
	}
	s.deleteSessionLocked(id)
	return nil
}

// DeleteExpiredScanSessions 清理过期会话，返回清理数量。
func (s *Store) DeleteExpiredScanSessions() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	deleted := 0
	for id, entry := range s.sessions {
		if now.After(entry.ExpiresAt) {
			s.deleteSessionLocked(id)
			deleted++
		}
	}
	return deleted, nil
}

// deleteSessionLocked 删除会话及操作员索引，调用方需持写锁。
func (s *Store) deleteSessionLocked(id string) {
	if entry, ok := s.sessions[id]; ok {
		if s.byOperator[entry.Session.OperatorID] == id {
			delete(s.byOperator, entry.Session.OperatorID)
		}
	}
	delete(s.sessions, id)
}

// cloneSession 深拷贝会话，避免调用方修改到存储内部状态。
func cloneSession(session *domain.ScanSession) *domain.ScanSession {
	copied := *session
	copied.Items = make([]domain.ScannedItem, len(session.Items))
	copy(copied.Items, session.Items)
	return &copied
}
