package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	sessionExpiryDurationMs = 12 * 60 * 60 * 1000 // 12 hours in milliseconds
	sessionsCleanupInterval = 1 * time.Hour
)

// SessionsService keeps the UI login sessions in memory: a restart logs everybody out.
type SessionsService struct {
	activeSessions map[string]int64
	expiryMs       int64
	mu             sync.RWMutex
	ticker         *time.Ticker
	done           chan struct{}
}

func NewSessionsService() *SessionsService {
	return newSessionsService(sessionExpiryDurationMs)
}

func newSessionsService(expiryMs int64) *SessionsService {
	ss := &SessionsService{
		activeSessions: make(map[string]int64),
		expiryMs:       expiryMs,
		ticker:         time.NewTicker(sessionsCleanupInterval),
		done:           make(chan struct{}),
	}

	go func() {
		for {
			select {
			case now := <-ss.ticker.C:
				ss.removeExpired(now.UnixMilli())
			case <-ss.done:
				return
			}
		}
	}()

	return ss
}

func (ss *SessionsService) CreateSession() (string, int64) {
	sessionId := uuid.NewString()
	expiresAt := time.Now().UnixMilli() + ss.expiryMs

	ss.mu.Lock()
	ss.activeSessions[sessionId] = expiresAt
	ss.mu.Unlock()

	return sessionId, expiresAt
}

func (ss *SessionsService) IsSessionValid(sessionId string) bool {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	if expiry, exists := ss.activeSessions[sessionId]; exists {
		return time.Now().UnixMilli() < expiry
	}
	return false
}

func (ss *SessionsService) InvalidateSession(sessionId string) {
	ss.mu.Lock()
	delete(ss.activeSessions, sessionId)
	ss.mu.Unlock()
}

func (ss *SessionsService) Close() error {
	ss.ticker.Stop()
	close(ss.done)
	return nil
}

func (ss *SessionsService) removeExpired(nowMs int64) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	for sessionId, expiry := range ss.activeSessions {
		if expiry < nowMs {
			delete(ss.activeSessions, sessionId)
		}
	}
}
