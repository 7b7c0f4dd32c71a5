// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/wfunc/avalon/network"
)

// DirectPrefix marks a user's private channel with the server.
const DirectPrefix = "dm:"

// DirectChannel is the private channel id of a user.
func DirectChannel(userID string) string {
	return DirectPrefix + userID
}

type Session struct {
	ID         string
	Conn       network.Connection
	UserID     string
	Name       string
	CreatedAt  time.Time
	LastActive time.Time
	channels   map[string]bool
	mutex      sync.RWMutex
}

func NewSession(id string, conn network.Connection) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		LastActive: now,
		channels:   make(map[string]bool),
	}
}

// Identify binds the session to a chat user.
func (s *Session) Identify(userID, name string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.UserID = userID
	s.Name = name
}

func (s *Session) GetUserID() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.UserID
}

func (s *Session) GetName() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.Name
}

func (s *Session) Identified() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.UserID != ""
}

func (s *Session) Join(channel string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.channels[channel] = true
}

func (s *Session) Leave(channel string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.channels, channel)
}

func (s *Session) InChannel(channel string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.channels[channel]
}

func (s *Session) Send(msgID uint16, data []byte) error {
	s.mutex.Lock()
	s.LastActive = time.Now()
	s.mutex.Unlock()
	return s.Conn.Send(msgID, data)
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Session管理器
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

func (m *Manager) GetByUserID(userID string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.GetUserID() == userID {
			result = append(result, session)
		}
	}
	return result
}

// GetByChannel returns every session that joined channel.
func (m *Manager) GetByChannel(channel string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.InChannel(channel) {
			result = append(result, session)
		}
	}
	return result
}
