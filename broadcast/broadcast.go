// broadcast/broadcast.go
package broadcast

import (
	"errors"
	"fmt"

	"github.com/wfunc/avalon/logger"
	"github.com/wfunc/avalon/network"
	"github.com/wfunc/avalon/session"
)

var (
	ErrNoRecipients = errors.New("no recipients")
)

// 广播接口
type Broadcaster interface {
	// ToChannel sends to every session that joined channel.
	ToChannel(channel string, msgID uint16, v interface{}) error
	// ToUser sends to every session of a user.
	ToUser(userID string, msgID uint16, v interface{}) error
}

// 基于会话的广播器
type SessionBroadcaster struct {
	sessionManager *session.Manager
}

func NewSessionBroadcaster(sessionManager *session.Manager) *SessionBroadcaster {
	return &SessionBroadcaster{sessionManager: sessionManager}
}

func (b *SessionBroadcaster) ToChannel(channel string, msgID uint16, v interface{}) error {
	return b.send(b.sessionManager.GetByChannel(channel), msgID, v)
}

func (b *SessionBroadcaster) ToUser(userID string, msgID uint16, v interface{}) error {
	return b.send(b.sessionManager.GetByUserID(userID), msgID, v)
}

func (b *SessionBroadcaster) send(sessions []*session.Session, msgID uint16, v interface{}) error {
	if len(sessions) == 0 {
		return ErrNoRecipients
	}
	data, err := network.Encode(v)
	if err != nil {
		return fmt.Errorf("broadcast %d: %w", msgID, err)
	}
	for _, s := range sessions {
		if err := s.Send(msgID, data); err != nil {
			// 发送失败由读循环负责清理会话
			logger.Log.Warnw("send failed", "session", s.ID, "msg", msgID, "error", err)
			continue
		}
	}
	return nil
}
