package room

import (
	"context"
	"time"

	"github.com/wfunc/avalon/engine"
)

// Broadcaster delivers packets to channel members and to single users.
// This is defined here to break the import cycle between room and broadcast.
type Broadcaster interface {
	ToChannel(channel string, msgID uint16, v interface{}) error
	ToUser(userID string, msgID uint16, v interface{}) error
}

// Recorder archives finished games and answers `stats`.
type Recorder interface {
	RecordGame(ctx context.Context, channel string, r engine.Result) error
	Summary(ctx context.Context, userID, name string) (string, error)
}

// Timers schedules the repeating tick of a running game.
type Timers interface {
	AddTimer(delay time.Duration, interval time.Duration, callback func()) int64
	RemoveTimer(timerID int64)
}

// ChatEvent is one inbound chat message as seen by the gateway.
type ChatEvent struct {
	UserID   string
	Name     string
	Channel  string
	Text     string
	Received time.Time
}
