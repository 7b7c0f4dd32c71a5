// room/manager.go
package room

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/wfunc/avalon/engine"
	"github.com/wfunc/avalon/game"
	"github.com/wfunc/avalon/logger"
	"github.com/wfunc/avalon/monitor"
	"github.com/wfunc/avalon/session"
	"github.com/wfunc/avalon/state"
)

// Options are the defaults every new lobby starts from.
type Options struct {
	Rules  game.Config
	Timing state.Timing
	Tick   time.Duration
	// IdleSweep is how often rooms without a lobby or game are removed.
	IdleSweep time.Duration
	// Shuffler, when set, seeds each new game. Tests use it to fix seating.
	Shuffler func() game.Shuffler
}

func DefaultOptions() Options {
	return Options{
		Rules:     game.DefaultConfig(),
		Timing:    state.DefaultTiming(),
		Tick:      100 * time.Millisecond,
		IdleSweep: time.Minute,
	}
}

// Manager 管理所有频道的房间，并记录每个用户所在的大厅或对局
type Manager struct {
	ctx         context.Context
	cancel      context.CancelFunc
	broadcaster Broadcaster
	recorder    Recorder
	timers      Timers
	metrics     *monitor.Metrics
	opts        Options
	sweepID     int64

	rooms      map[string]*Room
	players    map[string]*Room // userID -> room whose lobby or game seats the user
	closed     bool
	mutex      sync.RWMutex
	background sync.WaitGroup
}

// NewManager creates a room manager. recorder and timers may be nil; without
// timers a game only advances on Tick calls made by the caller and idle rooms
// are only removed by Reap.
func NewManager(ctx context.Context, broadcaster Broadcaster, recorder Recorder, timers Timers, metrics *monitor.Metrics, opts Options) *Manager {
	ctx, cancel := context.WithCancel(ctx)
	defaults := DefaultOptions()
	if opts.Tick <= 0 {
		opts.Tick = defaults.Tick
	}
	if opts.IdleSweep <= 0 {
		opts.IdleSweep = defaults.IdleSweep
	}
	m := &Manager{
		ctx:         ctx,
		cancel:      cancel,
		broadcaster: broadcaster,
		recorder:    recorder,
		timers:      timers,
		metrics:     metrics,
		opts:        opts,
		rooms:       make(map[string]*Room),
		players:     make(map[string]*Room),
	}
	if timers != nil {
		m.sweepID = timers.AddTimer(opts.IdleSweep, opts.IdleSweep, m.Reap)
	}
	return m
}

// Dispatch routes a chat event to the room that should see it. Direct
// messages go to the room seating the sender; a channel room is created on
// the first `play avalon|resistance`.
func (m *Manager) Dispatch(ev ChatEvent) {
	var r *Room
	if strings.HasPrefix(ev.Channel, session.DirectPrefix) {
		r = m.acquire(func() *Room { return m.players[ev.UserID] })
	} else {
		r = m.acquire(func() *Room { return m.rooms[ev.Channel] })
		if r == nil && playPattern.MatchString(strings.TrimSpace(ev.Text)) {
			r = m.getOrCreate(ev.Channel)
		}
	}
	if r != nil {
		r.post(ev)
	}
}

// acquire looks a room up and counts the event as pending while the lock is
// held, so Reap cannot remove the room between lookup and delivery.
func (m *Manager) acquire(find func() *Room) *Room {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	r := find()
	if r != nil {
		r.pending.Add(1)
	}
	return r
}

func (m *Manager) getOrCreate(channel string) *Room {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.closed {
		return nil
	}
	r, ok := m.rooms[channel]
	if !ok {
		r = newRoom(channel, m)
		m.rooms[channel] = r
		go r.loop()
		logger.Log.Debugw("room created", "channel", channel)
	}
	r.pending.Add(1)
	return r
}

// GetRoom 获取频道对应的房间
func (m *Manager) GetRoom(channel string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	r, ok := m.rooms[channel]
	return r, ok
}

// RemoveRoom closes a channel's room, cancelling its game silently.
func (m *Manager) RemoveRoom(channel string) {
	m.mutex.Lock()
	r, ok := m.rooms[channel]
	delete(m.rooms, channel)
	m.mutex.Unlock()

	if ok {
		r.Close()
		<-r.Done()
	}
}

// Reap closes rooms that have neither a lobby nor a game and no queued events.
func (m *Manager) Reap() {
	m.mutex.Lock()
	var idle []*Room
	for channel, r := range m.rooms {
		if r.idle.Load() && r.pending.Load() == 0 {
			delete(m.rooms, channel)
			idle = append(idle, r)
		}
	}
	m.mutex.Unlock()

	for _, r := range idle {
		r.Close()
		logger.Log.Debugw("idle room removed", "channel", r.Channel)
	}
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}

// Close stops every room and waits for pending archive writes and lookups.
func (m *Manager) Close() {
	m.mutex.Lock()
	if m.closed {
		m.mutex.Unlock()
		return
	}
	m.closed = true
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.rooms = make(map[string]*Room)
	m.mutex.Unlock()

	if m.timers != nil {
		m.timers.RemoveTimer(m.sweepID)
	}
	for _, r := range rooms {
		r.Close()
		<-r.Done()
	}
	m.cancel()
	m.background.Wait()
}

// playing returns the room whose lobby or game seats the user.
func (m *Manager) playing(userID string) *Room {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.players[userID]
}

// claim seats the user in r unless another room already holds them.
func (m *Manager) claim(r *Room, userID string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if other, ok := m.players[userID]; ok && other != r {
		return false
	}
	m.players[userID] = r
	return true
}

func (m *Manager) unregister(r *Room, userIDs ...string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for _, id := range userIDs {
		if m.players[id] == r {
			delete(m.players, id)
		}
	}
}

func playerIDs(players []*game.Player) []string {
	ids := make([]string, len(players))
	for i, p := range players {
		ids[i] = p.ID
	}
	return ids
}

// archive writes a finished game in the background; the room loop never waits
// on the database.
func (m *Manager) archive(channel string, result engine.Result) {
	if m.recorder == nil {
		return
	}
	m.background.Add(1)
	go func() {
		defer m.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := m.recorder.RecordGame(ctx, channel, result); err != nil {
			m.metrics.ArchiveErrors.Inc()
			logger.Log.Errorw("failed to archive game", "channel", channel, "game", result.GameID, "error", err)
		}
	}()
}
