// room/room.go
package room

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/wfunc/avalon/engine"
	"github.com/wfunc/avalon/game"
	"github.com/wfunc/avalon/logger"
	"github.com/wfunc/avalon/network"
	"github.com/wfunc/avalon/session"
	"github.com/wfunc/avalon/state"
)

var ErrGameInProgress = errors.New("game in progress")

var (
	playPattern    = regexp.MustCompile(`(?i)^play (avalon|resistance)\b`)
	yesPattern     = regexp.MustCompile(`(?i)\byes\b`)
	includePattern = regexp.MustCompile(`(?i)^include\s+(.+)`)
	excludePattern = regexp.MustCompile(`(?i)^exclude\s+(.+)`)
	startPattern   = regexp.MustCompile(`(?i)^start( game)?$`)
	watchPattern   = regexp.MustCompile(`(?i)^watch$`)
	statsPattern   = regexp.MustCompile(`(?i)^stats$`)
	quitPattern    = regexp.MustCompile(`(?i)^quit game`)
)

// Room 一个聊天频道：大厅、进行中的对局和观战者。
// 所有事件都在 loop 的单个 goroutine 里顺序处理，engine 不需要加锁。
type Room struct {
	Channel string
	manager *Manager

	lobby      *Lobby
	engine     *engine.Engine
	players    []*game.Player
	spectators map[string]string // userID -> name
	timerID    int64
	lastTick   time.Time

	events    chan ChatEvent
	ticks     chan time.Time
	calls     chan func()
	closeChan chan struct{}
	closeOnce sync.Once
	done      chan struct{}

	// pending counts events routed to the room but not yet handled; the
	// manager only reaps an idle room with nothing pending.
	pending atomic.Int64
	idle    atomic.Bool
}

func newRoom(channel string, manager *Manager) *Room {
	return &Room{
		Channel:    channel,
		manager:    manager,
		spectators: make(map[string]string),
		events:     make(chan ChatEvent, 64),
		ticks:      make(chan time.Time, 1),
		calls:      make(chan func()),
		closeChan:  make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Post queues a chat event for the room's loop.
func (r *Room) Post(ev ChatEvent) {
	r.pending.Add(1)
	r.post(ev)
}

// post delivers an event already counted in pending.
func (r *Room) post(ev ChatEvent) {
	select {
	case r.events <- ev:
	case <-r.closeChan:
		r.pending.Add(-1)
	}
}

// run executes fn on the loop goroutine. Callers add to pending first.
func (r *Room) run(fn func()) {
	select {
	case r.calls <- fn:
	case <-r.closeChan:
		r.pending.Add(-1)
	}
}

// Close stops the loop, silently cancelling a running game.
func (r *Room) Close() {
	r.closeOnce.Do(func() { close(r.closeChan) })
}

// Done is closed once the loop has exited.
func (r *Room) Done() <-chan struct{} {
	return r.done
}

// loop 是房间的主循环
func (r *Room) loop() {
	defer close(r.done)
	for {
		select {
		case ev := <-r.events:
			r.handle(ev)
			r.settle()
		case fn := <-r.calls:
			fn()
			r.settle()
		case now := <-r.ticks:
			r.tick(now)
			r.idle.Store(r.isIdle())
		case <-r.closeChan:
			r.shutdown()
			return
		}
	}
}

// settle publishes idleness before releasing the handled event.
func (r *Room) settle() {
	r.idle.Store(r.isIdle())
	r.pending.Add(-1)
}

func (r *Room) isIdle() bool {
	return r.lobby == nil && r.engine == nil
}

// signalTick runs on the timer goroutine; ticks coalesce when the loop is busy.
func (r *Room) signalTick() {
	select {
	case r.ticks <- time.Now():
	default:
	}
}

func (r *Room) tick(now time.Time) {
	if r.engine == nil {
		return
	}
	elapsed := now.Sub(r.lastTick)
	r.lastTick = now
	r.engine.Tick(elapsed)
	r.afterEngine()
}

func (r *Room) handle(ev ChatEvent) {
	received := ev.Received
	if received.IsZero() {
		received = time.Now()
	}
	defer func() {
		r.manager.metrics.MessageLatency.Observe(time.Since(received).Seconds())
	}()

	text := strings.TrimSpace(ev.Text)
	switch {
	case strings.HasPrefix(ev.Channel, session.DirectPrefix):
		r.forward(ev)
	case playPattern.MatchString(text):
		r.openLobby(strings.EqualFold(playPattern.FindStringSubmatch(text)[1], "resistance"))
	case quitPattern.MatchString(text):
		r.quit(ev)
	case watchPattern.MatchString(text):
		r.watch(ev)
	case statsPattern.MatchString(text):
		r.stats(ev)
	case r.lobby != nil && startPattern.MatchString(text):
		r.start()
	case r.lobby != nil && includePattern.MatchString(text):
		r.editRoles(includePattern.FindStringSubmatch(text)[1], true)
	case r.lobby != nil && excludePattern.MatchString(text):
		r.editRoles(excludePattern.FindStringSubmatch(text)[1], false)
	case r.lobby != nil && yesPattern.MatchString(text):
		r.join(ev)
	default:
		r.forward(ev)
	}
	r.afterEngine()
}

func (r *Room) forward(ev ChatEvent) {
	if r.engine == nil {
		return
	}
	msg := state.Message{User: ev.UserID, Text: ev.Text, Channel: ev.Channel}
	if err := r.engine.HandleMessage(msg); err != nil {
		logger.Log.Warnw("engine rejected message", "channel", r.Channel, "user", ev.UserID, "error", err)
	}
}

// say posts a lobby message to the channel.
func (r *Room) say(message string) {
	r.notify(message, game.ColorNone, game.KindNone)
}

func (r *Room) notify(message string, color game.Color, kind game.Kind) {
	n := network.Notification{Channel: r.Channel, Message: message, Color: string(color), Kind: string(kind)}
	if err := r.manager.broadcaster.ToChannel(r.Channel, network.MsgTypeNotification, n); err != nil {
		logger.Log.Debugw("channel notification dropped", "channel", r.Channel, "error", err)
	}
	for userID := range r.spectators {
		if err := r.manager.broadcaster.ToUser(userID, network.MsgTypeNotification, n); err != nil {
			logger.Log.Debugw("spectator notification dropped", "channel", r.Channel, "user", userID, "error", err)
		}
	}
}

func (r *Room) openLobby(resistance bool) {
	if err := r.canOpen(); err != nil {
		logger.Log.Debugw("lobby refused", "channel", r.Channel, "error", err)
		r.say("Another game is in progress, quit that first.")
		return
	}
	if r.lobby != nil {
		return
	}
	cfg := r.manager.opts.Rules.Clone()
	cfg.Resistance = resistance
	r.lobby = NewLobby(cfg)
	r.manager.metrics.OpenLobbies.Inc()
	logger.Log.Infow("lobby opened", "channel", r.Channel, "mode", r.lobby.Mode())
	r.say(fmt.Sprintf("Who wants to play %s?\nRespond with *'yes'* in this channel, then `start` when everyone is in.", r.lobby.Title()))
}

func (r *Room) canOpen() error {
	if r.engine != nil {
		return fmt.Errorf("%w: %s", ErrGameInProgress, r.engine.ID())
	}
	return nil
}

// closeLobby drops the lobby. Without a game to move into, its players are
// free to join elsewhere again.
func (r *Room) closeLobby() {
	if r.lobby == nil {
		return
	}
	if r.engine == nil {
		r.manager.unregister(r, playerIDs(r.lobby.Players)...)
		r.spectators = make(map[string]string)
	}
	r.lobby = nil
	r.manager.metrics.OpenLobbies.Dec()
}

func (r *Room) join(ev ChatEvent) {
	if !r.manager.claim(r, ev.UserID) {
		r.say(fmt.Sprintf("@%s is already playing in another channel.", ev.Name))
		return
	}
	switch err := r.lobby.Join(ev.UserID, ev.Name); err {
	case nil:
		delete(r.spectators, ev.UserID)
		r.say(r.lobby.JoinMessage(r.lobby.Players[len(r.lobby.Players)-1]))
	case ErrAlreadyJoined:
		r.say(fmt.Sprintf("@%s is already in the game.", ev.Name))
	case ErrLobbyFull:
		r.manager.unregister(r, ev.UserID)
		r.say(fmt.Sprintf("@%s cannot join because game is full.", ev.Name))
	}
}

func (r *Room) editRoles(args string, include bool) {
	if r.lobby.Config.Resistance {
		r.say("Resistance has no special roles.")
		return
	}
	var lines []string
	for _, name := range r.lobby.EditRoles(args, include) {
		lines = append(lines, fmt.Sprintf("Unknown role %s.", name))
	}
	lines = append(lines, r.lobby.RolesMessage())
	r.say(strings.Join(lines, "\n"))
}

func (r *Room) start() {
	lobby := r.lobby
	if err := lobby.Ready(); err != nil {
		logger.Log.Debugw("start refused", "channel", r.Channel, "error", err)
		r.say(fmt.Sprintf("Not enough players for a game. Avalon requires %d-%d players.", game.MinPlayers, game.MaxPlayers))
		return
	}

	m := r.manager
	id := uuid.NewString()
	dms := make(map[string]string, len(lobby.Players))
	for _, p := range lobby.Players {
		dms[p.ID] = session.DirectChannel(p.ID)
	}

	opts := []engine.Option{
		engine.WithTiming(m.opts.Timing),
		engine.WithOnEnd(r.onEnd),
	}
	if m.opts.Shuffler != nil {
		opts = append(opts, engine.WithShuffler(m.opts.Shuffler()))
	}
	e := engine.New(id, lobby.Players, lobby.Config, notifier{r}, opts...)
	if err := e.Start(m.ctx, dms); err != nil {
		logger.Log.Warnw("game failed to start", "channel", r.Channel, "error", err)
		r.say(fmt.Sprintf("Cannot start the game: %v", err))
		return
	}

	r.engine = e
	r.players = e.Game().Players
	r.closeLobby()
	m.metrics.ActiveGames.Inc()
	m.metrics.GamesStarted.WithLabelValues(lobby.Mode()).Inc()

	r.lastTick = time.Now()
	if m.timers != nil {
		r.timerID = m.timers.AddTimer(m.opts.Tick, m.opts.Tick, r.signalTick)
	}
}

func (r *Room) quit(ev ChatEvent) {
	switch {
	case r.engine != nil:
		r.engine.Quit("@" + ev.Name)
	case r.lobby != nil:
		r.closeLobby()
		r.say(fmt.Sprintf("@%s called off the game.", ev.Name))
	}
}

func (r *Room) watch(ev ChatEvent) {
	if r.engine == nil && r.lobby == nil {
		r.say("There is no game to watch.")
		return
	}
	if r.lobby != nil && r.lobby.Has(ev.UserID) {
		return
	}
	for _, p := range r.players {
		if p.ID == ev.UserID {
			return
		}
	}
	r.spectators[ev.UserID] = ev.Name
	r.say(fmt.Sprintf("@%s is watching the game.", ev.Name))
}

// stats looks the archive up off the loop and posts the answer back to it.
func (r *Room) stats(ev ChatEvent) {
	m := r.manager
	if m.recorder == nil {
		return
	}
	r.pending.Add(1)
	m.background.Add(1)
	go func() {
		defer m.background.Done()
		ctx, cancel := context.WithTimeout(m.ctx, 5*time.Second)
		defer cancel()
		reply, err := m.recorder.Summary(ctx, ev.UserID, ev.Name)
		if err != nil {
			logger.Log.Errorw("stats lookup failed", "user", ev.UserID, "error", err)
			reply = "Stats are unavailable right now."
		}
		r.run(func() { r.say(reply) })
	}()
}

// onEnd runs inside the engine when the game finishes, is quit or cancelled.
func (r *Room) onEnd(result engine.Result) {
	m := r.manager
	m.metrics.ActiveGames.Dec()
	m.metrics.GamesFinished.WithLabelValues(string(result.Winner), result.Reason).Inc()
	logger.Log.Infow("game finished", "channel", r.Channel, "game", result.GameID, "winner", result.Winner, "reason", result.Reason)
	if result.Winner != game.SideNone {
		m.archive(r.Channel, result)
	}
}

// afterEngine releases a game once the engine reports it is done.
func (r *Room) afterEngine() {
	if r.engine == nil {
		return
	}
	select {
	case <-r.engine.Done():
	default:
		return
	}
	if r.manager.timers != nil {
		r.manager.timers.RemoveTimer(r.timerID)
	}
	r.manager.unregister(r, playerIDs(r.players)...)
	r.engine = nil
	r.players = nil
	r.spectators = make(map[string]string)
}

func (r *Room) shutdown() {
	if r.engine != nil {
		r.engine.Cancel()
		r.afterEngine()
	}
	r.closeLobby()
}

// notifier adapts the room's broadcaster to engine.Notifier.
type notifier struct {
	room *Room
}

func (n notifier) Notify(message string, color game.Color, kind game.Kind) {
	n.room.notify(message, color, kind)
}

func (n notifier) NotifyPlayer(p *game.Player, message string, color game.Color, kind game.Kind) {
	dm := network.Notification{Channel: session.DirectChannel(p.ID), Message: message, Color: string(color), Kind: string(kind)}
	if err := n.room.manager.broadcaster.ToUser(p.ID, network.MsgTypeDirectMessage, dm); err != nil {
		logger.Log.Warnw("direct message dropped", "channel", n.room.Channel, "user", p.ID, "error", err)
	}
}
