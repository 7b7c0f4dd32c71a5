package room

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/avalon/engine"
	"github.com/wfunc/avalon/game"
	"github.com/wfunc/avalon/monitor"
	"github.com/wfunc/avalon/network"
	"github.com/wfunc/avalon/session"
	"github.com/wfunc/avalon/state"
)

type fixedShuffler struct{}

func (fixedShuffler) Shuffle(n int, swap func(i, j int)) {}
func (fixedShuffler) Intn(n int) int                    { return 0 }

type delivery struct {
	to      string
	msgID   uint16
	message string
}

// MockBroadcaster records every packet instead of writing to sessions.
type MockBroadcaster struct {
	mutex sync.Mutex
	sent  []delivery
}

func (b *MockBroadcaster) record(to string, msgID uint16, v interface{}) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	n, _ := v.(network.Notification)
	b.sent = append(b.sent, delivery{to: to, msgID: msgID, message: n.Message})
	return nil
}

func (b *MockBroadcaster) ToChannel(channel string, msgID uint16, v interface{}) error {
	return b.record(channel, msgID, v)
}

func (b *MockBroadcaster) ToUser(userID string, msgID uint16, v interface{}) error {
	return b.record(userID, msgID, v)
}

// messages returns what was delivered to one channel or user, in order.
func (b *MockBroadcaster) messages(to string) []string {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	var out []string
	for _, d := range b.sent {
		if d.to == to {
			out = append(out, d.message)
		}
	}
	return out
}

func (b *MockBroadcaster) last(to string) string {
	msgs := b.messages(to)
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1]
}

type MockTimers struct {
	nextID  int64
	added   []time.Duration
	removed []int64
}

func (t *MockTimers) AddTimer(delay, interval time.Duration, callback func()) int64 {
	t.nextID++
	t.added = append(t.added, interval)
	return t.nextID
}

func (t *MockTimers) RemoveTimer(timerID int64) {
	t.removed = append(t.removed, timerID)
}

type MockRecorder struct {
	mutex    sync.Mutex
	channels []string
	results  []engine.Result
}

func (r *MockRecorder) RecordGame(ctx context.Context, channel string, result engine.Result) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.channels = append(r.channels, channel)
	r.results = append(r.results, result)
	return nil
}

func (r *MockRecorder) Summary(ctx context.Context, userID, name string) (string, error) {
	return fmt.Sprintf("@%s has not finished any games yet.", name), nil
}

type fixture struct {
	t           *testing.T
	manager     *Manager
	room        *Room
	broadcaster *MockBroadcaster
	timers      *MockTimers
	recorder    *MockRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:           t,
		broadcaster: &MockBroadcaster{},
		timers:      &MockTimers{},
		recorder:    &MockRecorder{},
	}
	opts := DefaultOptions()
	opts.Timing = state.Timing{Pause: time.Second, AssassinDelay: time.Second}
	opts.Shuffler = func() game.Shuffler { return fixedShuffler{} }
	metrics := monitor.NewMetrics("avalon", prometheus.NewRegistry())
	f.manager = NewManager(context.Background(), f.broadcaster, f.recorder, f.timers, metrics, opts)
	f.room = newRoom("general", f.manager)
	return f
}

func userID(seat int) string { return fmt.Sprintf("U%d", seat) }
func userName(seat int) string { return fmt.Sprintf("player_%d", seat) }

// say handles a channel message synchronously, bypassing the loop.
func (f *fixture) say(seat int, text string) {
	f.room.handle(ChatEvent{UserID: userID(seat), Name: userName(seat), Channel: "general", Text: text})
}

func (f *fixture) whisper(seat int, text string) {
	id := userID(seat)
	f.room.handle(ChatEvent{UserID: id, Name: userName(seat), Channel: session.DirectChannel(id), Text: text})
}

func (f *fixture) tick() {
	f.room.tick(f.room.lastTick.Add(5 * time.Second))
}

// startGame seats n players (morgana, assassin, merlin, percival, good at five)
// and advances to the first proposal.
func (f *fixture) startGame(n int) {
	f.t.Helper()
	f.say(1, "play avalon")
	for seat := 1; seat <= n; seat++ {
		f.say(seat, "yes")
	}
	f.say(1, "start")
	require.NotNil(f.t, f.room.engine)
	f.tick()
	require.Equal(f.t, "proposal", f.room.engine.Phase())
}

// round sends the first seats of the table on an approved quest.
func (f *fixture) round(fails int) {
	f.t.Helper()
	gs := f.room.engine.Game()
	need := gs.Requirement().PlayersNeeded
	names := make([]string, need)
	for i := range names {
		names[i] = userName(i + 1)
	}
	leader := gs.Leader()
	f.room.handle(ChatEvent{UserID: leader.ID, Name: leader.Name, Channel: "general", Text: "send " + strings.Join(names, ", ")})
	require.Equal(f.t, "voting", f.room.engine.Phase())
	for seat := 1; seat <= len(gs.Players); seat++ {
		f.whisper(seat, "approve")
	}
	f.tick()
	require.Equal(f.t, "quest", f.room.engine.Phase())
	for seat := 1; seat <= need; seat++ {
		if seat <= fails {
			f.whisper(seat, "fail")
		} else {
			f.whisper(seat, "succeed")
		}
	}
	if f.room.engine != nil {
		f.tick()
	}
}

func TestRoom_LobbyJoin(t *testing.T) {
	f := newFixture(t)

	f.say(1, "play avalon")
	assert.Equal(t, "Who wants to play Avalon?\nRespond with *'yes'* in this channel, then `start` when everyone is in.", f.broadcaster.last("general"))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.manager.metrics.OpenLobbies))

	f.say(1, "yes")
	assert.Equal(t, "@player_1 has joined the game.", f.broadcaster.last("general"))
	f.say(2, "yes please")
	assert.Equal(t, "@player_2 has joined the game.\n2 players @player_1 and @player_2 are in game so far.", f.broadcaster.last("general"))

	f.say(1, "YES")
	assert.Equal(t, "@player_1 is already in the game.", f.broadcaster.last("general"))

	f.say(1, "start")
	assert.Equal(t, "Not enough players for a game. Avalon requires 5-10 players.", f.broadcaster.last("general"))
	assert.Nil(t, f.room.engine)
}

func TestRoom_LobbyFull(t *testing.T) {
	f := newFixture(t)
	f.say(1, "play resistance")
	assert.Contains(t, f.broadcaster.last("general"), "Who wants to play Resistance?")

	for seat := 1; seat <= game.MaxPlayers; seat++ {
		f.say(seat, "yes")
	}
	assert.Contains(t, f.broadcaster.last("general"), "Maximum 10 players")

	f.say(11, "yes")
	assert.Equal(t, "@player_11 cannot join because game is full.", f.broadcaster.last("general"))
}

func TestRoom_IncludeExclude(t *testing.T) {
	f := newFixture(t)
	f.say(1, "play avalon")

	f.say(1, "include mordred, oberon")
	assert.Equal(t, "Special roles: merlin, percival, morgana, mordred, oberon", f.broadcaster.last("general"))

	f.say(1, "exclude percival dragon")
	assert.Equal(t, "Unknown role dragon.\nSpecial roles: merlin, morgana, mordred, oberon", f.broadcaster.last("general"))

	// edits stay in this lobby
	assert.Equal(t, game.DefaultConfig().SpecialRoles, f.manager.opts.Rules.SpecialRoles)
}

func TestRoom_StartGame(t *testing.T) {
	f := newFixture(t)
	f.startGame(5)

	assert.Nil(t, f.room.lobby)
	// the idle sweep is scheduled by the manager, the game tick by the room
	assert.Equal(t, []time.Duration{f.manager.opts.IdleSweep, f.manager.opts.Tick}, f.timers.added)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.manager.metrics.ActiveGames))
	assert.Equal(t, float64(0), testutil.ToFloat64(f.manager.metrics.OpenLobbies))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.manager.metrics.GamesStarted.WithLabelValues("avalon")))

	for seat := 1; seat <= 5; seat++ {
		briefing := f.broadcaster.messages(userID(seat))
		require.NotEmpty(t, briefing, "seat %d was not briefed", seat)
		assert.True(t, strings.HasPrefix(briefing[0], "You are "))
		assert.Same(t, f.room, f.manager.playing(userID(seat)))
	}
	assert.Contains(t, f.broadcaster.messages(userID(3))[0], "MERLIN")
	assert.Contains(t, f.broadcaster.last("general"), "@player_1 chooses 2 players to go on the first quest.")

	f.say(2, "play avalon")
	assert.Equal(t, "Another game is in progress, quit that first.", f.broadcaster.last("general"))
}

func TestRoom_VotesArriveByDirectMessage(t *testing.T) {
	f := newFixture(t)
	f.startGame(5)

	f.say(1, "send player_1, player_2")
	require.Equal(t, "voting", f.room.engine.Phase())

	f.say(2, "approve")
	assert.NotContains(t, f.broadcaster.last("general"), "voted!")

	f.whisper(2, "approve")
	assert.Equal(t, "@player_2 voted! 4 votes left.", f.broadcaster.last("general"))
}

func TestRoom_EvilWinIsArchived(t *testing.T) {
	f := newFixture(t)
	f.startGame(5)
	tickID := f.room.timerID

	f.round(1)
	f.round(1)
	f.round(1)

	assert.Nil(t, f.room.engine)
	assert.True(t, strings.HasPrefix(f.broadcaster.last("general"), ":red_circle: Minions of Mordred win by failing 3 quests!\nQuest Results:"))
	assert.Equal(t, []int64{tickID}, f.timers.removed)
	assert.Nil(t, f.manager.playing(userID(1)))
	assert.Equal(t, float64(0), testutil.ToFloat64(f.manager.metrics.ActiveGames))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.manager.metrics.GamesFinished.WithLabelValues("evil", "quests")))

	f.manager.Close()
	require.Len(t, f.recorder.results, 1)
	assert.Equal(t, "general", f.recorder.channels[0])
	assert.Equal(t, game.SideEvil, f.recorder.results[0].Winner)
	assert.Len(t, f.recorder.results[0].Players, 5)
}

func TestRoom_QuitIsNotArchived(t *testing.T) {
	f := newFixture(t)
	f.startGame(5)

	f.say(4, "quit game")
	assert.Nil(t, f.room.engine)
	assert.True(t, strings.HasPrefix(f.broadcaster.last("general"), "@player_4 has decided to quit the game.\n"))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.manager.metrics.GamesFinished.WithLabelValues("", "quit")))

	f.manager.Close()
	assert.Empty(t, f.recorder.results)

	// the channel can host a new lobby
	f.say(1, "play avalon")
	assert.NotNil(t, f.room.lobby)
}

func TestRoom_QuitLobby(t *testing.T) {
	f := newFixture(t)
	f.say(1, "play avalon")
	f.say(1, "quit game")
	assert.Nil(t, f.room.lobby)
	assert.Equal(t, "@player_1 called off the game.", f.broadcaster.last("general"))
}

func TestRoom_Spectators(t *testing.T) {
	f := newFixture(t)
	f.say(9, "watch")
	assert.Equal(t, "There is no game to watch.", f.broadcaster.last("general"))

	f.startGame(5)
	f.say(9, "watch")
	assert.Equal(t, "@player_9 is watching the game.", f.broadcaster.last("general"))

	f.say(1, "send player_1, player_2")
	assert.Contains(t, f.broadcaster.last(userID(9)), "@player_1 and @player_2")

	// players are not spectators
	f.say(1, "watch")
	assert.NotContains(t, f.broadcaster.last("general"), "@player_1 is watching")
}

// loopCall runs the next call a background lookup posts back to the loop.
func (f *fixture) loopCall() {
	f.t.Helper()
	select {
	case fn := <-f.room.calls:
		fn()
		f.room.settle()
	case <-time.After(time.Second):
		f.t.Fatal("no call was posted back to the room")
	}
}

func TestRoom_Stats(t *testing.T) {
	f := newFixture(t)
	f.say(3, "stats")
	// the lookup runs off the loop, nothing is said until its reply comes back
	assert.Empty(t, f.broadcaster.messages("general"))
	assert.Equal(t, int64(1), f.room.pending.Load())

	f.loopCall()
	assert.Equal(t, "@player_3 has not finished any games yet.", f.broadcaster.last("general"))
	assert.Zero(t, f.room.pending.Load())
}

func TestRoom_StatsDoesNotBlockTheRoom(t *testing.T) {
	f := newFixture(t)
	f.say(3, "stats")
	f.say(1, "play avalon")
	f.say(1, "yes")
	assert.Equal(t, "@player_1 has joined the game.", f.broadcaster.last("general"))

	f.loopCall()
	assert.Equal(t, "@player_3 has not finished any games yet.", f.broadcaster.last("general"))
}

func TestRoom_OneLobbyPerUser(t *testing.T) {
	f := newFixture(t)
	other := newRoom("random", f.manager)
	sayIn := func(r *Room, seat int, text string) {
		r.handle(ChatEvent{UserID: userID(seat), Name: userName(seat), Channel: r.Channel, Text: text})
	}

	f.say(1, "play avalon")
	f.say(1, "yes")
	sayIn(other, 1, "play avalon")
	sayIn(other, 1, "yes")
	assert.Equal(t, "@player_1 is already playing in another channel.", f.broadcaster.last("random"))
	assert.False(t, other.lobby.Has(userID(1)))
	assert.Same(t, f.room, f.manager.playing(userID(1)))

	// both games run side by side with their own players
	for seat := 2; seat <= 5; seat++ {
		f.say(seat, "yes")
	}
	f.say(1, "start")
	require.NotNil(t, f.room.engine)
	for seat := 6; seat <= 10; seat++ {
		sayIn(other, seat, "yes")
	}
	sayIn(other, 6, "start")
	require.NotNil(t, other.engine)
	assert.Same(t, f.room, f.manager.playing(userID(1)))
	assert.Same(t, other, f.manager.playing(userID(6)))

	// a seat is released when its game ends
	f.say(2, "quit game")
	assert.Nil(t, f.room.engine)
	assert.Nil(t, f.manager.playing(userID(1)))
	assert.Same(t, other, f.manager.playing(userID(6)))
}

func TestRoom_CalledOffLobbyReleasesSeats(t *testing.T) {
	f := newFixture(t)
	f.say(1, "play avalon")
	f.say(1, "yes")
	f.say(2, "yes")
	assert.Same(t, f.room, f.manager.playing(userID(2)))

	f.say(2, "quit game")
	assert.Nil(t, f.manager.playing(userID(1)))
	assert.Nil(t, f.manager.playing(userID(2)))

	other := newRoom("random", f.manager)
	other.handle(ChatEvent{UserID: userID(1), Name: userName(1), Channel: "random", Text: "play avalon"})
	other.handle(ChatEvent{UserID: userID(1), Name: userName(1), Channel: "random", Text: "yes"})
	assert.Equal(t, "@player_1 has joined the game.", f.broadcaster.last("random"))
}

func TestRoom_LobbyMembersDoNotWatch(t *testing.T) {
	f := newFixture(t)
	f.say(1, "play avalon")
	f.say(1, "yes")
	f.say(1, "watch")
	assert.Equal(t, "@player_1 has joined the game.", f.broadcaster.last("general"))
	assert.NotContains(t, f.room.spectators, userID(1))

	// a spectator who joins stops spectating
	f.say(2, "watch")
	assert.Equal(t, "@player_2 is watching the game.", f.broadcaster.last("general"))
	f.say(2, "yes")
	assert.NotContains(t, f.room.spectators, userID(2))
	assert.Equal(t, "@player_2 is watching the game.", f.broadcaster.last(userID(2)))
}

func TestRoom_CloseCancelsSilently(t *testing.T) {
	f := newFixture(t)
	f.startGame(5)
	before := len(f.broadcaster.messages("general"))

	f.room.shutdown()
	assert.Nil(t, f.room.engine)
	assert.Len(t, f.broadcaster.messages("general"), before)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.manager.metrics.GamesFinished.WithLabelValues("", "cancelled")))
}

func TestManager_Dispatch(t *testing.T) {
	b := &MockBroadcaster{}
	m := NewManager(context.Background(), b, nil, nil, monitor.NewMetrics("avalon", prometheus.NewRegistry()), DefaultOptions())

	m.Dispatch(ChatEvent{UserID: "U1", Name: "alice", Channel: "random", Text: "hello"})
	assert.Zero(t, m.Count())

	m.Dispatch(ChatEvent{UserID: "U1", Name: "alice", Channel: "general", Text: "play avalon"})
	m.Dispatch(ChatEvent{UserID: "U1", Name: "alice", Channel: "general", Text: "yes"})
	assert.Equal(t, 1, m.Count())
	assert.Eventually(t, func() bool {
		return b.last("general") == "@alice has joined the game."
	}, time.Second, 10*time.Millisecond)

	// direct messages reach the room seating the sender, others go nowhere
	assert.Eventually(t, func() bool {
		return m.playing("U1") != nil
	}, time.Second, 10*time.Millisecond)
	m.Dispatch(ChatEvent{UserID: "U1", Name: "alice", Channel: session.DirectChannel("U1"), Text: "approve"})
	m.Dispatch(ChatEvent{UserID: "U2", Name: "bob", Channel: session.DirectChannel("U2"), Text: "approve"})
	assert.Equal(t, 1, m.Count())

	r, ok := m.GetRoom("general")
	require.True(t, ok)
	m.RemoveRoom("general")
	assert.Zero(t, m.Count())
	select {
	case <-r.Done():
	default:
		t.Error("room loop should have exited")
	}
	m.Close()
}

func TestManager_ReapsIdleRooms(t *testing.T) {
	b := &MockBroadcaster{}
	m := NewManager(context.Background(), b, nil, nil, monitor.NewMetrics("avalon", prometheus.NewRegistry()), DefaultOptions())
	defer m.Close()

	m.Dispatch(ChatEvent{UserID: "U1", Name: "alice", Channel: "general", Text: "play avalon"})
	m.Dispatch(ChatEvent{UserID: "U2", Name: "bob", Channel: "random", Text: "play avalon"})
	assert.Eventually(t, func() bool {
		return len(b.messages("general")) == 1 && len(b.messages("random")) == 1
	}, time.Second, 10*time.Millisecond)

	// open lobbies are kept
	m.Reap()
	assert.Equal(t, 2, m.Count())

	r, ok := m.GetRoom("general")
	require.True(t, ok)
	m.Dispatch(ChatEvent{UserID: "U1", Name: "alice", Channel: "general", Text: "quit game"})
	assert.Eventually(t, func() bool {
		m.Reap()
		return m.Count() == 1
	}, time.Second, 10*time.Millisecond)
	_, ok = m.GetRoom("general")
	assert.False(t, ok)
	assert.Eventually(t, func() bool {
		select {
		case <-r.Done():
			return true
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)

	// the channel gets a fresh room on the next game
	m.Dispatch(ChatEvent{UserID: "U1", Name: "alice", Channel: "general", Text: "play avalon"})
	assert.Equal(t, 2, m.Count())
}

func TestManager_IdleSweepIsScheduled(t *testing.T) {
	timers := &MockTimers{}
	opts := DefaultOptions()
	opts.IdleSweep = 0
	m := NewManager(context.Background(), &MockBroadcaster{}, nil, timers, monitor.NewMetrics("avalon", prometheus.NewRegistry()), opts)
	assert.Equal(t, []time.Duration{time.Minute}, timers.added)

	m.Close()
	assert.Equal(t, []int64{1}, timers.removed)
}
