package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/avalon/game"
	"github.com/wfunc/avalon/state"
)

// fixedShuffler keeps the seating and deck in lobby order.
type fixedShuffler struct{}

func (fixedShuffler) Shuffle(n int, swap func(i, j int)) {}
func (fixedShuffler) Intn(n int) int                    { return 0 }

type note struct {
	to      string
	message string
	color   game.Color
	kind    game.Kind
}

type recordingNotifier struct {
	notes []note
}

func (r *recordingNotifier) Notify(message string, color game.Color, kind game.Kind) {
	r.notes = append(r.notes, note{message: message, color: color, kind: kind})
}

func (r *recordingNotifier) NotifyPlayer(p *game.Player, message string, color game.Color, kind game.Kind) {
	r.notes = append(r.notes, note{to: p.ID, message: message, color: color, kind: kind})
}

func (r *recordingNotifier) last() note {
	if len(r.notes) == 0 {
		return note{}
	}
	return r.notes[len(r.notes)-1]
}

func (r *recordingNotifier) count(substr string) int {
	n := 0
	for _, nt := range r.notes {
		if strings.Contains(nt.message, substr) {
			n++
		}
	}
	return n
}

const beat = 5 * time.Second

type harness struct {
	t        *testing.T
	engine   *Engine
	notifier *recordingNotifier
	results  []Result
}

// newHarness seats n players (ids "1".."n", names "player_N") and advances to
// the first proposal. Seat roles with the default config at eight players:
// morgana, assassin, bad, merlin, percival, good, good, good.
func newHarness(t *testing.T, n int, cfg game.Config) *harness {
	t.Helper()
	h := &harness{t: t, notifier: &recordingNotifier{}}

	players := make([]*game.Player, n)
	dms := make(map[string]string, n)
	for i := range players {
		id := fmt.Sprint(i + 1)
		players[i] = game.NewPlayer(id, fmt.Sprintf("player_%d", i+1))
		dms[id] = "dm" + id
	}
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	h.engine = New("g1", players, cfg, h.notifier,
		WithShuffler(fixedShuffler{}),
		WithClock(func() time.Time { return now }),
		WithOnEnd(func(r Result) { h.results = append(h.results, r) }),
	)
	require.NoError(t, h.engine.Start(context.Background(), dms))
	assert.Equal(t, "pause", h.engine.Phase())
	h.engine.Tick(beat)
	require.Equal(t, "proposal", h.engine.Phase())
	return h
}

func (h *harness) say(id, text string) {
	h.t.Helper()
	require.NoError(h.t, h.engine.HandleMessage(state.Message{User: id, Text: text, Channel: "dm" + id}))
}

// propose has the current leader send the given seats.
func (h *harness) propose(seats ...int) {
	h.t.Helper()
	names := make([]string, len(seats))
	for i, s := range seats {
		names[i] = fmt.Sprintf("player_%d", s)
	}
	h.say(h.engine.Game().Leader().ID, "send "+strings.Join(names, ", "))
}

// vote has seats 1..approvers approve and everyone else reject.
func (h *harness) vote(approvers int) {
	h.t.Helper()
	for i, p := range h.engine.Game().Players {
		if i < approvers {
			h.say(p.ID, "approve")
		} else {
			h.say(p.ID, "reject")
		}
	}
}

// quest has the first fails team members fail and the rest succeed.
func (h *harness) quest(seats []int, fails int) {
	h.t.Helper()
	for i, s := range seats {
		if i < fails {
			h.say(fmt.Sprint(s), "fail")
		} else {
			h.say(fmt.Sprint(s), "succeed")
		}
	}
}

// round plays one approved quest with the first seats of the table.
func (h *harness) round(fails int) {
	h.t.Helper()
	need := h.engine.Game().Requirement().PlayersNeeded
	seats := make([]int, need)
	for i := range seats {
		seats[i] = i + 1
	}
	h.propose(seats...)
	require.Equal(h.t, "voting", h.engine.Phase())
	h.vote(len(h.engine.Game().Players))
	h.engine.Tick(beat)
	require.Equal(h.t, "quest", h.engine.Phase())
	h.quest(seats, fails)
	h.engine.Tick(beat)
}

func TestEngine_StartBriefsPlayers(t *testing.T) {
	h := newHarness(t, 8, game.DefaultConfig())

	briefed := map[string]bool{}
	for _, n := range h.notifier.notes {
		if n.to != "" {
			briefed[n.to] = true
		}
	}
	assert.Len(t, briefed, 8)

	first := h.notifier.last()
	assert.Equal(t, game.KindStart, first.kind)
	assert.Equal(t, game.ColorProposal, first.color)
	assert.True(t, strings.HasPrefix(first.message, "3 out of 8 players are evil."))
	assert.Contains(t, first.message, "@player_1 chooses 3 players to go on the first quest.")
}

func TestEngine_StartInvalidPlayerCount(t *testing.T) {
	players := []*game.Player{game.NewPlayer("1", "a"), game.NewPlayer("2", "b")}
	notifier := &recordingNotifier{}
	e := New("g1", players, game.DefaultConfig(), notifier, WithShuffler(fixedShuffler{}))

	err := e.Start(context.Background(), nil)
	assert.ErrorIs(t, err, game.ErrInvalidPlayerCount)
	assert.Empty(t, notifier.notes)
	assert.Equal(t, "", e.Phase())
	assert.NoError(t, e.HandleMessage(state.Message{User: "1", Text: "send a, b"}))
}

func TestEngine_RejectThenApproveThenSucceed(t *testing.T) {
	h := newHarness(t, 8, game.DefaultConfig())
	gs := h.engine.Game()
	require.Equal(t, "1", gs.Leader().ID)

	h.propose(1, 2, 3)
	require.Equal(t, "voting", h.engine.Phase())
	h.vote(3)
	assert.Equal(t, 1, gs.RejectCount)
	assert.Equal(t, "2", gs.Leader().ID)
	assert.Contains(t, h.notifier.last().message, "was rejected (1) by")

	h.engine.Tick(beat)
	require.Equal(t, "proposal", h.engine.Phase())
	h.propose(1, 2, 3)
	h.vote(5)
	assert.Zero(t, gs.RejectCount)
	require.Len(t, gs.QuestPlayers, 3)

	h.engine.Tick(beat)
	require.Equal(t, "quest", h.engine.Phase())
	h.quest([]int{1, 2, 3}, 0)
	assert.Equal(t, []game.Outcome{game.OutcomeGood}, gs.Progress)
	assert.Equal(t, 1, gs.QuestNumber)
	assert.Contains(t, h.notifier.last().message, "succeeded the first quest!")

	h.engine.Tick(beat)
	assert.Equal(t, "proposal", h.engine.Phase())
	assert.Equal(t, "3", gs.Leader().ID)
}

func TestEngine_WrongTeamSize(t *testing.T) {
	h := newHarness(t, 8, game.DefaultConfig())

	h.propose(1, 2)
	assert.Equal(t, "proposal", h.engine.Phase())
	assert.Equal(t, "You need to send 3 players. (You only chosen 0 valid players)", h.notifier.last().message)

	h.say("1", "send player_1, player_2, ghost")
	assert.Equal(t, "You need to send 3 players. (You only chosen 2 valid players)", h.notifier.last().message)

	// only the leader may propose
	before := len(h.notifier.notes)
	h.say("2", "send player_1, player_2, player_3")
	assert.Len(t, h.notifier.notes, before)
	assert.Equal(t, "proposal", h.engine.Phase())
}

func TestEngine_VotesAreCountedOnce(t *testing.T) {
	h := newHarness(t, 5, game.DefaultConfig())
	h.propose(1, 2)

	h.say("1", "approve")
	h.say("1", "reject")
	h.say("1", "approve")
	assert.Equal(t, 1, h.notifier.count("voted!"))
	assert.Contains(t, h.notifier.last().message, "@player_1 voted! 4 votes left.")

	// noise is ignored
	h.say("2", "what do you think?")
	assert.Equal(t, 1, h.notifier.count("voted!"))
}

func TestEngine_VotesOnlyFromDirectChannel(t *testing.T) {
	h := newHarness(t, 5, game.DefaultConfig())
	h.propose(1, 2)

	require.NoError(t, h.engine.HandleMessage(state.Message{User: "2", Text: "approve", Channel: "general"}))
	assert.Zero(t, h.notifier.count("voted!"))

	h.say("2", "approve")
	assert.Equal(t, 1, h.notifier.count("voted!"))
}

func TestEngine_ThreeFailedQuestsEvilWins(t *testing.T) {
	h := newHarness(t, 8, game.DefaultConfig())

	h.round(1)
	h.round(1)
	require.Len(t, h.results, 0)
	h.round(2)

	gs := h.engine.Game()
	assert.Equal(t, []game.Outcome{game.OutcomeBad, game.OutcomeBad, game.OutcomeBad}, gs.Progress)
	assert.Equal(t, game.StatusEnded, gs.Status)
	assert.Equal(t, game.SideEvil, gs.Winner)
	assert.Equal(t, "ended", h.engine.Phase())

	end := h.notifier.last()
	assert.Equal(t, game.KindEnd, end.kind)
	assert.Equal(t, game.ColorEvil, end.color)
	assert.Contains(t, end.message, "Minions of Mordred win by failing 3 quests!")
	assert.Contains(t, end.message, "Quest Results: ")

	select {
	case <-h.engine.Done():
	default:
		t.Fatal("engine should be done")
	}
	require.Len(t, h.results, 1)
	assert.Equal(t, "quests", h.results[0].Reason)

	// no further prompts once ended
	before := len(h.notifier.notes)
	h.engine.Tick(beat)
	h.say("1", "send player_1, player_2, player_3")
	assert.Len(t, h.notifier.notes, before)
}

func TestEngine_QuestSucceedsWithOneFailWhenTwoRequired(t *testing.T) {
	h := newHarness(t, 8, game.DefaultConfig())
	h.round(1)
	h.round(0)
	h.round(0)
	require.Equal(t, 2, h.engine.Game().Requirement().FailsRequired)

	h.round(1)
	gs := h.engine.Game()
	assert.Equal(t, []game.Outcome{game.OutcomeBad, game.OutcomeGood, game.OutcomeGood, game.OutcomeGood}, gs.Progress)
	assert.Equal(t, 1, h.notifier.count("succeeded the fourth quest with 1 fail!"))
	assert.Equal(t, "assassin", h.engine.Phase())
}

func TestEngine_QuestCardsAreCountedOnce(t *testing.T) {
	h := newHarness(t, 5, game.DefaultConfig())
	h.propose(1, 2)
	h.vote(5)
	h.engine.Tick(beat)
	require.Equal(t, "quest", h.engine.Phase())

	h.say("1", "succeed")
	h.say("1", "fail")
	h.say("1", "fail")
	assert.Equal(t, 1, h.notifier.count("completed the quest!"))
	assert.Contains(t, h.notifier.last().message, "@player_1 completed the quest! 1 remaining...")

	// only the team plays cards
	h.say("3", "fail")
	assert.Equal(t, 1, h.notifier.count("completed the quest!"))

	h.say("2", "succeed")
	gs := h.engine.Game()
	assert.Equal(t, []game.Outcome{game.OutcomeGood}, gs.Progress)
	assert.Contains(t, h.notifier.last().message, "@player_1 and @player_2 succeeded the first quest!")
}

func playToAssassin(t *testing.T) *harness {
	h := newHarness(t, 8, game.DefaultConfig())
	h.round(0)
	h.round(0)
	h.round(0)
	require.Equal(t, "assassin", h.engine.Phase())
	assert.Equal(t, 1, h.notifier.count("Victory is near"))
	assert.Empty(t, h.results)
	assert.Contains(t, h.notifier.last().message, "*@player_2* is the :red_circle::crossed_swords:ASSASSIN.")
	return h
}

func TestEngine_AssassinFindsMerlin(t *testing.T) {
	h := playToAssassin(t)

	h.say("2", "kill player_2")
	assert.Equal(t, "You cannot kill yourself", h.notifier.last().message)
	assert.Equal(t, "assassin", h.engine.Phase())

	h.say("2", "kill nobody")
	assert.Equal(t, "nobody is not a valid player", h.notifier.last().message)

	// only the assassin may strike
	h.say("1", "kill player_4")
	assert.Equal(t, "assassin", h.engine.Phase())

	h.say("2", "kill Player_4")
	gs := h.engine.Game()
	assert.Equal(t, game.SideEvil, gs.Winner)
	assert.Equal(t, "assassination", gs.EndReason)
	assert.Equal(t, "ended", h.engine.Phase())
	assert.Contains(t, h.notifier.last().message, "correctly as MERLIN")
	assert.Equal(t, game.KindEnd, h.notifier.last().kind)
}

func TestEngine_AssassinMissesMerlin(t *testing.T) {
	h := playToAssassin(t)

	h.say("2", "kill player_6")
	gs := h.engine.Game()
	assert.Equal(t, game.SideGood, gs.Winner)
	assert.Contains(t, h.notifier.last().message, "not :angel:@player_4")
	require.Len(t, h.results, 1)
	assert.True(t, h.results[0].Won(h.results[0].Players[5]))
	assert.False(t, h.results[0].Won(h.results[0].Players[1]))
}

func TestEngine_ResistanceGoodWinsOnQuests(t *testing.T) {
	cfg := game.DefaultConfig()
	cfg.Resistance = true
	h := newHarness(t, 5, cfg)

	h.round(0)
	h.round(0)
	h.round(0)
	assert.Equal(t, game.SideGood, h.engine.Game().Winner)
	assert.Equal(t, "ended", h.engine.Phase())
	assert.Contains(t, h.notifier.last().message, "win by succeeding 3 quests!")
}

func TestEngine_FiveRejectionsEvilWins(t *testing.T) {
	h := newHarness(t, 5, game.DefaultConfig())
	h.round(0)

	for i := 0; i < game.MaxRejections; i++ {
		require.Equal(t, "proposal", h.engine.Phase())
		h.propose(1, 2, 3)
		h.vote(0)
		h.engine.Tick(beat)
	}

	gs := h.engine.Game()
	assert.Equal(t, game.SideEvil, gs.Winner)
	assert.Equal(t, "rejections", gs.EndReason)
	assert.Equal(t, game.MaxRejections, gs.RejectCount)
	assert.Contains(t, h.notifier.last().message, "win due to the second quest rejected 5 times!")
	assert.Equal(t, "ended", h.engine.Phase())
}

func TestEngine_Quit(t *testing.T) {
	h := newHarness(t, 5, game.DefaultConfig())
	h.engine.Quit("@player_3")

	assert.Equal(t, game.KindEnd, h.notifier.last().kind)
	assert.Contains(t, h.notifier.last().message, "@player_3 has decided to quit the game.")
	assert.Equal(t, game.SideNone, h.engine.Game().Winner)
	require.Len(t, h.results, 1)
	assert.Equal(t, "quit", h.results[0].Reason)

	before := len(h.notifier.notes)
	h.engine.Quit("@player_3")
	h.propose(1, 2)
	assert.Len(t, h.notifier.notes, before)
	assert.Len(t, h.results, 1)
}

func TestEngine_CancelIsSilent(t *testing.T) {
	h := newHarness(t, 5, game.DefaultConfig())
	h.propose(1, 2)
	before := len(h.notifier.notes)

	h.engine.Cancel()
	h.say("1", "approve")
	h.engine.Tick(beat)

	assert.Len(t, h.notifier.notes, before)
	assert.Equal(t, game.StatusEnded, h.engine.Game().Status)
	assert.Equal(t, "ended", h.engine.Phase())
	require.Len(t, h.results, 1)
	assert.Equal(t, "cancelled", h.results[0].Reason)

	select {
	case <-h.engine.Done():
	default:
		t.Fatal("engine should be done")
	}
}

func TestEngine_ParentContextCancelStopsNotifications(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	notifier := &recordingNotifier{}
	players := make([]*game.Player, 5)
	for i := range players {
		players[i] = game.NewPlayer(fmt.Sprint(i+1), fmt.Sprintf("player_%d", i+1))
	}
	e := New("g2", players, game.DefaultConfig(), notifier, WithShuffler(fixedShuffler{}))
	require.NoError(t, e.Start(ctx, nil))

	cancel()
	before := len(notifier.notes)
	e.Tick(beat)
	assert.Len(t, notifier.notes, before)
	assert.Equal(t, "pause", e.Phase())
}
