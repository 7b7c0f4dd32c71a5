// engine/engine.go
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/wfunc/avalon/game"
	"github.com/wfunc/avalon/logger"
	"github.com/wfunc/avalon/state"
)

// Notifier turns engine output into chat messages. Implementations resolve
// direct channels and styling; the engine only supplies content and hints.
type Notifier interface {
	Notify(message string, color game.Color, kind game.Kind)
	NotifyPlayer(p *game.Player, message string, color game.Color, kind game.Kind)
}

// Engine runs one game. It is driven by HandleMessage and Tick from a single
// goroutine and is not safe for concurrent use.
type Engine struct {
	id       string
	game     *game.State
	machine  *state.BaseStateMachine
	notifier Notifier
	dms      map[string]string

	shuffler game.Shuffler
	timing   state.Timing
	clock    func() time.Time
	onEnd    func(Result)

	ctx       context.Context
	cancel    context.CancelFunc
	startedAt time.Time
	endedAt   time.Time
}

type Option func(*Engine)

func WithShuffler(s game.Shuffler) Option {
	return func(e *Engine) { e.shuffler = s }
}

func WithTiming(t state.Timing) Option {
	return func(e *Engine) { e.timing = t }
}

func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithOnEnd registers a callback invoked once when the game finishes or is quit.
func WithOnEnd(fn func(Result)) Option {
	return func(e *Engine) { e.onEnd = fn }
}

// New prepares an engine for the lobby's players. Nothing is sent until Start.
func New(id string, players []*game.Player, cfg game.Config, notifier Notifier, opts ...Option) *Engine {
	e := &Engine{
		id:       id,
		game:     game.NewState(players, cfg),
		notifier: notifier,
		timing:   state.DefaultTiming(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.shuffler == nil {
		e.shuffler = rand.New(rand.NewSource(e.clock().UnixNano()))
	}
	return e
}

// Start deals roles, briefs every player on their direct channel and schedules
// the first proposal. directChannels maps player id to the channel the
// transport opened for that player.
func (e *Engine) Start(ctx context.Context, directChannels map[string]string) error {
	if err := e.game.Start(e.shuffler); err != nil {
		return fmt.Errorf("start game %s: %w", e.id, err)
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.dms = directChannels
	e.startedAt = e.clock()

	for _, p := range e.game.Players {
		e.NotifyPlayer(p, e.game.RoleBriefing(p), game.ColorNone, game.KindNone)
	}

	first := state.NewPauseState(e, e.timing.Pause, func() state.State {
		return state.NewProposalState(e)
	})
	e.machine = state.NewBaseStateMachine(first)
	e.machine.AddTransition("ended", state.AnyState, func() bool { return false })

	logger.Log.Infow("game started", "game", e.id, "players", len(e.game.Players), "resistance", e.game.Config.Resistance)
	return nil
}

// HandleMessage feeds one inbound chat event to the current phase.
func (e *Engine) HandleMessage(msg state.Message) error {
	if !e.active() {
		return nil
	}
	return e.machine.GetCurrentState().HandleMessage(msg)
}

// Tick advances time-based phases by elapsed.
func (e *Engine) Tick(elapsed time.Duration) {
	if !e.active() {
		return
	}
	e.machine.GetCurrentState().OnUpdate(elapsed)
}

// Quit ends a running game on behalf of a player.
func (e *Engine) Quit(who string) {
	if !e.active() {
		return
	}
	message := fmt.Sprintf("%s has decided to quit the game.", who)
	state.EndGame(e, game.SideNone, "quit", message, game.ColorNone, false)
}

// Cancel stops the game without any further notification.
func (e *Engine) Cancel() {
	if e.cancel == nil {
		return
	}
	if e.game.Running() {
		e.game.End(game.SideNone, "cancelled")
		e.machine.ChangeState(state.NewEndedState(e))
		e.finish()
	}
	e.cancel()
}

// Done is closed once the game has ended or was cancelled.
func (e *Engine) Done() <-chan struct{} {
	if e.ctx == nil {
		return nil
	}
	return e.ctx.Done()
}

func (e *Engine) ID() string {
	return e.id
}

// Phase is the id of the current phase, empty before Start.
func (e *Engine) Phase() string {
	if e.machine == nil {
		return ""
	}
	return e.machine.GetCurrentState().GetID()
}

func (e *Engine) active() bool {
	return e.ctx != nil && e.ctx.Err() == nil && e.game.Running()
}

// --- state.GameContext ---

func (e *Engine) Game() *game.State {
	return e.game
}

func (e *Engine) Timing() state.Timing {
	return e.timing
}

func (e *Engine) ChangeState(newState state.State) error {
	from := e.machine.GetCurrentState().GetID()
	if err := e.machine.ChangeState(newState); err != nil {
		return err
	}
	logger.Log.Debugw("phase changed", "game", e.id, "from", from, "to", newState.GetID(), "quest", e.game.QuestNumber)
	return nil
}

func (e *Engine) Notify(message string, color game.Color, kind game.Kind) {
	if e.ctx == nil || e.ctx.Err() != nil {
		return
	}
	e.notifier.Notify(message, color, kind)
}

func (e *Engine) NotifyPlayer(p *game.Player, message string, color game.Color, kind game.Kind) {
	if e.ctx == nil || e.ctx.Err() != nil {
		return
	}
	e.notifier.NotifyPlayer(p, message, color, kind)
}

func (e *Engine) FromDirect(p *game.Player, channel string) bool {
	dm, ok := e.dms[p.ID]
	if !ok || dm == "" {
		return true
	}
	return channel == dm
}

func (e *Engine) Finish(winner game.Side, reason, message string, color game.Color) {
	if !e.game.Running() {
		return
	}
	e.Notify(message, color, game.KindEnd)
	e.game.End(winner, reason)
	e.machine.ChangeState(state.NewEndedState(e))
	logger.Log.Infow("game ended", "game", e.id, "winner", winner, "reason", reason, "progress", e.game.Progress)
	e.finish()
	e.cancel()
}

func (e *Engine) finish() {
	e.endedAt = e.clock()
	if e.onEnd != nil {
		e.onEnd(e.Result())
	}
}
