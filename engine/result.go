package engine

import (
	"time"

	"github.com/wfunc/avalon/game"
)

// PlayerResult is one seat of a finished game.
type PlayerResult struct {
	ID   string
	Name string
	Role game.Role
	Evil bool
}

// Result summarizes a game for archiving.
type Result struct {
	GameID     string
	Resistance bool
	Winner     game.Side
	Reason     string
	Progress   []game.Outcome
	Rejects    int
	Players    []PlayerResult
	Assassin   string
	StartedAt  time.Time
	EndedAt    time.Time
}

func (e *Engine) Result() Result {
	gs := e.game
	r := Result{
		GameID:     e.id,
		Resistance: gs.Config.Resistance,
		Winner:     gs.Winner,
		Reason:     gs.EndReason,
		Progress:   append([]game.Outcome(nil), gs.Progress...),
		Rejects:    gs.RejectCount,
		StartedAt:  e.startedAt,
		EndedAt:    e.endedAt,
	}
	if gs.Assassin != nil {
		r.Assassin = gs.Assassin.ID
	}
	for _, p := range gs.Players {
		r.Players = append(r.Players, PlayerResult{ID: p.ID, Name: p.Name, Role: p.Role, Evil: p.Role.IsEvil()})
	}
	return r
}

// Won reports whether the player was on the winning side.
func (r Result) Won(p PlayerResult) bool {
	switch r.Winner {
	case game.SideEvil:
		return p.Evil
	case game.SideGood:
		return !p.Evil
	}
	return false
}
