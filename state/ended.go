package state

import (
	"fmt"

	"github.com/wfunc/avalon/game"
)

// EndedState is terminal; it ignores every message and tick.
type EndedState struct {
	PhaseBase
}

func NewEndedState(g GameContext) *EndedState {
	return &EndedState{PhaseBase: PhaseBase{ID: "ended", Game: g}}
}

// EndGame appends the quest results and role reveal to message and finishes the game.
func EndGame(g GameContext, winner game.Side, reason, message string, color game.Color, current bool) {
	gs := g.Game()
	summary := fmt.Sprintf("%s\nQuest Results: %s\n%s", message, gs.QuestTrack(current), gs.RevealRoles(false))
	g.Finish(winner, reason, summary, color)
}
