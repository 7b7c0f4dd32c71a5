package state

import (
	"fmt"

	"github.com/wfunc/avalon/game"
	"github.com/wfunc/avalon/logger"
)

// AssassinState gives the assassin one correct guess at merlin to steal the game.
type AssassinState struct {
	PhaseBase
	Assassin *game.Player
	Merlin   *game.Player
	status   string
}

func NewAssassinState(g GameContext, merlin *game.Player, status string) *AssassinState {
	return &AssassinState{
		PhaseBase: PhaseBase{ID: "assassin", Game: g},
		Assassin:  g.Game().Assassin,
		Merlin:    merlin,
		status:    status,
	}
}

func (s *AssassinState) OnEnter() {
	s.Assassin.Action = game.ActionGuessing
	s.Game.Notify(fmt.Sprintf("*%s* is the :red_circle::crossed_swords:ASSASSIN. Type `kill <player>` to attempt to kill MERLIN",
		game.AtUser(s.Assassin)), game.ColorEvil, game.KindNone)
}

func (s *AssassinState) HandleMessage(msg Message) error {
	if msg.User != s.Assassin.ID {
		return nil
	}
	name, ok := game.ParseKill(msg.Text)
	if !ok {
		return nil
	}

	gs := s.Game.Game()
	accused := gs.FindByName(name)
	switch {
	case accused == nil:
		s.Game.Notify(fmt.Sprintf("%s is not a valid player", name), game.ColorNone, game.KindNone)
		return nil
	case accused.ID == s.Assassin.ID:
		s.Game.Notify("You cannot kill yourself", game.ColorNone, game.KindNone)
		return nil
	}

	logger.Log.Infow("assassin guessed", "assassin", s.Assassin.Name, "accused", accused.Name, "hit", accused.Role == game.RoleMerlin)
	reveal := gs.RevealRoles(true)
	if accused.Role == game.RoleMerlin {
		s.Game.Finish(game.SideEvil, "assassination",
			fmt.Sprintf("%s:crossed_swords:%s chose :angel:%s correctly as MERLIN.\n:red_circle: Minions of Mordred win!\n%s",
				s.status, game.AtUser(s.Assassin), game.AtUser(accused), reveal),
			game.ColorEvil)
		return nil
	}
	s.Game.Finish(game.SideGood, "assassination",
		fmt.Sprintf("%s:crossed_swords:%s chose %s as MERLIN, not :angel:%s.\n:large_blue_circle: Loyal Servants of Arthur win!\n%s",
			s.status, game.AtUser(s.Assassin), game.AtUser(accused), game.AtUser(s.Merlin), reveal),
		game.ColorGood)
	return nil
}
