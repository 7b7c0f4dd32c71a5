package state

import (
	"fmt"

	"github.com/wfunc/avalon/game"
	"github.com/wfunc/avalon/logger"
)

// ProposalState waits for the leader to name a team with `send`.
type ProposalState struct {
	PhaseBase
	Leader *game.Player
}

func NewProposalState(g GameContext) *ProposalState {
	return &ProposalState{
		PhaseBase: PhaseBase{ID: "proposal", Game: g},
		Leader:    g.Game().Leader(),
	}
}

func (s *ProposalState) OnEnter() {
	gs := s.Game.Game()
	req := gs.Requirement()

	fails := ""
	if req.FailsRequired > 1 {
		fails = fmt.Sprintf("(%d fails required) ", req.FailsRequired)
	}
	status := fmt.Sprintf("Quest progress: %s\nPlayer order: %s\n", gs.QuestTrack(true), gs.PlayerOrder(s.Leader))
	message := fmt.Sprintf("%s%s chooses %d players %sto go on the %s quest. (.eg `send name1, name2`)",
		status, game.AtUser(s.Leader), req.PlayersNeeded, fails, game.Ordinal(gs.QuestNumber))

	kind := game.KindNone
	if gs.QuestNumber == 0 && gs.RejectCount == 0 {
		kind = game.KindStart
		message = gs.StartBanner() + "\n" + message
	}
	s.Game.Notify(message, game.ColorProposal, kind)
	s.Leader.Action = game.ActionProposing
}

func (s *ProposalState) HandleMessage(msg Message) error {
	if msg.User != s.Leader.ID {
		return nil
	}
	names, ok := game.ParseProposal(msg.Text)
	if !ok {
		return nil
	}

	gs := s.Game.Game()
	req := gs.Requirement()
	var team []*game.Player
	if len(names) == req.PlayersNeeded {
		team = gs.ResolveTeam(names)
	}
	if len(team) != req.PlayersNeeded {
		s.Game.Notify(fmt.Sprintf("You need to send %d players. (You only chosen %d valid players)", req.PlayersNeeded, len(team)), game.ColorProposal, game.KindNone)
		return nil
	}

	logger.Log.Infow("team proposed", "leader", s.Leader.Name, "quest", gs.QuestNumber, "team", len(team))
	s.Leader.Action = game.ActionNone
	return s.Game.ChangeState(NewVotingState(s.Game, s.Leader, team))
}
