package state

import (
	"fmt"

	"github.com/wfunc/avalon/game"
	"github.com/wfunc/avalon/logger"
)

// Votes 一次提案的投票结果，按到达顺序保存
type Votes struct {
	Approved []*game.Player
	Rejected []*game.Player
}

func (v *Votes) Count() int {
	return len(v.Approved) + len(v.Rejected)
}

// Passed applies the majority rule; ties reject.
func (v *Votes) Passed() bool {
	return len(v.Approved) > len(v.Rejected)
}

// VotingState collects one approve/reject per player for a proposed team.
type VotingState struct {
	PhaseBase
	Leader *game.Player
	Team   []*game.Player
	Votes  Votes
	voted  map[string]bool
}

func NewVotingState(g GameContext, leader *game.Player, team []*game.Player) *VotingState {
	return &VotingState{
		PhaseBase: PhaseBase{ID: "voting", Game: g},
		Leader:    leader,
		Team:      team,
		voted:     make(map[string]bool),
	}
}

func (s *VotingState) OnEnter() {
	gs := s.Game.Game()
	message := fmt.Sprintf("%s is sending %s to the %s quest.\nVote `approve` or `reject`",
		game.AtUser(s.Leader), game.PrettyList(s.Team), game.Ordinal(gs.QuestNumber))
	s.Game.Notify(message, game.ColorVote, game.KindNone)
	for _, p := range gs.Players {
		p.Action = game.ActionVoting
	}
}

func (s *VotingState) HandleMessage(msg Message) error {
	gs := s.Game.Game()
	p := gs.PlayerByID(msg.User)
	if p == nil || s.voted[p.ID] || p.Action != game.ActionVoting {
		return nil
	}
	if !s.Game.FromDirect(p, msg.Channel) {
		return nil
	}
	approve, ok := game.ParseVote(msg.Text)
	if !ok {
		return nil
	}

	s.voted[p.ID] = true
	p.Action = game.ActionNone
	if approve {
		s.Votes.Approved = append(s.Votes.Approved, p)
	} else {
		s.Votes.Rejected = append(s.Votes.Rejected, p)
	}

	if remaining := len(gs.Players) - s.Votes.Count(); remaining > 0 {
		plural := ""
		if remaining > 1 {
			plural = "s"
		}
		s.Game.Notify(fmt.Sprintf("%s voted! %d vote%s left.", game.AtUser(p), remaining, plural), game.ColorNone, game.KindNone)
		return nil
	}
	return s.resolve()
}

func (s *VotingState) resolve() error {
	gs := s.Game.Game()
	gs.ClearActions()
	quest := game.Ordinal(gs.QuestNumber)
	team := game.PrettyList(s.Team)

	if s.Votes.Passed() {
		gs.Approve(s.Team)
		s.Game.Notify(fmt.Sprintf("The %s quest with %s going was approved by %s (%s rejected)",
			quest, team, game.PrettyList(s.Votes.Approved), orNoOne(s.Votes.Rejected)), game.ColorNone, game.KindNone)
		logger.Log.Infow("proposal approved", "quest", gs.QuestNumber, "approved", len(s.Votes.Approved), "rejected", len(s.Votes.Rejected))
		leader, teamPlayers := s.Leader, gs.QuestPlayers
		return s.Game.ChangeState(NewPauseState(s.Game, s.Game.Timing().Pause, func() State {
			return NewQuestState(s.Game, leader, teamPlayers)
		}))
	}

	lost := gs.Reject()
	s.Game.Notify(fmt.Sprintf("The %s quest with %s going was rejected (%d) by %s (%s approved)",
		quest, team, gs.RejectCount, game.PrettyList(s.Votes.Rejected), orNoOne(s.Votes.Approved)), game.ColorNone, game.KindNone)
	logger.Log.Infow("proposal rejected", "quest", gs.QuestNumber, "rejectCount", gs.RejectCount)
	if lost {
		EndGame(s.Game, game.SideEvil, "rejections",
			fmt.Sprintf(":red_circle: Minions of Mordred win due to the %s quest rejected %d times!", quest, game.MaxRejections),
			game.ColorEvil, true)
		return nil
	}
	gs.NextLeader()
	return s.Game.ChangeState(NewPauseState(s.Game, s.Game.Timing().Pause, func() State {
		return NewProposalState(s.Game)
	}))
}

func orNoOne(players []*game.Player) string {
	if len(players) == 0 {
		return "no one"
	}
	return game.PrettyList(players)
}
