package state

import (
	"fmt"

	"github.com/wfunc/avalon/game"
	"github.com/wfunc/avalon/logger"
)

// QuestResults 任务卡结果，按到达顺序保存
type QuestResults struct {
	Succeeded []*game.Player
	Failed    []*game.Player
}

func (r *QuestResults) Count() int {
	return len(r.Succeeded) + len(r.Failed)
}

// QuestState collects succeed/fail cards from the approved team and scores the quest.
type QuestState struct {
	PhaseBase
	Leader  *game.Player
	Team    []*game.Player
	Results QuestResults
	played  map[string]bool
}

func NewQuestState(g GameContext, leader *game.Player, team []*game.Player) *QuestState {
	return &QuestState{
		PhaseBase: PhaseBase{ID: "quest", Game: g},
		Leader:    leader,
		Team:      team,
		played:    make(map[string]bool),
	}
}

func (s *QuestState) OnEnter() {
	gs := s.Game.Game()
	message := fmt.Sprintf("%s are going on the %s quest.\nCurrent quest progress: %s\nPlayer order: %s\nYou can `succeed` or `fail` this mission.",
		game.PrettyList(s.Team), game.Ordinal(gs.QuestNumber), gs.QuestTrack(true), gs.PlayerOrder(s.Leader))
	s.Game.Notify(message, game.ColorQuest, game.KindNone)
	for _, p := range s.Team {
		p.Action = game.ActionQuesting
	}
}

func (s *QuestState) member(id string) *game.Player {
	for _, p := range s.Team {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *QuestState) HandleMessage(msg Message) error {
	p := s.member(msg.User)
	if p == nil || s.played[p.ID] || p.Action != game.ActionQuesting {
		return nil
	}
	if !s.Game.FromDirect(p, msg.Channel) {
		return nil
	}
	fail, ok := game.ParseQuestResponse(msg.Text)
	if !ok {
		return nil
	}

	s.played[p.ID] = true
	p.Action = game.ActionNone
	if fail {
		s.Results.Failed = append(s.Results.Failed, p)
	} else {
		s.Results.Succeeded = append(s.Results.Succeeded, p)
	}

	if remaining := len(s.Team) - s.Results.Count(); remaining > 0 {
		s.Game.Notify(fmt.Sprintf("%s completed the quest! %d remaining...", game.AtUser(p), remaining), game.ColorNone, game.KindNone)
		return nil
	}
	return s.resolve()
}

func (s *QuestState) resolve() error {
	gs := s.Game.Game()
	quest := game.Ordinal(gs.QuestNumber)
	team := game.PrettyList(s.Team)
	fails := len(s.Results.Failed)

	outcome := gs.RecordQuest(fails)
	switch {
	case outcome == game.OutcomeBad:
		s.Game.Notify(fmt.Sprintf("%d in (%s) failed the %s quest!", fails, team, quest), game.ColorEvil, game.KindNone)
	case fails > 0:
		s.Game.Notify(fmt.Sprintf("%s succeeded the %s quest with %d fail!", team, quest, fails), game.ColorGood, game.KindNone)
	default:
		s.Game.Notify(fmt.Sprintf("%s succeeded the %s quest!", team, quest), game.ColorGood, game.KindNone)
	}
	logger.Log.Infow("quest resolved", "quest", gs.QuestNumber-1, "outcome", outcome, "fails", fails)

	score := gs.Score()
	switch {
	case score.Bad >= game.WinningScore:
		EndGame(s.Game, game.SideEvil, "quests", ":red_circle: Minions of Mordred win by failing 3 quests!", game.ColorEvil, false)
		return nil
	case score.Good >= game.WinningScore:
		merlin := gs.Merlin()
		if merlin == nil || gs.Assassin == nil {
			EndGame(s.Game, game.SideGood, "quests", ":large_blue_circle: Loyal Servents of Arthur win by succeeding 3 quests!", game.ColorGood, false)
			return nil
		}
		status := fmt.Sprintf("Quest Results: %s\n", gs.QuestTrack(false))
		s.Game.Notify(status+"Victory is near for :large_blue_circle: Loyal Servents of Arthur for succeeding 3 quests!", game.ColorNone, game.KindNone)
		return s.Game.ChangeState(NewPauseState(s.Game, s.Game.Timing().AssassinDelay, func() State {
			return NewAssassinState(s.Game, merlin, status)
		}))
	}

	gs.NextLeader()
	return s.Game.ChangeState(NewPauseState(s.Game, s.Game.Timing().Pause, func() State {
		return NewProposalState(s.Game)
	}))
}
