// game/state.go
package game

import (
	"errors"
	"fmt"
)

var (
	ErrNotRunning     = errors.New("game is not running")
	ErrAlreadyStarted = errors.New("game already started")
)

// Status 游戏整体状态
type Status int

const (
	StatusNotStarted Status = iota
	StatusRunning
	StatusEnded
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusEnded:
		return "ended"
	}
	return "not-started"
}

// State is the mutable core of one game. It is owned by a single engine and is
// not safe for concurrent use.
type State struct {
	Config       Config
	Players      []*Player
	Evils        []*Player
	Assassin     *Player
	QuestPlayers []*Player
	Progress     []Outcome
	QuestNumber  int
	RejectCount  int
	Status       Status
	Winner       Side
	EndReason    string

	leader int
}

// NewState prepares a game for the given lobby players.
func NewState(players []*Player, cfg Config) *State {
	return &State{
		Config:  cfg.Clone(),
		Players: append([]*Player(nil), players...),
	}
}

// Start seats the players, deals roles and picks the first leader.
func (s *State) Start(shuffler Shuffler) error {
	if s.Status != StatusNotStarted {
		return ErrAlreadyStarted
	}
	if err := s.Config.Validate(); err != nil {
		return err
	}
	slots, err := ComputeRoleSlots(len(s.Players), s.Config.SpecialRoles, s.Config.Resistance)
	if err != nil {
		return err
	}

	shuffler.Shuffle(len(s.Players), func(i, j int) {
		s.Players[i], s.Players[j] = s.Players[j], s.Players[i]
	})
	if err := AssignRoles(s.Players, slots, shuffler); err != nil {
		return err
	}

	s.Evils = s.Evils[:0]
	for _, p := range s.Players {
		p.Action = ActionNone
		if p.Role.IsEvil() {
			s.Evils = append(s.Evils, p)
		}
	}
	if !s.Config.Resistance {
		s.Assassin = SelectAssassin(s.Evils, shuffler)
	}

	s.leader = 0
	if s.Config.Order == OrderRandom {
		s.leader = shuffler.Intn(len(s.Players))
	}
	s.QuestNumber = 0
	s.RejectCount = 0
	s.Progress = nil
	s.QuestPlayers = nil
	s.Status = StatusRunning
	return nil
}

func (s *State) Running() bool {
	return s.Status == StatusRunning
}

func (s *State) Leader() *Player {
	if len(s.Players) == 0 {
		return nil
	}
	return s.Players[s.leader]
}

// NextLeader hands leadership to the next seat, wrapping around.
func (s *State) NextLeader() *Player {
	s.leader = (s.leader + 1) % len(s.Players)
	return s.Players[s.leader]
}

// Requirement for the current quest.
func (s *State) Requirement() QuestRequirement {
	return Requirement(len(s.Players), s.QuestNumber)
}

// Approve records an approved proposal.
func (s *State) Approve(team []*Player) {
	s.RejectCount = 0
	s.QuestPlayers = append([]*Player(nil), team...)
}

// Reject records a rejected proposal and reports whether evil has now won by
// rejection.
func (s *State) Reject() bool {
	s.RejectCount++
	return s.RejectCount >= MaxRejections
}

// RecordQuest scores the current quest from its fail count.
func (s *State) RecordQuest(failCount int) Outcome {
	outcome := OutcomeGood
	if failCount >= s.Requirement().FailsRequired {
		outcome = OutcomeBad
	}
	s.Progress = append(s.Progress, outcome)
	s.QuestNumber++
	s.QuestPlayers = nil
	return outcome
}

func (s *State) Score() Score {
	var score Score
	for _, o := range s.Progress {
		if o == OutcomeGood {
			score.Good++
		} else {
			score.Bad++
		}
	}
	return score
}

// End moves the game to its terminal status. Ending twice keeps the first result.
func (s *State) End(winner Side, reason string) {
	if s.Status == StatusEnded {
		return
	}
	s.Status = StatusEnded
	s.Winner = winner
	s.EndReason = reason
	s.ClearActions()
}

func (s *State) ClearActions() {
	for _, p := range s.Players {
		p.Action = ActionNone
	}
}

func (s *State) Merlin() *Player {
	return s.firstWithRole(RoleMerlin)
}

func (s *State) firstWithRole(role Role) *Player {
	for _, p := range s.Players {
		if p.Role == role {
			return p
		}
	}
	return nil
}

func (s *State) PlayerByID(id string) *Player {
	for _, p := range s.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// FindByName resolves a display name case-insensitively.
func (s *State) FindByName(name string) *Player {
	for _, p := range s.Players {
		if SameName(p.Name, name) {
			return p
		}
	}
	return nil
}

// ResolveTeam maps proposed names onto seated players in seating order.
// Names that match nobody are dropped and duplicates collapse.
func (s *State) ResolveTeam(names []string) []*Player {
	var team []*Player
	for _, p := range s.Players {
		for _, name := range names {
			if SameName(p.Name, name) {
				team = append(team, p)
				break
			}
		}
	}
	return team
}

func (s *State) String() string {
	return fmt.Sprintf("quest=%d progress=%v rejects=%d status=%s", s.QuestNumber, s.Progress, s.RejectCount, s.Status)
}
