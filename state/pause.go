package state

import "time"

// PauseState holds the game between narrative beats, then enters the next phase.
type PauseState struct {
	PhaseBase
	Remaining time.Duration
	next      func() State
}

func NewPauseState(g GameContext, delay time.Duration, next func() State) *PauseState {
	return &PauseState{
		PhaseBase: PhaseBase{ID: "pause", Game: g},
		Remaining: delay,
		next:      next,
	}
}

func (s *PauseState) OnUpdate(elapsed time.Duration) {
	s.Remaining -= elapsed
	if s.Remaining <= 0 {
		s.Game.ChangeState(s.next())
	}
}
