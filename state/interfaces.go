// state/interfaces.go
package state

import (
	"time"

	"github.com/wfunc/avalon/game"
)

// Message is an inbound chat event attributed to a player in some channel.
type Message struct {
	User    string
	Text    string
	Channel string
}

// Timing holds the narrative delays between game beats.
type Timing struct {
	Pause         time.Duration
	AssassinDelay time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		Pause:         3 * time.Second,
		AssassinDelay: time.Second,
	}
}

// GameContext defines what a phase needs from the engine running it.
// This breaks the import cycle between engine and state.
type GameContext interface {
	Game() *game.State
	Timing() Timing
	ChangeState(newState State) error
	Notify(message string, color game.Color, kind game.Kind)
	NotifyPlayer(p *game.Player, message string, color game.Color, kind game.Kind)
	// FromDirect reports whether a message on channel came through the
	// player's direct channel.
	FromDirect(p *game.Player, channel string) bool
	// Finish announces the final message and terminates the game.
	Finish(winner game.Side, reason, message string, color game.Color)
}
