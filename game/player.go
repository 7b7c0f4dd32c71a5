package game

import (
	"strings"

	"golang.org/x/text/cases"
)

// Action gates which incoming messages matter for a player.
type Action int

const (
	ActionNone Action = iota
	ActionProposing
	ActionVoting
	ActionQuesting
	ActionGuessing
)

func (a Action) String() string {
	switch a {
	case ActionProposing:
		return "proposing"
	case ActionVoting:
		return "voting"
	case ActionQuesting:
		return "questing"
	case ActionGuessing:
		return "guessing"
	}
	return "none"
}

// Player 游戏中的玩家。ID 和 Name 由外部大厅提供，Role 与 Action 只由引擎修改。
type Player struct {
	ID     string
	Name   string
	Role   Role
	Action Action
}

func NewPlayer(id, name string) *Player {
	return &Player{ID: id, Name: name}
}

var folder = cases.Fold()

func foldName(name string) string {
	return folder.String(strings.TrimSpace(name))
}

// SameName compares display names case-insensitively.
func SameName(a, b string) bool {
	return foldName(a) == foldName(b)
}
