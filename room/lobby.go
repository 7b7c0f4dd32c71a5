package room

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wfunc/avalon/game"
)

var (
	ErrAlreadyJoined    = errors.New("already joined")
	ErrLobbyFull        = errors.New("lobby is full")
	ErrNotEnoughPlayers = errors.New("not enough players")
)

// Lobby 开局前收集玩家和规则
type Lobby struct {
	Config  game.Config
	Players []*game.Player
}

func NewLobby(cfg game.Config) *Lobby {
	return &Lobby{Config: cfg.Clone()}
}

func (l *Lobby) Title() string {
	if l.Config.Resistance {
		return "Resistance"
	}
	return "Avalon"
}

func (l *Lobby) Mode() string {
	return strings.ToLower(l.Title())
}

func (l *Lobby) Has(userID string) bool {
	for _, p := range l.Players {
		if p.ID == userID {
			return true
		}
	}
	return false
}

// Join seats a user in arrival order.
func (l *Lobby) Join(userID, name string) error {
	if l.Has(userID) {
		return ErrAlreadyJoined
	}
	if len(l.Players) >= game.MaxPlayers {
		return ErrLobbyFull
	}
	l.Players = append(l.Players, game.NewPlayer(userID, name))
	return nil
}

// Ready reports whether the lobby can start a game.
func (l *Lobby) Ready() error {
	if len(l.Players) < game.MinPlayers {
		return fmt.Errorf("%w: %d joined, need %d-%d", ErrNotEnoughPlayers, len(l.Players), game.MinPlayers, game.MaxPlayers)
	}
	return nil
}

// JoinMessage narrates a successful join.
func (l *Lobby) JoinMessage(p *game.Player) string {
	lines := []string{fmt.Sprintf("%s has joined the game.", game.AtUser(p))}
	switch n := len(l.Players); {
	case n == game.MaxPlayers:
		lines = append(lines, fmt.Sprintf("Maximum %d players %s are in game so far.", n, game.PrettyList(l.Players)))
	case n > 1:
		lines = append(lines, fmt.Sprintf("%d players %s are in game so far.", n, game.PrettyList(l.Players)))
	}
	return strings.Join(lines, "\n")
}

var roleSeparators = strings.NewReplacer(",", " ")

// EditRoles applies `include`/`exclude` arguments and returns the names it
// could not parse.
func (l *Lobby) EditRoles(args string, include bool) []string {
	var unknown []string
	for _, name := range strings.Fields(roleSeparators.Replace(args)) {
		role, err := game.ParseRole(name)
		if err != nil {
			unknown = append(unknown, name)
			continue
		}
		if include {
			l.Config.Include(role)
		} else {
			l.Config.Exclude(role)
		}
	}
	return unknown
}

func (l *Lobby) RolesMessage() string {
	if len(l.Config.SpecialRoles) == 0 {
		return "Special roles: none"
	}
	names := make([]string, len(l.Config.SpecialRoles))
	for i, r := range l.Config.SpecialRoles {
		names[i] = string(r)
	}
	return "Special roles: " + strings.Join(names, ", ")
}
