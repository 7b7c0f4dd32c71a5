// game/roles.go
package game

import (
	"errors"
	"fmt"
)

const (
	MinPlayers = 5
	MaxPlayers = 10
)

var (
	ErrInvalidPlayerCount = errors.New("invalid player count")
	ErrUnknownRole        = errors.New("unknown role")
)

// Role 玩家身份
type Role string

const (
	RoleGood     Role = "good"
	RoleBad      Role = "bad"
	RoleMerlin   Role = "merlin"
	RolePercival Role = "percival"
	RoleMorgana  Role = "morgana"
	RoleMordred  Role = "mordred"
	RoleOberon   Role = "oberon"
	RoleAssassin Role = "assassin"
)

// roleOrder is the order roles are listed in reveals and start banners.
var roleOrder = []Role{RoleBad, RoleGood, RoleAssassin, RoleOberon, RoleMorgana, RoleMordred, RolePercival, RoleMerlin}

var roleTitles = map[Role]string{
	RoleBad:      ":red_circle: Minion of Mordred",
	RoleGood:     ":large_blue_circle: Loyal Servent of Arthur",
	RoleAssassin: ":crossed_swords: THE ASSASSIN :red_circle: Minion of Mordred",
	RoleOberon:   ":alien: OBERON :red_circle: Minion of Mordred",
	RoleMorgana:  ":japanese_ogre: MORGANA :red_circle: Minion of Mordred. You pose as MERLIN",
	RoleMordred:  ":smiling_imp: MORDRED :red_circle: Unknown to MERLIN",
	RolePercival: ":cop: PERCIVAL :large_blue_circle: Loyal Servent of Arthur",
	RoleMerlin:   ":angel: MERLIN :large_blue_circle: Loyal Servent of Arthur",
}

var roleBadges = map[Role]string{
	RoleMerlin:   ":angel: MERLIN",
	RolePercival: ":cop: PERCIVAL",
	RoleMorgana:  ":japanese_ogre: MORGANA",
	RoleMordred:  ":smiling_imp: MORDRED",
	RoleOberon:   ":alien: OBERON",
}

// baseAssigns 各人数下的坏人/好人基础配比
var baseAssigns = map[int][2]int{
	5:  {2, 3},
	6:  {2, 4},
	7:  {3, 4},
	8:  {3, 5},
	9:  {3, 6},
	10: {4, 6},
}

// ParseRole resolves a special role name typed by a player.
func ParseRole(name string) (Role, error) {
	r := Role(foldName(name))
	switch r {
	case RoleMerlin, RolePercival, RoleMorgana, RoleMordred, RoleOberon:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, name)
}

// IsEvil reports whether the role plays for Mordred.
func (r Role) IsEvil() bool {
	switch r {
	case RoleGood, RoleMerlin, RolePercival:
		return false
	}
	return true
}

// IsSpecial reports whether the role is a named special role.
func (r Role) IsSpecial() bool {
	_, ok := roleBadges[r]
	return ok
}

func (r Role) Title() string {
	return roleTitles[r]
}

func (r Role) Badge() string {
	return roleBadges[r]
}

// BaseSplit returns the number of bad and good players for a table size.
func BaseSplit(playerCount int) (bad, good int, err error) {
	split, ok := baseAssigns[playerCount]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %d (must be %d-%d)", ErrInvalidPlayerCount, playerCount, MinPlayers, MaxPlayers)
	}
	return split[0], split[1], nil
}

// ComputeRoleSlots builds the multiset of roles dealt for a table.
// Merlin always takes a good slot outside resistance mode; percival takes another
// when requested; evil specials take bad slots in request order while any remain,
// and one remaining bad slot becomes the assassin.
func ComputeRoleSlots(playerCount int, specialRoles []Role, resistance bool) ([]Role, error) {
	bad, good, err := BaseSplit(playerCount)
	if err != nil {
		return nil, err
	}

	slots := make([]Role, 0, playerCount)
	for i := 0; i < bad; i++ {
		slots = append(slots, RoleBad)
	}
	for i := 0; i < good; i++ {
		slots = append(slots, RoleGood)
	}
	if resistance {
		return slots, nil
	}

	retarget := func(from, to Role) {
		for i, slot := range slots {
			if slot == from {
				slots[i] = to
				return
			}
		}
	}

	retarget(RoleGood, RoleMerlin)
	for _, role := range specialRoles {
		switch role {
		case RoleMerlin:
		case RolePercival:
			if !contains(slots, RolePercival) {
				retarget(RoleGood, RolePercival)
			}
		case RoleMorgana, RoleMordred, RoleOberon:
			if !contains(slots, role) {
				retarget(RoleBad, role)
			}
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
		}
	}
	retarget(RoleBad, RoleAssassin)
	return slots, nil
}

// Shuffler is the randomness source of a game; *rand.Rand satisfies it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
	Intn(n int) int
}

// AssignRoles deals the slots to the players through a uniform shuffle.
func AssignRoles(players []*Player, slots []Role, shuffler Shuffler) error {
	if len(players) != len(slots) {
		return fmt.Errorf("%w: %d players for %d roles", ErrInvalidPlayerCount, len(players), len(slots))
	}
	dealt := make([]Role, len(slots))
	copy(dealt, slots)
	shuffler.Shuffle(len(dealt), func(i, j int) {
		dealt[i], dealt[j] = dealt[j], dealt[i]
	})
	for i, p := range players {
		p.Role = dealt[i]
	}
	return nil
}

// SelectAssassin returns the assassin slot holder, or a random evil when no one
// was dealt the slot.
func SelectAssassin(evils []*Player, shuffler Shuffler) *Player {
	for _, p := range evils {
		if p.Role == RoleAssassin {
			return p
		}
	}
	if len(evils) == 0 {
		return nil
	}
	return evils[shuffler.Intn(len(evils))]
}

func contains(roles []Role, role Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
