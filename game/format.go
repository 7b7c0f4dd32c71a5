package game

import (
	"fmt"
	"strings"
)

const (
	markerGood    = ":large_blue_circle:"
	markerBad     = ":red_circle:"
	markerCurrent = ":black_circle:"
	markerFuture  = ":white_circle:"
)

// AtUser renders a player mention.
func AtUser(p *Player) string {
	return "@" + p.Name
}

// PrettyList renders mentions as "a, b and c".
func PrettyList(players []*Player) string {
	names := make([]string, len(players))
	for i, p := range players {
		names[i] = AtUser(p)
	}
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
}

func questLabel(req QuestRequirement) string {
	if req.FailsRequired > 1 {
		return fmt.Sprintf("%d*", req.PlayersNeeded)
	}
	return fmt.Sprintf("%d", req.PlayersNeeded)
}

// RenderStatus renders the quest track: finished quests with their outcome, the
// running quest when current is set, and unplayed quests. It never mutates state.
func RenderStatus(playerCount, questNumber int, progress []Outcome, current bool) string {
	parts := make([]string, 0, QuestCount)
	for i, res := range progress {
		marker := markerGood
		if res == OutcomeBad {
			marker = markerBad
		}
		parts = append(parts, questLabel(Requirement(playerCount, i))+marker)
	}
	if current && questNumber < QuestCount {
		parts = append(parts, questLabel(Requirement(playerCount, questNumber))+markerCurrent)
	}
	for i := len(parts); i < QuestCount; i++ {
		parts = append(parts, questLabel(Requirement(playerCount, i))+markerFuture)
	}
	return strings.Join(parts, ",")
}

func (s *State) QuestTrack(current bool) string {
	return RenderStatus(len(s.Players), s.QuestNumber, s.Progress, current)
}

// PlayerOrder renders the seating with the given leader in bold.
func (s *State) PlayerOrder(leader *Player) string {
	names := make([]string, len(s.Players))
	for i, p := range s.Players {
		if leader != nil && p.ID == leader.ID {
			names[i] = "*" + AtUser(p) + "*"
		} else {
			names[i] = AtUser(p)
		}
	}
	return strings.Join(names, ",")
}

// RevealRoles lists the evils and every special role holder.
func (s *State) RevealRoles(excludeMerlin bool) string {
	lines := []string{fmt.Sprintf("%s are :red_circle: Minions of Mordred.", PrettyList(s.Evils))}
	reveals := make(map[Role]string)
	for _, p := range s.Players {
		if !p.Role.IsSpecial() || (p.Role == RoleMerlin && excludeMerlin) {
			continue
		}
		reveals[p.Role] = fmt.Sprintf("%s is %s.", AtUser(p), p.Role.Badge())
	}
	var specials []string
	for _, r := range roleOrder {
		if line, ok := reveals[r]; ok {
			specials = append(specials, line)
		}
	}
	if len(specials) > 0 {
		lines = append(lines, strings.Join(specials, " "))
	}
	if s.Assassin != nil {
		lines = append(lines, fmt.Sprintf("%s was :crossed_swords: THE ASSASSIN.", AtUser(s.Assassin)))
	}
	return strings.Join(lines, "\n")
}

// StartBanner is prepended to the first proposal of a game.
func (s *State) StartBanner() string {
	text := fmt.Sprintf("%d out of %d players are evil.", len(s.Evils), len(s.Players))
	var badges []string
	for _, r := range roleOrder {
		if !r.IsSpecial() {
			continue
		}
		if s.firstWithRole(r) != nil {
			badges = append(badges, r.Badge())
		}
	}
	if len(badges) > 0 {
		text += "\nSpecial roles: " + strings.Join(badges, ", ")
	}
	return text
}

// RoleBriefing is the private message telling a player who they are.
func (s *State) RoleBriefing(p *Player) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s", p.Role.Title())
	if s.Assassin != nil && s.Assassin.ID == p.ID && p.Role != RoleAssassin {
		b.WriteString(" as well as :crossed_swords: THE ASSASSIN")
	}

	switch {
	case s.Config.Resistance:
		if p.Role.IsEvil() {
			fmt.Fprintf(&b, ". %s are evil", PrettyList(s.Evils))
		}
	case p.Role == RoleMerlin:
		var visible []*Player
		for _, e := range s.Evils {
			if e.Role != RoleMordred {
				visible = append(visible, e)
			}
		}
		if len(visible) == len(s.Evils) {
			fmt.Fprintf(&b, ". %s are evil.", PrettyList(s.Evils))
		} else {
			fmt.Fprintf(&b, ". %s are evil. MORDRED is hidden.", PrettyList(visible))
		}
	case p.Role == RolePercival:
		var merlins []*Player
		for _, q := range s.Players {
			if q.Role == RoleMorgana || q.Role == RoleMerlin {
				merlins = append(merlins, q)
			}
		}
		if len(merlins) == 1 {
			fmt.Fprintf(&b, ". %s is MERLIN", AtUser(merlins[0]))
		} else if len(merlins) > 1 {
			fmt.Fprintf(&b, ". One of %s is MERLIN", PrettyList(merlins))
		}
	case p.Role.IsEvil() && p.Role != RoleOberon:
		var known []*Player
		for _, e := range s.Evils {
			if e.Role != RoleOberon {
				known = append(known, e)
			}
		}
		fmt.Fprintf(&b, ". %s are evil", PrettyList(known))
	}
	return b.String()
}
