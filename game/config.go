package game

import (
	"errors"
	"fmt"
)

var ErrInvalidOrder = errors.New("invalid leader order")

// LeaderOrder decides who leads the first proposal.
type LeaderOrder string

const (
	OrderTurn   LeaderOrder = "turn"
	OrderRandom LeaderOrder = "random"
)

// Config 游戏规则配置，开局前确定，游戏中只读
type Config struct {
	Resistance   bool
	LadyOfLake   bool
	Order        LeaderOrder
	SpecialRoles []Role
}

func DefaultConfig() Config {
	return Config{
		Order:        OrderTurn,
		SpecialRoles: []Role{RoleMerlin, RolePercival, RoleMorgana},
	}
}

// Validate checks the named fields before a game starts.
func (c Config) Validate() error {
	switch c.Order {
	case OrderTurn, OrderRandom:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOrder, c.Order)
	}
	for _, r := range c.SpecialRoles {
		if !r.IsSpecial() {
			return fmt.Errorf("%w: %q", ErrUnknownRole, r)
		}
	}
	return nil
}

// Include adds a special role, moving it to the end if already present.
func (c *Config) Include(role Role) {
	c.Exclude(role)
	c.SpecialRoles = append(c.SpecialRoles, role)
}

// Exclude removes a special role and reports whether it was present.
func (c *Config) Exclude(role Role) bool {
	for i, r := range c.SpecialRoles {
		if r == role {
			c.SpecialRoles = append(c.SpecialRoles[:i:i], c.SpecialRoles[i+1:]...)
			return true
		}
	}
	return false
}

// Clone returns a copy that does not share the role slice.
func (c Config) Clone() Config {
	out := c
	out.SpecialRoles = append([]Role(nil), c.SpecialRoles...)
	return out
}
