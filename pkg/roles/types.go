// Package roles defines the role registry: named bundles of feature flags,
// numeric limits, and an ordinal rank that the entitlement engine resolves
// accounts against.
package roles

import (
	"encoding/json"
	"fmt"
	"time"
)

// Canonical role names
const (
	RoleFree    = "free"
	RolePro     = "pro"
	RolePremium = "premium"
	RoleAdmin   = "admin"
)

// Rank values for the four canonical roles. Rank is used only for
// minimum-role checks; feature and limit resolution always use exact
// role lookups.
const (
	RankFree    = 0
	RankPro     = 1
	RankPremium = 2
	RankAdmin   = 3
)

// Unlimited is the sentinel limit value meaning no ceiling. It is never
// compared numerically against usage.
const Unlimited = -1

// rankByName maps canonical role names to their ordinal rank
var rankByName = map[string]int{
	RoleFree:    RankFree,
	RolePro:     RankPro,
	RolePremium: RankPremium,
	RoleAdmin:   RankAdmin,
}

// RankOf returns the ordinal rank for a role name. Unknown names rank as
// free (0), so a minimum-role check against any paid tier denies them.
func RankOf(name string) int {
	if rank, ok := rankByName[name]; ok {
		return rank
	}
	return RankFree
}

// FeatureNode is one node of a role's feature tree: either a boolean leaf,
// a numeric leaf, or an object of child nodes. Exactly one of the three
// fields is set.
type FeatureNode struct {
	Bool     *bool
	Number   *float64
	Children map[string]*FeatureNode
}

// BoolNode returns a boolean leaf
func BoolNode(v bool) *FeatureNode {
	return &FeatureNode{Bool: &v}
}

// NumberNode returns a numeric leaf
func NumberNode(v float64) *FeatureNode {
	return &FeatureNode{Number: &v}
}

// ObjectNode returns an object node with the given children
func ObjectNode(children map[string]*FeatureNode) *FeatureNode {
	return &FeatureNode{Children: children}
}

// IsTrue reports whether the node is a boolean leaf holding true
func (n *FeatureNode) IsTrue() bool {
	return n != nil && n.Bool != nil && *n.Bool
}

// MarshalJSON encodes the node as its underlying JSON value
func (n *FeatureNode) MarshalJSON() ([]byte, error) {
	switch {
	case n.Bool != nil:
		return json.Marshal(*n.Bool)
	case n.Number != nil:
		return json.Marshal(*n.Number)
	case n.Children != nil:
		return json.Marshal(n.Children)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes a JSON value into the matching node shape.
// Strings, arrays and null are rejected; the feature namespace only
// carries booleans, numbers and objects.
func (n *FeatureNode) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		n.Bool = &b
		n.Number = nil
		n.Children = nil
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		n.Number = &f
		n.Bool = nil
		n.Children = nil
		return nil
	}

	var children map[string]*FeatureNode
	if err := json.Unmarshal(data, &children); err == nil {
		n.Children = children
		n.Bool = nil
		n.Number = nil
		return nil
	}

	return fmt.Errorf("unsupported feature node value: %s", string(data))
}

// FeatureTree is the root of a role's feature namespace
type FeatureTree map[string]*FeatureNode

// Limits maps flat limit keys to integer ceilings; Unlimited (-1) means
// no ceiling
type Limits map[string]int

// Role represents a role definition in the registry
type Role struct {
	ID           int64       `json:"id"`
	Name         string      `json:"name"`
	DisplayName  string      `json:"display_name"`
	Rank         int         `json:"rank"`
	Features     FeatureTree `json:"features"`
	Limits       Limits      `json:"limits"`
	PriceMonthly float64     `json:"price_monthly"`
	PriceYearly  float64     `json:"price_yearly"`
	IsActive     bool        `json:"is_active"`
	DisplayOrder int         `json:"display_order"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// IsAdmin reports whether the role is the admin role by exact name match
func (r *Role) IsAdmin() bool {
	return r.Name == RoleAdmin
}

// BuiltInRoles returns the four canonical role definitions used to seed a
// fresh registry
func BuiltInRoles() []Role {
	return []Role{
		{
			Name:        RoleFree,
			DisplayName: "Free",
			Rank:        RankFree,
			Features: FeatureTree{
				"scripts": ObjectNode(map[string]*FeatureNode{
					"can_install": BoolNode(true),
					"can_publish": BoolNode(false),
					"can_feature": BoolNode(false),
				}),
				"api": ObjectNode(map[string]*FeatureNode{
					"can_use": BoolNode(false),
				}),
				"support": ObjectNode(map[string]*FeatureNode{
					"priority": BoolNode(false),
				}),
			},
			Limits: Limits{
				"max_active_keys":    1,
				"max_scripts":        3,
				"max_referral_codes": 1,
			},
			IsActive:     true,
			DisplayOrder: 0,
		},
		{
			Name:         RolePro,
			DisplayName:  "Pro",
			Rank:         RankPro,
			PriceMonthly: 9.99,
			PriceYearly:  99.99,
			Features: FeatureTree{
				"scripts": ObjectNode(map[string]*FeatureNode{
					"can_install": BoolNode(true),
					"can_publish": BoolNode(true),
					"can_feature": BoolNode(false),
				}),
				"api": ObjectNode(map[string]*FeatureNode{
					"can_use": BoolNode(true),
				}),
				"support": ObjectNode(map[string]*FeatureNode{
					"priority": BoolNode(false),
				}),
			},
			Limits: Limits{
				"max_active_keys":    5,
				"max_scripts":        25,
				"max_referral_codes": 5,
			},
			IsActive:     true,
			DisplayOrder: 1,
		},
		{
			Name:         RolePremium,
			DisplayName:  "Premium",
			Rank:         RankPremium,
			PriceMonthly: 24.99,
			PriceYearly:  249.99,
			Features: FeatureTree{
				"scripts": ObjectNode(map[string]*FeatureNode{
					"can_install": BoolNode(true),
					"can_publish": BoolNode(true),
					"can_feature": BoolNode(true),
				}),
				"api": ObjectNode(map[string]*FeatureNode{
					"can_use": BoolNode(true),
				}),
				"support": ObjectNode(map[string]*FeatureNode{
					"priority": BoolNode(true),
				}),
			},
			Limits: Limits{
				"max_active_keys":    Unlimited,
				"max_scripts":        Unlimited,
				"max_referral_codes": 25,
			},
			IsActive:     true,
			DisplayOrder: 2,
		},
		{
			Name:        RoleAdmin,
			DisplayName: "Administrator",
			Rank:        RankAdmin,
			Features: FeatureTree{
				"scripts": ObjectNode(map[string]*FeatureNode{
					"can_install": BoolNode(true),
					"can_publish": BoolNode(true),
					"can_feature": BoolNode(true),
				}),
				"api": ObjectNode(map[string]*FeatureNode{
					"can_use": BoolNode(true),
				}),
				"support": ObjectNode(map[string]*FeatureNode{
					"priority": BoolNode(true),
				}),
			},
			Limits: Limits{
				"max_active_keys":    Unlimited,
				"max_scripts":        Unlimited,
				"max_referral_codes": Unlimited,
			},
			IsActive:     true,
			DisplayOrder: 3,
		},
	}
}
