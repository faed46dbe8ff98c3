package roles

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedRole is the YAML representation of a role seed entry. Features use
// plain nested maps; limits are a flat key to integer map.
type SeedRole struct {
	Name         string                 `yaml:"name"`
	DisplayName  string                 `yaml:"display_name"`
	Rank         int                    `yaml:"rank"`
	Features     map[string]interface{} `yaml:"features"`
	Limits       map[string]int         `yaml:"limits"`
	PriceMonthly float64                `yaml:"price_monthly"`
	PriceYearly  float64                `yaml:"price_yearly"`
	DisplayOrder int                    `yaml:"display_order"`
}

// seedFile is the top-level YAML document
type seedFile struct {
	Roles []SeedRole `yaml:"roles"`
}

// LoadSeedFile parses a YAML role seed file into role definitions
func LoadSeedFile(path string) ([]Role, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var doc seedFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	result := make([]Role, 0, len(doc.Roles))
	for _, sr := range doc.Roles {
		if sr.Name == "" {
			return nil, fmt.Errorf("seed role with empty name")
		}
		tree, err := featureTreeFromMap(sr.Features)
		if err != nil {
			return nil, fmt.Errorf("seed role %q: %w", sr.Name, err)
		}
		limits := sr.Limits
		if limits == nil {
			limits = Limits{}
		}
		result = append(result, Role{
			Name:         sr.Name,
			DisplayName:  sr.DisplayName,
			Rank:         sr.Rank,
			Features:     tree,
			Limits:       limits,
			PriceMonthly: sr.PriceMonthly,
			PriceYearly:  sr.PriceYearly,
			IsActive:     true,
			DisplayOrder: sr.DisplayOrder,
		})
	}
	return result, nil
}

// featureTreeFromMap converts a decoded YAML map into a feature tree
func featureTreeFromMap(m map[string]interface{}) (FeatureTree, error) {
	tree := make(FeatureTree, len(m))
	for key, value := range m {
		node, err := featureNodeFromValue(value)
		if err != nil {
			return nil, fmt.Errorf("feature %q: %w", key, err)
		}
		tree[key] = node
	}
	return tree, nil
}

func featureNodeFromValue(value interface{}) (*FeatureNode, error) {
	switch v := value.(type) {
	case bool:
		return BoolNode(v), nil
	case int:
		return NumberNode(float64(v)), nil
	case float64:
		return NumberNode(v), nil
	case map[string]interface{}:
		children := make(map[string]*FeatureNode, len(v))
		for key, child := range v {
			node, err := featureNodeFromValue(child)
			if err != nil {
				return nil, fmt.Errorf("%q: %w", key, err)
			}
			children[key] = node
		}
		return ObjectNode(children), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", value)
	}
}

// SeedDefaults inserts any of the given roles missing from the registry.
// Existing roles are left untouched so administrator edits survive restarts.
func SeedDefaults(ctx context.Context, store *Store, seed []Role) error {
	if seed == nil {
		seed = BuiltInRoles()
	}

	for i := range seed {
		role := seed[i]
		_, err := store.GetRoleByName(ctx, role.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("failed to check role %s: %w", role.Name, err)
		}
		if err := store.CreateRole(ctx, &role); err != nil {
			return fmt.Errorf("failed to seed role %s: %w", role.Name, err)
		}
	}
	return nil
}
