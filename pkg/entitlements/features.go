package entitlements

import (
	"strings"

	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/roles"
)

// HasFeature walks the role's feature tree along a dot-separated path and
// reports whether the leaf is boolean true. Missing segments, attempts to
// descend through a leaf, and non-boolean leaves all report false. Path
// segments are matched case-sensitively.
func HasFeature(role *roles.Role, path string) bool {
	if role == nil || path == "" {
		return false
	}

	segments := strings.Split(path, ".")
	var node *roles.FeatureNode
	tree := role.Features
	for i, segment := range segments {
		if i == 0 {
			var ok bool
			node, ok = tree[segment]
			if !ok {
				return false
			}
			continue
		}
		if node == nil || node.Children == nil {
			return false
		}
		var ok bool
		node, ok = node.Children[segment]
		if !ok {
			return false
		}
	}

	return node.IsTrue()
}
