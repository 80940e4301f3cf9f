package category

import (
	"fmt"
	"strings"
)

// DeletePolicy decides what happens to a deleted node's children. The three
// behaviors observed in the admin UI are unified behind one explicit
// parameter; restrict is the default.
type DeletePolicy string

const (
	// DeleteRestrict refuses to delete a node that still has children.
	DeleteRestrict DeletePolicy = "restrict"
	// DeleteCascade removes the node and its whole subtree.
	DeleteCascade DeletePolicy = "cascade"
	// DeleteMove re-parents children to the deleted node's parent.
	DeleteMove DeletePolicy = "move"
)

func ParseDeletePolicy(s string) (DeletePolicy, error) {
	switch DeletePolicy(s) {
	case "", DeleteRestrict:
		return DeleteRestrict, nil
	case DeleteCascade:
		return DeleteCascade, nil
	case DeleteMove:
		return DeleteMove, nil
	}
	return "", fmt.Errorf("unknown delete policy %q", s)
}

// ChildPath joins a parent path and a slug. Roots have path "/<slug>".
func ChildPath(parentPath, slug string) string {
	if parentPath == "" {
		return "/" + slug
	}
	return parentPath + "/" + slug
}

// Slugify lowercases and collapses non-alphanumeric runs to single hyphens.
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
