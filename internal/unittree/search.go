package unittree

import (
	"strings"

	"github.com/adamanr/unit_service/internal/entity"
	"golang.org/x/text/cases"
)

type Result struct {
	Tree []*Node `json:"tree"`
	// ExpandedKeys are the codes a tree view must keep open for every
	// retained match to be visible.
	ExpandedKeys []string `json:"expanded_keys"`
}

// FilterTree keeps the nodes that match query on name, code or full name,
// plus their ancestors. An empty query returns tree as is.
func FilterTree(tree []*Node, query string) Result {
	q := strings.TrimSpace(query)
	if q == "" {
		return Result{Tree: tree, ExpandedKeys: []string{}}
	}

	m := newMatcher(q)
	filtered := m.filter(tree)

	return Result{Tree: filtered, ExpandedKeys: expandedKeys(filtered)}
}

// Match reports whether u matches query case-insensitively.
func Match(u entity.Unit, query string) bool {
	q := strings.TrimSpace(query)
	if q == "" {
		return true
	}

	return newMatcher(q).match(u)
}

type matcher struct {
	fold  cases.Caser
	query string
}

func newMatcher(q string) *matcher {
	fold := cases.Fold()
	return &matcher{fold: fold, query: fold.String(q)}
}

func (m *matcher) match(u entity.Unit) bool {
	for _, field := range [...]string{u.UnitName, u.UnitCode, u.FullName} {
		if strings.Contains(m.fold.String(field), m.query) {
			return true
		}
	}

	return false
}

func (m *matcher) filter(nodes []*Node) []*Node {
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		kids := m.filter(n.Children)
		if len(kids) > 0 || m.match(n.Unit) {
			out = append(out, &Node{Unit: n.Unit, Children: kids})
		}
	}

	return out
}

func expandedKeys(tree []*Node) []string {
	keys := []string{}

	var walk func(nodes []*Node)
	walk = func(nodes []*Node) {
		for _, n := range nodes {
			if len(n.Children) == 0 {
				continue
			}
			keys = append(keys, n.UnitCode)
			walk(n.Children)
		}
	}
	walk(tree)

	return keys
}
