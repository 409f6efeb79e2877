// Package unittree turns the flat unit list into a forest, searches it and
// scopes dependent listings to a selected unit.
package unittree

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/adamanr/unit_service/internal/entity"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Node is a unit together with the children it owns.
type Node struct {
	entity.Unit

	Children []*Node `json:"children"`
}

type SortKey string

const (
	SortNone    SortKey = ""
	SortByName  SortKey = "unit_name"
	SortByCode  SortKey = "unit_code"
	SortByLevel SortKey = "level"
)

var ErrUnknownSortKey = errors.New("unknown sort key")

func ParseSortKey(v string) (SortKey, error) {
	switch strings.TrimSpace(v) {
	case "", "none":
		return SortNone, nil
	case string(SortByName):
		return SortByName, nil
	case string(SortByCode):
		return SortByCode, nil
	case string(SortByLevel):
		return SortByLevel, nil
	}

	return SortNone, fmt.Errorf("%w: %q", ErrUnknownSortKey, v)
}

type Forest struct {
	Roots []*Node
	// Severed holds the codes promoted to root to break a parent cycle.
	Severed []string
}

// BuildTree converts units into root nodes. Roots and children keep input
// order unless sortBy asks otherwise.
func BuildTree(units []entity.Unit, sortBy SortKey) []*Node {
	return Build(units, sortBy).Roots
}

func Build(units []entity.Unit, sortBy SortKey) Forest {
	return NewIndex(units).Forest(sortBy)
}

// Forest materializes fresh nodes; callers may not share them across builds.
func (idx *Index) Forest(sortBy SortKey) Forest {
	nodes := make([]*Node, len(idx.units))
	for i, u := range idx.units {
		nodes[i] = &Node{Unit: u, Children: make([]*Node, 0, len(idx.children[i]))}
	}

	for i, kids := range idx.children {
		for _, k := range kids {
			nodes[i].Children = append(nodes[i].Children, nodes[k])
		}
	}

	roots := make([]*Node, 0, len(idx.roots))
	for _, r := range idx.roots {
		roots = append(roots, nodes[r])
	}

	sortForest(roots, sortBy)

	return Forest{Roots: roots, Severed: idx.Severed()}
}

func sortForest(roots []*Node, key SortKey) {
	less := comparator(key)
	if less == nil {
		return
	}

	stack := [][]*Node{roots}
	for len(stack) > 0 {
		nodes := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		slices.SortStableFunc(nodes, less)
		for _, n := range nodes {
			if len(n.Children) > 0 {
				stack = append(stack, n.Children)
			}
		}
	}
}

func comparator(key SortKey) func(a, b *Node) int {
	col := collate.New(language.Vietnamese)

	switch key {
	case SortByName:
		return func(a, b *Node) int {
			return col.CompareString(a.UnitName, b.UnitName)
		}
	case SortByCode:
		return func(a, b *Node) int {
			return col.CompareString(a.UnitCode, b.UnitCode)
		}
	case SortByLevel:
		return func(a, b *Node) int {
			if c := cmp.Compare(a.Level, b.Level); c != 0 {
				return c
			}
			return col.CompareString(a.UnitName, b.UnitName)
		}
	}

	return nil
}
