package unittree

import (
	"slices"

	"github.com/adamanr/unit_service/internal/entity"
)

// Index stores units by code with every parent link resolved once.
//
// Resolution rules: a missing parent, an empty parent or a parent equal to
// the unit's own code make the unit a root. Duplicate codes keep the last
// record at the position of the first. A parent link that closes a cycle is
// severed and the unit becomes a root.
type Index struct {
	units    []entity.Unit
	pos      map[string]int
	parent   []int
	children [][]int
	roots    []int
	severed  []string
}

func NewIndex(units []entity.Unit) *Index {
	idx := &Index{pos: make(map[string]int, len(units))}
	for _, u := range units {
		if i, ok := idx.pos[u.UnitCode]; ok {
			idx.units[i] = u
			continue
		}
		idx.pos[u.UnitCode] = len(idx.units)
		idx.units = append(idx.units, u)
	}

	idx.parent = make([]int, len(idx.units))
	for i, u := range idx.units {
		idx.parent[i] = -1

		p := u.Parent()
		if p == "" || p == u.UnitCode {
			continue
		}
		if j, ok := idx.pos[p]; ok {
			idx.parent[i] = j
		}
	}

	idx.breakCycles()

	idx.children = make([][]int, len(idx.units))
	for i := range idx.units {
		if p := idx.parent[i]; p >= 0 {
			idx.children[p] = append(idx.children[p], i)
		} else {
			idx.roots = append(idx.roots, i)
		}
	}

	return idx
}

const (
	unvisited uint8 = iota
	visiting
	done
)

// breakCycles walks each ancestor chain once. Reaching a unit that is still
// on the current chain means the last hop closes a cycle, so that hop is cut.
func (idx *Index) breakCycles() {
	state := make([]uint8, len(idx.units))
	path := make([]int, 0, 16)

	for start := range idx.units {
		path = path[:0]
		for cur := start; cur >= 0 && state[cur] == unvisited; {
			state[cur] = visiting
			path = append(path, cur)

			next := idx.parent[cur]
			if next >= 0 && state[next] == visiting {
				idx.parent[cur] = -1
				idx.severed = append(idx.severed, idx.units[cur].UnitCode)
				break
			}
			cur = next
		}

		for _, i := range path {
			state[i] = done
		}
	}
}

func (idx *Index) Len() int {
	return len(idx.units)
}

func (idx *Index) Has(code string) bool {
	_, ok := idx.pos[code]
	return ok
}

func (idx *Index) Unit(code string) (entity.Unit, bool) {
	i, ok := idx.pos[code]
	if !ok {
		return entity.Unit{}, false
	}

	return idx.units[i], true
}

// Units returns the deduplicated units in first-appearance order.
func (idx *Index) Units() []entity.Unit {
	return slices.Clone(idx.units)
}

// Parent returns the resolved parent code. It differs from the stored
// parent_unit_code when that one is dangling, self-referencing or severed.
func (idx *Index) Parent(code string) (string, bool) {
	i, ok := idx.pos[code]
	if !ok || idx.parent[i] < 0 {
		return "", false
	}

	return idx.units[idx.parent[i]].UnitCode, true
}

func (idx *Index) Roots() []string {
	return idx.codes(idx.roots)
}

func (idx *Index) Children(code string) []string {
	i, ok := idx.pos[code]
	if !ok {
		return nil
	}

	return idx.codes(idx.children[i])
}

// Path lists the ancestors of code from its root down to its parent.
func (idx *Index) Path(code string) []string {
	i, ok := idx.pos[code]
	if !ok {
		return nil
	}

	var path []string
	for p := idx.parent[i]; p >= 0; p = idx.parent[p] {
		path = append(path, idx.units[p].UnitCode)
	}
	slices.Reverse(path)

	return path
}

// Subtree lists code and all of its descendants in pre-order.
func (idx *Index) Subtree(code string) []string {
	i, ok := idx.pos[code]
	if !ok {
		return nil
	}

	var out []string
	stack := []int{i}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, idx.units[cur].UnitCode)

		kids := idx.children[cur]
		for k := len(kids) - 1; k >= 0; k-- {
			stack = append(stack, kids[k])
		}
	}

	return out
}

// Severed lists units whose parent link was cut to break a cycle.
func (idx *Index) Severed() []string {
	return slices.Clone(idx.severed)
}

func (idx *Index) codes(positions []int) []string {
	out := make([]string, len(positions))
	for k, i := range positions {
		out[k] = idx.units[i].UnitCode
	}

	return out
}
