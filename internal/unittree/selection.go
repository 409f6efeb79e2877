package unittree

import (
	"strings"

	"github.com/adamanr/unit_service/internal/filter"
)

// Selection is the unit a listing is scoped to. The zero value selects
// nothing.
type Selection struct {
	code            string
	withDescendants bool
}

var NoSelection = Selection{}

func Select(code string) Selection {
	return Selection{code: strings.TrimSpace(code)}
}

func (s Selection) Code() (string, bool) {
	return s.code, s.code != ""
}

// WithDescendants widens the scope to the whole subtree of the unit.
func (s Selection) WithDescendants(v bool) Selection {
	s.withDescendants = v
	return s
}

func (s Selection) IncludesDescendants() bool {
	return s.withDescendants
}

// Condition restricts field to the selected unit, or to its subtree when
// descendants are included and idx knows the unit. It reports false when
// nothing is selected.
func (s Selection) Condition(idx *Index, field string) (filter.Condition, bool) {
	if s.code == "" {
		return filter.Condition{}, false
	}

	if s.withDescendants && idx != nil {
		if codes := idx.Subtree(s.code); len(codes) > 1 {
			return filter.In(field, codes...), true
		}
	}

	return filter.Eq(field, s.code), true
}
