package unittree

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/adamanr/unit_service/internal/entity"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterTree_EmptyQueryIsIdentity(t *testing.T) {
	tree := BuildTree(sampleUnits(), SortNone)
	want := BuildTree(sampleUnits(), SortNone)

	for _, q := range []string{"", "   "} {
		res := FilterTree(tree, q)
		if diff := cmp.Diff(want, res.Tree); diff != "" {
			t.Fatalf("query %q changed the tree (-want +got):\n%s", q, diff)
		}
		assert.Empty(t, res.ExpandedKeys)
	}
}

func TestFilterTree_Example(t *testing.T) {
	tree := BuildTree(sampleUnits(), SortNone)

	res := FilterTree(tree, "B")

	require.Equal(t, []string{"U1"}, codes(res.Tree))
	assert.Equal(t, []string{"U1-1"}, codes(res.Tree[0].Children))
	assert.Contains(t, res.ExpandedKeys, "U1")

	// input untouched
	assert.Equal(t, []string{"U1-1", "U1-2"}, codes(tree[0].Children))
}

func TestFilterTree_Cases(t *testing.T) {
	units := []entity.Unit{
		{UnitCode: "HN", UnitName: "Hà Nội", FullName: "Chi nhánh Hà Nội"},
		{UnitCode: "HN-KD", UnitName: "Phòng Kinh Doanh", ParentUnitCode: strPtr("HN")},
		{UnitCode: "HN-KD-01", UnitName: "Nhóm KD 01", FullName: "Nhóm Kinh Doanh 01", ParentUnitCode: strPtr("HN-KD")},
		{UnitCode: "HN-KT", UnitName: "Phòng Kỹ Thuật", ParentUnitCode: strPtr("HN")},
		{UnitCode: "SG", UnitName: "Sài Gòn"},
	}
	tree := BuildTree(units, SortNone)

	tests := []struct {
		name     string
		query    string
		roots    []string
		retained []string
		expanded []string
	}{
		{
			name:     "deep match keeps the whole path",
			query:    "kinh doanh 01",
			roots:    []string{"HN"},
			retained: []string{"HN", "HN-KD", "HN-KD-01"},
			expanded: []string{"HN", "HN-KD"},
		},
		{
			name:     "case insensitive on code",
			query:    "hn-kt",
			roots:    []string{"HN"},
			retained: []string{"HN", "HN-KT"},
			expanded: []string{"HN"},
		},
		{
			name:     "matching internal node drops non matching children",
			query:    "hà nội",
			roots:    []string{"HN"},
			retained: []string{"HN"},
			expanded: []string{},
		},
		{
			name:     "unicode folding",
			query:    "SÀI",
			roots:    []string{"SG"},
			retained: []string{"SG"},
			expanded: []string{},
		},
		{
			name:     "full name only",
			query:    "chi nhánh",
			roots:    []string{"HN"},
			retained: []string{"HN"},
			expanded: []string{},
		},
		{
			name:     "no match",
			query:    "zzz",
			roots:    []string{},
			retained: []string{},
			expanded: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := FilterTree(tree, tt.query)

			assert.Equal(t, tt.roots, codes(res.Tree))
			assert.Equal(t, tt.retained, preorder(res.Tree))
			assert.Equal(t, tt.expanded, res.ExpandedKeys)
		})
	}
}

func TestMatch(t *testing.T) {
	u := entity.Unit{UnitCode: "U001", UnitName: "Phòng Kỹ Thuật", FullName: "Phòng Kỹ Thuật Hệ Thống"}

	assert.True(t, Match(u, "u001"))
	assert.True(t, Match(u, "KỸ THUẬT"))
	assert.True(t, Match(u, "hệ thống"))
	assert.True(t, Match(u, " "))
	assert.False(t, Match(u, "kinh doanh"))
}

// A node survives iff it or a descendant matches; invented internal nodes
// never appear.
func TestFilterTree_RetentionProperty(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	letters := []string{"alpha", "beta", "gamma", "delta", "omega"}

	for round := 0; round < 30; round++ {
		n := 1 + rnd.Intn(40)
		units := make([]entity.Unit, 0, n)
		for i := 0; i < n; i++ {
			u := entity.Unit{
				UnitCode: fmt.Sprintf("C%02d", i),
				UnitName: letters[rnd.Intn(len(letters))],
			}
			if i > 0 && rnd.Intn(3) > 0 {
				u.ParentUnitCode = strPtr(fmt.Sprintf("C%02d", rnd.Intn(i)))
			}
			units = append(units, u)
		}

		tree := BuildTree(units, SortNone)
		query := letters[rnd.Intn(len(letters))]
		res := FilterTree(tree, query)

		want := map[string]bool{}
		var mark func(nodes []*Node) bool
		mark = func(nodes []*Node) bool {
			kept := false
			for _, node := range nodes {
				keep := mark(node.Children)
				if Match(node.Unit, query) {
					keep = true
				}
				if keep {
					want[node.UnitCode] = true
					kept = true
				}
			}
			return kept
		}
		mark(tree)

		got := preorder(res.Tree)
		require.Len(t, got, len(want))
		for _, code := range got {
			require.True(t, want[code], "unexpected %s", code)
		}

		var check func(nodes []*Node)
		check = func(nodes []*Node) {
			for _, node := range nodes {
				require.True(t, Match(node.Unit, query) || len(node.Children) > 0, "invented node %s", node.UnitCode)
				check(node.Children)
			}
		}
		check(res.Tree)
	}
}

func preorder(nodes []*Node) []string {
	out := []string{}
	for _, n := range nodes {
		out = append(out, n.UnitCode)
		out = append(out, preorder(n.Children)...)
	}

	return out
}
