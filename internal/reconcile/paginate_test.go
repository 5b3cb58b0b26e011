package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"station-review/internal/models"
)

// groupsOfSizes builds one group per size with a single subgroup each
func groupsOfSizes(sizes ...int) []Group {
	var groups []Group
	var id int64 = 1
	for gi, size := range sizes {
		sub := Subgroup{ID: SubgroupID(gi+1, 1), GroupID: gi + 1}
		for i := 0; i < size; i++ {
			sub.Rows = append(sub.Rows, Row{Rinex: models.RinexObservation{ID: id}})
			id++
		}
		groups = append(groups, Group{ID: gi + 1, Subgroups: []Subgroup{sub}})
	}
	return groups
}

func TestPaginate_SubgroupSpanningPages(t *testing.T) {
	// 9 rows, then a 20 row subgroup starting at row 10, then 8 rows
	groups := groupsOfSizes(9, 20, 8)

	page1, ok := Paginate(groups, 15, 1)
	require.True(t, ok)
	assert.Equal(t, 3, page1.TotalPages)
	assert.Equal(t, 37, page1.TotalRows)
	require.Len(t, page1.Rows, 15)
	assert.False(t, page1.ContinuesFromPreviousPage)
	assert.Equal(t, "2.1", page1.LastSubgroupID)
	assert.Equal(t, int64(15), page1.Rows[14].Row.Rinex.ID)

	page2, ok := Paginate(groups, 15, 2)
	require.True(t, ok)
	require.Len(t, page2.Rows, 15)
	assert.True(t, page2.ContinuesFromPreviousPage)
	assert.Equal(t, page1.LastSubgroupID, page2.Rows[0].SubgroupID)
	assert.Equal(t, 6, page2.Rows[0].IndexInSubgroup)
	assert.False(t, page2.Rows[0].StartsSubgroup())

	page3, ok := Paginate(groups, 15, 3)
	require.True(t, ok)
	assert.Len(t, page3.Rows, 7)
	assert.True(t, page3.ContinuesFromPreviousPage)
	assert.True(t, page3.Rows[len(page3.Rows)-1].EndsSubgroup())
}

func TestPaginate_PageStartingOnNewSubgroup(t *testing.T) {
	groups := groupsOfSizes(5, 5)

	page2, ok := Paginate(groups, 5, 2)
	require.True(t, ok)
	assert.False(t, page2.ContinuesFromPreviousPage)
	assert.True(t, page2.Rows[0].StartsSubgroup())
}

func TestPaginate_ConcatenationReproducesRows(t *testing.T) {
	groups := groupsOfSizes(1, 7, 3, 12, 2, 9)
	flat := Flatten(groups)

	for _, size := range []int{1, 2, 5, 15, 34, 50} {
		var all []int64
		for page := 1; ; page++ {
			p, ok := Paginate(groups, size, page)
			if !ok {
				break
			}
			for _, r := range p.Rows {
				all = append(all, r.Row.Rinex.ID)
			}
			if page == p.TotalPages {
				break
			}
		}

		require.Len(t, all, len(flat), "page size %d", size)
		for i := range flat {
			assert.Equal(t, flat[i].Row.Rinex.ID, all[i], "page size %d row %d", size, i)
		}
	}
}

func TestPaginate_OutOfRange(t *testing.T) {
	groups := groupsOfSizes(10)

	_, ok := Paginate(groups, 5, 0)
	assert.False(t, ok)
	_, ok = Paginate(groups, 5, 3)
	assert.False(t, ok)
	_, ok = Paginate(groups, 5, -1)
	assert.False(t, ok)
}

func TestPaginate_EmptyAndUnlimited(t *testing.T) {
	p, ok := Paginate(nil, 15, 1)
	require.True(t, ok)
	assert.Empty(t, p.Rows)
	assert.NotNil(t, p.Rows)
	assert.Equal(t, 0, p.TotalPages)

	_, ok = Paginate(nil, 15, 2)
	assert.False(t, ok)

	all, ok := Paginate(groupsOfSizes(4, 4), 0, 1)
	require.True(t, ok)
	assert.Len(t, all.Rows, 8)
	assert.Equal(t, 1, all.TotalPages)
}

func TestPager(t *testing.T) {
	groups := groupsOfSizes(9, 20, 8)
	pager := NewPager(15)

	assert.Equal(t, 1, pager.Current())
	assert.True(t, pager.Goto(groups, 3))
	assert.Equal(t, 3, pager.Current())

	// out of range requests leave the page unchanged
	assert.False(t, pager.Goto(groups, 4))
	assert.False(t, pager.Goto(groups, 0))
	assert.Equal(t, 3, pager.Current())
	assert.Equal(t, 3, pager.Page(groups).Number)

	// shrinking the result clamps to its last page
	page := pager.Page(groupsOfSizes(16))
	assert.Equal(t, 2, page.Number)
	assert.Equal(t, 2, pager.Current())

	pager.Reset()
	assert.Equal(t, 1, pager.Current())
}

func TestPaginate_NoInfoScenario(t *testing.T) {
	rows := AnnotateAll(dailyRinex(1, 1, 5), NewIntervalIndex(nil))

	merged, ok := Paginate(BuildGroups(rows, MergeUngoverned), 3, 2)
	require.True(t, ok)
	assert.True(t, merged.ContinuesFromPreviousPage)

	isolated, ok := Paginate(BuildGroups(rows, IsolateUngoverned), 3, 2)
	require.True(t, ok)
	assert.False(t, isolated.ContinuesFromPreviousPage)
}
