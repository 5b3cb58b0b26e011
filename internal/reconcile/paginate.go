package reconcile

// PageRow is one flattened row of a page
type PageRow struct {
	GroupID         int    `json:"group_id"`
	SubgroupID      string `json:"subgroup_id"`
	IndexInSubgroup int    `json:"index_in_subgroup"`
	SubgroupSize    int    `json:"subgroup_size"`
	Row             Row    `json:"row"`
}

// StartsSubgroup reports whether the row is the first of its subgroup
func (r *PageRow) StartsSubgroup() bool {
	return r.IndexInSubgroup == 0
}

// EndsSubgroup reports whether the row is the last of its subgroup
func (r *PageRow) EndsSubgroup() bool {
	return r.IndexInSubgroup == r.SubgroupSize-1
}

// Page is a bounded slice of flattened rows
type Page struct {
	Number     int       `json:"number"`
	Size       int       `json:"size"`
	TotalPages int       `json:"total_pages"`
	TotalRows  int       `json:"total_rows"`
	Rows       []PageRow `json:"rows"`

	// ContinuesFromPreviousPage is true when the first row belongs to the
	// subgroup of the previous page's last row
	ContinuesFromPreviousPage bool   `json:"continues_from_previous_page"`
	LastSubgroupID            string `json:"last_subgroup_id,omitempty"`
}

// Flatten lists every row in group/subgroup order
func Flatten(groups []Group) []PageRow {
	var rows []PageRow
	for gi := range groups {
		g := &groups[gi]
		for si := range g.Subgroups {
			sub := &g.Subgroups[si]
			for ri := range sub.Rows {
				rows = append(rows, PageRow{
					GroupID:         g.ID,
					SubgroupID:      sub.ID,
					IndexInSubgroup: ri,
					SubgroupSize:    len(sub.Rows),
					Row:             sub.Rows[ri],
				})
			}
		}
	}
	return rows
}

// TotalPages returns ceil(totalRows / pageSize). A pageSize of 0 or less
// means unlimited: one page when there are rows.
func TotalPages(totalRows, pageSize int) int {
	if totalRows == 0 {
		return 0
	}
	if pageSize <= 0 {
		return 1
	}
	return (totalRows + pageSize - 1) / pageSize
}

// ValidPage reports whether page is inside [1, totalPages]. Page 1 is always
// valid so an empty result still has a page to show.
func ValidPage(page, totalPages int) bool {
	return page == 1 || (page >= 1 && page <= totalPages)
}

// Paginate slices the flattened groups into the requested page. The slice is
// row-granular: a subgroup may span a page boundary. ok is false when page is
// out of range.
func Paginate(groups []Group, pageSize, page int) (Page, bool) {
	flat := Flatten(groups)
	total := len(flat)
	totalPages := TotalPages(total, pageSize)

	if !ValidPage(page, totalPages) {
		return Page{}, false
	}

	start, end := 0, total
	if pageSize > 0 {
		start = (page - 1) * pageSize
		end = min(start+pageSize, total)
	}
	if start > total {
		start = total
	}

	p := Page{
		Number:     page,
		Size:       pageSize,
		TotalPages: totalPages,
		TotalRows:  total,
		Rows:       flat[start:end:end],
	}
	if p.Rows == nil {
		p.Rows = []PageRow{}
	}
	if start > 0 && start < total {
		p.ContinuesFromPreviousPage = flat[start-1].SubgroupID == flat[start].SubgroupID
	}
	if len(p.Rows) > 0 {
		p.LastSubgroupID = p.Rows[len(p.Rows)-1].SubgroupID
	}
	return p, true
}

// Pager tracks the current page of a view. Requests for pages out of range
// leave it unchanged.
type Pager struct {
	PageSize int
	current  int
}

// NewPager returns a pager positioned on page 1
func NewPager(pageSize int) *Pager {
	return &Pager{PageSize: pageSize, current: 1}
}

// Current returns the current page number
func (p *Pager) Current() int {
	if p.current < 1 {
		return 1
	}
	return p.current
}

// Goto moves to page if it is in range for groups and reports whether it did
func (p *Pager) Goto(groups []Group, page int) bool {
	total := 0
	for i := range groups {
		total += groups[i].RowCount()
	}
	if !ValidPage(page, TotalPages(total, p.PageSize)) {
		return false
	}
	p.current = page
	return true
}

// Reset moves back to page 1
func (p *Pager) Reset() {
	p.current = 1
}

// Page returns the current page of groups. If the groups shrank below the
// current page the last page is returned and the pager moves there.
func (p *Pager) Page(groups []Group) Page {
	page, ok := Paginate(groups, p.PageSize, p.Current())
	if !ok {
		total := 0
		for i := range groups {
			total += groups[i].RowCount()
		}
		p.current = max(TotalPages(total, p.PageSize), 1)
		page, _ = Paginate(groups, p.PageSize, p.current)
	}
	return page
}
