package pipeline

// Area names the metadata region a block is read from.
type Area string

const (
	AreaPrimary   Area = "primary"
	AreaAlternate Area = "alternate"
)

// DataSource is one metadata block: a page and the region to read on it.
type DataSource struct {
	Page int  `json:"page"`
	Area Area `json:"area"`
}

// Resolution maps schedule pages to the metadata blocks that describe them.
type Resolution struct {
	// DataSchPages are the schedule pages whose metadata sits in the
	// primary region of the same page.
	DataSchPages []int `json:"data_sch_pages"`
	// OnlyDataPages are the pages carrying only a spilled metadata block,
	// read from the alternate region.
	OnlyDataPages []int `json:"only_data_pages"`
	// SchedulePages lists the valid pages in order; Sources is parallel to
	// it and gives each schedule page its blocks in reading order.
	SchedulePages []int          `json:"schedule_pages"`
	Sources       [][]DataSource `json:"sources"`
	// Orphans are only-data pages with no schedule page before them.
	Orphans []int `json:"orphans,omitempty"`
}

// Resolve walks the validity vector in page order. Every valid page is
// first expected to carry its own metadata; a page that carries only
// metadata withdraws that expectation from the schedule page right before
// it, whose block spilled onto this page. The withdrawal happens as soon as
// the only-data page is seen, and only when the most recent expectation is
// the page immediately before: a run of consecutive only-data pages
// withdraws a single primary block, so [T,T,F,F] keeps page 1's.
func Resolve(validity []bool) Resolution {
	var res Resolution
	owner := make(map[int]int) // only-data page -> index into SchedulePages

	for i, valid := range validity {
		page := i + 1
		if valid {
			res.DataSchPages = append(res.DataSchPages, page)
			res.SchedulePages = append(res.SchedulePages, page)
			continue
		}

		res.OnlyDataPages = append(res.OnlyDataPages, page)
		if n := len(res.DataSchPages); n > 0 && res.DataSchPages[n-1] == page-1 {
			res.DataSchPages = res.DataSchPages[:n-1]
		}
		if len(res.SchedulePages) == 0 {
			res.Orphans = append(res.Orphans, page)
			continue
		}
		owner[page] = len(res.SchedulePages) - 1
	}

	res.Sources = make([][]DataSource, len(res.SchedulePages))
	primary := make(map[int]bool, len(res.DataSchPages))
	for _, p := range res.DataSchPages {
		primary[p] = true
	}
	for k, p := range res.SchedulePages {
		if primary[p] {
			res.Sources[k] = append(res.Sources[k], DataSource{Page: p, Area: AreaPrimary})
		}
	}
	for _, p := range res.OnlyDataPages {
		if k, ok := owner[p]; ok {
			res.Sources[k] = append(res.Sources[k], DataSource{Page: p, Area: AreaAlternate})
		}
	}
	return res
}
