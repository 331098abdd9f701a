package albums

// Window is one page of results: the slice to fetch and whether
// adjacent pages exist.
type Window struct {
	Offset      int
	Limit       int
	HasPrevious bool
	HasNext     bool
}

// PlanPage converts a 1-based page number and page size into an
// offset window against totalCount results. Callers that got no page
// size bypass the planner entirely and return the full result set.
func PlanPage(totalCount, page, pageSize int) Window {
	return Window{
		Offset:      (page - 1) * pageSize,
		Limit:       pageSize,
		HasPrevious: page > 1,
		HasNext:     totalCount > page*pageSize,
	}
}
