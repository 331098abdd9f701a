package albums

import "testing"

func TestPlanPageBoundaries(t *testing.T) {
	cases := []struct {
		name             string
		total, page, sz  int
		offset, limit    int
		hasPrev, hasNext bool
	}{
		{"last page exact", 25, 3, 10, 20, 10, true, false},
		{"first page", 25, 1, 10, 0, 10, false, true},
		{"middle page", 25, 2, 10, 10, 10, true, true},
		{"single page", 5, 1, 10, 0, 10, false, false},
		{"page past the end", 5, 3, 10, 20, 10, true, false},
		{"boundary multiple", 20, 2, 10, 10, 10, true, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := PlanPage(tc.total, tc.page, tc.sz)
			if w.Offset != tc.offset || w.Limit != tc.limit {
				t.Errorf("window: got offset=%d limit=%d, want offset=%d limit=%d", w.Offset, w.Limit, tc.offset, tc.limit)
			}
			if w.HasPrevious != tc.hasPrev {
				t.Errorf("hasPrevious: got %v", w.HasPrevious)
			}
			if w.HasNext != tc.hasNext {
				t.Errorf("hasNext: got %v", w.HasNext)
			}
		})
	}
}
