package core

import "fmt"

// TotalOf sums the totals of the given entries.
func TotalOf(entries []Entry) float64 {
	var sum float64
	for _, e := range entries {
		sum += e.Total
	}
	return sum
}

// Empty reports whether the rankings contain no entries at all.
func (r Rankings) Empty() bool {
	return len(r.Top) == 0 && len(r.Bottom) == 0
}

// TopTitle is the heading of the highest spending list.
func (r Rankings) TopTitle() string {
	return fmt.Sprintf("Top %d Highest Spending", r.size())
}

// BottomTitle is the heading of the lowest spending list.
func (r Rankings) BottomTitle() string {
	return fmt.Sprintf("Top %d Lowest Spending (Excluding Zero)", r.size())
}

func (r Rankings) size() int {
	if r.Size > 0 {
		return r.Size
	}
	return DefaultRankSize
}
