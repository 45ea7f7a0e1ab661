package job

import (
	"cmp"
	"slices"
	"time"
)

// CompareFIFO orders queued jobs oldest first. Priority only breaks ties
// between equal submission times, and the ID breaks the rest.
func CompareFIFO(a, b *Job) int {
	if c := compareTime(a.SubmittedAt, b.SubmittedAt); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
		return c
	}
	return a.ID.Compare(b.ID)
}

// SortFIFO sorts jobs in place with CompareFIFO.
func SortFIFO(jobs []*Job) {
	slices.SortStableFunc(jobs, CompareFIFO)
}

// compareTime sorts nil timestamps last.
func compareTime(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return a.Compare(*b)
}
