// Package plan partitions an ordered list of sized units (chapters) into
// contiguous groups (reading days) of roughly equal size. BuildChunks does a
// single greedy pass for a given threshold; Search repeats it with a
// feedback-adjusted tolerance until the group count matches the target.
package plan

// Unit is one indivisible item of the schedule, typically a chapter.
type Unit struct {
	Index      int64  `json:"index"`
	Label      string `json:"label"`
	GroupLabel string `json:"group_label"`
	Size       int64  `json:"size"`
}

// UnitList is ordered by Index. Order defines contiguity.
type UnitList []Unit

// TotalSize returns the sum of Size over all units.
func (l UnitList) TotalSize() int64 {
	var total int64
	for _, u := range l {
		total += u.Size
	}
	return total
}

// Group is a contiguous span of units. AccumulatedSize belongs to the End
// unit: it is the running sum at the moment the group closed.
type Group struct {
	Start           Unit  `json:"start"`
	End             Unit  `json:"end"`
	AccumulatedSize int64 `json:"accumulated_size"`
	Units           int   `json:"units"`
}

// Partition is an ordered list of groups covering a UnitList.
type Partition []Group

// Len returns the number of groups.
func (p Partition) Len() int {
	return len(p)
}

// UnitCount returns the number of units covered by the partition.
func (p Partition) UnitCount() int {
	n := 0
	for _, g := range p {
		n += g.Units
	}
	return n
}

// SearchResult is the partition closest to the requested group count.
type SearchResult struct {
	Partition  Partition `json:"partition"`
	Target     int       `json:"target"`
	Diff       int       `json:"diff"`
	Iterations int       `json:"iterations"`
	Tolerance  float64   `json:"tolerance"`
	Converged  bool      `json:"converged"`
}

// Observer receives diagnostic counts from the builder and the search loop.
// Implementations must be safe for concurrent use when searches run in
// parallel.
type Observer interface {
	ObserveChunks(groups int)
	ObserveSearch(iterations, diff int, converged bool)
}
