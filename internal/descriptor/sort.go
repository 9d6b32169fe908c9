package descriptor

// SortDirection orders keys ascending or descending.
type SortDirection int

const (
	Ascending SortDirection = iota
	Descending
)

func (d SortDirection) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// SortDescriptor orders items by a member.
type SortDescriptor struct {
	Member    string
	Direction SortDirection
}

// GroupDescriptor groups items by a member. Direction orders the group keys,
// not the items inside a group.
type GroupDescriptor struct {
	SortDescriptor
	AggregateFunctions []AggregateFunction
}

// Sort returns the sort that orders items ahead of grouping on this level.
func (g GroupDescriptor) Sort() SortDescriptor {
	return g.SortDescriptor
}
