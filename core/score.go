package core

// Score ranks a sequence over a dataset: fewer unsolved instances first,
// then lower total cost, then lower candidate index.
type Score struct {
	Unsolved int
	Cost     float64
	Index    int
}

// Less reports whether s ranks strictly before o.
func (s Score) Less(o Score) bool {
	if s.Unsolved != o.Unsolved {
		return s.Unsolved < o.Unsolved
	}
	if s.Cost != o.Cost {
		return s.Cost < o.Cost
	}
	return s.Index < o.Index
}
