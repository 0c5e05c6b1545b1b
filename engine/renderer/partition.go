package renderer

// Range is a half-open interval of object indices.
type Range struct {
	Start, End int
}

func (r Range) Len() int {
	return r.End - r.Start
}

// Partition splits [0, m) into n contiguous ranges of m/n objects each. The
// last range also takes the remainder, so it is never shorter than the
// others.
func Partition(m, n int) []Range {
	if n < 1 {
		n = 1
	}
	if m < 0 {
		m = 0
	}
	per := m / n
	ranges := make([]Range, n)
	for i := range ranges {
		ranges[i] = Range{Start: i * per, End: (i + 1) * per}
	}
	ranges[n-1].End = m
	return ranges
}
