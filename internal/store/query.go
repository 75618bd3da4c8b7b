package store

// Query selects one page of a list container.
//
// Elements [Start+After, Start+After+Limit) of the sorted container are
// returned. Limit 0 means no limit, so the zero Query returns everything.
type Query struct {
	Start int
	After int
	Limit int

	// SortBy holds field paths applied as successive stable sorts, each
	// either "field" or "field.subfield". Go field names and wire names
	// are both accepted, case-insensitively.
	SortBy []string

	// Reverse sorts each SortBy pass in descending order.
	Reverse bool
}

// Page returns a Query for start, after and limit with no sorting.
func Page(start, after, limit int) Query {
	return Query{Start: start, After: after, Limit: limit}
}

// window clips [start+after, start+after+limit) to [0, n).
// Negative inputs are treated as zero.
func window(n, start, after, limit int) (lo, hi int) {
	start, after, limit = max(start, 0), max(after, 0), max(limit, 0)

	lo = min(start, n)
	if after > n-lo {
		lo = n
	} else {
		lo += after
	}

	hi = n
	if limit > 0 && limit < hi-lo {
		hi = lo + limit
	}
	return lo, hi
}
