package memstore

import (
	"cmp"
	"slices"
	"sort"

	"github.com/hupe1980/pointcount/geom"
)

// entry is one (coordinate, id) pair of a column.
type entry struct {
	v  float64
	id geom.ID
}

func compareEntry(a, b entry) int {
	if c := cmp.Compare(a.v, b.v); c != 0 {
		return c
	}
	return cmp.Compare(a.id, b.id)
}

// column stores one coordinate axis sorted ascending by (value, id).
// Invariant: len(column) equals the number of live records.
type column []entry

// lowerBound returns the first index whose value is >= v.
func (c column) lowerBound(v float64) int {
	return sort.Search(len(c), func(i int) bool { return c[i].v >= v })
}

// upperBound returns the first index whose value is > v.
func (c column) upperBound(v float64) int {
	return sort.Search(len(c), func(i int) bool { return c[i].v > v })
}

// after returns the first index strictly after e in (value, id) order.
func (c column) after(e entry) int {
	return sort.Search(len(c), func(i int) bool { return compareEntry(c[i], e) > 0 })
}

// span returns the half-open index range of values inside [lo, hi].
func (c column) span(lo, hi float64) (int, int) {
	from := c.lowerBound(lo)
	to := c.upperBound(hi)
	if to < from {
		to = from
	}
	return from, to
}

func (c *column) insert(e entry) {
	i, _ := slices.BinarySearchFunc(*c, e, compareEntry)
	*c = slices.Insert(*c, i, e)
}

func (c *column) remove(e entry) {
	i, found := slices.BinarySearchFunc(*c, e, compareEntry)
	if found {
		*c = slices.Delete(*c, i, i+1)
	}
}

// ids copies the ids of c[from:to].
func (c column) ids(from, to int) []uint64 {
	out := make([]uint64, 0, to-from)
	for _, e := range c[from:to] {
		out = append(out, uint64(e.id))
	}
	return out
}
