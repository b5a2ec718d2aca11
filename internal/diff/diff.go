package diff

import (
	"sort"
	"strings"
)

// Op is an edit category. Ops combine as a bit set.
type Op uint8

const (
	Change Op = 1 << iota
	Move
	Insert
	Remove
)

// All is every category.
const All = Change | Move | Insert | Remove

func (o Op) String() string {
	var parts []string
	for _, c := range []struct {
		op   Op
		name string
	}{{Change, "change"}, {Move, "move"}, {Insert, "insert"}, {Remove, "remove"}} {
		if o&c.op != 0 {
			parts = append(parts, c.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Edit is one classified range. Pos indexes the new list for Change,
// Insert and Move, and the old list for Remove. From is the old index of
// a Move.
type Edit struct {
	Op    Op
	Pos   int
	Count int
	From  int
}

// Result is the classified edit between two lists.
type Result struct {
	Edits []Edit
}

// Ops returns the categories present.
func (r Result) Ops() Op {
	var ops Op
	for _, e := range r.Edits {
		ops |= e.Op
	}
	return ops
}

// Differs reports whether any edit falls outside ignored.
func (r Result) Differs(ignored Op) bool {
	return r.Ops()&^ignored != 0
}

// Count is how many items the edits of op cover.
func (r Result) Count(op Op) int {
	n := 0
	for _, e := range r.Edits {
		if e.Op == op {
			n += e.Count
		}
	}
	return n
}

// Compute classifies the edit from old to new. same tells whether two items
// are the same entity; equal whether two such items have the same content.
func Compute[T any](old, new []T, same, equal func(a, b T) bool) Result {
	pairs := commonSubsequence(old, new, same)

	oldMatch := make([]int, len(old))
	newMatch := make([]int, len(new))
	for i := range oldMatch {
		oldMatch[i] = -1
	}
	for j := range newMatch {
		newMatch[j] = -1
	}
	for _, p := range pairs {
		oldMatch[p[0]], newMatch[p[1]] = p[1], p[0]
	}

	// An unmatched old item with the same identity as an unmatched new
	// one moved rather than left.
	var moves []Edit
	for i := range old {
		if oldMatch[i] >= 0 {
			continue
		}
		for j := range new {
			if newMatch[j] < 0 && same(old[i], new[j]) {
				oldMatch[i], newMatch[j] = j, i
				moves = append(moves, Edit{Op: Move, Pos: j, Count: 1, From: i})
				break
			}
		}
	}

	var r Result
	r.Edits = appendRuns(r.Edits, Remove, len(old), func(i int) bool { return oldMatch[i] < 0 })
	r.Edits = appendRuns(r.Edits, Insert, len(new), func(j int) bool { return newMatch[j] < 0 })
	sort.Slice(moves, func(a, b int) bool { return moves[a].Pos < moves[b].Pos })
	r.Edits = append(r.Edits, moves...)
	r.Edits = appendRuns(r.Edits, Change, len(new), func(j int) bool {
		i := newMatch[j]
		return i >= 0 && !equal(old[i], new[j])
	})
	return r
}

// appendRuns adds one edit per maximal run of indices in [0, n) where hit
// holds.
func appendRuns(edits []Edit, op Op, n int, hit func(i int) bool) []Edit {
	for i := 0; i < n; {
		if !hit(i) {
			i++
			continue
		}
		start := i
		for i < n && hit(i) {
			i++
		}
		edits = append(edits, Edit{Op: op, Pos: start, Count: i - start})
	}
	return edits
}

// commonSubsequence returns the index pairs of a longest common
// subsequence of a and b under eq, in ascending order.
func commonSubsequence[T any](a, b []T, eq func(x, y T) bool) [][2]int {
	n, m := len(a), len(b)
	if n == 0 || m == 0 {
		return nil
	}
	max := n + m
	offset := max
	v := make([]int, 2*max+2)
	var trace [][]int

search:
	for d := 0; d <= max; d++ {
		trace = append(trace, append([]int(nil), v...))
		for k := -d; k <= d; k += 2 {
			var x int
			if k == -d || (k != d && v[offset+k-1] < v[offset+k+1]) {
				x = v[offset+k+1]
			} else {
				x = v[offset+k-1] + 1
			}
			y := x - k
			for x < n && y < m && eq(a[x], b[y]) {
				x++
				y++
			}
			v[offset+k] = x
			if x >= n && y >= m {
				break search
			}
		}
	}

	var pairs [][2]int
	x, y := n, m
	for d := len(trace) - 1; d >= 0; d-- {
		v := trace[d]
		k := x - y
		var prevK int
		if k == -d || (k != d && v[offset+k-1] < v[offset+k+1]) {
			prevK = k + 1
		} else {
			prevK = k - 1
		}
		prevX := v[offset+prevK]
		prevY := prevX - prevK
		for x > prevX && y > prevY {
			x--
			y--
			pairs = append(pairs, [2]int{x, y})
		}
		if d > 0 {
			x, y = prevX, prevY
		}
	}
	for i, j := 0, len(pairs)-1; i < j; i, j = i+1, j-1 {
		pairs[i], pairs[j] = pairs[j], pairs[i]
	}
	return pairs
}
