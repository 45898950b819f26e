// Package lcs computes the longest common subsequence between two
// token streams using the Wu-Manber-Myers O(NP) algorithm, emitting a
// chain of matched runs terminated by an EOF sentinel.
//
// This is a Go translation of libsvn_diff/lcs.c. The original threads
// the search through a circular singly-linked position list with
// pointer-equality tokens and a hand-refcounted freelist of chain
// nodes, reusing nodes that drop to zero references as the search
// abandons one diagonal in favor of another. Per the design notes this
// spec carries forward ("A rewrite can replace this with an arena +
// indices; dead nodes need not be freed since they're bounded by
// O((len1+len2)^2) in the worst case"), this rewrite keeps the furthest
// -point search and the snake/chain-construction shape but builds
// chain nodes in a plain growable arena indexed by int, never freeing
// abandoned diagonals -- there is no observable difference in output,
// only in when garbage is collected.
package lcs

// Match is one run of consecutive matching tokens, or the terminating
// EOF sentinel (Length == 0, Pos1/Pos2 one past the end of each input).
type Match struct {
	Pos1, Pos2 int
	Length     int
	Next       *Match
}

type chainNode struct {
	pos1, pos2 int
	length     int
	next       int // arena index, -1 for nil
}

// Compute returns the LCS match chain between a and b. The result is
// always non-nil and always ends in an EOF sentinel (Length == 0,
// Pos1 == len(a), Pos2 == len(b)).
func Compute[T comparable](a, b []T) *Match {
	return ComputeWithContext(a, b, 0, 0)
}

// ComputeWithContext is Compute, additionally accepting counts of
// pre-matched prefix/suffix lines the caller stripped from a and b
// before calling in. The returned chain has those counts reattached as
// synthetic match runs at the head and tail, with every offset shifted
// to account for the stripped prefix, mirroring prepend_prefix_lcs in
// the original and the symmetric (unnamed in spec.md's prose, but
// present in diff.h's signature) suffix case.
func ComputeWithContext[T comparable](a, b []T, prefixLines, suffixLines int) *Match {
	core := computeCore(a, b)

	for i := range core {
		core[i].Pos1 += prefixLines
		core[i].Pos2 += prefixLines
	}

	if suffixLines > 0 {
		eof := core[len(core)-1]
		core[len(core)-1] = Match{Pos1: eof.Pos1, Pos2: eof.Pos2, Length: suffixLines}
		core = append(core, Match{Pos1: eof.Pos1 + suffixLines, Pos2: eof.Pos2 + suffixLines, Length: 0})
	}

	if prefixLines > 0 {
		core = append([]Match{{Pos1: 0, Pos2: 0, Length: prefixLines}}, core...)
	}

	return toChain(core)
}

// computeCore runs the O(NP) furthest-point search over a, b with no
// prefix/suffix handling, returning the forward-ordered run list
// (including the trailing EOF sentinel) as a plain slice.
func computeCore[T comparable](a, b []T) []Match {
	m, n := len(a), len(b)
	if m == 0 || n == 0 {
		return []Match{{Pos1: m, Pos2: n, Length: 0}}
	}

	x, y := a, b
	swapped := false
	if m > n {
		x, y = b, a
		m, n = n, m
		swapped = true
	}
	delta := n - m

	offset := m + 1
	size := m + n + 3
	fp := make([]int, size)
	chainAt := make([]int, size)
	for i := range fp {
		fp[i] = -1
		chainAt[i] = -1
	}

	var arena []chainNode

	snake := func(k int) {
		idx := k + offset
		left := fp[idx-1]
		right := fp[idx+1]

		var yy int
		var chain int
		if left+1 > right {
			yy = left + 1
			chain = chainAt[idx-1]
		} else {
			yy = right
			chain = chainAt[idx+1]
		}
		xx := yy - k

		startX, startY := xx, yy
		matched := 0
		for xx < m && yy < n && x[xx] == y[yy] {
			xx++
			yy++
			matched++
		}
		if matched > 0 {
			arena = append(arena, chainNode{pos1: startX, pos2: startY, length: matched, next: chain})
			chain = len(arena) - 1
		}
		fp[idx] = yy
		chainAt[idx] = chain
	}

	for p := 0; ; p++ {
		for k := -p; k < delta; k++ {
			snake(k)
		}
		for k := delta + p; k > delta; k-- {
			snake(k)
		}
		snake(delta)
		if fp[delta+offset] >= n {
			break
		}
	}

	var runs []Match
	for c := chainAt[delta+offset]; c != -1; c = arena[c].next {
		node := arena[c]
		runs = append(runs, Match{Pos1: node.pos1, Pos2: node.pos2, Length: node.length})
	}
	// arena chain is built tail-first (most recent match first); reverse
	// to forward order, mirroring svn_diff__lcs_reverse.
	for i, j := 0, len(runs)-1; i < j; i, j = i+1, j-1 {
		runs[i], runs[j] = runs[j], runs[i]
	}

	if swapped {
		for i := range runs {
			runs[i].Pos1, runs[i].Pos2 = runs[i].Pos2, runs[i].Pos1
		}
		m, n = n, m
	}

	runs = append(runs, Match{Pos1: m, Pos2: n, Length: 0})
	return runs
}

func toChain(runs []Match) *Match {
	var head, tail *Match
	for i := range runs {
		node := &Match{Pos1: runs[i].Pos1, Pos2: runs[i].Pos2, Length: runs[i].Length}
		if head == nil {
			head = node
		} else {
			tail.Next = node
		}
		tail = node
	}
	return head
}

// Flatten walks the chain into a slice for easier inspection in tests
// and callers that prefer indexing over pointer-chasing.
func Flatten(m *Match) []Match {
	var out []Match
	for n := m; n != nil; n = n.Next {
		out = append(out, Match{Pos1: n.Pos1, Pos2: n.Pos2, Length: n.Length})
	}
	return out
}
