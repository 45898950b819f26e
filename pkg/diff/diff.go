// Package diff assembles an LCS match chain into a structured sequence
// of hunks (common/modified/latest/diff-common/conflict), and resolves
// three-way conflicts by recursing the LCS engine over the conflicting
// sub-streams. This is the Go translation of the diff-assembly half of
// libsvn_diff (svn_diff__diff / svn_diff__resolve_conflict, declared in
// diff.h) built atop pkg/lcs.
package diff

import "wcengine/pkg/lcs"

// HunkType is the svn_diff__type_e equivalent.
type HunkType int

const (
	TypeCommon HunkType = iota
	TypeModified
	TypeLatest
	TypeDiffCommon
	TypeConflict
)

func (t HunkType) String() string {
	switch t {
	case TypeCommon:
		return "common"
	case TypeModified:
		return "modified"
	case TypeLatest:
		return "latest"
	case TypeDiffCommon:
		return "diff-common"
	case TypeConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Span is a (start, length) pair within one of the three streams.
type Span struct {
	Start, Length int
}

// Hunk is one segment of a two-way or three-way diff.
type Hunk struct {
	Type         HunkType
	Original     Span
	Modified     Span
	Latest       Span
	Next         *Hunk
	ResolvedDiff *Hunk // populated for resolved TypeConflict hunks
}

// TwoWay converts an LCS chain between original and modified streams
// into a hunk list covering every offset of both, emitting a common
// hunk for every matched run (when wantCommon) and a modified hunk for
// every gap.
func TwoWay(chain *lcs.Match, wantCommon bool) *Hunk {
	var head, tail *Hunk
	append_ := func(h *Hunk) {
		if head == nil {
			head = h
		} else {
			tail.Next = h
		}
		tail = h
	}

	origPos, modPos := 0, 0
	for m := chain; m != nil; m = m.Next {
		if m.Pos1 > origPos || m.Pos2 > modPos {
			append_(&Hunk{
				Type:     TypeModified,
				Original: Span{origPos, m.Pos1 - origPos},
				Modified: Span{modPos, m.Pos2 - modPos},
			})
		}
		if m.Length > 0 && wantCommon {
			append_(&Hunk{
				Type:     TypeCommon,
				Original: Span{m.Pos1, m.Length},
				Modified: Span{m.Pos2, m.Length},
			})
		}
		origPos = m.Pos1 + m.Length
		modPos = m.Pos2 + m.Length
	}
	return head
}

// ThreeWay assembles hunks from independently computed LCS chains of
// (original, modified) and (original, latest), both measured against
// the same original stream of length origLen.
//
// It anchors on runs where the original content survives unchanged in
// BOTH modified and latest (the only positions where the two chains'
// offsets are directly comparable), emits those as common hunks, and
// classifies everything between two anchors by which side(s) actually
// touched it: unchanged-in-modified-only becomes a latest hunk,
// unchanged-in-latest-only becomes a modified hunk, changed-in-both
// becomes a conflict hunk left for ResolveConflict to examine further.
func ThreeWay(origLen int, modifiedChain, latestChain *lcs.Match) *Hunk {
	commonMod := markCommon(origLen, modifiedChain)
	commonLat := markCommon(origLen, latestChain)

	var head, tail *Hunk
	append_ := func(h *Hunk) {
		if head == nil {
			head = h
		} else {
			tail.Next = h
		}
		tail = h
	}

	o := 0
	for o < origLen {
		if commonMod[o] && commonLat[o] {
			start := o
			for o < origLen && commonMod[o] && commonLat[o] {
				o++
			}
			modStart := boundaryPos(modifiedChain, start)
			latStart := boundaryPos(latestChain, start)
			append_(&Hunk{
				Type:     TypeCommon,
				Original: Span{start, o - start},
				Modified: Span{modStart, o - start},
				Latest:   Span{latStart, o - start},
			})
			continue
		}

		start := o
		for o < origLen && !(commonMod[o] && commonLat[o]) {
			o++
		}
		modStart, modEnd := boundaryPos(modifiedChain, start), boundaryPos(modifiedChain, o)
		latStart, latEnd := boundaryPos(latestChain, start), boundaryPos(latestChain, o)

		modUnchanged := allTrue(commonMod, start, o)
		latUnchanged := allTrue(commonLat, start, o)

		h := &Hunk{
			Original: Span{start, o - start},
			Modified: Span{modStart, modEnd - modStart},
			Latest:   Span{latStart, latEnd - latStart},
		}
		switch {
		case modUnchanged && !latUnchanged:
			h.Type = TypeLatest
		case latUnchanged && !modUnchanged:
			h.Type = TypeModified
		default:
			h.Type = TypeConflict
		}
		append_(h)
	}
	return head
}

// markCommon returns a dense bool slice of length origLen, true at
// every original offset covered by a positive-length run in chain.
func markCommon(origLen int, chain *lcs.Match) []bool {
	out := make([]bool, origLen)
	for m := chain; m != nil; m = m.Next {
		for i := m.Pos1; i < m.Pos1+m.Length; i++ {
			out[i] = true
		}
	}
	return out
}

// boundaryPos returns the position in chain's second stream
// corresponding to original offset o. o must be the start of the
// stream or lie within (or at either end of) a matched run of chain.
// Anchors are runs common to both chains, so an anchor edge always lies
// inside some run of each chain, though not necessarily at its start or
// end; an o inside a run maps to the matching position inside that run.
func boundaryPos(chain *lcs.Match, o int) int {
	prevOrigEnd, prevOtherEnd := 0, 0
	for m := chain; m != nil; m = m.Next {
		if o == prevOrigEnd {
			return prevOtherEnd
		}
		if o >= m.Pos1 && o <= m.Pos1+m.Length {
			return m.Pos2 + (o - m.Pos1)
		}
		prevOrigEnd, prevOtherEnd = m.Pos1+m.Length, m.Pos2+m.Length
	}
	return prevOtherEnd
}

func allTrue(bs []bool, start, end int) bool {
	for i := start; i < end; i++ {
		if !bs[i] {
			return false
		}
	}
	return true
}

// ResolveConflict recurses the LCS engine over the two conflicting
// sub-streams named by h (h's modified and latest ranges, taken as
// index ranges into modifiedTokens and latestTokens). If the
// recursive LCS covers the entire conflict region (a single run with no
// gaps), h.ResolvedDiff is populated with that resolution; otherwise
// the conflict is left unresolved and ResolvedDiff stays nil.
func ResolveConflict[T comparable](h *Hunk, modifiedTokens, latestTokens []T) {
	if h.Type != TypeConflict {
		return
	}
	modSlice := modifiedTokens[h.Modified.Start : h.Modified.Start+h.Modified.Length]
	latSlice := latestTokens[h.Latest.Start : h.Latest.Start+h.Latest.Length]

	chain := lcs.Compute(modSlice, latSlice)
	runs := lcs.Flatten(chain)
	// fully resolved iff the chain is exactly one full-length run plus
	// the EOF sentinel -- i.e. the two conflicting slices are identical.
	if len(runs) == 2 && runs[0].Pos1 == 0 && runs[0].Pos2 == 0 &&
		runs[0].Length == len(modSlice) && runs[0].Length == len(latSlice) {
		h.ResolvedDiff = &Hunk{
			Type:     TypeDiffCommon,
			Original: h.Original,
			Modified: h.Modified,
			Latest:   h.Latest,
		}
	}
}

// Flatten walks a hunk chain into a slice.
func Flatten(h *Hunk) []Hunk {
	var out []Hunk
	for n := h; n != nil; n = n.Next {
		out = append(out, Hunk{Type: n.Type, Original: n.Original, Modified: n.Modified, Latest: n.Latest, ResolvedDiff: n.ResolvedDiff})
	}
	return out
}
