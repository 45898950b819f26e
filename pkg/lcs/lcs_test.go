package lcs

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestS3LCSOfABCDvsAXCD is scenario S3 from spec.md: LCS of [A,B,C,D] vs
// [A,X,C,D] matches A at position 0, then C,D at positions 2..3.
func TestS3LCSOfABCDvsAXCD(t *testing.T) {
	a := []string{"A", "B", "C", "D"}
	b := []string{"A", "X", "C", "D"}

	runs := Flatten(Compute(a, b))
	require.Equal(t, []Match{
		{Pos1: 0, Pos2: 0, Length: 1},
		{Pos1: 2, Pos2: 2, Length: 2},
		{Pos1: 4, Pos2: 4, Length: 0},
	}, runs)
}

func TestIdenticalStreamsProduceOneRunPlusEOF(t *testing.T) {
	a := []string{"A", "B", "C"}
	runs := Flatten(Compute(a, a))
	require.Equal(t, []Match{
		{Pos1: 0, Pos2: 0, Length: 3},
		{Pos1: 3, Pos2: 3, Length: 0},
	}, runs)
}

func TestEmptyInputsReturnSentinelOnly(t *testing.T) {
	runs := Flatten(Compute([]string{}, []string{"A", "B"}))
	require.Equal(t, []Match{{Pos1: 0, Pos2: 2, Length: 0}}, runs)

	runs = Flatten(Compute([]string{"A", "B"}, []string{}))
	require.Equal(t, []Match{{Pos1: 2, Pos2: 0, Length: 0}}, runs)

	runs = Flatten(Compute([]string{}, []string{}))
	require.Equal(t, []Match{{Pos1: 0, Pos2: 0, Length: 0}}, runs)
}

func TestCompletelyDisjointStreamsHaveNoMatches(t *testing.T) {
	a := []string{"A", "B"}
	b := []string{"X", "Y", "Z"}
	runs := Flatten(Compute(a, b))
	require.Len(t, runs, 1)
	require.Equal(t, 0, runs[0].Length)
	require.Equal(t, 2, runs[0].Pos1)
	require.Equal(t, 3, runs[0].Pos2)
}

func TestPrefixReattachment(t *testing.T) {
	a := []string{"C", "D"}
	b := []string{"X", "D"}
	runs := Flatten(ComputeWithContext(a, b, 2, 0))
	require.Equal(t, Match{Pos1: 0, Pos2: 0, Length: 2}, runs[0])
	// remaining runs are the core chain shifted by 2
	for _, r := range runs[1:] {
		require.GreaterOrEqual(t, r.Pos1, 2)
		require.GreaterOrEqual(t, r.Pos2, 2)
	}
}

// TestCoverageInvariant is property 7 from spec.md 8.1: the LCS output,
// flattened, covers every position in both inputs exactly once (as
// common or gap).
func TestCoverageInvariant(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		a := rapid.SliceOfN(rapid.IntRange(0, 5), 0, 12).Draw(rt, "a")
		b := rapid.SliceOfN(rapid.IntRange(0, 5), 0, 12).Draw(rt, "b")

		runs := Flatten(Compute(a, b))
		require.NotEmpty(rt, runs)

		// every matched run must actually match in both streams
		for _, r := range runs {
			for i := 0; i < r.Length; i++ {
				require.Equal(rt, a[r.Pos1+i], b[r.Pos2+i])
			}
		}

		// runs must not overlap and must be monotonically increasing,
		// ending exactly at (len(a), len(b))
		prevEnd1, prevEnd2 := 0, 0
		for i, r := range runs {
			require.GreaterOrEqual(rt, r.Pos1, prevEnd1)
			require.GreaterOrEqual(rt, r.Pos2, prevEnd2)
			prevEnd1 = r.Pos1 + r.Length
			prevEnd2 = r.Pos2 + r.Length
			if i == len(runs)-1 {
				require.Equal(rt, len(a), r.Pos1+r.Length)
				require.Equal(rt, len(b), r.Pos2+r.Length)
			}
		}
	})
}
