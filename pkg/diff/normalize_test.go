package diff

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeIgnoreNonePassesThrough(t *testing.T) {
	require.Equal(t, []byte("a  b\tc"), Normalize([]byte("a  b\tc"), IgnoreNone, false))
}

func TestNormalizeIgnoreSpaceChangeCollapsesRuns(t *testing.T) {
	require.Equal(t, []byte("a b c"), Normalize([]byte("a  b\t\tc"), IgnoreSpaceChange, false))
}

func TestNormalizeIgnoreAllSpaceDropsWhitespace(t *testing.T) {
	require.Equal(t, []byte("abc"), Normalize([]byte("a b  c"), IgnoreAllSpace, false))
}

func TestNormalizeEOLIgnoreFoldsCRLFToLF(t *testing.T) {
	require.Equal(t, []byte("abc\n"), Normalize([]byte("abc\r\n"), IgnoreNone, true))
}

func TestNormalizeLoneCRIsPreserved(t *testing.T) {
	require.Equal(t, []byte("a\rb"), Normalize([]byte("a\rb"), IgnoreNone, true))
}

func TestNormalizeCombinesSpaceAndEOLHandling(t *testing.T) {
	require.Equal(t, []byte("a b\n"), Normalize([]byte("a  b\r\n"), IgnoreSpaceChange, true))
}

func TestNormalizeTrailingLoneCRThenSpace(t *testing.T) {
	// a lone CR followed by a space: CR must be kept, then space folding
	// resumes from stateNormal as usual.
	require.Equal(t, []byte("a\r b"), Normalize([]byte("a\r  b"), IgnoreSpaceChange, true))
}

func TestNormalizeMakesDiffTreatSpaceOnlyChangesAsEqual(t *testing.T) {
	a := Normalize([]byte("foo  bar"), IgnoreSpaceChange, false)
	b := Normalize([]byte("foo bar"), IgnoreSpaceChange, false)
	require.Equal(t, a, b)
}
