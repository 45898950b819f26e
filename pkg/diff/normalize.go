package diff

// WhitespaceMode controls how Normalize treats runs of whitespace when
// producing a comparison key for a line, mirroring
// svn_diff_file_ignore_space_t.
type WhitespaceMode int

const (
	IgnoreNone WhitespaceMode = iota
	IgnoreSpaceChange
	IgnoreAllSpace
)

type normState int

const (
	stateNormal normState = iota
	stateWhitespace
	stateCR
)

// Normalize rewrites line according to mode and eolIgnore, returning a
// comparison key: IgnoreAllSpace drops every space/tab, IgnoreSpaceChange
// collapses a run of spaces/tabs to one space, and either mode (when
// eolIgnore is set) folds a trailing CRLF down to LF so the two line
// endings compare equal.
//
// This is a translation of the normalize_buffer Mealy machine in
// libsvn_diff/diff_file.c: a single pass, one byte of lookahead never
// needed, the pending byte (an unresolved CR) carried entirely in the
// state rather than buffered separately.
func Normalize(line []byte, mode WhitespaceMode, eolIgnore bool) []byte {
	if mode == IgnoreNone && !eolIgnore {
		return line
	}

	out := make([]byte, 0, len(line))
	state := stateNormal
	for _, c := range line {
		state = step(&out, state, c, mode, eolIgnore)
	}
	return out
}

// step applies one input byte to the Mealy machine, appending whatever
// the transition emits to out, and returns the resulting state.
func step(out *[]byte, state normState, c byte, mode WhitespaceMode, eolIgnore bool) normState {
	switch state {
	case stateCR:
		if c == '\n' {
			*out = append(*out, '\n')
			return stateNormal
		}
		// the pending CR was not part of a CRLF pair; emit it now and
		// reprocess c as if arriving in stateNormal.
		*out = append(*out, '\r')
		return step(out, stateNormal, c, mode, eolIgnore)

	case stateWhitespace:
		switch {
		case eolIgnore && c == '\r':
			return stateCR
		case mode != IgnoreNone && isSpaceOrTab(c):
			return stateWhitespace
		default:
			*out = append(*out, c)
			return stateNormal
		}

	default: // stateNormal
		switch {
		case eolIgnore && c == '\r':
			return stateCR
		case mode != IgnoreNone && isSpaceOrTab(c):
			if mode == IgnoreSpaceChange {
				*out = append(*out, ' ')
			}
			return stateWhitespace
		default:
			*out = append(*out, c)
			return stateNormal
		}
	}
}

func isSpaceOrTab(c byte) bool {
	return c == ' ' || c == '\t'
}
