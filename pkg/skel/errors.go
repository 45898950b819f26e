package skel

import "errors"

// ErrCorrupt is returned when Parse encounters bytes that are not a
// well-formed skel.
var ErrCorrupt = errors.New("skel: corrupt data")
