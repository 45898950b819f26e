package wcdb

import (
	"fmt"
	"strconv"

	"wcengine/pkg/skel"
	"wcengine/pkg/types"
)

// NodeRow is one row of the NODES table: the state of one identity
// (relpath) at one op_depth layer. op_depth==0 is BASE; op_depth>0 is
// a WORKING layer, rooted wherever an add/copy/move/delete began.
type NodeRow struct {
	OpDepth int
	Presence types.Presence
	Kind     types.Kind

	ReposRelpath string        // "" if null (no repository identity yet, e.g. a plain local add)
	Revision     types.RevNum  // types.NoRevision if null

	ChangedRev    types.RevNum
	ChangedDate   int64
	ChangedAuthor string

	Depth types.Depth // meaningful for directories only

	Checksum types.Hash // meaningful for files only

	TranslatedSize int64
	LastModTime    int64

	SymlinkTarget string

	Properties skel.Skel // a list of (name, value) atom pairs; IsAtom()==true (zero value) means "no properties blob stored"
	DavCache   []byte

	MovedHere            bool
	OriginalReposRelpath string
	OriginalRevision     types.RevNum
}

// hasProperties reports whether a Properties blob was actually stored
// (as opposed to the zero NodeRow never having set one).
func (n NodeRow) hasProperties() bool {
	return !n.Properties.IsAtom() || len(n.Properties.Atom()) != 0
}

func revString(r types.RevNum) string {
	return strconv.FormatInt(int64(r), 10)
}

func parseRev(s string) (types.RevNum, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return types.RevNum(n), nil
}

// encodeNodeRow renders a NodeRow as a skel list, reusing the same
// nested byte-list codec the representations table uses on disk,
// generalized here to a fixed-arity row format (see pkg/skel's doc
// comment).
func encodeNodeRow(n NodeRow) []byte {
	props := n.Properties
	if props.IsAtom() && len(props.Atom()) == 0 {
		props = skel.NewList()
	}
	s := skel.NewList(
		skel.NewAtomString(strconv.Itoa(n.OpDepth)),
		skel.NewAtomString(strconv.Itoa(int(n.Presence))),
		skel.NewAtomString(strconv.Itoa(int(n.Kind))),
		skel.NewAtomString(n.ReposRelpath),
		skel.NewAtomString(revString(n.Revision)),
		skel.NewAtomString(revString(n.ChangedRev)),
		skel.NewAtomString(strconv.FormatInt(n.ChangedDate, 10)),
		skel.NewAtomString(n.ChangedAuthor),
		skel.NewAtomString(strconv.Itoa(int(n.Depth))),
		skel.NewAtomString(n.Checksum.String()),
		skel.NewAtomString(strconv.FormatInt(n.TranslatedSize, 10)),
		skel.NewAtomString(strconv.FormatInt(n.LastModTime, 10)),
		skel.NewAtomString(n.SymlinkTarget),
		props,
		skel.NewAtom(n.DavCache),
		skel.NewAtomString(boolString(n.MovedHere)),
		skel.NewAtomString(n.OriginalReposRelpath),
		skel.NewAtomString(revString(n.OriginalRevision)),
	)
	return skel.Unparse(s)
}

func boolString(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func decodeNodeRow(data []byte) (NodeRow, error) {
	s, err := skel.Parse(data)
	if err != nil {
		return NodeRow{}, fmt.Errorf("wcdb: corrupt node row: %w", err)
	}
	if s.IsAtom() || s.Len() != 18 {
		return NodeRow{}, fmt.Errorf("wcdb: corrupt node row: want 18-element list, got %+v", s)
	}
	atoi := func(i int) (int, error) { return strconv.Atoi(s.At(i).Str()) }

	opDepth, err := atoi(0)
	if err != nil {
		return NodeRow{}, err
	}
	presence, err := atoi(1)
	if err != nil {
		return NodeRow{}, err
	}
	kind, err := atoi(2)
	if err != nil {
		return NodeRow{}, err
	}
	revision, err := parseRev(s.At(4).Str())
	if err != nil {
		return NodeRow{}, err
	}
	changedRev, err := parseRev(s.At(5).Str())
	if err != nil {
		return NodeRow{}, err
	}
	changedDate, err := strconv.ParseInt(s.At(6).Str(), 10, 64)
	if err != nil {
		return NodeRow{}, err
	}
	depth, err := atoi(8)
	if err != nil {
		return NodeRow{}, err
	}
	var checksum types.Hash
	if s.At(9).Str() != "" {
		checksum, err = types.HashFromHex(s.At(9).Str())
		if err != nil {
			return NodeRow{}, err
		}
	}
	translatedSize, err := strconv.ParseInt(s.At(10).Str(), 10, 64)
	if err != nil {
		return NodeRow{}, err
	}
	lastModTime, err := strconv.ParseInt(s.At(11).Str(), 10, 64)
	if err != nil {
		return NodeRow{}, err
	}
	originalRev, err := parseRev(s.At(17).Str())
	if err != nil {
		return NodeRow{}, err
	}

	return NodeRow{
		OpDepth:              opDepth,
		Presence:             types.Presence(presence),
		Kind:                 types.Kind(kind),
		ReposRelpath:         s.At(3).Str(),
		Revision:             revision,
		ChangedRev:           changedRev,
		ChangedDate:          changedDate,
		ChangedAuthor:        s.At(7).Str(),
		Depth:                types.Depth(depth),
		Checksum:             checksum,
		TranslatedSize:       translatedSize,
		LastModTime:          lastModTime,
		SymlinkTarget:        s.At(12).Str(),
		Properties:           s.At(13),
		DavCache:             append([]byte(nil), s.At(14).Atom()...),
		MovedHere:            s.At(15).Str() == "1",
		OriginalReposRelpath: s.At(16).Str(),
		OriginalRevision:     originalRev,
	}, nil
}
