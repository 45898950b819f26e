package wcdb

import "wcengine/pkg/types"

// Info is the dense per-path record returned by ReadInfo, matching
// spec.md §4.10.1's read_info contract.
type Info struct {
	Status types.Status
	Kind   types.Kind

	Revision     types.RevNum
	ReposRelpath string

	ChangedRev    types.RevNum
	ChangedDate   int64
	ChangedAuthor string

	Depth    types.Depth
	Checksum types.Hash

	OriginalReposRelpath string
	OriginalRevision     types.RevNum

	Lock *types.Lock

	RecordedSize    int64
	RecordedMTime   int64
	Changelist      string
	Conflicted      bool
	OpRoot          bool
	HadProps        bool
	PropsMod        bool
	HaveBase        bool
	HaveMoreWork    bool
	HaveWork        bool
}

// ScanAdditionResult is scan_addition's return value (spec.md §4.10.7).
type ScanAdditionResult struct {
	Status               types.Status // StatusAdded, StatusCopied, or StatusMovedHere
	OpRootRelpath        string
	ReposRelpath         string
	OriginalReposRelpath string
	OriginalRevision     types.RevNum
}

// ScanDeletionResult is scan_deletion's return value (spec.md §4.10.7).
type ScanDeletionResult struct {
	BaseDelRelpath string
	MovedToRelpath string
	WorkDelRelpath string
}

// RevisionStatus bundles the results of the four derived queries of
// spec.md §4.10.8.
type RevisionStatus struct {
	MinRevision    types.RevNum
	MaxRevision    types.RevNum
	SwitchedSubtrees bool
	SparseCheckout bool
	LocalMods      bool
}
