package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.etcd.io/bbolt"

	"wcengine/pkg/types"
	"wcengine/pkg/wcdb"
)

var statusCmd = &cobra.Command{
	Use:   "status [path]",
	Short: "Print a three-column status code for every non-normal node under path",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "."
		if len(args) == 1 {
			path = args[0]
		}
		wc, err := openWorkingCopy(path)
		if err != nil {
			return err
		}

		return wc.root.DB.View(func(tx *bbolt.Tx) error {
			return walkStatus(tx, wc.db, wc.relpath)
		})
	},
}

// walkStatus recurses ReadChildren from relpath, printing every
// descendant that isn't plain, unmodified StatusNormal -- the usual
// "only show what changed" status-report convention.
func walkStatus(tx *bbolt.Tx, db *wcdb.Store, relpath string) error {
	info, err := db.ReadInfo(tx, relpath)
	if err != nil {
		return err
	}
	if !isQuiet(info) {
		printStatusLine(relpath, info)
	}

	children, err := db.ReadChildren(tx, relpath)
	if err != nil {
		return err
	}
	sort.Strings(children)
	for _, c := range children {
		if err := walkStatus(tx, db, c); err != nil {
			return err
		}
	}
	return nil
}

func isQuiet(i wcdb.Info) bool {
	return i.Status == types.StatusNormal && !i.PropsMod && i.Changelist == "" && !i.Conflicted
}

func statusCode(s types.Status) byte {
	switch s {
	case types.StatusAdded, types.StatusCopied, types.StatusMovedHere:
		return 'A'
	case types.StatusDeleted:
		return 'D'
	case types.StatusIncomplete:
		return '!'
	case types.StatusExcluded:
		return 'X'
	case types.StatusMovedAway:
		return 'D'
	case types.StatusObstructed:
		return '~'
	case types.StatusNotPresent:
		return '?'
	default:
		return ' '
	}
}

func printStatusLine(relpath string, i wcdb.Info) {
	if relpath == "" {
		relpath = "."
	}
	text := statusCode(i.Status)
	props := byte(' ')
	if i.PropsMod {
		props = 'M'
	}
	conflict := byte(' ')
	if i.Conflicted {
		conflict = 'C'
	}
	fmt.Printf("%c%c%c %s\n", text, props, conflict, relpath)
	if i.Status == types.StatusCopied || i.Status == types.StatusMovedHere {
		fmt.Printf("        > moved/copied from %s@%d\n", i.OriginalReposRelpath, i.OriginalRevision)
	}
}
