package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.etcd.io/bbolt"

	"wcengine/internal/kvtxn"
	"wcengine/pkg/types"
	"wcengine/pkg/wcdb"
	"wcengine/pkg/wclock"
)

var commitCmd = &cobra.Command{
	Use:   "commit [path]",
	Short: "Commit every locally modified node under path into BASE",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "."
		if len(args) == 1 {
			path = args[0]
		}
		author, _ := cmd.Flags().GetString("author")
		message, _ := cmd.Flags().GetString("message")
		_ = message // no log-message table in this engine; kept for CLI symmetry with svn commit

		wc, err := openWorkingCopy(path)
		if err != nil {
			return err
		}

		var targets []string
		var newRevision types.RevNum

		runner := kvtxn.NewRunner(wc.root.DB)
		err = runner.Do(func(trail *kvtxn.Trail) error {
			var err error
			targets, err = collectWorkTargets(trail.Tx, wc.db, wc.relpath)
			if err != nil {
				return err
			}
			if len(targets) == 0 {
				return nil
			}

			if err := wc.locks.Obtain(trail, wc.relpath, wclock.Infinite, false); err != nil {
				return fmt.Errorf("lock %s: %w", wc.relpath, err)
			}
			defer wc.locks.Release(trail, wc.relpath)

			_, maxRev, err := wc.db.MinMaxRevisions(trail.Tx, false)
			if err != nil {
				return err
			}
			newRevision = maxRev + 1

			now := time.Now().Unix()
			for _, target := range targets {
				if err := wc.db.GlobalCommit(trail, target, wcdb.CommitArgs{
					NewRevision:   newRevision,
					ChangedRev:    newRevision,
					ChangedDate:   now,
					ChangedAuthor: author,
				}); err != nil {
					return fmt.Errorf("commit %s: %w", target, err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		if len(targets) == 0 {
			fmt.Println("Nothing to commit.")
			return nil
		}
		fmt.Printf("Committed revision %d.\n", newRevision)
		for _, t := range targets {
			if t == "" {
				t = "."
			}
			fmt.Printf("  %s\n", t)
		}
		return nil
	},
}

func init() {
	commitCmd.Flags().String("author", "wcctl", "Author recorded on the committed revision")
	commitCmd.Flags().StringP("message", "m", "", "Commit log message (not yet persisted)")
}

// collectWorkTargets walks relpath's subtree depth-first, returning
// every node carrying a WORKING row, ordered deepest-first so
// GlobalCommit always sees a descendant committed before its parent's
// shadowed-descendant cleanup would otherwise orphan it.
func collectWorkTargets(tx *bbolt.Tx, db *wcdb.Store, relpath string) ([]string, error) {
	var all []string
	if err := collectAll(tx, db, relpath, &all); err != nil {
		return nil, err
	}

	var targets []string
	for _, rel := range all {
		haveWork, err := db.HaveWork(tx, rel)
		if err != nil {
			return nil, err
		}
		if haveWork {
			targets = append(targets, rel)
		}
	}
	sort.Slice(targets, func(i, j int) bool {
		return pathDepth(targets[i]) > pathDepth(targets[j])
	})
	return targets, nil
}

func pathDepth(relpath string) int {
	if relpath == "" {
		return 0
	}
	return strings.Count(relpath, "/") + 1
}

func collectAll(tx *bbolt.Tx, db *wcdb.Store, relpath string, out *[]string) error {
	*out = append(*out, relpath)
	children, err := db.ReadChildren(tx, relpath)
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := collectAll(tx, db, c, out); err != nil {
			return err
		}
	}
	return nil
}
