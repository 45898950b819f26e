package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.etcd.io/bbolt"

	"wcengine/pkg/wcdb"
)

var infoCmd = &cobra.Command{
	Use:   "info [path]",
	Short: "Show the node-model record for a single path",
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
			info, err := wc.db.ReadInfo(tx, wc.relpath)
			if err != nil {
				return err
			}
			printInfo(wc.relpath, info)
			return nil
		})
	},
}

func printInfo(relpath string, i wcdb.Info) {
	if relpath == "" {
		relpath = "."
	}
	fmt.Printf("Path: %s\n", relpath)
	fmt.Printf("Status: %s\n", i.Status)
	fmt.Printf("Kind: %s\n", i.Kind)
	if i.ReposRelpath != "" {
		fmt.Printf("Repository Path: %s\n", i.ReposRelpath)
	}
	fmt.Printf("Revision: %d\n", i.Revision)
	if i.ChangedRev >= 0 {
		fmt.Printf("Last Changed Rev: %d\n", i.ChangedRev)
	}
	if i.ChangedAuthor != "" {
		fmt.Printf("Last Changed Author: %s\n", i.ChangedAuthor)
	}
	if i.OriginalReposRelpath != "" {
		fmt.Printf("Copied From Path: %s\n", i.OriginalReposRelpath)
		fmt.Printf("Copied From Rev: %d\n", i.OriginalRevision)
	}
	if i.Lock != nil {
		fmt.Printf("Lock Token: %s\n", i.Lock.Token)
		fmt.Printf("Lock Owner: %s\n", i.Lock.Owner)
	}
	if i.Changelist != "" {
		fmt.Printf("Changelist: %s\n", i.Changelist)
	}
	fmt.Printf("Op Root: %t\n", i.OpRoot)
	fmt.Printf("Properties Modified: %t\n", i.PropsMod)
	fmt.Printf("Conflicted: %t\n", i.Conflicted)
}
