package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.etcd.io/bbolt"

	"wcengine/internal/kvtxn"
	"wcengine/pkg/diff"
	"wcengine/pkg/lcs"
	"wcengine/pkg/types"
)

var diffCmd = &cobra.Command{
	Use:   "diff [path]",
	Short: "Diff a file's on-disk text against its pristine text",
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
			if info.Kind != types.KindFile {
				return fmt.Errorf("%s is not a file", wc.relpath)
			}

			localAbsPath := filepath.Join(wc.root.AbsPath, wc.relpath)
			current, err := os.ReadFile(localAbsPath)
			if err != nil {
				return fmt.Errorf("read working file: %w", err)
			}

			var pristineText []byte
			if !info.Checksum.IsZero() {
				trail := &kvtxn.Trail{Tx: tx}
				pristineText, err = wc.pristine.Read(trail, info.Checksum)
				if err != nil {
					return fmt.Errorf("read pristine text: %w", err)
				}
			}

			printUnifiedDiff(wc.relpath, pristineText, current)
			return nil
		})
	},
}

func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	lines := bytes.Split(bytes.TrimSuffix(data, []byte("\n")), []byte("\n"))
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = string(l)
	}
	return out
}

// printUnifiedDiff computes the LCS chain between pristine and current
// line by line and prints a minus/plus hunk listing, skipping the
// common runs between them.
func printUnifiedDiff(relpath string, pristine, current []byte) {
	origLines := splitLines(pristine)
	modLines := splitLines(current)

	chain := lcs.Compute(origLines, modLines)
	hunks := diff.Flatten(diff.TwoWay(chain, false))

	if len(hunks) == 0 {
		fmt.Printf("%s: no differences\n", relpath)
		return
	}

	fmt.Printf("--- %s (pristine)\n", relpath)
	fmt.Printf("+++ %s (working)\n", relpath)
	for _, h := range hunks {
		for i := 0; i < h.Original.Length; i++ {
			fmt.Printf("-%s\n", origLines[h.Original.Start+i])
		}
		for i := 0; i < h.Modified.Length; i++ {
			fmt.Printf("+%s\n", modLines[h.Modified.Start+i])
		}
	}
}
