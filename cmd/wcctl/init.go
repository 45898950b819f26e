package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"wcengine/internal/kvtxn"
	"wcengine/pkg/pristine"
	"wcengine/pkg/types"
	"wcengine/pkg/wcdb"
	"wcengine/pkg/wclock"
	"wcengine/pkg/wcroot"
)

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Create a new working copy rooted at directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		url, _ := cmd.Flags().GetString("url")

		root, err := wcroot.InitRoot(dir)
		if err != nil {
			return fmt.Errorf("init working copy: %w", err)
		}

		if err := wcdb.EnsureBuckets(root.DB); err != nil {
			return err
		}
		if err := wclock.EnsureBucket(root.DB); err != nil {
			return err
		}
		if err := pristine.EnsureBucket(root.DB); err != nil {
			return err
		}

		store := wcdb.New()
		runner := kvtxn.NewRunner(root.DB)
		var repo wcdb.Repository
		err = runner.Do(func(trail *kvtxn.Trail) error {
			var err error
			repo, err = store.EnsureRepository(trail, url)
			if err != nil {
				return err
			}
			return store.BaseAddDirectory(trail, "", wcdb.BaseAddArgs{
				ReposRelpath: "",
				Revision:     0,
				ChangedRev:   0,
				Depth:        types.DepthInfinity,
			})
		})
		if err != nil {
			return fmt.Errorf("initialize working copy root: %w", err)
		}

		fmt.Printf("Initialized working copy at %s\n", root.AbsPath)
		fmt.Printf("  Admin directory: %s\n", wcroot.AdminDirName)
		if url != "" {
			fmt.Printf("  Repository URL:  %s\n", repo.RootURL)
			fmt.Printf("  Repository UUID: %s\n", repo.UUID)
		}
		return nil
	},
}

func init() {
	initCmd.Flags().String("url", "", "Repository root URL to associate with this working copy")
}
