package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bazelbuild/bazel-bench/internal/profiles"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles [session.json]",
	Short: "Aggregate the JSON trace profiles of a saved session",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil, false)
		if err != nil {
			return err
		}
		uid, _ := cmd.Flags().GetString("uid")
		out, _ := cmd.Flags().GetString("output")

		session, err := loadSession(cfg.DataDir(), uid, args)
		if err != nil {
			return err
		}
		dir, _ := cmd.Flags().GetString("profile_dir")
		if dir == "" {
			dir = cfg.DataDir()
		}
		if out == "" {
			out = filepath.Join(cfg.DataDir(), profiles.DefaultFileName)
		}
		if err := profiles.WriteSessionCSV(session, dir, out); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Wrote aggregated profiles to", out)
		return nil
	},
}

func init() {
	profilesCmd.Flags().String("uid", "", "Session uid (default is the latest)")
	profilesCmd.Flags().String("profile_dir", "", "Directory holding the .profile.gz files (default is the data directory)")
	profilesCmd.Flags().StringP("output", "o", "", "CSV file to write")
	rootCmd.AddCommand(profilesCmd)
}
