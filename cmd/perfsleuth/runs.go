package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/perfsleuth/perfsleuth/internal/report"
	"github.com/perfsleuth/perfsleuth/internal/storage"
)

var (
	runsURL   string
	runsLimit int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List and inspect archived analysis runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.Open(flagDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.ListRuns(cmd.Context(), runsURL, runsLimit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No archived runs.")
			return nil
		}
		gray := color.New(color.FgHiBlack).SprintFunc()
		for _, r := range records {
			fmt.Printf("%s  %s  %s  %d findings, %d approved, %d blocked  %s\n",
				r.RunID[:8], r.CreatedAt.Format("2006-01-02 15:04"), r.Device,
				r.Findings, r.Approved, r.Blocked, gray(r.URL))
		}
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the full report for one archived run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.Open(flagDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := resolveRunID(cmd, store, args[0])
		if err != nil {
			return err
		}
		result, err := store.LoadRun(cmd.Context(), id)
		if err != nil {
			return err
		}
		report.WriteConsole(os.Stdout, result.URL, result)
		return nil
	},
}

var runsRmCmd = &cobra.Command{
	Use:   "rm <run-id>",
	Short: "Delete one archived run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.Open(flagDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := resolveRunID(cmd, store, args[0])
		if err != nil {
			return err
		}
		if err := store.DeleteRun(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("Deleted run %s\n", id)
		return nil
	},
}

// resolveRunID accepts a full run ID or an unambiguous prefix.
func resolveRunID(cmd *cobra.Command, store *storage.Store, arg string) (string, error) {
	records, err := store.ListRuns(cmd.Context(), "", 0)
	if err != nil {
		return "", err
	}
	var matches []string
	for _, r := range records {
		if r.RunID == arg {
			return arg, nil
		}
		if len(arg) >= 4 && len(arg) < len(r.RunID) && r.RunID[:len(arg)] == arg {
			matches = append(matches, r.RunID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", storage.ErrRunNotFound, arg)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("run ID prefix %q is ambiguous (%d matches)", arg, len(matches))
	}
}

func init() {
	runsListCmd.Flags().StringVar(&runsURL, "url", "", "only list runs for this URL")
	runsListCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list (0 = all)")
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsRmCmd)
	rootCmd.AddCommand(runsCmd)
}
