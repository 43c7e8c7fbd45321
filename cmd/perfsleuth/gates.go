package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/perfsleuth/perfsleuth/internal/gate"
	"github.com/perfsleuth/perfsleuth/internal/types"
)

var gatesDevice string

var gatesCmd = &cobra.Command{
	Use:   "gates <snapshot.json>",
	Short: "Show gating decisions for a signal snapshot",
	Long: `Gates evaluates the built-in gating rules against a signal snapshot
without running any analysis, so you can see which tasks a given set
of signals would justify.

The snapshot file holds {"data": {...}, "psi": {...}} as produced by
the collectors.

Example:
  perfsleuth gates snapshot.json --device desktop`,
	Args: cobra.ExactArgs(1),
	RunE: runGates,
}

func runGates(cmd *cobra.Command, args []string) error {
	device := types.DeviceClass(gatesDevice)
	if !device.IsValid() {
		return fmt.Errorf("invalid device class %q (want mobile or desktop)", gatesDevice)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading snapshot: %w", err)
	}
	var snap types.SignalSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("parsing snapshot: %w", err)
	}

	g, err := gate.New()
	if err != nil {
		return err
	}
	decisions, err := g.DecideAll(device, snap)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	taskTypes := make([]types.TaskType, 0, len(decisions))
	for tt := range decisions {
		taskTypes = append(taskTypes, tt)
	}
	sort.Slice(taskTypes, func(i, j int) bool { return taskTypes[i] < taskTypes[j] })

	for _, tt := range taskTypes {
		d := decisions[tt]
		mark := gray("–")
		if d.ShouldRun {
			mark = green("✓")
		}
		fmt.Printf("%s %-15s %d/%d signals  %s\n",
			mark, tt, d.SignalsPassed, d.SignalsTotal, gray(d.Reason))
	}
	return nil
}

func init() {
	gatesCmd.Flags().StringVar(&gatesDevice, "device", "mobile", "device class: mobile or desktop")
	rootCmd.AddCommand(gatesCmd)
}
