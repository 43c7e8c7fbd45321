package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/perfsleuth/perfsleuth/internal/ai"
	"github.com/perfsleuth/perfsleuth/internal/collect"
	"github.com/perfsleuth/perfsleuth/internal/pipeline"
	"github.com/perfsleuth/perfsleuth/internal/report"
	"github.com/perfsleuth/perfsleuth/internal/storage"
	"github.com/perfsleuth/perfsleuth/internal/types"
)

var (
	analyzeDevice    string
	analyzeConfig    string
	analyzeNoLab     bool
	analyzeNoField   bool
	analyzeFieldKey  string
	analyzeMarkdown  string
	analyzeNoArchive bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <url>",
	Short: "Analyze a page and report validated root causes",
	Long: `Analyze captures the page headlessly, fetches field data, gates the
analysis tasks on the collected signals, runs the surviving tasks, and
prints the validated causal graph.

Example:
  perfsleuth analyze https://example.com
  perfsleuth analyze https://example.com --device desktop --no-field
  perfsleuth analyze https://example.com --markdown report.md`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	url := args[0]
	ctx := cmd.Context()

	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := pipeline.LoadConfigFile(analyzeConfig)
	if err != nil {
		return err
	}
	if analyzeDevice != "" {
		d := types.DeviceClass(analyzeDevice)
		if !d.IsValid() {
			return fmt.Errorf("invalid device class %q (want mobile or desktop)", analyzeDevice)
		}
		cfg.Device = d
	}

	// Collect. Lab and field are independent; the run proceeds with
	// whatever collected successfully as long as one source did.
	var (
		snaps    []types.SignalSnapshot
		values   []types.MetricValues
		payloads = map[types.TaskType]string{}
	)
	if !analyzeNoLab {
		browser := collect.NewBrowserCollector(60*time.Second, logger)
		capture, err := browser.Capture(ctx, url)
		if err != nil {
			return fmt.Errorf("lab capture failed: %w", err)
		}
		snaps = append(snaps, capture.Signals)
		values = append(values, capture.MetricValues)
		for tt, p := range capture.Payloads {
			payloads[tt] = p
		}
	}
	if !analyzeNoField {
		field := collect.NewFieldClient(analyzeFieldKey, logger)
		snap, vals, payload, err := field.Fetch(ctx, url, cfg.Device)
		if err != nil {
			if analyzeNoLab {
				return fmt.Errorf("field fetch failed and lab capture is disabled: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Warning: field fetch failed, continuing with lab data only: %v\n", err)
		} else {
			snaps = append(snaps, snap)
			values = append(values, vals)
			payloads[types.TaskFieldData] = payload
		}
	}
	if len(snaps) == 0 {
		return fmt.Errorf("no signal sources enabled (both --no-lab and --no-field set)")
	}

	supervisor, err := ai.NewSupervisor(&ai.Config{})
	if err != nil {
		return err
	}
	var tasks []types.Task
	for tt, payload := range payloads {
		task, err := supervisor.NewTask(tt, payload)
		if err != nil {
			return err
		}
		tasks = append(tasks, task)
	}

	p, err := pipeline.New(cfg, logger)
	if err != nil {
		return err
	}
	result, err := p.Run(ctx, pipeline.Input{
		URL:          url,
		Snapshot:     collect.MergeSnapshots(snaps...),
		MetricValues: collect.MergeValues(values...),
		Tasks:        tasks,
	})
	if err != nil {
		return err
	}

	report.WriteConsole(os.Stdout, url, result)

	if analyzeMarkdown != "" {
		f, err := os.Create(analyzeMarkdown)
		if err != nil {
			return fmt.Errorf("creating markdown report: %w", err)
		}
		report.WriteMarkdown(f, url, result)
		if err := f.Close(); err != nil {
			return fmt.Errorf("writing markdown report: %w", err)
		}
	}

	if !analyzeNoArchive {
		store, err := storage.Open(flagDBPath)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.SaveRun(ctx, url, cfg.Device, result); err != nil {
			return err
		}
		fmt.Printf("\nArchived as run %s\n", result.RunID)
	}
	return nil
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeDevice, "device", "", "device class: mobile or desktop (default from config)")
	analyzeCmd.Flags().StringVar(&analyzeConfig, "config", ".perfsleuth/pipeline.yaml", "pipeline config file")
	analyzeCmd.Flags().BoolVar(&analyzeNoLab, "no-lab", false, "skip the headless browser capture")
	analyzeCmd.Flags().BoolVar(&analyzeNoField, "no-field", false, "skip the field data fetch")
	analyzeCmd.Flags().StringVar(&analyzeFieldKey, "field-key", os.Getenv("PSI_API_KEY"), "PageSpeed Insights API key")
	analyzeCmd.Flags().StringVar(&analyzeMarkdown, "markdown", "", "also write a markdown report to this path")
	analyzeCmd.Flags().BoolVar(&analyzeNoArchive, "no-archive", false, "do not store the run in the archive")
	rootCmd.AddCommand(analyzeCmd)
}
