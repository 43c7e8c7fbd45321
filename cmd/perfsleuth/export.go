package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/perfsleuth/perfsleuth/internal/causal"
	"github.com/perfsleuth/perfsleuth/internal/storage"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export an archived run's causal graph",
	Long: `Export writes the causal graph of an archived run as JSON or as a
Graphviz DOT document.

Example:
  perfsleuth export a1b2c3d4 --format dot | dot -Tsvg -o graph.svg`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
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
	if result.Graph == nil {
		return fmt.Errorf("run %s has no graph (no findings survived gating)", id)
	}

	var out []byte
	switch exportFormat {
	case "json":
		out, err = causal.Export(result.Graph).JSON()
		if err != nil {
			return fmt.Errorf("encoding graph: %w", err)
		}
	case "dot":
		out = []byte(causal.DOT(result.Graph))
	default:
		return fmt.Errorf("unknown format %q (want json or dot)", exportFormat)
	}

	if exportOut == "" {
		_, err = os.Stdout.Write(out)
		return err
	}
	if err := os.WriteFile(exportOut, out, 0644); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	return nil
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "output format: json or dot")
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "write to file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}
