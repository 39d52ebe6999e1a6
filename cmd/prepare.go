package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/openmuseum/gallerist/internal/query"
)

var (
	prepareSPARQL  string
	prepareOut     string
	prepareWorkers int
)

var prepareCmd = &cobra.Command{
	Use:   "prepare [dump.json.gz] [qid]...",
	Short: "Resolve and cache artwork entities, writing a query descriptor",
	Long: `Prepare streams the requested entities through the cache and the indexed
dump, keeps the ones with an image and dimensions in centimetres, resolves
their creator/collection/material dependencies one level deep, and writes a
descriptor that 'gallerist execute' replays without touching the dump.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dumpPath := args[0]
		qids, err := parseQIDArgs(args[1:])
		if err != nil {
			return err
		}
		if prepareSPARQL != "" {
			f, err := os.Open(prepareSPARQL)
			if err != nil {
				return fmt.Errorf("open sparql export: %w", err)
			}
			fromCSV, err := query.ParseSPARQLCSV(f)
			_ = f.Close()
			if err != nil {
				return err
			}
			qids = append(qids, fromCSV...)
		}
		if len(qids) == 0 {
			return fmt.Errorf("no QIDs: pass them as arguments or via --sparql")
		}

		eng, closeEngine, err := openEngine(dumpPath, prepareWorkers)
		if err != nil {
			return err
		}
		defer closeEngine()

		fmt.Printf("Preparing %d QIDs against %s...\n", len(qids), dumpPath)
		start := time.Now()
		desc, stats, err := query.Prepare(cmd.Context(), eng, qids, query.PrepareOptions{Verbose: verbose})
		if err != nil {
			return err
		}
		if err := desc.Save(prepareOut); err != nil {
			return err
		}
		fmt.Printf("Done in %v: %d fetched, %d kept, %d skipped, %d dependencies resolved.\n",
			time.Since(start).Round(time.Millisecond),
			stats.Requested, stats.Kept, stats.Skipped, stats.Dependencies)
		fmt.Printf("Descriptor written to %s.\n", prepareOut)
		return nil
	},
}

func init() {
	prepareCmd.Flags().StringVar(&prepareSPARQL, "sparql", "", "SPARQL CSV export of entity URLs to include")
	prepareCmd.Flags().StringVar(&prepareOut, "out", "gallery.query", "Descriptor output path")
	prepareCmd.Flags().IntVar(&prepareWorkers, "workers", 0, "Parallel member decompressions (0 = all CPUs)")
	rootCmd.AddCommand(prepareCmd)
}
