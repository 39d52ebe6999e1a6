package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/openmuseum/gallerist/internal/dump"
	"github.com/openmuseum/gallerist/internal/index"
)

var (
	indexCapacity    uint64
	indexStartOffset int64
)

var indexCmd = &cobra.Command{
	Use:   "index [dump.json.gz]",
	Short: "Build or extend the entity index for a Wikidata dump",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dumpPath := args[0]
		indexPath := dump.IndexPath(dumpPath)

		fmt.Printf("Indexing %s -> %s...\n", dumpPath, indexPath)
		start := time.Now()
		lastPct := -1
		stats, err := index.Build(dumpPath, indexPath, index.BuildOptions{
			Capacity:    indexCapacity,
			StartOffset: indexStartOffset,
			Progress: func(s index.BuildStats) {
				if s.BytesTotal == 0 {
					return
				}
				if pct := int(s.BytesDone * 100 / s.BytesTotal); pct != lastPct {
					fmt.Printf("  %3d%%  %d members, %d entities\n", pct, s.Members, s.Entities)
					lastPct = pct
				}
			},
		})
		if err != nil {
			// Report the resume point so a crash-interrupted build can pick
			// up with --start-offset instead of rescanning from zero.
			return fmt.Errorf("at compressed offset %d: %w", stats.BytesDone, err)
		}
		fmt.Printf("Done in %v: %d members scanned, %d entities indexed.\n",
			time.Since(start).Round(time.Millisecond), stats.Members, stats.Entities)
		return nil
	},
}

func init() {
	indexCmd.Flags().Uint64Var(&indexCapacity, "capacity", 300_000_000, "Maximum QID the index is preallocated for")
	indexCmd.Flags().Int64Var(&indexStartOffset, "start-offset", 0, "Compressed byte offset to resume scanning from")
	rootCmd.AddCommand(indexCmd)
}
