package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openmuseum/gallerist/internal/entity"
)

var getWorkers int

var getCmd = &cobra.Command{
	Use:   "get [dump.json.gz] [qid]...",
	Short: "Fetch raw entity JSON by QID, through the cache",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dumpPath := args[0]
		qids, err := parseQIDArgs(args[1:])
		if err != nil {
			return err
		}
		// Fetch collapses duplicates, so the summary arithmetic below has
		// to count distinct requests.
		qids = dedupeQIDs(qids)

		eng, closeEngine, err := openEngine(dumpPath, getWorkers)
		if err != nil {
			return err
		}
		defer closeEngine()

		results, err := eng.Fetch(cmd.Context(), qids)
		if err != nil {
			return err
		}
		fetched, failed := 0, 0
		for _, res := range results {
			if res.Err != nil {
				failed++
				fmt.Fprintf(os.Stderr, "Q%d: %v\n", res.QID, res.Err)
				continue
			}
			fetched++
			fmt.Printf("%s\n", res.JSON)
		}
		fmt.Fprintf(os.Stderr, "Fetched %d of %d (%d failed, %d not indexed).\n",
			fetched, len(qids), failed, len(qids)-len(results))
		return nil
	},
}

// dedupeQIDs drops repeated QIDs, keeping first-occurrence order.
func dedupeQIDs(qids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(qids))
	out := qids[:0]
	for _, q := range qids {
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}
	return out
}

// parseQIDArgs accepts identifiers with or without the Q prefix.
func parseQIDArgs(args []string) ([]uint64, error) {
	qids := make([]uint64, 0, len(args))
	for _, arg := range args {
		if !strings.HasPrefix(arg, "Q") {
			n, err := strconv.ParseUint(arg, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid QID %q: %w", arg, err)
			}
			qids = append(qids, n)
			continue
		}
		qid, err := entity.ParseQID(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid QID %q: %w", arg, err)
		}
		qids = append(qids, qid)
	}
	return qids, nil
}

func init() {
	getCmd.Flags().IntVar(&getWorkers, "workers", 0, "Parallel member decompressions (0 = all CPUs)")
	rootCmd.AddCommand(getCmd)
}
