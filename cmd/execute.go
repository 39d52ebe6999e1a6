package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/openmuseum/gallerist/internal/cache"
	"github.com/openmuseum/gallerist/internal/dump"
	"github.com/openmuseum/gallerist/internal/query"
)

var (
	executeOut   string
	executeLimit int
)

var executeCmd = &cobra.Command{
	Use:   "execute [descriptor]",
	Short: "Replay a prepared query descriptor into a CSV export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		desc, err := query.LoadDescriptor(args[0])
		if err != nil {
			return err
		}
		c, err := cache.Open(dump.CachePath(desc.Dumpfile))
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()

		var w io.Writer = os.Stdout
		if executeOut != "" {
			f, err := os.Create(executeOut)
			if err != nil {
				return fmt.Errorf("create export %s: %w", executeOut, err)
			}
			defer func() { _ = f.Close() }()
			w = f
		}

		rows, err := query.Execute(desc, c, w, query.ExecuteOptions{Limit: executeLimit})
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Exported %d rows.\n", rows)
		return nil
	},
}

func init() {
	executeCmd.Flags().StringVar(&executeOut, "out", "", "CSV output path (default stdout)")
	executeCmd.Flags().IntVar(&executeLimit, "limit", 0, "Stop after this many rows (0 = all)")
	rootCmd.AddCommand(executeCmd)
}
