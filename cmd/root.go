package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "gallerist",
	Short: "Gallerist: virtual gallery content pipeline over Wikidata dumps",
	Long: `Gallerist turns a multi-gigabyte Wikidata JSON dump into a randomly
addressable entity store and exports artwork metadata for gallery layout.

Typical flow:
  gallerist index latest-all.json.gz
  gallerist prepare latest-all.json.gz --sparql paintings.csv --out paintings.query
  gallerist execute paintings.query --out paintings.csv`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log per-entity skips and misses")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
