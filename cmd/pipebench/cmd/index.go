package cmd

import (
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/spf13/cobra"

	"github.com/polarsignals/frostpipe/index"
)

var (
	indexRows     int
	indexPageSize int
)

var indexCmd = &cobra.Command{
	Use:     "index",
	Example: "pipebench index --rows 1000 --page-size 100",
	Short:   "Build the pruning indexes of a generated column and print them",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		records := generateRecords(memory.DefaultAllocator, 0, 1, indexRows)
		defer releaseRecords(records)
		col := records[0].Column(0)

		minmax, err := index.BuildMinMax(valueColumn, col)
		if err != nil {
			return err
		}
		partition, err := index.BuildPartition(valueColumn, col)
		if err != nil {
			return err
		}
		sparse, err := index.BuildSparse(valueColumn, col, indexPageSize)
		if err != nil {
			return err
		}
		for _, idx := range []index.Index{minmax, partition, sparse} {
			fmt.Fprintln(os.Stdout, idx)
		}
		return nil
	},
}

func init() {
	indexCmd.Flags().IntVar(&indexRows, "rows", 1000, "rows of the generated column")
	indexCmd.Flags().IntVar(&indexPageSize, "page-size", 100, "rows per page of the sparse index")
}
