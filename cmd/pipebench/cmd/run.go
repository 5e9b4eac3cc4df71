package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/thanos-io/objstore"

	"github.com/polarsignals/frostpipe/index"
	"github.com/polarsignals/frostpipe/query"
	"github.com/polarsignals/frostpipe/query/pipeline"
)

type runConfig struct {
	inputs   int
	outputs  int
	blocks   int
	rows     int
	pageSize int
	filterGT int64
	filter   bool
	metrics  bool
}

var runFlags runConfig

var runCmd = &cobra.Command{
	Use:     "run",
	Example: "pipebench run --inputs 4 --outputs 2 --blocks 16 --rows 1024 --filter-gt 40000",
	Short:   "Mix generated sources into a number of outputs and drain them",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}
		cfg := runFlags
		cfg.filter = cmd.Flags().Changed("filter-gt")
		return run(cmd.Context(), logger, os.Stdout, cfg)
	},
}

func init() {
	runCmd.Flags().IntVar(&runFlags.inputs, "inputs", 4, "number of sources")
	runCmd.Flags().IntVar(&runFlags.outputs, "outputs", 2, "number of outputs of the mixing stage")
	runCmd.Flags().IntVar(&runFlags.blocks, "blocks", 8, "blocks per source")
	runCmd.Flags().IntVar(&runFlags.rows, "rows", 1024, "rows per block")
	runCmd.Flags().IntVar(&runFlags.pageSize, "page-size", 128, "rows per page of the sparse index")
	runCmd.Flags().Int64Var(&runFlags.filterGT, "filter-gt", 0, "only read values greater than this, pruning with indexes")
	runCmd.Flags().BoolVar(&runFlags.metrics, "metrics", false, "print metrics after the run")
}

type outputStats struct {
	blocks int
	rows   int64
}

func run(ctx context.Context, logger log.Logger, w io.Writer, cfg runConfig) error {
	if cfg.inputs < 1 || cfg.blocks < 0 || cfg.rows < 1 {
		return fmt.Errorf("invalid run configuration: inputs=%d blocks=%d rows=%d", cfg.inputs, cfg.blocks, cfg.rows)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	reg := prometheus.NewRegistry()
	mem := query.NewAccountingAllocator(0, memory.NewGoAllocator())
	reg.MustRegister(mem.Collector())

	qctx := pipeline.NewQueryContext(ctx, logger, pipeline.WithMetrics(pipeline.NewMetrics(reg)))
	defer qctx.Close()

	p := pipeline.NewPipeline(qctx)
	store := index.NewStore(index.NewPrefixedBucket(objstore.NewInMemBucket(), qctx.ID().String()), mem)
	for i := 0; i < cfg.inputs; i++ {
		records := generateRecords(mem, int64(i*cfg.blocks*cfg.rows), cfg.blocks, cfg.rows)
		source, err := newSource(ctx, qctx, store, i, records, cfg)
		if err != nil {
			releaseRecords(records)
			return err
		}
		if err := p.AddSource(source); err != nil {
			return err
		}
	}
	if err := p.Mix(cfg.outputs); err != nil {
		return err
	}

	level.Info(logger).Log("msg", "running pipeline", "query", qctx.ID(), "plan", p.Draw())
	stats := make([]outputStats, p.NumOutputs())
	err := p.Collect(ctx, func(output int, r arrow.Record) error {
		stats[output].blocks++
		stats[output].rows += r.NumRows()
		r.Release()
		return nil
	})
	if err != nil {
		return err
	}
	qctx.Wait()

	fmt.Fprintln(w, "plan:", p.Draw())
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Output", "Blocks", "Rows"})
	var total outputStats
	for i, s := range stats {
		total.blocks += s.blocks
		total.rows += s.rows
		table.Append([]string{strconv.Itoa(i), strconv.Itoa(s.blocks), humanize.Comma(s.rows)})
	}
	table.SetFooter([]string{"total", strconv.Itoa(total.blocks), humanize.Comma(total.rows)})
	table.Render()
	fmt.Fprintf(w, "peak memory: %s, leaked: %s\n",
		humanize.IBytes(uint64(mem.Peak())),
		humanize.IBytes(uint64(mem.Allocated())),
	)

	if cfg.metrics {
		return printMetrics(w, reg)
	}
	return nil
}

// newSource returns a plain source over records, or a scan stage over them
// when a filter is set. The returned processor owns the records.
func newSource(ctx context.Context, qctx *pipeline.QueryContext, store *index.Store, i int, records []arrow.Record, cfg runConfig) (pipeline.Processor, error) {
	if !cfg.filter {
		return pipeline.NewSourceProcessor(fmt.Sprintf("source-%d", i), records...), nil
	}

	parts := make([]pipeline.Part, 0, len(records))
	for j, rec := range records {
		name := fmt.Sprintf("source-%d/block-%d", i, j)
		col := rec.Column(0)

		minmax, err := index.BuildMinMax(valueColumn, col)
		if err != nil {
			return nil, err
		}
		sparse, err := index.BuildSparse(valueColumn, col, cfg.pageSize)
		if err != nil {
			return nil, err
		}
		for _, idx := range []index.Index{minmax, sparse} {
			if err := store.Put(ctx, name, idx); err != nil {
				return nil, err
			}
		}

		set, err := store.Load(ctx, name)
		if err != nil {
			return nil, err
		}
		parts = append(parts, pipeline.Part{Name: name, Record: rec, Indexes: set})
	}
	return pipeline.NewScanProcessor(qctx, fmt.Sprintf("scan-%d", i), parts, index.Gt(valueColumn, cfg.filterGT)), nil
}

func printMetrics(w io.Writer, reg *prometheus.Registry) error {
	mfs, err := reg.Gather()
	if err != nil {
		return err
	}
	sort.Slice(mfs, func(i, j int) bool { return mfs[i].GetName() < mfs[j].GetName() })

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Labels", "Value"})
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			var labels string
			for _, l := range m.GetLabel() {
				labels += l.GetName() + "=" + l.GetValue() + " "
			}
			var v float64
			switch {
			case m.GetCounter() != nil:
				v = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				v = m.GetGauge().GetValue()
			}
			table.Append([]string{mf.GetName(), labels, strconv.FormatFloat(v, 'f', -1, 64)})
		}
	}
	table.Render()
	return nil
}
