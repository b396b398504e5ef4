package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/cs-au-dk/reach/analysis/algorithm"
	"github.com/cs-au-dk/reach/analysis/arg/argio"
	"github.com/cs-au-dk/reach/analysis/arg/argviz"
	"github.com/cs-au-dk/reach/analysis/bam"
	"github.com/cs-au-dk/reach/analysis/cfa"
	"github.com/cs-au-dk/reach/analysis/collector"
	"github.com/cs-au-dk/reach/analysis/cpa"
	"github.com/cs-au-dk/reach/analysis/domains/location"
	"github.com/cs-au-dk/reach/analysis/reached"
	"github.com/cs-au-dk/reach/analysis/ssacfa"
	"github.com/cs-au-dk/reach/analysis/waitlist"
	"github.com/cs-au-dk/reach/pkgutil"
	"github.com/fatih/color"
	"golang.org/x/tools/go/ssa"
)

// pipeline is a wrapper around the loaded program and its automaton.
type pipeline struct {
	prog *ssa.Program
	main *ssa.Package
	cfa  *ssacfa.Program
}

// entries returns the functions selected with -fun.
func (pl pipeline) entries() ([]*ssa.Function, error) {
	if opts.AnalyzeAllFuncs() {
		return pkgutil.Functions(pl.main), nil
	}

	fn := pl.main.Func(opts.Function())
	if fn == nil || fn.Blocks == nil {
		return nil, fmt.Errorf("no function %q with a body in %s", opts.Function(), pl.main.Pkg.Path())
	}
	return []*ssa.Function{fn}, nil
}

// setup is the configured analysis shared by all explorations.
type setup struct {
	cpa     *cpa.CPA
	order   waitlist.Factory
	target  cpa.TargetFunc
	bam     *bam.Analysis
	metrics *algorithm.Metrics
	stats   *bam.Stats
	history *collector.History
}

func (pl pipeline) setup() (s setup, err error) {
	if s.order, err = waitlist.ParseStrategy(opts.Waitlist()); err != nil {
		return
	}
	s.target = cpa.AtTargetLocation(pl.cfa.Graph)
	if opts.Metrics() {
		s.metrics = algorithm.NewMetrics()
	}

	maxDepth := opts.MaxDepth()
	if opts.BAM() {
		// Summaries are computed without call stacks.
		maxDepth = 0
	}
	s.cpa = location.CPA(maxDepth)

	if opts.LogAlgorithm() {
		s.history = collector.NewHistory(true)
		if s.cpa, err = collector.Wrap(s.cpa, s.history); err != nil {
			return
		}
	}

	if !opts.BAM() {
		return
	}

	blocks, err := bam.PartitionByFunction(pl.cfa.Graph)
	if err != nil {
		return s, err
	}
	if opts.Metrics() {
		s.stats = bam.NewStats()
	}
	s.bam, err = bam.New(s.cpa, pl.cfa.Graph, blocks, location.Reducer{},
		bam.NewCache(s.stats, opts.LogAlgorithm()),
		bam.Config{
			Log:      opts.LogAlgorithm(),
			Waitlist: s.order,
			Target:   s.target,
			Metrics:  s.metrics,
		})
	if err != nil {
		return s, err
	}
	s.cpa = s.bam.CPA()
	return s, nil
}

// reach explores every entry and reports the reachable panics.
func (pl pipeline) reach(entries []*ssa.Function) error {
	s, err := pl.setup()
	if err != nil {
		return err
	}

	tasks := make([]algorithm.Task, 0, len(entries))
	for _, fn := range entries {
		f, ok := pl.cfa.Function(fn)
		if !ok {
			continue
		}
		alg, err := algorithm.New(s.cpa, pl.cfa.Graph, algorithm.Config{
			StopOnFirstTarget: opts.StopOnFirstTarget(),
			Log:               opts.LogAlgorithm(),
			Target:            s.target,
			Metrics:           s.metrics,
		})
		if err != nil {
			return err
		}
		r := reached.New(s.order)
		r.AddRoot(location.Initial(f.Entry), cpa.NoPrecision)
		tasks = append(tasks, algorithm.Task{Name: fn.String(), Algorithm: alg, Reached: r})
	}

	ctx := context.Background()
	if opts.Timeout() > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout())
		defer cancel()
	}

	log.Printf("Exploring %d entries with %d workers...", len(tasks), opts.Workers())
	statuses, err := algorithm.RunParallel(ctx, opts.Workers(), tasks...)
	if err != nil {
		return err
	}

	found := 0
	for i, t := range tasks {
		found += pl.report(t, statuses[i])
		if err := pl.export(t, len(tasks) > 1); err != nil {
			return err
		}
	}

	log.Printf("Overall: %s, %d reachable panics", algorithm.Combine(statuses...), found)
	return gatherMetrics(s, tasks)
}

// report prints the outcome of an exploration and returns the number of
// reachable panics.
func (pl pipeline) report(t algorithm.Task, status algorithm.Status) int {
	targets := t.Reached.Targets()
	fmt.Printf("%s: %s, %d states\n", color.CyanString(t.Name), status, t.Reached.Size())
	if len(targets) == 0 {
		fmt.Println(color.GreenString("  No reachable panics"))
		return 0
	}

	g := t.Reached.Graph()
	for _, id := range targets {
		if l, ok := cpa.LocationOf(g.State(id)); ok {
			fmt.Printf("  %s at %s\n", color.RedString("panic"), pl.cfa.Position(l))
		}

		trace, err := t.Reached.Trace(id)
		if err != nil {
			fmt.Println("   ", err)
			continue
		}
		for _, step := range trace {
			if step.Edge != nil && !isBlank(step.Edge) {
				fmt.Printf("    %v\n", step.Edge)
			}
		}
	}
	return len(targets)
}

func isBlank(e cfa.Edge) bool {
	_, ok := e.(cfa.BlankEdge)
	return ok
}

// export writes the reachability graph as requested by -snapshot, -o and
// -visualize. With several entries, file names are suffixed by the entry.
func (pl pipeline) export(t algorithm.Task, suffix bool) error {
	name := func(base string) string {
		if suffix {
			return base + "." + t.Name
		}
		return base
	}

	g := t.Reached.Graph()
	if opts.Snapshot() != "" {
		f, err := os.Create(name(opts.Snapshot()))
		if err != nil {
			return err
		}
		if err := argio.Encode(f, g); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}

	if opts.Output() != "" {
		img, err := argviz.Render(g, t.Name, name(opts.Output()), opts.OutputFormat())
		if err != nil {
			return err
		}
		log.Println("Reachability graph written to", img)
	}

	if opts.Visualize() {
		return argviz.ToDot(g, t.Name).ShowDot()
	}
	return nil
}
