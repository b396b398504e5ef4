package utils

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"
)

type options struct {
	minlen        uint
	maxDepth      uint
	workers       uint
	nodesep       float64
	timeout       time.Duration
	function      string
	outputFormat  string
	output        string
	snapshot      string
	waitlist      string
	gopath        string
	modulePath    string
	task          string
	logAlgorithm  bool
	metrics       bool
	noColorize    bool
	verbose       bool
	includeTests  bool
	visualize     bool
	bam           bool
	firstTarget   bool
	processCovers bool
}

const (
	_REACH = iota
	_BLOCKS
	_CFA_TO_DOT
)

func CanColorize(col func(...interface{}) string) func(...interface{}) string {
	if opts.noColorize {
		return func(is ...interface{}) string {
			return fmt.Sprintf(strings.Repeat("%s", len(is)), is...)
		}
	}
	return col
}

var task = []struct{ flag, explanation string }{{
	"reach",
	"Run the reachability analysis and report reachable panics",
}, {
	"blocks",
	"Print the block partitioning used for block-summary memoization",
}, {
	"cfa-to-dot",
	"Create a graph for the control-flow automaton",
}}

var opts = &options{}

type optInterface struct{}

type taskInterface struct{}

func Opts() optInterface {
	return optInterface{}
}

func (optInterface) NoColorize() bool {
	return opts.noColorize
}
func (optInterface) Minlen() uint {
	return opts.minlen
}
func (optInterface) Nodesep() float64 {
	return opts.nodesep
}
func (optInterface) MaxDepth() int {
	return int(opts.maxDepth)
}
func (optInterface) Workers() int {
	return int(opts.workers)
}
func (optInterface) Timeout() time.Duration {
	return opts.timeout
}
func (optInterface) Function() string {
	return opts.function
}
func (optInterface) OutputFormat() string {
	return opts.outputFormat
}
func (optInterface) Output() string {
	return opts.output
}
func (optInterface) Snapshot() string {
	return opts.snapshot
}
func (optInterface) Waitlist() string {
	return opts.waitlist
}
func (optInterface) GoPath() string {
	return opts.gopath
}
func (optInterface) ModulePath() string {
	return opts.modulePath
}
func (optInterface) LogAlgorithm() bool {
	return opts.logAlgorithm
}
func (optInterface) Metrics() bool {
	return opts.metrics
}
func (optInterface) Verbose() bool {
	return opts.verbose
}
func (optInterface) IncludeTests() bool {
	return opts.includeTests
}
func (optInterface) Visualize() bool {
	return opts.visualize
}
func (optInterface) BAM() bool {
	return opts.bam
}
func (optInterface) StopOnFirstTarget() bool {
	return opts.firstTarget
}
func (optInterface) ProcessCoveredEffects() bool {
	return opts.processCovers
}
func (optInterface) AnalyzeAllFuncs() bool {
	return opts.function == "."
}
func (optInterface) Task() taskInterface {
	return taskInterface{}
}
func (taskInterface) IsReach() bool {
	return opts.task == task[_REACH].flag
}
func (taskInterface) IsBlocks() bool {
	return opts.task == task[_BLOCKS].flag
}
func (taskInterface) IsCfaToDot() bool {
	return opts.task == task[_CFA_TO_DOT].flag
}

func (optInterface) OnVerbose(do func()) {
	if Opts().Verbose() {
		do()
	}
}

func init() {
	taskFlag := "\n"
	for _, task := range task {
		taskFlag += task.flag + " -- " + task.explanation + "\n"
	}
	taskFlag += "\n"

	flag.UintVar(&(opts.minlen), "minlen", 2, "Minimum edge length (for wider output).")
	flag.Float64Var(&(opts.nodesep), "nodesep", 0.35, "Minimum space between two adjacent nodes in the same rank (for taller output).")
	flag.UintVar(&(opts.maxDepth), "max-depth", 32, "Call stack bound for the analysis without block summaries.")
	flag.UintVar(&(opts.workers), "workers", 1, "Number of functions analyzed in parallel when -fun is '.'")
	flag.DurationVar(&(opts.timeout), "timeout", 0, "Abort the exploration after the given duration (0 disables the timeout).")
	flag.StringVar(&(opts.function), "fun", "main", "Entry function of the analysis.\n"+
		"- Use '.' to analyze every function of the main package.\n")
	flag.StringVar(&(opts.outputFormat), "format", "svg", "output file format [svg | png | jpg | ...]")
	flag.StringVar(&(opts.output), "o", "", "Base name of the rendered image. Rendering is skipped when empty.")
	flag.StringVar(&(opts.snapshot), "snapshot", "", "Write a compressed snapshot of the reachability graph to the given file.")
	flag.StringVar(&(opts.waitlist), "waitlist", "callstack:bfs", "Waitlist order, e.g. bfs, dfs, callstack:bfs, loop:callstack:dfs.")
	flag.StringVar(&(opts.gopath), "gopath", "", "specify GOPATH to be used for packages.Load")
	flag.StringVar(&(opts.modulePath), "modulepath", "", `specify a path to a directory containing a Go module.
- If provided this will make our code loading tools (that piggyback on Go's tools) run
in "module-aware" mode (GO111MODULE=on).`)
	flag.StringVar(&(opts.task), "task", task[_REACH].flag, "Set the task to do during execution. Options:"+taskFlag)
	flag.BoolVar(&(opts.logAlgorithm), "log", false, "Enable logging of specific events during exploration")
	flag.BoolVar(&(opts.metrics), "metrics", false, "Print exploration and cache metrics")
	flag.BoolVar(&(opts.noColorize), "no-colorize", false, "Disable pretty printer colorization")
	flag.BoolVar(&(opts.verbose), "verbose", false, "enable verbose output")
	flag.BoolVar(&(opts.includeTests), "include-tests", false, "include main package test files in the analysis.")
	flag.BoolVar(&(opts.visualize), "visualize", false, "enable visualization via XDot")
	flag.BoolVar(&(opts.bam), "bam", true, "Summarize function bodies with block-summary memoization")
	flag.BoolVar(&(opts.firstTarget), "first-target", false, "Stop the exploration at the first reachable target")
	flag.BoolVar(&(opts.processCovers), "covered-effects", true, "With -metrics, skip summaries already visited under a superset of the calling context")

	// Set up logging
	log.SetFlags(log.Ltime | log.Lshortfile)
}

func ParseArgs() {
	// Calling flag.Parse in init messes up unit tests.
	// See https://stackoverflow.com/questions/60235896/flag-provided-but-not-defined-test-v
	flag.Parse()

	validTask := false
	for _, task := range task {
		if task.flag == opts.task {
			validTask = true
			break
		}
	}

	if !validTask {
		log.Fatalf("Value \"%s\" is not valid for -task", opts.task)
	}

	if opts.workers == 0 {
		opts.workers = 1
	}
	if Opts().Task().IsCfaToDot() {
		opts.noColorize = true
	}
}
