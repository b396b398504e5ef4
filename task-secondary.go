package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/cs-au-dk/reach/analysis/bam"
	"github.com/cs-au-dk/reach/utils/dot"
	"github.com/fatih/color"
	"golang.org/x/tools/go/ssa"
)

// secondaryTask executes the tasks that do not explore the program.
func (pl pipeline) secondaryTask(entries []*ssa.Function) error {
	switch {
	// blocks : prints the partitioning of the automaton into blocks.
	case task.IsBlocks():
		blocks, err := bam.PartitionByFunction(pl.cfa.Graph)
		if err != nil {
			return err
		}
		for _, b := range blocks.Blocks() {
			rec := ""
			if blocks.IsRecursive(b) {
				rec = color.YellowString(" (recursive)")
			}
			fmt.Printf("%s%s: %d locations\n", b, rec, b.Size())
		}

		cg := blocks.CallGraph(pl.cfa.Graph)
		for _, b := range blocks.Blocks() {
			var callees []string
			for _, c := range cg.Edges(b) {
				callees = append(callees, c.Function)
			}
			if len(callees) > 0 {
				fmt.Printf("%s calls %s\n", b.Function, strings.Join(callees, ", "))
			}
		}
	// cfa-to-dot : renders the control-flow automaton.
	case task.IsCfaToDot():
		log.Printf("Preparing to visualize the automaton of %d entries", len(entries))
		g := pl.cfa.Graph.ToDot()
		if opts.Output() == "" {
			return g.ShowDot()
		}

		src, err := g.Bytes()
		if err != nil {
			return err
		}
		img, err := dot.DotToImage(opts.Output(), opts.OutputFormat(), src)
		if err != nil {
			return err
		}
		fmt.Println(img)
	}
	return nil
}
