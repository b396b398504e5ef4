package main

import (
	"log"
	"os"
	"time"

	"github.com/cs-au-dk/reach/analysis/ssacfa"
	"github.com/cs-au-dk/reach/pkgutil"
	"github.com/cs-au-dk/reach/utils"
	"github.com/fatih/color"
)

var (
	opts = utils.Opts()
	task = opts.Task()
)

func main() {
	utils.ParseArgs()
	if opts.NoColorize() {
		color.NoColor = true
	}
	path := utils.MakePath()

	pkgs, err := pkgutil.LoadPackages(pkgutil.LoadConfig{
		GoPath:       opts.GoPath(),
		ModulePath:   opts.ModulePath(),
		IncludeTests: opts.IncludeTests(),
	}, path)
	if err != nil {
		log.Println("Failed pkgutil.LoadPackages")
		log.Println(err)
		os.Exit(1)
	}

	prog, main, err := pkgutil.Build(pkgs)
	if err != nil {
		log.Fatalln(err)
	}

	pl := pipeline{prog: prog, main: main}
	entries, err := pl.entries()
	if err != nil {
		log.Fatalln(err)
	}

	start := time.Now()
	pl.cfa, err = ssacfa.Build(entries...)
	if err != nil {
		log.Fatalln("Building the control-flow automaton failed:", err)
	}
	opts.OnVerbose(func() {
		utils.TimeTrack(start, "Control-flow automaton construction")
	})
	utils.VerbosePrint("%d functions, %d locations\n", len(pl.cfa.Functions()), len(pl.cfa.Graph.Locations()))

	switch {
	case task.IsReach():
		if err := pl.reach(entries); err != nil {
			log.Fatalln(err)
		}
	default:
		if err := pl.secondaryTask(entries); err != nil {
			log.Fatalln(err)
		}
	}
}
