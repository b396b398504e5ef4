// Package pkgutil loads Go packages and builds their SSA form for the
// control-flow automaton frontend.
package pkgutil

import (
	"errors"
	"go/types"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

var ErrNoMain = errors.New("no main package found")

// InGoroot reports whether pkg is part of the standard library.
func InGoroot(pkg *types.Package) bool {
	fi, err := os.Stat(filepath.Join(runtime.GOROOT(), "src", pkg.Path()))
	return err == nil && fi.IsDir()
}

// GetMain picks the main package with the most members, ignoring test
// mains.
func GetMain(mains []*ssa.Package) (main *ssa.Package) {
	for _, mp := range mains {
		if strings.HasSuffix(mp.String(), ".test") {
			continue
		}
		if main == nil || len(main.Members) < len(mp.Members) {
			main = mp
		}
	}
	return
}

// Build creates and builds the SSA program of the loaded packages and
// returns it with its main package.
func Build(pkgs []*packages.Package) (*ssa.Program, *ssa.Package, error) {
	prog, _ := ssautil.AllPackages(pkgs, 0)
	prog.Build()

	main := GetMain(ssautil.MainPackages(prog.AllPackages()))
	if main == nil {
		return prog, nil, ErrNoMain
	}
	return prog, main, nil
}

// Functions returns the source functions declared in pkg, sorted by name.
func Functions(pkg *ssa.Package) (res []*ssa.Function) {
	for _, m := range pkg.Members {
		if f, ok := m.(*ssa.Function); ok && f.Blocks != nil && f.Synthetic == "" {
			res = append(res, f)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name() < res[j].Name() })
	return
}
