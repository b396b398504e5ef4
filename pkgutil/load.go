package pkgutil

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"regexp"

	"golang.org/x/tools/go/packages"
)

// LoadConfig selects between module-aware loading, when ModulePath is set,
// and GOPATH loading.
type LoadConfig struct {
	GoPath, ModulePath string
	IncludeTests       bool
}

const loadMode packages.LoadMode = packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles |
	packages.NeedImports | packages.NeedTypes | packages.NeedTypesSizes | packages.NeedSyntax |
	packages.NeedTypesInfo | packages.NeedDeps

var (
	moduleRegex = regexp.MustCompile(`(?m)^module\s+(.*)$`)

	ErrLoad     = errors.New("errors encountered while loading packages")
	ErrNoModule = errors.New("no module declaration in go.mod")
)

// parseRelative parses files under names relative to the working directory,
// so that positions printed in reports do not depend on the machine.
func parseRelative(fset *token.FileSet, filename string, src []byte) (*ast.File, error) {
	if cwd, err := os.Getwd(); err == nil {
		if rel, err := filepath.Rel(cwd, filename); err == nil {
			filename = rel
		}
	}
	return parser.ParseFile(fset, filename, src, parser.AllErrors|parser.ParseComments)
}

// LoadPackages loads the packages matching query.
func LoadPackages(cfg LoadConfig, query string) ([]*packages.Package, error) {
	config := &packages.Config{
		Mode:      loadMode,
		Tests:     cfg.IncludeTests,
		ParseFile: parseRelative,
		Env:       os.Environ(),
	}

	if cfg.GoPath != "" {
		gopath, err := filepath.Abs(cfg.GoPath)
		if err != nil {
			return nil, err
		}
		config.Env = append(config.Env, "GOPATH="+gopath)
	}

	if cfg.ModulePath == "" {
		config.Env = append(config.Env, "GO111MODULE=off")
		return load(config, query)
	}

	dir, err := filepath.Abs(cfg.ModulePath)
	if err != nil {
		return nil, err
	}
	contents, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		return nil, fmt.Errorf("reading go.mod at %s: %w", cfg.ModulePath, err)
	}
	if m := moduleRegex.FindSubmatch(contents); len(m) <= 1 {
		return nil, fmt.Errorf("%w: %s", ErrNoModule, cfg.ModulePath)
	}

	config.Dir = dir
	config.Env = append(config.Env, "GO111MODULE=on")
	return load(config, query)
}

// LoadPackagesFromSource loads a single main package from source, through
// an overlay of a file that does not exist on disk.
func LoadPackagesFromSource(source string) ([]*packages.Package, error) {
	const file = "/fake/testpackage/main.go"
	return load(&packages.Config{
		Mode:    loadMode,
		Env:     append(os.Environ(), "GO111MODULE=off", "GOPATH=/fake"),
		Overlay: map[string][]byte{file: []byte(source)},
	}, file)
}

func load(config *packages.Config, query string) ([]*packages.Package, error) {
	pkgs, err := packages.Load(config, query)
	if err != nil {
		return nil, err
	}
	if packages.PrintErrors(pkgs) > 0 {
		return nil, ErrLoad
	}
	if !config.Tests {
		return pkgs, nil
	}

	// Packages with tests are loaded twice. Keep only the variant with tests.
	ids := make(map[string]bool, len(pkgs))
	for _, pkg := range pkgs {
		ids[pkg.ID] = true
	}
	res := pkgs[:0:0]
	for _, pkg := range pkgs {
		if !ids[fmt.Sprintf("%s [%s.test]", pkg.ID, pkg.ID)] {
			res = append(res, pkg)
		}
	}
	return res, nil
}
