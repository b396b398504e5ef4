// Package dot writes graphs in the DOT language and renders them, either
// to image files through the graphviz bindings or interactively with xdot.
package dot

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/goccy/go-graphviz"
)

var ErrNoXdot = errors.New("unable to find program 'xdot', please install it or check your PATH")

// DotToImage renders the DOT source to outfname.format with the graphviz
// bindings and returns the path of the image. An empty outfname renders into
// the temporary directory.
func DotToImage(outfname string, format string, dot []byte) (img string, err error) {
	g := graphviz.New()
	graph, err := graphviz.ParseBytes(dot)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := graph.Close(); cerr != nil && err == nil {
			err = cerr
		}
		g.Close()
	}()

	if outfname == "" {
		img = filepath.Join(os.TempDir(), fmt.Sprintf("reach_export.%s", format))
	} else {
		img = fmt.Sprintf("%s.%s", outfname, format)
	}
	if err := g.RenderFilename(graph, graphviz.Format(format), img); err != nil {
		return "", err
	}
	return img, nil
}

var tmpl = template.Must(template.New("graph").Option("missingkey=zero").Parse(`
{{- define "node"}}{{printf "%q [ %s ]" .ID .Attrs}}{{end -}}
digraph ReachabilityGraph {
	label="{{.Title}}";
	labeljust="l";
	fontname="Arial";
	fontsize="14";
	rankdir="{{or .Options.rankdir "LR"}}";
	bgcolor="lightgray";
	penwidth="0.5";
	nodesep="{{.Options.nodesep}}";

	node [shape="ellipse" style="filled" fillcolor="honeydew" fontname="Verdana" margin="0.05,0.0"];
	edge [minlen="{{.Options.minlen}}"]
{{range .Clusters}}
	subgraph "cluster_{{.ID}}" {
		{{.Attrs.Lines}}
		{{- range .Nodes}}
		{{template "node" .}}
		{{- end}}
	}
{{end}}
{{- range .Nodes}}
	{{template "node" .}}
{{- end}}
{{range .Edges}}
	{{printf "%q -> %q [ %s ]" .From .To .Attrs}}
{{- end}}
}
`))

// DotCluster groups nodes in a box, e.g. the locations of one function.
type DotCluster struct {
	ID    string
	Nodes []*DotNode
	Attrs DotAttrs
}

type DotNode struct {
	ID    string
	Attrs DotAttrs
}

func (n *DotNode) String() string {
	return n.ID
}

type DotEdge struct {
	From, To *DotNode
	Attrs    DotAttrs
}

// Visible is false for edges only used for layout.
func (e *DotEdge) Visible() bool {
	return !strings.Contains(e.Attrs["style"], "invis")
}

type DotAttrs map[string]string

// List renders the attributes sorted by key, keeping the output stable.
func (p DotAttrs) List() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	l := make([]string, len(keys))
	for i, k := range keys {
		l[i] = fmt.Sprintf("%s=%q;", k, p[k])
	}
	return l
}

func (p DotAttrs) String() string { return strings.Join(p.List(), " ") }
func (p DotAttrs) Lines() string  { return strings.Join(p.List(), "\n\t\t") }

type DotGraph struct {
	Title    string
	Clusters []*DotCluster
	Nodes    []*DotNode
	Edges    []*DotEdge
	Options  map[string]string
}

// Size returns the number of nodes and visible edges.
func (g *DotGraph) Size() (nodes, edges int) {
	nodes = len(g.Nodes)
	for _, c := range g.Clusters {
		nodes += len(c.Nodes)
	}
	for _, e := range g.Edges {
		if e.Visible() {
			edges++
		}
	}
	return
}

func (g *DotGraph) WriteDot(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if err := tmpl.Execute(bw, g); err != nil {
		return err
	}
	return bw.Flush()
}

// Bytes returns the DOT source of g.
func (g *DotGraph) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	err := g.WriteDot(&buf)
	return buf.Bytes(), err
}

// ShowDot opens g in xdot and waits for the viewer to close.
func (g *DotGraph) ShowDot() error {
	xdot, err := exec.LookPath("xdot")
	if err != nil {
		return ErrNoXdot
	}

	f, err := os.CreateTemp("", "reach.*.dot")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if err := g.WriteDot(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	nodes, edges := g.Size()
	log.Println("Stored dotgraph at", f.Name())
	log.Printf("Graph has %d nodes and %d edges.\n", nodes, edges)
	log.Println("Starting xdot...")

	if err := exec.Command(xdot, f.Name()).Run(); err != nil {
		log.Printf("Command finished with error: %v", err)
	}
	return nil
}
