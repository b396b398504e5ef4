package argviz

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cs-au-dk/reach/analysis/arg"
	"github.com/cs-au-dk/reach/analysis/cpa"
	"github.com/cs-au-dk/reach/analysis/cpa/cpatest"
	"github.com/fatih/color"
	"github.com/sebdah/goldie/v2"
)

// sample builds A -> B -> C with C a target, and a second B below A that is
// covered by the first.
func sample(t *testing.T) *arg.Graph {
	t.Helper()
	g, locs := cpatest.Chain("A", "B", "C")
	a := arg.New()
	root := a.AddRoot(cpatest.Loc{L: locs[0]}, cpa.NoPrecision)

	must := func(id arg.NodeID, err error) arg.NodeID {
		if err != nil {
			t.Fatal(err)
		}
		return id
	}
	b := must(a.AddChild(root, cpatest.Loc{L: locs[1]}, cpa.NoPrecision, g.Out(locs[0])[0]))
	c := must(a.AddChild(b, cpatest.Loc{L: locs[2]}, cpa.NoPrecision, g.Out(locs[1])[0]))
	dup := must(a.AddChild(root, cpatest.Loc{L: locs[1]}, cpa.NoPrecision, g.Out(locs[0])[0]))

	if err := a.MarkTarget(c); err != nil {
		t.Fatal(err)
	}
	if err := a.Cover(dup, b); err != nil {
		t.Fatal(err)
	}
	return a
}

func TestWriteText(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = noColor }()

	var out bytes.Buffer
	if err := WriteText(&out, sample(t)); err != nil {
		t.Fatal(err)
	}
	goldie.New(t).Assert(t, t.Name(), out.Bytes())
}

func TestToDot(t *testing.T) {
	var sb strings.Builder
	if err := ToDot(sample(t), "sample").WriteDot(&sb); err != nil {
		t.Fatal(err)
	}
	src := sb.String()

	for _, want := range []string{
		`label="sample"`,
		`"0" -> "1" [ label="skip"; ]`,
		`"1" -> "2" [ label="skip"; ]`,
		`"3" -> "1" [ constraint="false"; style="dashed"; ]`,
		`fillcolor="tomato";`,
		`fillcolor="lightgray";`,
	} {
		if !strings.Contains(src, want) {
			t.Errorf("expected %q in\n%s", want, src)
		}
	}
}
