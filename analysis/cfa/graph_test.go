package cfa

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestGraphCall(t *testing.T) {
	g := NewGraph()
	callee, err := g.NewFunction("f")
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Blank(callee.Entry, callee.Exit); err != nil {
		t.Fatal(err)
	}

	mainFn, _ := g.NewFunction("main")
	rs := g.NewLocation("main", "after call")
	if err := g.Call(mainFn.Entry, "f", rs); err != nil {
		t.Fatal(err)
	}
	if err := g.Blank(rs, mainFn.Exit); err != nil {
		t.Fatal(err)
	}

	out := g.Out(mainFn.Entry)
	if len(out) != 1 {
		t.Fatalf("expected one call edge, got %v", out)
	}
	call, ok := out[0].(CallEdge)
	if !ok {
		t.Fatalf("expected a CallEdge, got %T", out[0])
	}
	if call.To != callee.Entry || call.ReturnSite != rs {
		t.Errorf("call edge has wrong endpoints: %+v", call)
	}

	ret := g.Out(callee.Exit)
	if len(ret) != 1 || ret[0].Succ() != rs {
		t.Errorf("expected return edge to %v, got %v", rs, ret)
	}
	if len(g.In(rs)) != 1 {
		t.Errorf("expected a single predecessor of the return site")
	}

	if !IsInterprocedural(call) || IsInterprocedural(BlankEdge{From: rs, To: rs}) {
		t.Error("only call and return edges are interprocedural")
	}
}

func TestGraphErrors(t *testing.T) {
	g := NewGraph()
	g.NewFunction("f")
	if _, err := g.NewFunction("f"); !errors.Is(err, ErrDuplicateFunction) {
		t.Errorf("expected ErrDuplicateFunction, got %v", err)
	}

	l := g.NewLocation("f", "")
	if err := g.Call(l, "g", l); !errors.Is(err, ErrUnknownFunction) {
		t.Errorf("expected ErrUnknownFunction, got %v", err)
	}

	other := NewGraph().NewLocation("f", "")
	if err := g.Blank(l, other); !errors.Is(err, ErrForeignLocation) {
		t.Errorf("expected ErrForeignLocation, got %v", err)
	}
}

func TestEdgeHasher(t *testing.T) {
	g := NewGraph()
	a, b := g.NewLocation("f", "a"), g.NewLocation("f", "b")

	tests := []struct {
		x, y  Edge
		equal bool
	}{
		{BlankEdge{From: a, To: b}, BlankEdge{From: a, To: b}, true},
		{BlankEdge{From: a, To: b}, StatementEdge{From: a, To: b}, false},
		{AssumeEdge{From: a, To: b, Cond: "x", Truth: true}, AssumeEdge{From: a, To: b, Cond: "x"}, false},
	}

	var h EdgeHasher
	for _, test := range tests {
		if eq := h.Equal(test.x, test.y); eq != test.equal {
			t.Errorf("Equal(%v, %v) = %v", test.x, test.y, eq)
		}
		if test.equal && h.Hash(test.x) != h.Hash(test.y) {
			t.Errorf("equal edges %v have different hashes", test.x)
		}
	}
}

func TestToDot(t *testing.T) {
	g := NewGraph()
	f, _ := g.NewFunction("f")
	g.Statement(f.Entry, f.Exit, "x := 1")
	g.MarkTarget(f.Exit)

	var buf bytes.Buffer
	if err := g.ToDot().WriteDot(&buf); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, expected := range []string{"x := 1", "tomato", "cluster_f"} {
		if !strings.Contains(out, expected) {
			t.Errorf("DOT output does not mention %q:\n%s", expected, out)
		}
	}
}
