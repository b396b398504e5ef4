package bam

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cs-au-dk/reach/analysis/cfa"
	"github.com/cs-au-dk/reach/utils/graph"
	uf "github.com/spakin/disjoint"
)

// Block is a region of the automaton with a single entry location that is
// summarized as a unit.
type Block struct {
	ID       int
	Function string
	Entry    cfa.Location
	Exits    []cfa.Location
	// Identifiers visible inside the block. Reducers may project states onto
	// them.
	Scope []string

	locs  []cfa.Location
	nodes map[int]bool
	exits map[int]bool
}

// NewBlock creates a block over the given locations. The entry and the exits
// are always part of the block.
func NewBlock(id int, fun string, entry cfa.Location, exits []cfa.Location, nodes ...cfa.Location) *Block {
	b := &Block{
		ID:       id,
		Function: fun,
		Entry:    entry,
		Exits:    exits,
		nodes:    make(map[int]bool),
		exits:    make(map[int]bool, len(exits)),
	}
	b.add(entry)
	for _, l := range exits {
		b.add(l)
		b.exits[l.ID()] = true
	}
	for _, l := range nodes {
		b.add(l)
	}
	return b
}

func (b *Block) add(l cfa.Location) {
	if !b.nodes[l.ID()] {
		b.nodes[l.ID()] = true
		b.locs = append(b.locs, l)
	}
}

// Locations returns the locations of the block, entry first.
func (b *Block) Locations() []cfa.Location {
	return b.locs
}

func (b *Block) Contains(l cfa.Location) bool {
	return b.nodes[l.ID()]
}

func (b *Block) IsExit(l cfa.Location) bool {
	return b.exits[l.ID()]
}

// Size is the number of locations of the block.
func (b *Block) Size() int {
	return len(b.nodes)
}

func (b *Block) String() string {
	exits := make([]string, len(b.Exits))
	for i, l := range b.Exits {
		exits[i] = l.String()
	}
	return fmt.Sprintf("block %d (%s): %v -> [%s]", b.ID, b.Function, b.Entry, strings.Join(exits, ", "))
}

// Partitioning is a set of blocks indexed by their entry locations.
type Partitioning struct {
	blocks    []*Block
	byEntry   map[int]*Block
	recursive map[*Block]bool
}

// NewPartitioning indexes blocks. Calls between blocks are read from g to
// find the recursive ones.
func NewPartitioning(g cfa.CFA, blocks ...*Block) (*Partitioning, error) {
	p := &Partitioning{
		blocks:    blocks,
		byEntry:   make(map[int]*Block, len(blocks)),
		recursive: make(map[*Block]bool),
	}
	for _, b := range blocks {
		if other, found := p.byEntry[b.Entry.ID()]; found {
			return nil, fmt.Errorf("blocks %d and %d share entry %v", other.ID, b.ID, b.Entry)
		}
		p.byEntry[b.Entry.ID()] = b
	}

	calls := p.CallGraph(g)
	scc := calls.SCC(blocks)
	for i := range scc.Components {
		if scc.IsCyclic(i) {
			for _, b := range scc.Components[i] {
				p.recursive[b] = true
			}
		}
	}
	return p, nil
}

// BlockForEntry returns the block entered at l.
func (p *Partitioning) BlockForEntry(l cfa.Location) (*Block, bool) {
	b, ok := p.byEntry[l.ID()]
	return b, ok
}

func (p *Partitioning) Blocks() []*Block {
	return p.blocks
}

// IsRecursive reports whether b may be entered again while it is being
// summarized.
func (p *Partitioning) IsRecursive(b *Block) bool {
	return p.recursive[b]
}

// CallGraph connects blocks containing a call to the blocks entered by it.
func (p *Partitioning) CallGraph(g cfa.CFA) graph.Graph[*Block] {
	return graph.Of(func(b *Block) (res []*Block) {
		seen := map[*Block]bool{}
		for _, l := range b.locs {
			for _, e := range g.Out(l) {
				if call, ok := e.(cfa.CallEdge); ok {
					if callee, ok := p.BlockForEntry(call.Succ()); ok && !seen[callee] {
						seen[callee] = true
						res = append(res, callee)
					}
				}
			}
		}
		sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
		return
	})
}

// PartitionByFunction creates one block per function of g. The block of a
// function holds the locations connected to its entry by intraprocedural
// edges, where a call site is connected to its return site.
func PartitionByFunction(g *cfa.Graph) (*Partitioning, error) {
	elements := make(map[int]*uf.Element, len(g.Locations()))
	for _, l := range g.Locations() {
		el := uf.NewElement()
		el.Data = l
		elements[l.ID()] = el
	}

	for _, l := range g.Locations() {
		for _, e := range g.Out(l) {
			switch e := e.(type) {
			case cfa.CallEdge:
				uf.Union(elements[e.From.ID()], elements[e.ReturnSite.ID()])
			case cfa.ReturnEdge:
			default:
				uf.Union(elements[e.Pred().ID()], elements[e.Succ().ID()])
			}
		}
	}

	functions := g.Functions()
	for _, f := range functions {
		uf.Union(elements[f.Entry.ID()], elements[f.Exit.ID()])
	}

	members := make(map[*uf.Element][]cfa.Location)
	for _, l := range g.Locations() {
		rep := elements[l.ID()].Find()
		members[rep] = append(members[rep], l)
	}

	blocks := make([]*Block, 0, len(functions))
	for i, f := range functions {
		rep := elements[f.Entry.ID()].Find()
		blocks = append(blocks, NewBlock(i, f.Name, f.Entry, []cfa.Location{f.Exit}, members[rep]...))
	}
	return NewPartitioning(g, blocks...)
}
