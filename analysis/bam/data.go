package bam

import (
	"sync"

	"github.com/cs-au-dk/reach/analysis/cpa"
	"github.com/cs-au-dk/reach/utils"
	"github.com/cs-au-dk/reach/utils/hmap"
)

// Origin links an expanded state to the summary it was expanded from.
type Origin struct {
	Key Key
	// Entry is the unreduced state entering the block.
	Entry cpa.State
	// Exit is the reduced exit state of the summary.
	Exit cpa.State
	// Precision is the precision of Exit expanded for the caller.
	Precision cpa.Precision
}

// DataManager remembers where expanded states come from, so consumers can
// descend from the outer reachability graph into summaries.
type DataManager struct {
	mu      sync.Mutex
	origins *hmap.Map[cpa.State, Origin]
}

func NewDataManager() *DataManager {
	return &DataManager{
		origins: hmap.NewMap[Origin, cpa.State](utils.HashableHasher[cpa.State]()),
	}
}

func (d *DataManager) record(expanded cpa.State, o Origin) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.origins.Set(expanded, o)
}

// Origin returns the summary expanded into s.
func (d *DataManager) Origin(s cpa.State) (Origin, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.origins.GetOk(s)
}

// Forget drops the origins of summaries of b.
func (d *DataManager) Forget(b *Block) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var states []cpa.State
	d.origins.ForEach(func(s cpa.State, o Origin) bool {
		if o.Key.Block == b {
			states = append(states, s)
		}
		return true
	})
	for _, s := range states {
		d.origins.Delete(s)
	}
}

func (d *DataManager) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.origins.Len()
}
