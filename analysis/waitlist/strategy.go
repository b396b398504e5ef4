package waitlist

import (
	"fmt"
	"strings"
)

var keys = map[string]SortKey{
	"callstack":      CallstackDepth,
	"deep-callstack": Reverse(CallstackDepth),
	"loop":           LoopIterations,
}

// ParseStrategy reads a colon separated chain of sort keys ending in a base
// order, e.g. "callstack:loop:bfs". Keys earlier in the chain take priority.
func ParseStrategy(str string) (Factory, error) {
	parts := strings.Split(str, ":")

	var f Factory
	switch base := parts[len(parts)-1]; base {
	case "bfs":
		f = FIFO
	case "dfs":
		f = LIFO
	default:
		return nil, fmt.Errorf("unknown waitlist order %q, expected bfs or dfs", base)
	}

	for i := len(parts) - 2; i >= 0; i-- {
		key, ok := keys[parts[i]]
		if !ok {
			return nil, fmt.Errorf("unknown waitlist sort key %q", parts[i])
		}
		f = Sorted(key, f)
	}
	return f, nil
}
