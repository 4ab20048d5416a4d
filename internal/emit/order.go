package emit

import (
	"fmt"
	"sort"
	"strings"

	"cxxlower/internal/diag"
	"cxxlower/internal/lir"
)

// OrderingError reports a cycle of by-value containment between records.
// Such a unit cannot be emitted.
type OrderingError struct {
	Cycle []string
}

func (e *OrderingError) Error() string {
	return fmt.Sprintf("%s: records contain each other by value: %s",
		diag.EmtOrderingFailure.ID(), strings.Join(e.Cycle, " -> "))
}

// Code is the diagnostic code of the failure.
func (e *OrderingError) Code() diag.Code { return diag.EmtOrderingFailure }

type structNode struct {
	s    *lir.Struct
	deps []string
}

// checkCycles looks for a by-value cycle across the whole crate. Structs from
// other modules participate, so a cycle split across namespaces is caught.
func checkCycles(root *lir.Module) error {
	nodes := make(map[string]*structNode)
	var keys []string
	root.Walk(func(_ []string, m *lir.Module) {
		for _, it := range m.Items {
			s, ok := it.(*lir.Struct)
			if !ok || s.Key == "" {
				continue
			}
			nodes[s.Key] = &structNode{s: s, deps: structDeps(s)}
			keys = append(keys, s.Key)
		}
	})

	const (
		white = iota
		grey
		black
	)
	state := make(map[string]int, len(nodes))
	var stack []string
	var cycle []string
	var visit func(k string) bool
	visit = func(k string) bool {
		state[k] = grey
		stack = append(stack, k)
		for _, d := range nodes[k].deps {
			if _, known := nodes[d]; !known {
				continue
			}
			switch state[d] {
			case grey:
				start := 0
				for i, s := range stack {
					if s == d {
						start = i
					}
				}
				for _, s := range stack[start:] {
					cycle = append(cycle, nodes[s].s.Name)
				}
				cycle = append(cycle, nodes[d].s.Name)
				return true
			case white:
				if visit(d) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[k] = black
		return false
	}
	for _, k := range keys {
		if state[k] == white && visit(k) {
			return &OrderingError{Cycle: cycle}
		}
	}
	return nil
}

func structDeps(s *lir.Struct) []string {
	var deps []string
	for _, f := range s.Fields {
		deps = f.Type.ValueDeps(deps)
	}
	return deps
}

// orderTypes returns the module's structs so that every by-value dependency
// defined in the same module comes first. Ties keep declaration order.
func orderTypes(structs []*lir.Struct) []*lir.Struct {
	index := make(map[string]int, len(structs))
	for i, s := range structs {
		if s.Key != "" {
			index[s.Key] = i
		}
	}
	indeg := make([]int, len(structs))
	users := make([][]int, len(structs))
	for i, s := range structs {
		seen := make(map[int]bool)
		for _, d := range structDeps(s) {
			j, ok := index[d]
			if !ok || j == i || seen[j] {
				continue
			}
			seen[j] = true
			indeg[i]++
			users[j] = append(users[j], i)
		}
	}
	var ready []int
	for i := range structs {
		if indeg[i] == 0 {
			ready = append(ready, i)
		}
	}
	out := make([]*lir.Struct, 0, len(structs))
	for len(ready) > 0 {
		sort.Ints(ready)
		i := ready[0]
		ready = ready[1:]
		out = append(out, structs[i])
		for _, u := range users[i] {
			indeg[u]--
			if indeg[u] == 0 {
				ready = append(ready, u)
			}
		}
	}
	// a cycle would have been rejected already; keep leftovers in order
	if len(out) < len(structs) {
		placed := make(map[*lir.Struct]bool, len(out))
		for _, s := range out {
			placed[s] = true
		}
		for _, s := range structs {
			if !placed[s] {
				out = append(out, s)
			}
		}
	}
	return out
}
