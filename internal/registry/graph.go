package registry

import (
	"container/heap"
	"sort"

	"github.com/dungeondelvers/delvectl/internal/domain"
	"github.com/dungeondelvers/delvectl/internal/domain/models"
)

// dependencyGraph holds the dependsOn edges of a manifest
type dependencyGraph struct {
	nodes      map[string]*models.ContractSpec
	dependents map[string][]string // dependency -> contracts that depend on it
}

func newDependencyGraph(contracts []*models.ContractSpec) *dependencyGraph {
	g := &dependencyGraph{
		nodes:      make(map[string]*models.ContractSpec, len(contracts)),
		dependents: make(map[string][]string),
	}
	for _, c := range contracts {
		g.nodes[c.Name] = c
	}
	for _, c := range contracts {
		for _, dep := range c.DependsOn {
			if _, ok := g.nodes[dep]; ok {
				g.dependents[dep] = append(g.dependents[dep], c.Name)
			}
		}
	}
	return g
}

// topologicalSort orders contracts with Kahn's algorithm. Among contracts
// that are ready at the same time the one declared first wins.
func (g *dependencyGraph) topologicalSort() ([]*models.ContractSpec, error) {
	inDegree := make(map[string]int, len(g.nodes))
	for name, c := range g.nodes {
		inDegree[name] = 0
		for _, dep := range c.DependsOn {
			if _, ok := g.nodes[dep]; ok {
				inDegree[name]++
			}
		}
	}

	ready := &readyQueue{}
	for name, degree := range inDegree {
		if degree == 0 {
			heap.Push(ready, g.nodes[name])
		}
	}

	order := make([]*models.ContractSpec, 0, len(g.nodes))
	for ready.Len() > 0 {
		current := heap.Pop(ready).(*models.ContractSpec)
		order = append(order, current)

		for _, dependent := range g.dependents[current.Name] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				heap.Push(ready, g.nodes[dependent])
			}
		}
	}

	if len(order) != len(g.nodes) {
		return nil, &domain.CyclicDependencyError{Contracts: g.cycleMembers(inDegree)}
	}
	return order, nil
}

// cycleMembers narrows the nodes Kahn's algorithm could not place down to the
// ones that sit on a cycle, dropping contracts that merely depend on one.
func (g *dependencyGraph) cycleMembers(inDegree map[string]int) []string {
	remaining := make(map[string]bool)
	for name, degree := range inDegree {
		if degree > 0 {
			remaining[name] = true
		}
	}

	for changed := true; changed; {
		changed = false
		for name := range remaining {
			blocksOther := false
			for _, dependent := range g.dependents[name] {
				if remaining[dependent] {
					blocksOther = true
					break
				}
			}
			if !blocksOther {
				delete(remaining, name)
				changed = true
			}
		}
	}

	members := make([]*models.ContractSpec, 0, len(remaining))
	for name := range remaining {
		members = append(members, g.nodes[name])
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Index < members[j].Index })

	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Name
	}
	return names
}

// transitiveDependents returns every contract that directly or indirectly
// depends on name, in declaration order.
func (g *dependencyGraph) transitiveDependents(name string) []*models.ContractSpec {
	seen := make(map[string]bool)
	stack := append([]string(nil), g.dependents[name]...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			continue
		}
		seen[n] = true
		stack = append(stack, g.dependents[n]...)
	}

	out := make([]*models.ContractSpec, 0, len(seen))
	for n := range seen {
		out = append(out, g.nodes[n])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// readyQueue is a min-heap of contracts keyed by declaration index
type readyQueue []*models.ContractSpec

func (q readyQueue) Len() int           { return len(q) }
func (q readyQueue) Less(i, j int) bool { return q[i].Index < q[j].Index }
func (q readyQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *readyQueue) Push(x any) {
	*q = append(*q, x.(*models.ContractSpec))
}

func (q *readyQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
