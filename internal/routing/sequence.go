package routing

import (
	"container/heap"

	"routingcore/pkg/domain"
)

// Sequence is a routing materialized from a start operation together with
// the structural problems met along the way.
type Sequence struct {
	Operations []domain.Operation         `json:"operations"`
	Warnings   []domain.StructuralWarning `json:"warnings"`
}

// Codes returns the operation codes of the sequence in order.
func (s Sequence) Codes() []string {
	out := make([]string, len(s.Operations))
	for i, op := range s.Operations {
		out[i] = op.OperationCode
	}
	return out
}

// SequenceFrom builds a graph over ops and sequences it from start.
func SequenceFrom(ops []domain.Operation, start string) Sequence {
	return NewGraph(ops).SequenceFrom(start)
}

// SequenceFrom returns every operation reachable from start along successor
// edges, each exactly once.
//
// The walk is depth-first in declaration order. Its pre-order fixes the
// tie-break between operations, and each operation is emitted only after
// all of its reached predecessors, so converging branches never place a
// join ahead of a branch that feeds it. For tree-shaped routings the result
// is the plain pre-order.
//
// Edges into an operation already on the current branch are not followed and
// are reported as CycleDetected. Edges to unknown codes, or from an active to
// a deactivated operation, are reported as DanglingEdge and not followed.
// An unknown or deactivated start yields an empty sequence.
func (g *Graph) SequenceFrom(start string) Sequence {
	seq := Sequence{Operations: []domain.Operation{}, Warnings: []domain.StructuralWarning{}}
	id, ok := g.index[start]
	if !ok || !g.ops[id].IsActive {
		return seq
	}

	rank := make([]int, len(g.ops))
	for i := range rank {
		rank[i] = -1
	}
	var preorder []int
	adj := make(map[int][]int)
	indegree := make([]int, len(g.ops))

	w := newWalker(g)
	w.follow = func(from int, e edge) bool {
		if warn, dangling := g.danglingTarget(g.ops[from], e); dangling {
			seq.Warnings = append(seq.Warnings, warn)
			return false
		}
		return true
	}
	w.onEnter = func(n int) {
		rank[n] = len(preorder)
		preorder = append(preorder, n)
	}
	w.onEdge = func(from, to int) {
		adj[from] = append(adj[from], to)
		indegree[to]++
	}
	w.onBack = func(_, _ int, path []string) {
		seq.Warnings = append(seq.Warnings, cycleWarning(path))
	}
	w.run(id)

	ready := &rankHeap{rank[id]}
	for ready.Len() > 0 {
		n := preorder[heap.Pop(ready).(int)]
		seq.Operations = append(seq.Operations, g.ops[n].Clone())
		for _, next := range adj[n] {
			indegree[next]--
			if indegree[next] == 0 {
				heap.Push(ready, rank[next])
			}
		}
	}
	return seq
}

// rankHeap is a min-heap of pre-order ranks.
type rankHeap []int

func (h rankHeap) Len() int           { return len(h) }
func (h rankHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h rankHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *rankHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *rankHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
