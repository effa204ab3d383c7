// Package routing derives the directed precedence graph from registry
// records and provides the traversals and aggregations built on it:
// cycle detection, routing sequences, statistics, and batch estimates.
//
// Every function takes a read-only list of operations and returns fresh
// values; nothing in this package retains a reference into a registry.
package routing

import (
	"slices"

	"routingcore/pkg/domain"
)

// unresolved marks an edge whose target code is not registered.
const unresolved = -1

// edge is a declared reference from one node to another. to is the dense
// node id of the target, or unresolved.
type edge struct {
	to   int
	code string
}

// Graph is an immutable, index-based view of operation precedence edges.
// Nodes are numbered densely in registry order so traversals can mark state
// in plain slices instead of hashing codes.
//
// An edge recorded on either side counts: succ and pred hold the union of
// the declared lists and the mirror of the opposite list. declSucc and
// declPred keep the lists exactly as written for symmetry checks.
type Graph struct {
	ops      []domain.Operation
	index    map[string]int
	succ     [][]edge
	pred     [][]edge
	declSucc [][]edge
	declPred [][]edge
}

// NewGraph builds a graph over ops. Later records with a code already seen
// are ignored, so the first occurrence owns the code.
func NewGraph(ops []domain.Operation) *Graph {
	g := &Graph{
		ops:   make([]domain.Operation, 0, len(ops)),
		index: make(map[string]int, len(ops)),
	}
	for _, op := range ops {
		if _, dup := g.index[op.OperationCode]; dup || op.OperationCode == "" {
			continue
		}
		g.index[op.OperationCode] = len(g.ops)
		g.ops = append(g.ops, op.Clone())
	}
	g.declSucc = make([][]edge, len(g.ops))
	g.declPred = make([][]edge, len(g.ops))
	for id, op := range g.ops {
		g.declSucc[id] = g.resolve(op.SucceedingOperations)
		g.declPred[id] = g.resolve(op.PrecedingOperations)
	}
	g.succ = g.union(g.declSucc, g.declPred)
	g.pred = g.union(g.declPred, g.declSucc)
	return g
}

// union returns own with the reverse of every resolved edge in mirror
// appended where own does not already hold it. Declared edges keep their
// order; mirrored ones follow in node order.
func (g *Graph) union(own, mirror [][]edge) [][]edge {
	out := make([][]edge, len(own))
	for id := range own {
		out[id] = slices.Clone(own[id])
	}
	for from, edges := range mirror {
		for _, e := range edges {
			if e.to == unresolved || hasEdgeTo(out[e.to], from) {
				continue
			}
			out[e.to] = append(out[e.to], edge{to: from, code: g.ops[from].OperationCode})
		}
	}
	return out
}

func (g *Graph) resolve(codes []string) []edge {
	if len(codes) == 0 {
		return nil
	}
	out := make([]edge, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		to, ok := g.index[c]
		if !ok {
			to = unresolved
		}
		out = append(out, edge{to: to, code: c})
	}
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.ops) }

// Has reports whether code is a node of the graph.
func (g *Graph) Has(code string) bool {
	_, ok := g.index[code]
	return ok
}

// Operation returns the record behind code.
func (g *Graph) Operation(code string) (domain.Operation, bool) {
	id, ok := g.index[code]
	if !ok {
		return domain.Operation{}, false
	}
	return g.ops[id].Clone(), true
}

// Successors returns the succeeding codes of code: its declared list in
// order, including codes that do not resolve, then operations that name code
// as a predecessor without being listed. Unknown codes yield nil.
func (g *Graph) Successors(code string) []string {
	id, ok := g.index[code]
	if !ok {
		return nil
	}
	return codesOf(g.succ[id])
}

// Predecessors mirrors Successors for preceding edges.
func (g *Graph) Predecessors(code string) []string {
	id, ok := g.index[code]
	if !ok {
		return nil
	}
	return codesOf(g.pred[id])
}

func codesOf(edges []edge) []string {
	if len(edges) == 0 {
		return nil
	}
	out := make([]string, len(edges))
	for i, e := range edges {
		out[i] = e.code
	}
	return out
}

func hasEdgeTo(edges []edge, to int) bool {
	for _, e := range edges {
		if e.to == to {
			return true
		}
	}
	return false
}

// FindAsymmetricEdges reports every resolved edge recorded on only one side:
// A lists B as a successor but B does not list A as a predecessor, or the
// reverse. Results follow node order, successor-side findings first.
func (g *Graph) FindAsymmetricEdges() []domain.StructuralWarning {
	var out []domain.StructuralWarning
	for id := range g.ops {
		from := g.ops[id].OperationCode
		for _, e := range g.declSucc[id] {
			if e.to == unresolved || hasEdgeTo(g.declPred[e.to], id) {
				continue
			}
			out = append(out, domain.StructuralWarning{
				Kind: domain.WarningAsymmetricEdge, From: from, To: e.code,
				Detail: "missing preceding entry on " + e.code,
			})
		}
		for _, e := range g.declPred[id] {
			if e.to == unresolved || hasEdgeTo(g.declSucc[e.to], id) {
				continue
			}
			out = append(out, domain.StructuralWarning{
				Kind: domain.WarningAsymmetricEdge, From: e.code, To: from,
				Detail: "missing succeeding entry on " + e.code,
			})
		}
	}
	return out
}

// DanglingEdges reports edges that name an unregistered code, and edges from
// an active operation to a deactivated one.
func (g *Graph) DanglingEdges() []domain.StructuralWarning {
	var out []domain.StructuralWarning
	for id, op := range g.ops {
		for _, e := range g.succ[id] {
			if w, ok := g.danglingTarget(op, e); ok {
				out = append(out, w)
			}
		}
		for _, e := range g.declPred[id] {
			if e.to == unresolved {
				out = append(out, domain.StructuralWarning{
					Kind: domain.WarningDanglingEdge, From: e.code, To: op.OperationCode, Detail: "unknown",
				})
			} else if op.IsActive && !g.ops[e.to].IsActive {
				out = append(out, domain.StructuralWarning{
					Kind: domain.WarningDanglingEdge, From: e.code, To: op.OperationCode, Detail: "inactive",
				})
			}
		}
	}
	return out
}

// danglingTarget classifies a successor edge that traversal must not follow.
func (g *Graph) danglingTarget(from domain.Operation, e edge) (domain.StructuralWarning, bool) {
	switch {
	case e.to == unresolved:
		return domain.StructuralWarning{
			Kind: domain.WarningDanglingEdge, From: from.OperationCode, To: e.code, Detail: "unknown",
		}, true
	case from.IsActive && !g.ops[e.to].IsActive:
		return domain.StructuralWarning{
			Kind: domain.WarningDanglingEdge, From: from.OperationCode, To: e.code, Detail: "inactive",
		}, true
	default:
		return domain.StructuralWarning{}, false
	}
}

// Roots returns the codes with no incoming edge from either edge list, in
// node order.
func (g *Graph) Roots() []string {
	incoming := make([]bool, len(g.ops))
	for id := range g.ops {
		for _, e := range g.succ[id] {
			if e.to != unresolved {
				incoming[e.to] = true
			}
		}
	}
	var out []string
	for id, op := range g.ops {
		if !incoming[id] {
			out = append(out, op.OperationCode)
		}
	}
	return out
}

// ParallelGroups partitions the resolved successors of code into execution
// groups: all successors flagged canRunParallel form one group placed where
// the first of them is declared, every other successor is its own group.
func (g *Graph) ParallelGroups(code string) [][]string {
	id, ok := g.index[code]
	if !ok {
		return nil
	}
	var groups [][]string
	parallel := -1
	for _, e := range g.succ[id] {
		if e.to == unresolved {
			continue
		}
		if !g.ops[e.to].CanRunParallel {
			groups = append(groups, []string{e.code})
			continue
		}
		if parallel < 0 {
			parallel = len(groups)
			groups = append(groups, nil)
		}
		groups[parallel] = append(groups[parallel], e.code)
	}
	return groups
}
