package routing

import "routingcore/pkg/domain"

// Node marks for depth-first traversal.
const (
	white uint8 = iota // unvisited
	grey               // on the current path
	black              // fully explored
)

type frame struct {
	node int
	next int
}

// walker is an explicit-stack depth-first traversal over successor edges.
// Colour state is shared across runs so a node is explored at most once.
type walker struct {
	g     *Graph
	color []uint8
	stack []frame
	stop  bool

	// follow reports whether an edge may be traversed. Resolved edges are
	// always candidates when follow is nil.
	follow func(from int, e edge) bool
	// onEnter fires when a node turns grey, in pre-order.
	onEnter func(id int)
	// onEdge fires for every followed edge that does not close a cycle.
	onEdge func(from, to int)
	// onBack fires for an edge into a grey node. path runs from the
	// re-entered node along the current branch and back to it.
	onBack func(from, to int, path []string)
}

func newWalker(g *Graph) *walker {
	return &walker{g: g, color: make([]uint8, len(g.ops))}
}

func (w *walker) enter(id int) {
	w.color[id] = grey
	w.stack = append(w.stack, frame{node: id})
	if w.onEnter != nil {
		w.onEnter(id)
	}
}

func (w *walker) run(start int) {
	if w.color[start] != white {
		return
	}
	w.enter(start)
	for len(w.stack) > 0 && !w.stop {
		top := &w.stack[len(w.stack)-1]
		succ := w.g.succ[top.node]
		if top.next == len(succ) {
			w.color[top.node] = black
			w.stack = w.stack[:len(w.stack)-1]
			continue
		}
		from, e := top.node, succ[top.next]
		top.next++
		if w.follow != nil && !w.follow(from, e) {
			continue
		}
		if e.to == unresolved {
			continue
		}
		switch w.color[e.to] {
		case grey:
			if w.onBack != nil {
				w.onBack(from, e.to, w.cyclePath(e.to))
			}
		case white:
			if w.onEdge != nil {
				w.onEdge(from, e.to)
			}
			w.enter(e.to)
		case black:
			if w.onEdge != nil {
				w.onEdge(from, e.to)
			}
		}
	}
	w.stack = w.stack[:0]
}

func (w *walker) cyclePath(to int) []string {
	i := len(w.stack) - 1
	for i > 0 && w.stack[i].node != to {
		i--
	}
	path := make([]string, 0, len(w.stack)-i+1)
	for _, f := range w.stack[i:] {
		path = append(path, w.g.ops[f.node].OperationCode)
	}
	return append(path, w.g.ops[to].OperationCode)
}

func cycleWarning(path []string) domain.StructuralWarning {
	return domain.StructuralWarning{
		Kind: domain.WarningCycleDetected,
		From: path[len(path)-2],
		To:   path[len(path)-1],
		Path: path,
	}
}

// DetectCycle walks successor edges from start and returns the first cycle
// found, as codes in cycle order beginning and ending with the re-entered
// node. Unknown start codes report no cycle.
func (g *Graph) DetectCycle(start string) ([]string, bool) {
	id, ok := g.index[start]
	if !ok {
		return nil, false
	}
	var found []string
	w := newWalker(g)
	w.onBack = func(_, _ int, path []string) {
		found = path
		w.stop = true
	}
	w.run(id)
	return found, found != nil
}

// DetectCycles walks the whole graph once, starting from each unexplored node
// in node order, and reports every edge that closes a cycle.
func (g *Graph) DetectCycles() []domain.StructuralWarning {
	var out []domain.StructuralWarning
	w := newWalker(g)
	w.onBack = func(_, _ int, path []string) {
		out = append(out, cycleWarning(path))
	}
	for id := range g.ops {
		w.run(id)
	}
	return out
}
