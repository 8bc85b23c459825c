// Package lineage maps currently held tickers back to the securities they were
// bought as, through a hand-curated graph of corporate actions.
package lineage

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bobmcallan/classfund/internal/models"
	"github.com/bobmcallan/classfund/internal/ticker"
)

// ErrCycle is returned when the edges form a cycle.
var ErrCycle = errors.New("lineage graph contains a cycle")

// Graph is an immutable DAG of corporate actions rooted at explicit purchases.
// Edges with mechanism "unresolved" are kept for display but never connect
// a ticker to a root.
type Graph struct {
	roots    map[string]bool
	nodes    map[string]bool
	sources  map[string]bool // tickers with at least one outgoing edge
	edges    []models.LineageEdge
	incoming map[string][]models.LineageEdge // confirmed edges only, sorted by FromTicker
}

// NewGraph validates and indexes the lineage data. Tickers are normalized here.
func NewGraph(roots []string, edges []models.LineageEdge) (*Graph, error) {
	g := &Graph{
		roots:    make(map[string]bool, len(roots)),
		nodes:    make(map[string]bool),
		sources:  make(map[string]bool),
		edges:    make([]models.LineageEdge, 0, len(edges)),
		incoming: make(map[string][]models.LineageEdge),
	}
	for _, r := range roots {
		if t := ticker.Normalize(r); t != "" {
			g.roots[t] = true
			g.nodes[t] = true
		}
	}

	outgoing := make(map[string][]string)
	for i, e := range edges {
		e.FromTicker = ticker.Normalize(e.FromTicker)
		e.ToTicker = ticker.Normalize(e.ToTicker)
		if e.Mechanism == "" {
			e.Mechanism = models.MechanismUnresolved
		}
		switch {
		case e.FromTicker == "" || e.ToTicker == "":
			return nil, fmt.Errorf("edge %d: empty ticker", i)
		case e.FromTicker == e.ToTicker:
			return nil, fmt.Errorf("edge %d: self-loop on %s", i, e.FromTicker)
		case !e.Mechanism.Known():
			return nil, fmt.Errorf("edge %d (%s→%s): unknown mechanism %q", i, e.FromTicker, e.ToTicker, e.Mechanism)
		}

		g.nodes[e.FromTicker] = true
		g.nodes[e.ToTicker] = true
		g.sources[e.FromTicker] = true
		g.edges = append(g.edges, e)
		outgoing[e.FromTicker] = append(outgoing[e.FromTicker], e.ToTicker)
		if e.Mechanism != models.MechanismUnresolved {
			g.incoming[e.ToTicker] = append(g.incoming[e.ToTicker], e)
		}
	}

	if cycle := findCycle(outgoing); cycle != nil {
		return nil, fmt.Errorf("%w: %s", ErrCycle, strings.Join(cycle, " -> "))
	}

	sort.SliceStable(g.edges, func(i, j int) bool {
		if g.edges[i].ToTicker != g.edges[j].ToTicker {
			return g.edges[i].ToTicker < g.edges[j].ToTicker
		}
		return g.edges[i].FromTicker < g.edges[j].FromTicker
	})
	for t := range g.incoming {
		in := g.incoming[t]
		sort.SliceStable(in, func(i, j int) bool { return in[i].FromTicker < in[j].FromTicker })
	}
	return g, nil
}

// findCycle returns the tickers of one cycle (first node repeated at the end), or nil.
func findCycle(outgoing map[string][]string) []string {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int)
	var stack []string

	starts := make([]string, 0, len(outgoing))
	for n := range outgoing {
		starts = append(starts, n)
	}
	sort.Strings(starts)

	var visit func(n string) []string
	visit = func(n string) []string {
		state[n] = visiting
		stack = append(stack, n)
		next := append([]string(nil), outgoing[n]...)
		sort.Strings(next)
		for _, m := range next {
			switch state[m] {
			case visiting:
				for i, s := range stack {
					if s == m {
						return append(append([]string(nil), stack[i:]...), m)
					}
				}
			case unvisited:
				if c := visit(m); c != nil {
					return c
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[n] = done
		return nil
	}

	for _, n := range starts {
		if state[n] == unvisited {
			if c := visit(n); c != nil {
				return c
			}
		}
	}
	return nil
}

// Roots returns the explicit purchase tickers, sorted.
func (g *Graph) Roots() []string {
	return sortedKeys(g.roots)
}

// IsRoot reports whether t was explicitly purchased.
func (g *Graph) IsRoot(t string) bool {
	return g.roots[ticker.Normalize(t)]
}

// Edges returns all edges sorted by current ticker.
func (g *Graph) Edges() []models.LineageEdge {
	return append([]models.LineageEdge(nil), g.edges...)
}

// Resolve returns the edges from the nearest root to t, in order. The search
// walks confirmed edges backwards breadth first, so the shortest path wins and
// ties go to the alphabetically first predecessor. Roots and tickers with no
// confirmed path yield an empty slice.
func (g *Graph) Resolve(t string) []models.LineageEdge {
	t = ticker.Normalize(t)
	path := []models.LineageEdge{}
	if t == "" || g.roots[t] {
		return path
	}

	via := map[string]models.LineageEdge{} // node -> edge leading toward t
	seen := map[string]bool{t: true}
	queue := []string{t}
	root := ""
	for len(queue) > 0 && root == "" {
		n := queue[0]
		queue = queue[1:]
		for _, e := range g.incoming[n] {
			if seen[e.FromTicker] {
				continue
			}
			seen[e.FromTicker] = true
			via[e.FromTicker] = e
			if g.roots[e.FromTicker] {
				root = e.FromTicker
				break
			}
			queue = append(queue, e.FromTicker)
		}
	}
	if root == "" {
		return path
	}

	for n := root; n != t; {
		e := via[n]
		path = append(path, e)
		n = e.ToTicker
	}
	return path
}

// IsResolved reports whether t is a root or has a confirmed path from one.
func (g *Graph) IsResolved(t string) bool {
	t = ticker.Normalize(t)
	return g.roots[t] || len(g.Resolve(t)) > 0
}

// Unresolved returns, sorted, the leaves of the graph and the held tickers
// that are neither a root nor reachable from one through confirmed edges.
func (g *Graph) Unresolved(held ...string) []string {
	candidates := make(map[string]bool, len(g.nodes)+len(held))
	for n := range g.nodes {
		if !g.sources[n] {
			candidates[n] = true
		}
	}
	for _, h := range held {
		if t := ticker.Normalize(h); t != "" {
			candidates[t] = true
		}
	}

	out := []string{}
	for _, t := range sortedKeys(candidates) {
		if !g.IsResolved(t) {
			out = append(out, t)
		}
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
