package circuit

import (
	"github.com/katalvlaran/lvlath/core"
	"github.com/katalvlaran/lvlath/dfs"

	"github.com/cuwacunu/tsiemene/internal/errctx"
	"github.com/cuwacunu/tsiemene/typeregistry"
)

// Validate checks a decoded circuit against the invariants of §3.4/§4.3:
// unique aliases, a graph that is acyclic with exactly one root, every
// instance reachable from the root, every non-sink-typed alias having a
// hop out, and every terminal alias being a Sink type.
func Validate(c *Circuit, reg *typeregistry.Registry, baseOf func(tsiType string) string) error {
	errs := &errctx.Errs{}
	// structural is set when the graph itself could not be built as
	// declared; hop compatibility errors alone do not stop the graph checks.
	structural := false

	g := core.NewGraph(core.WithDirected(true))
	aliasType := map[string]typeregistry.NodeType{}
	for _, in := range c.Instances {
		if err := g.AddVertex(in.Alias); err != nil {
			errs.Add(errctx.Wrap(errctx.CodeTopology, err, "adding vertex %q", in.Alias))
			structural = true
			continue
		}
		base := baseOf(in.TsiType)
		t, ok := reg.Lookup(base)
		if !ok {
			errs.Add(errctx.New(errctx.CodeCompatibility, "unknown node type %q for alias %q", base, in.Alias))
			continue
		}
		aliasType[in.Alias] = t
	}

	hasIn := map[string]bool{}
	hasOut := map[string]bool{}
	for _, h := range c.Hops {
		if _, ok := c.InstanceByAlias(h.From.Alias); !ok {
			errs.Add(errctx.New(errctx.CodeTopology, "hop references unknown alias %q", h.From.Alias))
			structural = true
			continue
		}
		if _, ok := c.InstanceByAlias(h.To.Alias); !ok {
			errs.Add(errctx.New(errctx.CodeTopology, "hop references unknown alias %q", h.To.Alias))
			structural = true
			continue
		}
		if from, ok := aliasType[h.From.Alias]; ok {
			if to, ok2 := aliasType[h.To.Alias]; ok2 {
				if _, err := typeregistry.CompatibleHop(from, h.From.Directive, to, h.To.Directive); err != nil {
					errs.Add(err)
				}
			}
		}
		if _, err := g.AddEdge(h.From.Alias, h.To.Alias, 0); err != nil {
			errs.Add(errctx.Wrap(errctx.CodeTopology, err, "adding hop %s -> %s", h.From.Alias, h.To.Alias))
			structural = true
		}
		hasOut[h.From.Alias] = true
		hasIn[h.To.Alias] = true
	}

	if structural {
		return errs
	}

	// Uniqueness per node type.
	counts := map[string]int{}
	for _, in := range c.Instances {
		base := baseOf(in.TsiType)
		counts[base]++
	}
	for _, in := range c.Instances {
		base := baseOf(in.TsiType)
		if t, ok := aliasType[in.Alias]; ok && t.UniquePerCircuit && counts[base] > 1 {
			errs.Add(errctx.New(errctx.CodeTopology, "type %q must appear at most once per circuit, found %d", base, counts[base]))
		}
	}

	// Cycle detection.
	hasCycle, cycles, err := dfs.DetectCycles(g)
	if err != nil {
		errs.Add(errctx.Wrap(errctx.CodeTopology, err, "cycle detection"))
	} else if hasCycle {
		errs.Add(errctx.New(errctx.CodeTopology, "circuit %q contains a cycle: %v", c.Name, cycles))
	}

	// Exactly one root (in-degree 0).
	var roots []string
	for _, in := range c.Instances {
		if !hasIn[in.Alias] {
			roots = append(roots, in.Alias)
		}
	}
	if len(roots) != 1 {
		errs.Add(errctx.New(errctx.CodeTopology, "circuit %q must have exactly one root, found %d: %v", c.Name, len(roots), roots))
	}

	// Reachability and topological order (only meaningful if acyclic).
	if !hasCycle {
		order, err := dfs.TopologicalSort(g)
		if err != nil {
			errs.Add(errctx.Wrap(errctx.CodeTopology, err, "topological sort"))
		} else if len(roots) == 1 {
			reachable := reachableFrom(g, roots[0])
			for _, in := range c.Instances {
				if !reachable[in.Alias] {
					errs.Add(errctx.New(errctx.CodeTopology, "alias %q is unreachable from root %q", in.Alias, roots[0]))
				}
			}
			_ = order
		}
	}

	// Terminal (no outgoing hop) aliases must be Sink type.
	for _, in := range c.Instances {
		if hasOut[in.Alias] {
			continue
		}
		t, ok := aliasType[in.Alias]
		if !ok {
			continue
		}
		if t.Domain != typeregistry.DomainSink {
			errs.Add(errctx.New(errctx.CodeTopology, "terminal alias %q must be a Sink type", in.Alias))
		}
	}

	// Every non-terminal, non-root alias must have both an in-hop and an out-hop.
	for _, in := range c.Instances {
		isRoot := !hasIn[in.Alias]
		isTerminal := !hasOut[in.Alias]
		if isRoot || isTerminal {
			continue
		}
		if !hasIn[in.Alias] || !hasOut[in.Alias] {
			errs.Add(errctx.New(errctx.CodeTopology, "interior alias %q requires both an in-hop and an out-hop", in.Alias))
		}
	}

	if errs.Errored() {
		return errs
	}
	return nil
}

// reachableFrom computes the set of vertices reachable from root via a
// plain breadth-first walk over g's adjacency.
func reachableFrom(g *core.Graph, root string) map[string]bool {
	seen := map[string]bool{root: true}
	queue := []string{root}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		ids, err := g.NeighborIDs(cur)
		if err != nil {
			continue
		}
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				queue = append(queue, id)
			}
		}
	}
	return seen
}
