package analyzer

import (
	"github.com/wichtounet/inlining-analyzer/internal/graph"
	"github.com/wichtounet/inlining-analyzer/internal/params"
)

// Cluster is a weakly-connected group of hot call sites: a co-location
// candidate, since the functions involved are heavily calling each other.
type Cluster struct {
	CallSites   []graph.CallSiteID
	Temperature float64
}

// FindClusters copies the graph, drops every call site colder than
// HotCallSite, and groups the survivors into weakly-connected components.
// Components of more than one call site are kept, trimmed to ClusterMaxSize
// by temperature when oversized.
func (a *Analyzer) FindClusters() []Cluster {
	hot := a.Params.Get(params.HotCallSite)
	maxSize := int(a.Params.Get(params.ClusterMaxSize))

	survivors, original := a.Graph.FilterCallSites(func(_ graph.CallSiteID, cs *graph.CallSite) bool {
		return cs.Temperature >= hot
	})

	visited := make(map[graph.FunctionID]bool)
	var clusters []Cluster

	for _, f := range survivors.Functions() {
		if visited[f] {
			continue
		}

		component := collectComponent(survivors, f, visited)
		if len(component) <= 1 {
			continue
		}

		if len(component) > maxSize {
			survivors.SortCallSitesByTemperatureDesc(component)
			component = component[:maxSize]
		}

		var total float64
		callSites := make([]graph.CallSiteID, len(component))
		for i, id := range component {
			total += survivors.CallSite(id).Temperature
			callSites[i] = original[id]
		}

		clusters = append(clusters, Cluster{CallSites: callSites, Temperature: total})
	}

	return clusters
}

// collectComponent runs an undirected DFS from start using an explicit
// work stack rather than recursion, so component size is never bounded by
// Go's call stack. It marks every function it reaches as visited and
// returns every call site incident to the component, each exactly once.
func collectComponent(g *graph.Graph, start graph.FunctionID, visited map[graph.FunctionID]bool) []graph.CallSiteID {
	var component []graph.CallSiteID
	seen := make(map[graph.CallSiteID]bool)

	stack := []graph.FunctionID{start}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[f] {
			continue
		}
		visited[f] = true

		for _, id := range g.OutEdges(f) {
			if !seen[id] {
				seen[id] = true
				component = append(component, id)
			}
			if callee := g.CallSite(id).Callee; !visited[callee] {
				stack = append(stack, callee)
			}
		}
		for _, id := range g.InEdges(f) {
			if !seen[id] {
				seen[id] = true
				component = append(component, id)
			}
			if caller := g.CallSite(id).Caller; !visited[caller] {
				stack = append(stack, caller)
			}
		}
	}

	return component
}
