// Package graph provides the in-memory call graph model: functions
// (vertices) and call sites (edges), addressed by small integer handles,
// with CSR-like adjacency built once by Freeze.
package graph

import "sort"

// FunctionID is a stable handle to a Function for the lifetime of a Graph.
type FunctionID int32

// CallSiteID is a stable handle to a CallSite for the lifetime of a Graph.
type CallSiteID int32

// Function is a vertex of the call graph.
type Function struct {
	Name          string // canonical name, mangled or demangled per configuration
	Label         string // display label
	FileName      string // source file hint
	Module        string // shared object / library path
	SelfCost      float64
	InclusiveCost float64
	Calls         uint64
	Parameters    uint32
	Size          uint64
	Virtual       bool
	Frequency     float64
	Temperature   float64
}

// CallSite is an edge of the call graph.
type CallSite struct {
	Caller      FunctionID
	Callee      FunctionID
	Label       string // raw profiler edge label, consumed by Enrich
	Calls       uint64
	Cost        float64
	Frequency   float64
	Temperature float64
}

// Graph is a directed multigraph over Functions and CallSites. Vertices and
// edges are added during construction; Freeze builds the adjacency lists and
// must be called before any neighborhood query. Enrichment fills in the
// attributes after Freeze; once it has run, only Temperature fields are
// still written (by the heuristics pass).
type Graph struct {
	functions []Function
	callSites []CallSite

	totalCalls      uint64
	applicationSize uint64

	out    [][]CallSiteID // out[f] = call sites where Caller == f
	in     [][]CallSiteID // in[f]  = call sites where Callee == f
	frozen bool
}

// New returns an empty Graph ready for AddFunction/AddCallSite calls.
func New() *Graph {
	return &Graph{}
}

// AddFunction appends a vertex and returns its handle.
func (g *Graph) AddFunction(f Function) FunctionID {
	g.functions = append(g.functions, f)
	return FunctionID(len(g.functions) - 1)
}

// AddCallSite appends an edge and returns its handle. caller and callee must
// already exist.
func (g *Graph) AddCallSite(cs CallSite) CallSiteID {
	g.callSites = append(g.callSites, cs)
	return CallSiteID(len(g.callSites) - 1)
}

// Freeze builds the out/in adjacency lists. Safe to call multiple times;
// subsequent calls rebuild from the current vertex/edge set, which is used
// by analyses (e.g. clustering) that construct a filtered copy of the graph.
func (g *Graph) Freeze() {
	n := len(g.functions)
	g.out = make([][]CallSiteID, n)
	g.in = make([][]CallSiteID, n)
	for i, cs := range g.callSites {
		id := CallSiteID(i)
		g.out[cs.Caller] = append(g.out[cs.Caller], id)
		g.in[cs.Callee] = append(g.in[cs.Callee], id)
	}
	g.frozen = true
}

// NumFunctions returns the number of vertices.
func (g *Graph) NumFunctions() int { return len(g.functions) }

// NumCallSites returns the number of edges.
func (g *Graph) NumCallSites() int { return len(g.callSites) }

// Function returns a pointer to the vertex record for in-place attribute
// updates during enrichment and heuristics.
func (g *Graph) Function(id FunctionID) *Function { return &g.functions[id] }

// CallSite returns a pointer to the edge record for in-place attribute
// updates during enrichment and heuristics.
func (g *Graph) CallSite(id CallSiteID) *CallSite { return &g.callSites[id] }

// Functions returns every function handle, in insertion order.
func (g *Graph) Functions() []FunctionID {
	ids := make([]FunctionID, len(g.functions))
	for i := range ids {
		ids[i] = FunctionID(i)
	}
	return ids
}

// CallSites returns every call site handle, in insertion order.
func (g *Graph) CallSites() []CallSiteID {
	ids := make([]CallSiteID, len(g.callSites))
	for i := range ids {
		ids[i] = CallSiteID(i)
	}
	return ids
}

// OutEdges returns the call sites where f is the caller.
func (g *Graph) OutEdges(f FunctionID) []CallSiteID { return g.out[f] }

// InEdges returns the call sites where f is the callee.
func (g *Graph) InEdges(f FunctionID) []CallSiteID { return g.in[f] }

// OutDegree returns len(OutEdges(f)).
func (g *Graph) OutDegree(f FunctionID) int { return len(g.out[f]) }

// InDegree returns len(InEdges(f)).
func (g *Graph) InDegree(f FunctionID) int { return len(g.in[f]) }

// TotalCalls returns the sum of per-function call counts, set by enrichment.
func (g *Graph) TotalCalls() uint64 { return g.totalCalls }

// SetTotalCalls is called once by enrichment after accumulating per-function
// call counts.
func (g *Graph) SetTotalCalls(v uint64) { g.totalCalls = v }

// ApplicationSize returns the sum of per-function sizes, set by enrichment.
func (g *Graph) ApplicationSize() uint64 { return g.applicationSize }

// SetApplicationSize is called once by enrichment.
func (g *Graph) SetApplicationSize(v uint64) { g.applicationSize = v }

// Copy returns a deep copy of the graph's vertices and edges (not frozen;
// the caller must Freeze it). Clustering does not use it: it builds its
// filtered view with FilterCallSites.
func (g *Graph) Copy() *Graph {
	ng := &Graph{
		functions:       append([]Function(nil), g.functions...),
		callSites:       append([]CallSite(nil), g.callSites...),
		totalCalls:      g.totalCalls,
		applicationSize: g.applicationSize,
	}
	return ng
}

// FilterCallSites returns a new, frozen graph sharing the same vertices but
// keeping only call sites for which keep returns true. The second return
// value maps each surviving call site's ID in the new graph back to its ID
// in g, since filtering re-indexes the dense CallSiteID space: original[i]
// is the ID that local ID i referred to before filtering.
func (g *Graph) FilterCallSites(keep func(CallSiteID, *CallSite) bool) (*Graph, []CallSiteID) {
	ng := &Graph{
		functions:       append([]Function(nil), g.functions...),
		totalCalls:      g.totalCalls,
		applicationSize: g.applicationSize,
	}
	var original []CallSiteID
	for i := range g.callSites {
		id := CallSiteID(i)
		cs := g.callSites[i]
		if keep(id, &cs) {
			ng.callSites = append(ng.callSites, cs)
			original = append(original, id)
		}
	}
	ng.Freeze()
	return ng, original
}

// SortCallSitesByTemperatureDesc sorts ids (a caller-owned slice) by
// descending temperature, using the graph's current edge attributes.
func (g *Graph) SortCallSitesByTemperatureDesc(ids []CallSiteID) {
	sort.Slice(ids, func(i, j int) bool {
		return g.callSites[ids[i]].Temperature > g.callSites[ids[j]].Temperature
	})
}
