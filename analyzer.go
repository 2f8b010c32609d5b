package analyzer

import (
	"github.com/wichtounet/inlining-analyzer/internal/graph"
	"github.com/wichtounet/inlining-analyzer/internal/params"
)

// Analyzer runs the library-issue, cluster, circular-dependency, and
// virtual-hierarchy searches over a fully enriched and tempered graph. It
// holds the two pieces of configuration that shape relocation proposals
// without touching graph state: the set of libraries solutions must never
// suggest moving code into, and whether repeated proposals for the same
// function/library pair are collapsed.
type Analyzer struct {
	Graph              *graph.Graph
	Params             *params.Registry
	ProtectedLibraries map[string]bool
	FilterDuplicates   bool
}

// NewAnalyzer returns an Analyzer ready to run against an enriched,
// tempered graph.
func NewAnalyzer(g *graph.Graph, p *params.Registry) *Analyzer {
	return &Analyzer{
		Graph:              g,
		Params:             p,
		ProtectedLibraries: make(map[string]bool),
	}
}

// AddProtectedLibrary marks library as a destination relocation solutions
// must flag instead of silently proposing.
func (a *Analyzer) AddProtectedLibrary(library string) {
	a.ProtectedLibraries[library] = true
}

// FindInterLibraryCalls returns every call site whose caller and callee
// live in different modules.
func FindInterLibraryCalls(g *graph.Graph) []graph.CallSiteID {
	var out []graph.CallSiteID
	for _, id := range g.CallSites() {
		cs := g.CallSite(id)
		if g.Function(cs.Caller).Module != g.Function(cs.Callee).Module {
			out = append(out, id)
		}
	}
	return out
}

// FindVirtualCalls returns every call site whose callee is reached through
// a virtual table.
func FindVirtualCalls(g *graph.Graph) []graph.CallSiteID {
	var out []graph.CallSiteID
	for _, id := range g.CallSites() {
		if g.Function(g.CallSite(id).Callee).Virtual {
			out = append(out, id)
		}
	}
	return out
}

// FindFunctionsCalledOnce returns every function whose call count is
// exactly 1, a cheap proxy for a near-certain inlining candidate.
func FindFunctionsCalledOnce(g *graph.Graph) []graph.FunctionID {
	var out []graph.FunctionID
	for _, id := range g.Functions() {
		if g.Function(id).Calls == 1 {
			out = append(out, id)
		}
	}
	return out
}

// FindLeafFunctions returns every function with no outgoing call sites.
func FindLeafFunctions(g *graph.Graph) []graph.FunctionID {
	var out []graph.FunctionID
	for _, id := range g.Functions() {
		if g.OutDegree(id) == 0 {
			out = append(out, id)
		}
	}
	return out
}

// FindInterLibraryCalls delegates to the package-level query against a's
// graph.
func (a *Analyzer) FindInterLibraryCalls() []graph.CallSiteID { return FindInterLibraryCalls(a.Graph) }

// FindVirtualCalls delegates to the package-level query against a's graph.
func (a *Analyzer) FindVirtualCalls() []graph.CallSiteID { return FindVirtualCalls(a.Graph) }

// FindFunctionsCalledOnce delegates to the package-level query against a's
// graph.
func (a *Analyzer) FindFunctionsCalledOnce() []graph.FunctionID {
	return FindFunctionsCalledOnce(a.Graph)
}

// FindLeafFunctions delegates to the package-level query against a's
// graph.
func (a *Analyzer) FindLeafFunctions() []graph.FunctionID { return FindLeafFunctions(a.Graph) }
