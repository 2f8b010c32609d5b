package analyzer

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wichtounet/inlining-analyzer/internal/graph"
	"github.com/wichtounet/inlining-analyzer/internal/params"
)

func buildTwoLibraryGraph() *graph.Graph {
	g := graph.New()
	a := g.AddFunction(graph.Function{Name: "a", Module: "libA.so"})
	b := g.AddFunction(graph.Function{Name: "b", Module: "libB.so"})
	c := g.AddFunction(graph.Function{Name: "c", Module: "libA.so"})
	g.AddCallSite(graph.CallSite{Caller: a, Callee: b, Calls: 20000})
	g.AddCallSite(graph.CallSite{Caller: c, Callee: c, Calls: 1})
	g.Freeze()
	return g
}

func TestFindInterLibraryCalls(t *testing.T) {
	g := buildTwoLibraryGraph()
	sites := FindInterLibraryCalls(g)
	require.Len(t, sites, 1)
}

func TestFindFunctionsCalledOnce(t *testing.T) {
	g := buildTwoLibraryGraph()
	once := FindFunctionsCalledOnce(g)
	require.Empty(t, once) // calls are Function-level attributes, set by Enrich, not seeded here
}

func TestFindLeafFunctions(t *testing.T) {
	g := buildTwoLibraryGraph()
	leaves := FindLeafFunctions(g)
	// b has no outgoing call sites; c's self-call gives it out-degree 1.
	require.Contains(t, leaves, graph.FunctionID(1))
}

func TestInterestOfMovingSameModule(t *testing.T) {
	g := buildTwoLibraryGraph()
	require.Equal(t, int64(0), interestOfMoving(g, 0, "libA.so"))
}

func TestInterestOfMovingCrossModule(t *testing.T) {
	g := buildTwoLibraryGraph()
	// Moving a (libA) into libB: its one out-call to b (libB) becomes
	// intra-library -> +20000 benefit.
	require.Equal(t, int64(20000), interestOfMoving(g, 0, "libB.so"))
}

func TestFindLibraryIssuesHeavyCallSite(t *testing.T) {
	g := buildTwoLibraryGraph()
	p := params.NewRegistry()
	a := NewAnalyzer(g, p)

	issues := a.FindLibraryIssues()
	require.Len(t, issues, 1)
	require.Equal(t, graph.FunctionID(0), issues[0].Src)
	require.Equal(t, graph.FunctionID(1), issues[0].Dest)
	require.Equal(t, int64(20000), issues[0].Benefit)
	require.Len(t, issues[0].Solutions, 1)
}

func TestComputeSolutionsNeitherShouldMove(t *testing.T) {
	g := graph.New()
	a := g.AddFunction(graph.Function{Name: "a", Module: "libA.so"})
	b := g.AddFunction(graph.Function{Name: "b", Module: "libB.so"})
	g.AddCallSite(graph.CallSite{Caller: a, Callee: b, Calls: 1})
	g.Freeze()

	p := params.NewRegistry()
	an := NewAnalyzer(g, p)
	solutions, benefit := an.computeSolutions(a, b, nil)
	require.Equal(t, int64(0), benefit)
	require.Equal(t, []string{"Benefit is not enough, neither of them should be moved"}, solutions)
}

func TestFindLibraryIssuesPathBased(t *testing.T) {
	g := graph.New()
	a := g.AddFunction(graph.Function{Name: "a", Module: "libX.so"})
	b := g.AddFunction(graph.Function{Name: "b", Module: "libY.so"})
	c := g.AddFunction(graph.Function{Name: "c", Module: "libY.so"})
	d := g.AddFunction(graph.Function{Name: "d", Module: "libX.so"})
	g.AddCallSite(graph.CallSite{Caller: a, Callee: b, Calls: 600})
	g.AddCallSite(graph.CallSite{Caller: b, Callee: c, Calls: 400})
	g.AddCallSite(graph.CallSite{Caller: c, Callee: d, Calls: 300})
	g.Freeze()

	p := params.NewRegistry() // HeavyCallSite=10000, LibraryPathThreshold=500, LibraryPathMaxLength=3, LibraryMinPathCalls=10
	an := NewAnalyzer(g, p)

	issues := an.FindLibraryIssues()
	require.Len(t, issues, 1)
	require.Len(t, issues[0].Paths, 1)
	require.Equal(t, []graph.CallSiteID{0, 1, 2}, issues[0].Paths[0])
}

func TestComputeSolutionsProtectedLibrary(t *testing.T) {
	// c (libB) also calls b, so moving b into libA loses 5 calls and moving
	// a into the protected libB is the proposal.
	g := graph.New()
	a := g.AddFunction(graph.Function{Name: "a", Module: "libA.so"})
	b := g.AddFunction(graph.Function{Name: "b", Module: "libB.so"})
	c := g.AddFunction(graph.Function{Name: "c", Module: "libB.so"})
	g.AddCallSite(graph.CallSite{Caller: a, Callee: b, Calls: 20000})
	g.AddCallSite(graph.CallSite{Caller: c, Callee: b, Calls: 5})
	g.Freeze()

	p := params.NewRegistry()
	an := NewAnalyzer(g, p)
	an.AddProtectedLibrary("libB.so")

	solutions, benefit := an.computeSolutions(a, b, nil)
	require.Equal(t, int64(20000), benefit)
	require.Contains(t, solutions[0], "Protected library:")
}
