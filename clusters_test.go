package analyzer

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wichtounet/inlining-analyzer/internal/graph"
	"github.com/wichtounet/inlining-analyzer/internal/params"
)

func TestFindClustersGroupsHotEdges(t *testing.T) {
	g := graph.New()
	a := g.AddFunction(graph.Function{Name: "a"})
	b := g.AddFunction(graph.Function{Name: "b"})
	c := g.AddFunction(graph.Function{Name: "c"})
	d := g.AddFunction(graph.Function{Name: "d"}) // isolated, cold

	g.AddCallSite(graph.CallSite{Caller: a, Callee: b, Temperature: 0.5})
	g.AddCallSite(graph.CallSite{Caller: b, Callee: c, Temperature: 0.3})
	g.AddCallSite(graph.CallSite{Caller: d, Callee: d, Temperature: 0.0001})
	g.Freeze()

	p := params.NewRegistry()
	p.Set(params.HotCallSite, 0.01)
	an := NewAnalyzer(g, p)

	clusters := an.FindClusters()
	require.Len(t, clusters, 1)
	require.Len(t, clusters[0].CallSites, 2)
	require.InDelta(t, 0.8, clusters[0].Temperature, 1e-9)
}

func TestFindClustersThreeHotEdgesFormOneCluster(t *testing.T) {
	g := graph.New()
	a := g.AddFunction(graph.Function{Name: "a"})
	b := g.AddFunction(graph.Function{Name: "b"})
	c := g.AddFunction(graph.Function{Name: "c"})
	d := g.AddFunction(graph.Function{Name: "d"})

	g.AddCallSite(graph.CallSite{Caller: a, Callee: b, Temperature: 0.01})
	g.AddCallSite(graph.CallSite{Caller: b, Callee: c, Temperature: 0.01})
	g.AddCallSite(graph.CallSite{Caller: c, Callee: d, Temperature: 0.01})
	g.Freeze()

	p := params.NewRegistry()
	p.Set(params.HotCallSite, 0.001)
	an := NewAnalyzer(g, p)

	clusters := an.FindClusters()
	require.Len(t, clusters, 1)
	require.Len(t, clusters[0].CallSites, 3)
	require.InDelta(t, 0.03, clusters[0].Temperature, 1e-9)
}

func TestFindClustersReturnsIDsValidInOriginalGraph(t *testing.T) {
	g := graph.New()
	a := g.AddFunction(graph.Function{Name: "a"})
	b := g.AddFunction(graph.Function{Name: "b"})
	c := g.AddFunction(graph.Function{Name: "c"})
	iso := g.AddFunction(graph.Function{Name: "iso"})

	// A cold call site inserted before the hot survivors shifts every
	// later CallSiteID down by one in the filtered copy; FindClusters
	// must still return IDs that resolve correctly against g, not the
	// filtered copy's re-indexed IDs.
	g.AddCallSite(graph.CallSite{Caller: iso, Callee: iso, Temperature: 0.0001})
	hot1 := g.AddCallSite(graph.CallSite{Caller: a, Callee: b, Temperature: 0.5})
	hot2 := g.AddCallSite(graph.CallSite{Caller: b, Callee: c, Temperature: 0.3})
	g.Freeze()

	p := params.NewRegistry()
	p.Set(params.HotCallSite, 0.01)
	an := NewAnalyzer(g, p)

	clusters := an.FindClusters()
	require.Len(t, clusters, 1)
	require.ElementsMatch(t, []graph.CallSiteID{hot1, hot2}, clusters[0].CallSites)

	for _, id := range clusters[0].CallSites {
		cs := g.CallSite(id)
		require.GreaterOrEqual(t, cs.Temperature, 0.01)
	}
}

func TestFindClustersTrimsToMaxSize(t *testing.T) {
	g := graph.New()
	funcs := make([]graph.FunctionID, 4)
	for i := range funcs {
		funcs[i] = g.AddFunction(graph.Function{Name: string(rune('a' + i))})
	}
	// Star topology through funcs[0] so every edge belongs to one component.
	g.AddCallSite(graph.CallSite{Caller: funcs[0], Callee: funcs[1], Temperature: 0.1})
	g.AddCallSite(graph.CallSite{Caller: funcs[0], Callee: funcs[2], Temperature: 0.5})
	g.AddCallSite(graph.CallSite{Caller: funcs[0], Callee: funcs[3], Temperature: 0.3})
	g.Freeze()

	p := params.NewRegistry()
	p.Set(params.HotCallSite, 0.0)
	p.Set(params.ClusterMaxSize, 2)
	an := NewAnalyzer(g, p)

	clusters := an.FindClusters()
	require.Len(t, clusters, 1)
	require.Len(t, clusters[0].CallSites, 2)
	require.Equal(t, 0.5, g.CallSite(clusters[0].CallSites[0]).Temperature)
	require.Equal(t, 0.3, g.CallSite(clusters[0].CallSites[1]).Temperature)
}
