package analyzer

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wichtounet/inlining-analyzer/internal/binelf"
	"github.com/wichtounet/inlining-analyzer/internal/graph"
	"github.com/wichtounet/inlining-analyzer/internal/params"
)

func buildEnrichedGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	a := g.AddFunction(graph.Function{Name: "a(int)", Module: "lib.so", Label: "a\n100%\n(50%)\n10x"})
	b := g.AddFunction(graph.Function{Name: "b()", Module: "other.so", Label: "b\n50%\n(50%)\n5x"})
	g.AddCallSite(graph.CallSite{Caller: a, Callee: b, Label: "5x"})
	g.Freeze()

	inspector := binelf.NewInspector()
	Enrich(g, inspector, nil)
	return g
}

func TestFunctionTemperatureZeroSize(t *testing.T) {
	g := buildEnrichedGraph(t)
	f := g.Function(0)
	require.Equal(t, uint64(0), f.Size)
	require.Equal(t, 0.0, functionTemperature(f, 0, 100, 0.1, 0.1))
}

func TestFunctionTemperatureNonZeroSize(t *testing.T) {
	f := &graph.Function{Size: 10, Parameters: 2, Virtual: true, Frequency: 0.5}
	got := functionTemperature(f, 3, 100, 0.1, 0.1)
	// cost = 1 + 2*0.1 + 0.1 = 1.3; overhead = 1 + 10*2/100 = 1.2
	require.InDelta(t, (1.3/1.2)*0.5, got, 1e-9)
}

func TestCallSiteTemperatureCallerNoCalls(t *testing.T) {
	caller := &graph.Function{Calls: 0}
	callee := &graph.Function{Size: 10}
	cs := &graph.CallSite{}
	require.Equal(t, 0.0, callSiteTemperature(caller, callee, cs, 1, 100, 0.1, 0.1, 0.1))
}

func TestCallSiteTemperatureCalleeZeroSize(t *testing.T) {
	caller := &graph.Function{Calls: 1}
	callee := &graph.Function{Size: 0}
	cs := &graph.CallSite{}
	require.Equal(t, 0.0, callSiteTemperature(caller, callee, cs, 1, 100, 0.1, 0.1, 0.1))
}

func TestCallSiteTemperatureCrossLibrary(t *testing.T) {
	caller := &graph.Function{Calls: 10, Module: "lib.so"}
	callee := &graph.Function{Size: 10, Parameters: 1, Module: "other.so"}
	cs := &graph.CallSite{Frequency: 0.5}
	got := callSiteTemperature(caller, callee, cs, 2, 100, 0.1, 0.1, 0.39)
	// cost = 1 + 1*0.1 + 0.39 (cross-library) = 1.49; overhead = 1 + 10/100 = 1.1
	require.InDelta(t, (1.49/1.1)*0.5, got, 1e-9)
}

func TestComputeTemperaturesEndToEnd(t *testing.T) {
	g := buildEnrichedGraph(t)
	p := params.NewRegistry()
	ComputeTemperatures(g, p)

	// Both functions have Size == 0 (no binary inspector data), so every
	// function and call-site temperature must be exactly zero.
	for _, id := range g.Functions() {
		require.Equal(t, 0.0, g.Function(id).Temperature)
	}
	for _, id := range g.CallSites() {
		require.Equal(t, 0.0, g.CallSite(id).Temperature)
	}
}
