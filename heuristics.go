package analyzer

import (
	"github.com/wichtounet/inlining-analyzer/internal/graph"
	"github.com/wichtounet/inlining-analyzer/internal/params"
)

// ComputeTemperatures fills in Function.Temperature and CallSite.Temperature
// for every vertex and edge. It must run after Enrich, since it reads
// frequency, size, parameters, virtuality and applicationSize.
func ComputeTemperatures(g *graph.Graph, p *params.Registry) {
	fp := p.Get(params.HeuristicFunctionParameterCost)
	fv := p.Get(params.HeuristicFunctionVirtualityCost)
	cp := p.Get(params.HeuristicCallSiteParameterCost)
	cv := p.Get(params.HeuristicCallSiteVirtualityCost)
	lc := p.Get(params.HeuristicLibraryCost)

	appSize := float64(g.ApplicationSize())

	for _, id := range g.Functions() {
		f := g.Function(id)
		f.Temperature = functionTemperature(f, g.InDegree(id), appSize, fp, fv)
	}

	for _, id := range g.CallSites() {
		cs := g.CallSite(id)
		caller := g.Function(cs.Caller)
		callee := g.Function(cs.Callee)
		inDegree := g.InDegree(cs.Callee)
		cs.Temperature = callSiteTemperature(caller, callee, cs, inDegree, appSize, cp, cv, lc)
	}
}

func functionTemperature(f *graph.Function, inDegree int, appSize, paramCost, virtualCost float64) float64 {
	if f.Size == 0 {
		return 0
	}

	cost := 1 + float64(f.Parameters)*paramCost
	if f.Virtual {
		cost += virtualCost
	}

	overhead := 1.0
	if appSize > 0 {
		extra := inDegree - 1
		if extra < 0 {
			extra = 0
		}
		overhead = 1 + float64(f.Size)*float64(extra)/appSize
	}

	return (cost / overhead) * f.Frequency
}

func callSiteTemperature(caller, callee *graph.Function, cs *graph.CallSite, calleeInDegree int, appSize, paramCost, virtualCost, libraryCost float64) float64 {
	if caller.Calls == 0 {
		return 0
	}
	if callee.Size == 0 {
		return 0
	}

	cost := 1 + float64(callee.Parameters)*paramCost
	if callee.Virtual {
		cost += virtualCost
	}
	if caller.Module != callee.Module {
		cost += libraryCost
	}

	overhead := 1.0
	if calleeInDegree > 1 && appSize > 0 {
		overhead = 1 + float64(callee.Size)/appSize
	}

	return (cost / overhead) * cs.Frequency
}
