// Package reports assembles the statistic and issue reports an analysis run
// produces, independent of how they are eventually rendered (the cmd layer
// formats a Statistics or Issues value as text or JSON).
package reports

import (
	"fmt"
	"sort"

	analyzer "github.com/wichtounet/inlining-analyzer"
	"github.com/wichtounet/inlining-analyzer/internal/graph"
	"github.com/wichtounet/inlining-analyzer/internal/params"
)

// DefaultTop is the number of entries a report collects when the caller
// doesn't ask for a specific count.
const DefaultTop = 20

// Builder gathers reports from a completed Engine run.
type Builder struct {
	engine *analyzer.Engine
}

// New returns a Builder over a fully enriched and tempered Engine.
func New(e *analyzer.Engine) *Builder {
	return &Builder{engine: e}
}

// FunctionEntry names a function alongside the single metric a report
// ranks it by.
type FunctionEntry struct {
	Name   string
	Module string
	Value  float64
}

// CallSiteEntry names a call site (by its two endpoints) alongside the
// single metric a report ranks it by.
type CallSiteEntry struct {
	Description string
	Value       float64
}

func (b *Builder) functionEntries(ids []graph.FunctionID, value func(*graph.Function) float64) []FunctionEntry {
	g := b.engine.Graph
	entries := make([]FunctionEntry, 0, len(ids))
	for _, id := range ids {
		f := g.Function(id)
		entries = append(entries, FunctionEntry{Name: f.Name, Module: f.Module, Value: value(f)})
	}
	return entries
}

func (b *Builder) callSiteEntries(ids []graph.CallSiteID, value func(*graph.CallSite) float64) []CallSiteEntry {
	g := b.engine.Graph
	entries := make([]CallSiteEntry, 0, len(ids))
	for _, id := range ids {
		cs := g.CallSite(id)
		entries = append(entries, CallSiteEntry{Description: describeCallSite(g, cs), Value: value(cs)})
	}
	return entries
}

func describeCallSite(g *graph.Graph, cs *graph.CallSite) string {
	caller := g.Function(cs.Caller)
	callee := g.Function(cs.Callee)
	return fmt.Sprintf("%s -> %s", caller.Name, callee.Name)
}

// BiggestFunctions returns the top functions by compiled size.
func (b *Builder) BiggestFunctions(top int) []FunctionEntry {
	ids := analyzer.TopFunctions(b.engine.Graph, b.engine.Filter, top, analyzer.RankBySize)
	return b.functionEntries(ids, func(f *graph.Function) float64 { return float64(f.Size) })
}

// MostCostlyFunctions returns the top functions by self cost.
func (b *Builder) MostCostlyFunctions(top int) []FunctionEntry {
	ids := analyzer.TopFunctions(b.engine.Graph, b.engine.Filter, top, analyzer.RankBySelfCost)
	return b.functionEntries(ids, func(f *graph.Function) float64 { return f.SelfCost })
}

// MostInterestingFunctions returns the top functions by temperature.
func (b *Builder) MostInterestingFunctions(top int) []FunctionEntry {
	ids := analyzer.TopFunctions(b.engine.Graph, b.engine.Filter, top, analyzer.RankByTemperature)
	return b.functionEntries(ids, func(f *graph.Function) float64 { return f.Temperature })
}

// MostCalledFunctions returns the top functions by call count.
func (b *Builder) MostCalledFunctions(top int) []FunctionEntry {
	ids := analyzer.TopFunctions(b.engine.Graph, b.engine.Filter, top, analyzer.RankByCalls)
	return b.functionEntries(ids, func(f *graph.Function) float64 { return float64(f.Calls) })
}

// MostParameterizedFunctions returns the top functions by parameter count.
func (b *Builder) MostParameterizedFunctions(top int) []FunctionEntry {
	ids := analyzer.TopFunctions(b.engine.Graph, b.engine.Filter, top, analyzer.RankByParameters)
	return b.functionEntries(ids, func(f *graph.Function) float64 { return float64(f.Parameters) })
}

// TiniestFunctions returns the top functions by smallest non-zero size.
func (b *Builder) TiniestFunctions(top int) []FunctionEntry {
	ids := analyzer.TiniestFunctions(b.engine.Graph, b.engine.Filter, top)
	return b.functionEntries(ids, func(f *graph.Function) float64 { return float64(f.Size) })
}

// OverParameterizedFunctions returns every unfiltered function whose
// parameter count exceeds the ParametersThreshold tunable, most
// parameters first.
func (b *Builder) OverParameterizedFunctions() []FunctionEntry {
	threshold := b.engine.Params.Get(params.ParametersThreshold)

	var ids []graph.FunctionID
	g := b.engine.Graph
	for _, id := range g.Functions() {
		f := g.Function(id)
		if float64(f.Parameters) > threshold && !b.engine.Filter.MatchesFunction(f) {
			ids = append(ids, id)
		}
	}

	sort.Slice(ids, func(i, j int) bool {
		return g.Function(ids[i]).Parameters > g.Function(ids[j]).Parameters
	})

	return b.functionEntries(ids, func(f *graph.Function) float64 { return float64(f.Parameters) })
}

// ParetoFunctions returns the functions, ordered by descending self cost,
// whose cumulative self cost first exceeds 80%, along with the fraction of
// all functions that represents.
func (b *Builder) ParetoFunctions() ([]FunctionEntry, float64) {
	g := b.engine.Graph
	ids := append([]graph.FunctionID(nil), g.Functions()...)
	sort.Slice(ids, func(i, j int) bool {
		return g.Function(ids[i]).SelfCost > g.Function(ids[j]).SelfCost
	})

	var cumulative float64
	var kept []graph.FunctionID
	for _, id := range ids {
		cumulative += g.Function(id).SelfCost
		kept = append(kept, id)
		if cumulative > 80.0 {
			break
		}
	}

	var fraction float64
	if n := g.NumFunctions(); n > 0 {
		fraction = 100.0 * float64(len(kept)) / float64(n)
	}

	return b.functionEntries(kept, func(f *graph.Function) float64 { return f.SelfCost }), fraction
}

// MostCalledCallSites returns the top call sites by call count.
func (b *Builder) MostCalledCallSites(top int) []CallSiteEntry {
	ids := analyzer.TopCallSites(b.engine.Graph, b.engine.Filter, top, analyzer.RankByCalls)
	return b.callSiteEntries(ids, func(cs *graph.CallSite) float64 { return float64(cs.Calls) })
}

// MostInterestingCallSites returns the top call sites by temperature.
func (b *Builder) MostInterestingCallSites(top int) []CallSiteEntry {
	ids := analyzer.TopCallSites(b.engine.Graph, b.engine.Filter, top, analyzer.RankByTemperature)
	return b.callSiteEntries(ids, func(cs *graph.CallSite) float64 { return cs.Temperature })
}

// HeaviestInterLibraryCalls returns the top inter-library call sites by
// call count.
func (b *Builder) HeaviestInterLibraryCalls(top int) []CallSiteEntry {
	ids := analyzer.FilterCallSiteIDs(b.engine.Graph, b.engine.Filter, b.engine.Analyzer.FindInterLibraryCalls())
	return b.callSiteEntries(keepTopCallSites(b.engine.Graph, ids, top, func(cs *graph.CallSite) float64 { return float64(cs.Calls) }),
		func(cs *graph.CallSite) float64 { return float64(cs.Calls) })
}

// HeaviestVirtualCalls returns the top virtual call sites by call count.
func (b *Builder) HeaviestVirtualCalls(top int) []CallSiteEntry {
	ids := analyzer.FilterCallSiteIDs(b.engine.Graph, b.engine.Filter, b.engine.Analyzer.FindVirtualCalls())
	return b.callSiteEntries(keepTopCallSites(b.engine.Graph, ids, top, func(cs *graph.CallSite) float64 { return float64(cs.Calls) }),
		func(cs *graph.CallSite) float64 { return float64(cs.Calls) })
}

func keepTopCallSites(g *graph.Graph, ids []graph.CallSiteID, top int, value func(*graph.CallSite) float64) []graph.CallSiteID {
	sort.Slice(ids, func(i, j int) bool { return value(g.CallSite(ids[i])) > value(g.CallSite(ids[j])) })
	if top >= 0 && len(ids) > top {
		ids = ids[:top]
	}
	return ids
}

// Statistics bundles the descriptive reports printStatisticReports produces
// in the original tool, ready to be rendered as text or JSON.
type Statistics struct {
	Biggest                   []FunctionEntry
	MostCostly                []FunctionEntry
	MostInteresting           []FunctionEntry
	MostCalled                []FunctionEntry
	MostParameterized         []FunctionEntry
	Tiniest                   []FunctionEntry
	MostCalledCallSites       []CallSiteEntry
	MostInterestingCallSites  []CallSiteEntry
	HeaviestInterLibraryCalls []CallSiteEntry
	HeaviestVirtualCalls      []CallSiteEntry
	ParetoFunctions           []FunctionEntry
	ParetoPercent             float64
}

// BuildStatistics assembles every descriptive report using top as the
// truncation count.
func (b *Builder) BuildStatistics(top int) Statistics {
	pareto, percent := b.ParetoFunctions()
	return Statistics{
		Biggest:                   b.BiggestFunctions(top),
		MostCostly:                b.MostCostlyFunctions(top),
		MostInteresting:           b.MostInterestingFunctions(top),
		MostCalled:                b.MostCalledFunctions(top),
		MostParameterized:         b.MostParameterizedFunctions(top),
		Tiniest:                   b.TiniestFunctions(top),
		MostCalledCallSites:       b.MostCalledCallSites(top),
		MostInterestingCallSites:  b.MostInterestingCallSites(top),
		HeaviestInterLibraryCalls: b.HeaviestInterLibraryCalls(top),
		HeaviestVirtualCalls:      b.HeaviestVirtualCalls(top),
		ParetoFunctions:           pareto,
		ParetoPercent:             percent,
	}
}

// Issues bundles every issue-finding report into one value.
type Issues struct {
	LibraryIssues        []analyzer.LibraryIssue
	Clusters             []analyzer.Cluster
	CircularDependencies [][]string
	HierarchyIssues      []analyzer.HierarchyIssue
	OverParameterized    []FunctionEntry
}

// BuildIssues runs every issue-finding analysis and returns their results
// ranked the way the original tool's printIssues ordered them: library
// issues by benefit, clusters by temperature, hierarchy issues by call
// count, each descending.
func (b *Builder) BuildIssues() Issues {
	g := b.engine.Graph

	libraryIssues := b.engine.Analyzer.FindLibraryIssues()
	var filteredIssues []analyzer.LibraryIssue
	for _, issue := range libraryIssues {
		if b.engine.Filter.MatchesFunction(g.Function(issue.Src)) || b.engine.Filter.MatchesFunction(g.Function(issue.Dest)) {
			continue
		}
		filteredIssues = append(filteredIssues, issue)
	}
	sort.Slice(filteredIssues, func(i, j int) bool { return filteredIssues[i].Benefit > filteredIssues[j].Benefit })

	clusters := b.engine.Analyzer.FindClusters()
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].Temperature > clusters[j].Temperature })

	hierarchyIssues := b.engine.FindVirtualHierarchyIssues()
	sort.Slice(hierarchyIssues, func(i, j int) bool { return hierarchyIssues[i].Calls > hierarchyIssues[j].Calls })

	minCalls := b.engine.Params.Get(params.HierarchyMinCalls)
	var significant []analyzer.HierarchyIssue
	if len(hierarchyIssues) > 0 && float64(hierarchyIssues[0].Calls) >= minCalls {
		for _, issue := range hierarchyIssues {
			if float64(issue.Calls) < minCalls {
				break
			}
			significant = append(significant, issue)
		}
	}

	return Issues{
		LibraryIssues:        filteredIssues,
		Clusters:             clusters,
		CircularDependencies: b.engine.Analyzer.FindCircularDependencies(),
		HierarchyIssues:      significant,
		OverParameterized:    b.OverParameterizedFunctions(),
	}
}
