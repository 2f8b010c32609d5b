package analyzer

import (
	"sort"

	"github.com/wichtounet/inlining-analyzer/internal/graph"
)

// Filter excludes functions (and, transitively, the call sites touching
// them) by exact name match. It is used to keep noisy, uninteresting
// entries such as the allocator or libc out of reports.
type Filter struct {
	names map[string]bool
}

// NewFilter returns an empty filter that matches nothing.
func NewFilter() *Filter {
	return &Filter{names: map[string]bool{}}
}

// Add excludes the given function name.
func (f *Filter) Add(name string) {
	f.names[name] = true
}

// EnableDefaultFilters seeds the standard set of noisy names every report
// excludes unless the caller asks otherwise.
func (f *Filter) EnableDefaultFilters() {
	f.Add("malloc")
	f.Add("free")
	f.Add("memcpy")
	f.Add("exit")
	f.Add("(below main)")
}

// MatchesFunction reports whether the function should be excluded.
func (f *Filter) MatchesFunction(fn *graph.Function) bool {
	return f.names[fn.Name]
}

// MatchesCallSite reports whether either endpoint of the call site should
// be excluded.
func (f *Filter) MatchesCallSite(g *graph.Graph, cs *graph.CallSite) bool {
	return f.MatchesFunction(g.Function(cs.Caller)) || f.MatchesFunction(g.Function(cs.Callee))
}

// RankKey selects the attribute a Top*/Tiniest* query ranks by. It is a
// closed set: every value the ranking layer understands is listed here.
type RankKey int

const (
	RankByCalls RankKey = iota
	RankBySize
	RankByParameters
	RankByTemperature
	RankBySelfCost
)

func functionRankValue(f *graph.Function, key RankKey) float64 {
	switch key {
	case RankByCalls:
		return float64(f.Calls)
	case RankBySize:
		return float64(f.Size)
	case RankByParameters:
		return float64(f.Parameters)
	case RankByTemperature:
		return f.Temperature
	case RankBySelfCost:
		return f.SelfCost
	default:
		return 0
	}
}

func callSiteRankValue(cs *graph.CallSite, key RankKey) float64 {
	switch key {
	case RankByCalls:
		return float64(cs.Calls)
	case RankByTemperature:
		return cs.Temperature
	default:
		return 0
	}
}

// TopFunctions returns the n unfiltered functions with the highest value
// for key, highest first.
func TopFunctions(g *graph.Graph, f *Filter, n int, key RankKey) []graph.FunctionID {
	var kept []graph.FunctionID
	for _, id := range g.Functions() {
		if !f.MatchesFunction(g.Function(id)) {
			kept = append(kept, id)
		}
	}

	sort.Slice(kept, func(i, j int) bool {
		return functionRankValue(g.Function(kept[i]), key) > functionRankValue(g.Function(kept[j]), key)
	})

	return truncate(kept, n)
}

// TiniestFunctions returns the n unfiltered functions with non-zero size
// and the lowest size, smallest first.
func TiniestFunctions(g *graph.Graph, f *Filter, n int) []graph.FunctionID {
	var kept []graph.FunctionID
	for _, id := range g.Functions() {
		fn := g.Function(id)
		if fn.Size > 0 && !f.MatchesFunction(fn) {
			kept = append(kept, id)
		}
	}

	sort.Slice(kept, func(i, j int) bool {
		return g.Function(kept[i]).Size < g.Function(kept[j]).Size
	})

	return truncate(kept, n)
}

// TopCallSites returns the n unfiltered call sites with the highest value
// for key, highest first.
func TopCallSites(g *graph.Graph, f *Filter, n int, key RankKey) []graph.CallSiteID {
	var kept []graph.CallSiteID
	for _, id := range g.CallSites() {
		if !f.MatchesCallSite(g, g.CallSite(id)) {
			kept = append(kept, id)
		}
	}

	sort.Slice(kept, func(i, j int) bool {
		return callSiteRankValue(g.CallSite(kept[i]), key) > callSiteRankValue(g.CallSite(kept[j]), key)
	})

	return truncate(kept, n)
}

// FilterCallSiteIDs drops every call site in ids that the filter excludes.
func FilterCallSiteIDs(g *graph.Graph, f *Filter, ids []graph.CallSiteID) []graph.CallSiteID {
	var kept []graph.CallSiteID
	for _, id := range ids {
		if !f.MatchesCallSite(g, g.CallSite(id)) {
			kept = append(kept, id)
		}
	}
	return kept
}

func truncate[T any](values []T, n int) []T {
	if n >= 0 && len(values) > n {
		return values[:n]
	}
	return values
}
