package analyzer

import (
	"fmt"

	"github.com/wichtounet/inlining-analyzer/internal/graph"
	"github.com/wichtounet/inlining-analyzer/internal/params"
)

// LibraryIssue describes a heavy or path-reachable call crossing a library
// boundary, together with the proposed relocations and their combined
// benefit.
type LibraryIssue struct {
	Src       graph.FunctionID
	Dest      graph.FunctionID
	Paths     [][]graph.CallSiteID
	Solutions []string
	Benefit   int64
}

// FindLibraryIssues searches every inter-library call site for a relocation
// opportunity: sites at or above HeavyCallSite are flagged immediately;
// sites at or above LibraryPathThreshold are flagged only if a
// sufficiently-traveled path back into the caller's library exists.
func (a *Analyzer) FindLibraryIssues() []LibraryIssue {
	heavy := a.Params.Get(params.HeavyCallSite)
	pathThreshold := a.Params.Get(params.LibraryPathThreshold)
	pathMaxLength := int(a.Params.Get(params.LibraryPathMaxLength))
	minPathCalls := a.Params.Get(params.LibraryMinPathCalls)

	var issues []LibraryIssue

	for _, id := range a.FindInterLibraryCalls() {
		cs := a.Graph.CallSite(id)

		switch {
		case float64(cs.Calls) >= heavy:
			src, dest := cs.Caller, cs.Callee
			solutions, benefit := a.computeSolutions(src, dest, nil)
			issues = append(issues, LibraryIssue{Src: src, Dest: dest, Solutions: solutions, Benefit: benefit})

		case float64(cs.Calls) >= pathThreshold:
			src := cs.Caller
			paths := findPaths(a.Graph, id, src, pathMaxLength)
			if len(paths) == 0 {
				continue
			}

			var kept [][]graph.CallSiteID
			for _, p := range paths {
				if float64(computeMinCalls(a.Graph, p)) >= minPathCalls {
					kept = append(kept, p)
				}
			}
			if len(kept) == 0 {
				continue
			}

			dest := cs.Callee
			solutions, benefit := a.computeSolutions(src, dest, kept)
			issues = append(issues, LibraryIssue{Src: src, Dest: dest, Paths: kept, Solutions: solutions, Benefit: benefit})
		}
	}

	return issues
}

// findPaths explores every simple path starting at start, up to limit
// hops, staying within the caller's or the anchor's module, until it
// re-enters anchor's module.
func findPaths(g *graph.Graph, start graph.CallSiteID, anchor graph.FunctionID, limit int) [][]graph.CallSiteID {
	var paths [][]graph.CallSiteID
	var path []graph.CallSiteID
	findPath(g, start, anchor, &paths, &path, limit)
	return paths
}

func findPath(g *graph.Graph, site graph.CallSiteID, anchor graph.FunctionID, paths *[][]graph.CallSiteID, path *[]graph.CallSiteID, limit int) {
	if limit == 0 {
		return
	}

	*path = append(*path, site)

	frontier := g.CallSite(site).Callee
	library := g.Function(frontier).Module
	anchorModule := g.Function(anchor).Module

	if library == anchorModule {
		cp := make([]graph.CallSiteID, len(*path))
		copy(cp, *path)
		*paths = append(*paths, cp)
	} else {
		for _, c := range g.OutEdges(frontier) {
			f := g.CallSite(c).Callee
			fModule := g.Function(f).Module
			if fModule == library || fModule == anchorModule {
				if !containsCallSite(*path, c) {
					findPath(g, c, anchor, paths, path, limit-1)
				}
			}
		}
	}

	*path = (*path)[:len(*path)-1]
}

func containsCallSite(path []graph.CallSiteID, c graph.CallSiteID) bool {
	for _, p := range path {
		if p == c {
			return true
		}
	}
	return false
}

func computeMinCalls(g *graph.Graph, path []graph.CallSiteID) uint64 {
	min := g.CallSite(path[0]).Calls
	for _, id := range path {
		if c := g.CallSite(id).Calls; c < min {
			min = c
		}
	}
	return min
}

// interestOfMoving estimates the net change in inter-library call traffic
// if f were relocated into destModule: +calls for every incident call site
// that would become intra-library, -calls for every one that would become
// inter-library.
func interestOfMoving(g *graph.Graph, f graph.FunctionID, destModule string) int64 {
	srcModule := g.Function(f).Module
	if srcModule == destModule {
		return 0
	}

	var benefit int64
	for _, id := range g.OutEdges(f) {
		cs := g.CallSite(id)
		other := g.Function(cs.Callee).Module
		if other == destModule {
			benefit += int64(cs.Calls)
		}
		if other == srcModule {
			benefit -= int64(cs.Calls)
		}
	}
	for _, id := range g.InEdges(f) {
		cs := g.CallSite(id)
		other := g.Function(cs.Caller).Module
		if other == destModule {
			benefit += int64(cs.Calls)
		}
		if other == srcModule {
			benefit -= int64(cs.Calls)
		}
	}
	return benefit
}

// computeSolutions proposes relocations for the pair (src, dest) and any
// accompanying candidate paths, returning the proposal strings and their
// accumulated total benefit — the accumulated total, not the last proposal
// written, is the issue's headline benefit.
func (a *Analyzer) computeSolutions(src, dest graph.FunctionID, paths [][]graph.CallSiteID) ([]string, int64) {
	var solutions []string
	var total int64
	seen := make(map[string]bool)
	threshold := a.Params.Get(params.MoveBenefitThreshold)

	propose := func(function graph.FunctionID, library string, benefit int64) {
		if float64(benefit) < threshold {
			return
		}

		if a.FilterDuplicates {
			hash := a.Graph.Function(function).Name + "->" + library
			if seen[hash] {
				return
			}
			seen[hash] = true
		}

		name := a.Graph.Function(function).Name
		if a.ProtectedLibraries[library] {
			solutions = append(solutions, fmt.Sprintf("Protected library: %s should be moved to %s (benefit %d)", name, library, benefit))
		} else {
			solutions = append(solutions, fmt.Sprintf("%s should be moved to %s (benefit %d)", name, library, benefit))
		}

		total += benefit
	}

	benefitSrcToDest := interestOfMoving(a.Graph, src, a.Graph.Function(dest).Module)
	benefitDestToSrc := interestOfMoving(a.Graph, dest, a.Graph.Function(src).Module)

	switch {
	case benefitSrcToDest <= 0 && benefitDestToSrc <= 0:
		solutions = append(solutions, "Benefit is not enough, neither of them should be moved")

	case benefitSrcToDest > benefitDestToSrc:
		destModule := a.Graph.Function(dest).Module
		propose(src, destModule, benefitSrcToDest)

		srcName := a.Graph.Function(src).Name
		for _, path := range paths {
			terminal := a.Graph.CallSite(path[len(path)-1]).Callee
			if a.Graph.Function(terminal).Name == srcName {
				continue
			}
			propose(terminal, destModule, interestOfMoving(a.Graph, terminal, destModule))
		}

	default:
		srcModule := a.Graph.Function(src).Module
		propose(dest, srcModule, benefitDestToSrc)

		for _, path := range paths {
			if len(path) <= 3 {
				continue
			}
			for i := 1; i < len(path)-1; i++ {
				f := a.Graph.CallSite(path[i]).Callee
				benefit := interestOfMoving(a.Graph, f, srcModule)
				if float64(benefit) < threshold {
					break // avoid breaking the path into too many libraries
				}
				propose(f, srcModule, benefit)
			}
		}
	}

	if len(solutions) == 0 {
		solutions = append(solutions, "Benefit is not enough, neither of them should be moved")
	}

	return solutions, total
}
